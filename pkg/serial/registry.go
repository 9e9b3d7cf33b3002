// Package serial is a type-driven registry of binary serializers. It backs the
// uncompressed node codec for key and value shapes that have no specialized
// layout.
package serial

import (
	"io"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// ErrNoSerializer is returned by Lookup for types nothing was registered for.
var ErrNoSerializer = errors.New("no serializer registered")

// Reader is the source serializers read from.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Serializer writes and reads values of one type. Read returns io.EOF when the
// source is exhausted before the first byte of a value.
type Serializer[T any] interface {
	Write(w io.Writer, v T) error
	Read(r Reader) (T, error)
}

// Registry maps Go types to their serializers.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type]any)}
}

// Default creates a registry holding the built-in serializers.
func Default() *Registry {
	r := NewRegistry()
	Register[int32](r, Int32{})
	Register[int64](r, Int64{})
	Register[string](r, String{})
	Register[[]byte](r, Bytes{})
	Register[[3]int32](r, Array3[int32]{Elem: Int32{}})
	Register[[3]string](r, Array3[string]{Elem: String{}})
	Register[any](r, Dynamic{})
	return r
}

// Register binds s to T, replacing any earlier binding.
func Register[T any](r *Registry, s Serializer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[reflect.TypeFor[T]()] = s
}

// Lookup returns the serializer bound to T. Pointers to protobuf messages are
// served without registration.
func Lookup[T any](r *Registry) (Serializer[T], error) {
	t := reflect.TypeFor[T]()
	r.mu.RLock()
	s, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return s.(Serializer[T]), nil
	}
	if t.Kind() == reflect.Pointer && t.Implements(reflect.TypeFor[proto.Message]()) {
		return Message[T]{elem: t.Elem()}, nil
	}
	return nil, errors.Wrapf(ErrNoSerializer, "type %s", t)
}
