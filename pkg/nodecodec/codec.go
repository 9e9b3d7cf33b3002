// Package nodecodec implements the byte layouts of B+-tree node entries.
//
// A node is serialized as a forward-only stream of entries. Each entry may be
// front-coded against the previous entry of the same stream, so decoding is
// strictly sequential: the caller owns the previously decoded key and value and
// passes them back in on every call. A stream ends either with an end-of-node
// sentinel carrying a continuation page id, or with the end of the underlying
// bytes.
//
// None of the formats is self-describing. A codec is bound to one collation
// order and one attribute representation at construction, and reading a stream
// with a different binding yields wrong keys rather than an error.
package nodecodec

import (
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrCorrupt marks a stream that ends or misbehaves inside an entry.
	ErrCorrupt = errors.New("corrupt node stream")
	// ErrNotSupported is returned by read-only codecs for every write operation.
	ErrNotSupported = errors.New("operation not supported for this codec")
	// ErrOriginalOutsideObject is returned when a subject or predicate carries
	// original content, which the interned format cannot represent.
	ErrOriginalOutsideObject = errors.New("original content is only supported on the object attribute")
)

// NoPage is the continuation pointer of the last node in a chain.
const NoPage int32 = 0

// Kind tells a decoded record apart from an end-of-node sentinel.
type Kind byte

const (
	KindEntry Kind = iota
	KindEndOfNode
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindEndOfNode:
		return "end-of-node"
	default:
		return "unknown"
	}
}

// Leaf is one decoded leaf record: a key/value pair, or the sentinel that
// carries the next leaf's page id.
type Leaf[K, V any] struct {
	Kind  Kind
	Key   K
	Value V
	Next  int32
}

// Inner is one decoded inner-node record. HasKey is false for the last child
// pointer of a node, which has no bounding key.
type Inner[K any] struct {
	Kind   Kind
	Key    K
	HasKey bool
	Child  int32
}

// Writer is the sink an entry is encoded to.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// Reader is the source an entry is decoded from.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Codec encodes and decodes the entries of leaf and inner nodes.
//
// A nil previous key or value means the entry is the first of its stream.
// Decode returns io.EOF when the stream ends cleanly at an entry boundary and
// an error wrapping ErrCorrupt when it ends or is malformed inside an entry.
type Codec[K, V any] interface {
	EncodeLeafEntry(w Writer, key K, value V, prevKey *K, prevValue *V) error
	EncodeEndOfLeaf(w Writer, next int32) error
	DecodeLeafEntry(r Reader, prevKey *K, prevValue *V) (Leaf[K, V], error)

	EncodeInnerEntry(w Writer, key K, child int32, prevKey *K) error
	EncodeEndOfInner(w Writer, child int32) error
	DecodeInnerEntry(r Reader, prevKey *K) (Inner[K], error)

	// CanWrite reports whether the encode operations are supported.
	CanWrite() bool
}

// corrupt turns an end of stream inside an entry into ErrCorrupt.
func corrupt(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrCorrupt, "%s: %v", what, io.ErrUnexpectedEOF)
	}
	return errors.Wrap(err, what)
}
