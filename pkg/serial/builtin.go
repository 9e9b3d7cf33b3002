package serial

import (
	"encoding/binary"
	"io"
	"reflect"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxLen bounds the length prefixes String and Bytes accept.
const maxLen = 1 << 26

// Int32 is a fixed 4-byte big-endian integer.
type Int32 struct{}

func (Int32) Write(w io.Writer, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v)) // #nosec G115 - intentional bit-pattern conversion for binary encoding
	_, err := w.Write(buf[:])
	return err
}

func (Int32) Read(r Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil // #nosec G115 - intentional bit-pattern conversion for binary decoding
}

// Int64 is a fixed 8-byte big-endian integer.
type Int64 struct{}

func (Int64) Write(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)) // #nosec G115 - intentional bit-pattern conversion for binary encoding
	_, err := w.Write(buf[:])
	return err
}

func (Int64) Read(r Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil // #nosec G115 - intentional bit-pattern conversion for binary decoding
}

// Bytes is a uvarint length followed by the bytes.
type Bytes struct{}

func (Bytes) Write(w io.Writer, v []byte) error {
	var buf [binary.MaxVarintLen64]byte
	if _, err := w.Write(buf[:binary.PutUvarint(buf[:], uint64(len(v)))]); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func (Bytes) Read(r Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, errors.Errorf("length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, unexpected(err)
	}
	return b, nil
}

// String is laid out like Bytes.
type String struct{}

func (String) Write(w io.Writer, v string) error {
	return Bytes{}.Write(w, []byte(v))
}

func (String) Read(r Reader) (string, error) {
	b, err := Bytes{}.Read(r)
	return string(b), err
}

// Array3 writes three elements with Elem.
type Array3[T any] struct {
	Elem Serializer[T]
}

func (a Array3[T]) Write(w io.Writer, v [3]T) error {
	for _, e := range v {
		if err := a.Elem.Write(w, e); err != nil {
			return err
		}
	}
	return nil
}

func (a Array3[T]) Read(r Reader) ([3]T, error) {
	var v [3]T
	for i := range v {
		e, err := a.Elem.Read(r)
		if err != nil {
			if i > 0 {
				err = unexpected(err)
			}
			return v, err
		}
		v[i] = e
	}
	return v, nil
}

// Message writes a protobuf message with a uvarint size prefix.
type Message[T any] struct {
	elem reflect.Type
}

func (m Message[T]) Write(w io.Writer, v T) error {
	msg, ok := any(v).(proto.Message)
	if !ok {
		return errors.Errorf("%T is not a protobuf message", v)
	}
	_, err := protodelim.MarshalTo(w, msg)
	return err
}

func (m Message[T]) Read(r Reader) (T, error) {
	v := reflect.New(m.elem).Interface()
	if err := protodelim.UnmarshalFrom(r, v.(proto.Message)); err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Dynamic serializes JSON-shaped values (nil, bool, numbers, strings, []any,
// map[string]any) through structpb.Value.
type Dynamic struct{}

func (Dynamic) Write(w io.Writer, v any) error {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return errors.Wrap(err, "dynamic value")
	}
	_, err = protodelim.MarshalTo(w, pv)
	return err
}

func (Dynamic) Read(r Reader) (any, error) {
	pv := &structpb.Value{}
	if err := protodelim.UnmarshalFrom(r, pv); err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
