package nodecodec

import (
	"io"

	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/pkg/serial"
)

// GenericCodec stores entries uncompressed through serializers looked up by
// the declared key and value types. Each record is a mark byte (0 entry, 1
// end of node) followed by the value and then the key; inner entries carry
// the child pointer in place of the value.
type GenericCodec[K, V any] struct {
	keys     serial.Serializer[K]
	values   serial.Serializer[V]
	pointers serial.Serializer[int32]
}

// NewGenericCodec resolves the serializers for K and V in reg.
func NewGenericCodec[K, V any](reg *serial.Registry) (*GenericCodec[K, V], error) {
	keys, err := serial.Lookup[K](reg)
	if err != nil {
		return nil, errors.Wrap(err, "key serializer")
	}
	values, err := serial.Lookup[V](reg)
	if err != nil {
		return nil, errors.Wrap(err, "value serializer")
	}
	pointers, err := serial.Lookup[int32](reg)
	if err != nil {
		return nil, errors.Wrap(err, "pointer serializer")
	}
	return &GenericCodec[K, V]{keys: keys, values: values, pointers: pointers}, nil
}

// CanWrite reports that the generic codec supports encoding.
func (c *GenericCodec[K, V]) CanWrite() bool {
	return true
}

// EncodeLeafEntry encodes one key/value pair of a leaf node.
func (c *GenericCodec[K, V]) EncodeLeafEntry(w Writer, key K, value V, _ *K, _ *V) error {
	if err := w.WriteByte(markEntry); err != nil {
		return err
	}
	if err := c.values.Write(w, value); err != nil {
		return errors.Wrap(err, "value")
	}
	return errors.Wrap(c.keys.Write(w, key), "key")
}

// EncodeEndOfLeaf encodes the sentinel that links to the next leaf.
func (c *GenericCodec[K, V]) EncodeEndOfLeaf(w Writer, next int32) error {
	return c.encodeEndOfNode(w, next)
}

// DecodeLeafEntry decodes the next record of a leaf node.
func (c *GenericCodec[K, V]) DecodeLeafEntry(r Reader, _ *K, _ *V) (Leaf[K, V], error) {
	m, err := readMark(r)
	if err != nil {
		return Leaf[K, V]{}, err
	}
	if m == markEndOfNode {
		next, err := c.pointers.Read(r)
		if err != nil {
			return Leaf[K, V]{}, corrupt(err, "continuation pointer")
		}
		return Leaf[K, V]{Kind: KindEndOfNode, Next: next}, nil
	}
	value, err := c.values.Read(r)
	if err != nil {
		return Leaf[K, V]{}, corrupt(err, "value")
	}
	key, err := c.keys.Read(r)
	if err != nil {
		return Leaf[K, V]{}, corrupt(err, "key")
	}
	return Leaf[K, V]{Kind: KindEntry, Key: key, Value: value}, nil
}

// EncodeInnerEntry encodes one key/child pair of an inner node.
func (c *GenericCodec[K, V]) EncodeInnerEntry(w Writer, key K, child int32, _ *K) error {
	if err := w.WriteByte(markEntry); err != nil {
		return err
	}
	if err := c.pointers.Write(w, child); err != nil {
		return errors.Wrap(err, "child pointer")
	}
	return errors.Wrap(c.keys.Write(w, key), "key")
}

// EncodeEndOfInner encodes the last child pointer of an inner node.
func (c *GenericCodec[K, V]) EncodeEndOfInner(w Writer, child int32) error {
	return c.encodeEndOfNode(w, child)
}

// DecodeInnerEntry decodes the next record of an inner node. A stream that
// ends right after an entry's child pointer yields that child without a key.
func (c *GenericCodec[K, V]) DecodeInnerEntry(r Reader, _ *K) (Inner[K], error) {
	m, err := readMark(r)
	if err != nil {
		return Inner[K]{}, err
	}
	child, err := c.pointers.Read(r)
	if err != nil {
		return Inner[K]{}, corrupt(err, "child pointer")
	}
	if m == markEndOfNode {
		return Inner[K]{Kind: KindEndOfNode, Child: child}, nil
	}
	key, err := c.keys.Read(r)
	if err == io.EOF {
		return Inner[K]{Kind: KindEntry, Child: child}, nil
	}
	if err != nil {
		return Inner[K]{}, corrupt(err, "key")
	}
	return Inner[K]{Kind: KindEntry, Key: key, HasKey: true, Child: child}, nil
}

func (c *GenericCodec[K, V]) encodeEndOfNode(w Writer, pointer int32) error {
	if err := w.WriteByte(markEndOfNode); err != nil {
		return err
	}
	return errors.Wrap(c.pointers.Write(w, pointer), "pointer")
}
