package nodecodec

// ScalarStringCodec maps front-coded string keys to integer values.
type ScalarStringCodec struct {
	stringKeys
}

var _ Codec[string, int32] = (*ScalarStringCodec)(nil)

// NewScalarStringCodec creates a string -> int32 codec.
func NewScalarStringCodec() *ScalarStringCodec {
	return &ScalarStringCodec{}
}

// CanWrite reports that the scalar codec supports encoding.
func (c *ScalarStringCodec) CanWrite() bool {
	return true
}

// EncodeLeafEntry encodes one key/value pair of a leaf node.
func (c *ScalarStringCodec) EncodeLeafEntry(w Writer, key string, value int32, prevKey *string, _ *int32) error {
	if err := w.WriteByte(markEntry); err != nil {
		return err
	}
	if err := WriteFrontCoded(w, key, prevString(prevKey)); err != nil {
		return err
	}
	return WriteVarBytesInt(w, value)
}

// EncodeEndOfLeaf encodes the sentinel that links to the next leaf.
func (c *ScalarStringCodec) EncodeEndOfLeaf(w Writer, next int32) error {
	return c.encodeEndOfNode(w, next)
}

// DecodeLeafEntry decodes the next record of a leaf node.
func (c *ScalarStringCodec) DecodeLeafEntry(r Reader, prevKey *string, _ *int32) (Leaf[string, int32], error) {
	m, err := readMark(r)
	if err != nil {
		return Leaf[string, int32]{}, err
	}
	if m == markEndOfNode {
		next, err := c.readPointer(r)
		if err != nil {
			return Leaf[string, int32]{}, err
		}
		return Leaf[string, int32]{Kind: KindEndOfNode, Next: next}, nil
	}
	key, err := ReadFrontCoded(r, prevString(prevKey))
	if err != nil {
		return Leaf[string, int32]{}, corrupt(err, "key")
	}
	value, err := ReadVarBytesInt(r)
	if err != nil {
		return Leaf[string, int32]{}, corrupt(err, "value")
	}
	return Leaf[string, int32]{Kind: KindEntry, Key: key, Value: value}, nil
}
