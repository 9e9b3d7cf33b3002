package nodecodec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Bucket is one interval of a per-variable histogram.
type Bucket struct {
	Literal          int32 // upper bound of the interval
	DistinctLiterals float64
	Selectivity      float64
}

// VarBucket is the histogram of one variable.
type VarBucket struct {
	Min     int32
	Max     int32
	Buckets []Bucket
}

// maxBuckets bounds the counts a decoder accepts.
const maxBuckets = 1 << 16

type varBucketHeader struct {
	Min int32
	Max int32
}

// BucketArrayCodec maps front-coded string keys to histogram arrays.
//
// A value is stored as the number of histograms, then per histogram its
// bounds, its bucket count and the buckets, all big-endian and fixed width.
type BucketArrayCodec struct {
	stringKeys
}

var _ Codec[string, []VarBucket] = (*BucketArrayCodec)(nil)

// NewBucketArrayCodec creates a string -> []VarBucket codec.
func NewBucketArrayCodec() *BucketArrayCodec {
	return &BucketArrayCodec{}
}

// CanWrite reports that the bucket codec supports encoding.
func (c *BucketArrayCodec) CanWrite() bool {
	return true
}

// EncodeLeafEntry encodes one key/histograms pair of a leaf node.
func (c *BucketArrayCodec) EncodeLeafEntry(w Writer, key string, value []VarBucket, prevKey *string, _ *[]VarBucket) error {
	if err := w.WriteByte(markEntry); err != nil {
		return err
	}
	if err := WriteFrontCoded(w, key, prevString(prevKey)); err != nil {
		return err
	}
	return writeVarBuckets(w, value)
}

// EncodeEndOfLeaf encodes the sentinel that links to the next leaf.
func (c *BucketArrayCodec) EncodeEndOfLeaf(w Writer, next int32) error {
	return c.encodeEndOfNode(w, next)
}

// DecodeLeafEntry decodes the next record of a leaf node.
func (c *BucketArrayCodec) DecodeLeafEntry(r Reader, prevKey *string, _ *[]VarBucket) (Leaf[string, []VarBucket], error) {
	m, err := readMark(r)
	if err != nil {
		return Leaf[string, []VarBucket]{}, err
	}
	if m == markEndOfNode {
		next, err := c.readPointer(r)
		if err != nil {
			return Leaf[string, []VarBucket]{}, err
		}
		return Leaf[string, []VarBucket]{Kind: KindEndOfNode, Next: next}, nil
	}
	key, err := ReadFrontCoded(r, prevString(prevKey))
	if err != nil {
		return Leaf[string, []VarBucket]{}, corrupt(err, "key")
	}
	value, err := readVarBuckets(r)
	if err != nil {
		return Leaf[string, []VarBucket]{}, corrupt(err, "histograms")
	}
	return Leaf[string, []VarBucket]{Kind: KindEntry, Key: key, Value: value}, nil
}

func writeVarBuckets(w Writer, vbs []VarBucket) error {
	var buf [binary.MaxVarintLen64]byte
	if _, err := w.Write(buf[:binary.PutUvarint(buf[:], uint64(len(vbs)))]); err != nil {
		return err
	}
	for _, vb := range vbs {
		if err := binary.Write(w, binary.BigEndian, varBucketHeader{Min: vb.Min, Max: vb.Max}); err != nil {
			return err
		}
		if _, err := w.Write(buf[:binary.PutUvarint(buf[:], uint64(len(vb.Buckets)))]); err != nil {
			return err
		}
		if len(vb.Buckets) == 0 {
			continue
		}
		if err := binary.Write(w, binary.BigEndian, vb.Buckets); err != nil {
			return err
		}
	}
	return nil
}

func readVarBuckets(r Reader) ([]VarBucket, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxBuckets {
		return nil, errors.Wrapf(ErrCorrupt, "%d histograms", n)
	}
	if n == 0 {
		return nil, nil
	}
	vbs := make([]VarBucket, n)
	for i := range vbs {
		var hdr varBucketHeader
		if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
			return nil, err
		}
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		if count > maxBuckets {
			return nil, errors.Wrapf(ErrCorrupt, "%d buckets", count)
		}
		var buckets []Bucket
		if count > 0 {
			buckets = make([]Bucket, count)
			if err := binary.Read(r, binary.BigEndian, buckets); err != nil {
				return nil, err
			}
		}
		vbs[i] = VarBucket{Min: hdr.Min, Max: hdr.Max, Buckets: buckets}
	}
	return vbs, nil
}

// ReadOnlyBucketArrayCodec reads bucket arrays written by BucketArrayCodec and
// refuses every write. It serves offline statistics scans over existing
// indexes.
type ReadOnlyBucketArrayCodec struct {
	BucketArrayCodec
}

var _ Codec[string, []VarBucket] = (*ReadOnlyBucketArrayCodec)(nil)

// NewReadOnlyBucketArrayCodec creates the read-only variant.
func NewReadOnlyBucketArrayCodec() *ReadOnlyBucketArrayCodec {
	return &ReadOnlyBucketArrayCodec{}
}

// CanWrite reports that this codec cannot encode.
func (c *ReadOnlyBucketArrayCodec) CanWrite() bool {
	return false
}

func (c *ReadOnlyBucketArrayCodec) EncodeLeafEntry(Writer, string, []VarBucket, *string, *[]VarBucket) error {
	return errors.Wrap(ErrNotSupported, "read-only bucket array codec")
}

func (c *ReadOnlyBucketArrayCodec) EncodeEndOfLeaf(Writer, int32) error {
	return errors.Wrap(ErrNotSupported, "read-only bucket array codec")
}

func (c *ReadOnlyBucketArrayCodec) EncodeInnerEntry(Writer, string, int32, *string) error {
	return errors.Wrap(ErrNotSupported, "read-only bucket array codec")
}

func (c *ReadOnlyBucketArrayCodec) EncodeEndOfInner(Writer, int32) error {
	return errors.Wrap(ErrNotSupported, "read-only bucket array codec")
}
