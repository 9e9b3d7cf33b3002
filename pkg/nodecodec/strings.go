package nodecodec

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/pkg/collation"
)

// StringTriple is a key of three UTF-8 attributes in logical (S, P, O) order.
type StringTriple [3]string

// StringCodec prefix-compresses each attribute of a string triple against the
// same attribute of the previous key.
//
// Header: bit 0 entry flag, then per slot an "identical" flag and, unless
// set, the classes of the common prefix length and of the suffix length, then
// the pointer class. Every single flag checks the window for overflow, so the
// 2-bit classes are not pair-aligned. Payload per non-identical slot: common
// length, suffix length, suffix bytes; then the pointer.
type StringCodec struct {
	order collation.Order
}

var _ Codec[StringTriple, int32] = (*StringCodec)(nil)

// NewStringCodec creates a string attribute codec bound to order.
func NewStringCodec(order collation.Order) *StringCodec {
	return &StringCodec{order: order}
}

// Order returns the collation order the codec is bound to.
func (c *StringCodec) Order() collation.Order {
	return c.order
}

// CanWrite reports that the string codec supports encoding.
func (c *StringCodec) CanWrite() bool {
	return true
}

// EncodeLeafEntry encodes one key/pointer pair of a leaf node.
func (c *StringCodec) EncodeLeafEntry(w Writer, key StringTriple, value int32, prevKey *StringTriple, _ *int32) error {
	return c.encodeEntry(w, key, value, prevKey)
}

// EncodeEndOfLeaf encodes the sentinel that links to the next leaf.
func (c *StringCodec) EncodeEndOfLeaf(w Writer, next int32) error {
	return c.encodeSentinel(w, next)
}

// DecodeLeafEntry decodes the next record of a leaf node.
func (c *StringCodec) DecodeLeafEntry(r Reader, prevKey *StringTriple, _ *int32) (Leaf[StringTriple, int32], error) {
	key, pointer, entry, err := c.decodeEntry(r, prevKey)
	if err != nil {
		return Leaf[StringTriple, int32]{}, err
	}
	if !entry {
		return Leaf[StringTriple, int32]{Kind: KindEndOfNode, Next: pointer}, nil
	}
	return Leaf[StringTriple, int32]{Kind: KindEntry, Key: key, Value: pointer}, nil
}

// EncodeInnerEntry encodes one key/child pair of an inner node.
func (c *StringCodec) EncodeInnerEntry(w Writer, key StringTriple, child int32, prevKey *StringTriple) error {
	return c.encodeEntry(w, key, child, prevKey)
}

// EncodeEndOfInner encodes the last child pointer of an inner node.
func (c *StringCodec) EncodeEndOfInner(w Writer, child int32) error {
	return c.encodeSentinel(w, child)
}

// DecodeInnerEntry decodes the next record of an inner node.
func (c *StringCodec) DecodeInnerEntry(r Reader, prevKey *StringTriple) (Inner[StringTriple], error) {
	key, pointer, entry, err := c.decodeEntry(r, prevKey)
	if err != nil {
		return Inner[StringTriple]{}, err
	}
	if !entry {
		return Inner[StringTriple]{Kind: KindEndOfNode, Child: pointer}, nil
	}
	return Inner[StringTriple]{Kind: KindEntry, Key: key, HasKey: true, Child: pointer}, nil
}

// CommonPrefix returns the number of leading bytes a and b share.
func CommonPrefix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

type stringSlot struct {
	common intField
	suffix string
}

func (c *StringCodec) encodeEntry(w Writer, key StringTriple, pointer int32, prev *StringTriple) error {
	bw := newBitWriter(w)
	if err := bw.Bit(true); err != nil {
		return err
	}
	var slots []stringSlot
	for slot := 0; slot < 3; slot++ {
		attr := c.order.Slot(slot)
		if prev != nil && prev[attr] == key[attr] {
			if err := bw.Bit(true); err != nil {
				return err
			}
			continue
		}
		if err := bw.Bit(false); err != nil {
			return err
		}
		common := 0
		if prev != nil {
			common = CommonPrefix(prev[attr], key[attr])
		}
		suffix := key[attr][common:]
		if len(suffix) > math.MaxInt32 {
			return errors.Errorf("attribute %d: %d bytes exceed the format limit", attr, len(key[attr]))
		}
		s := stringSlot{common: newIntField(int32(common)), suffix: suffix} // #nosec G115 - bounded above
		if err := bw.PairPerBit(s.common.class); err != nil {
			return err
		}
		if err := bw.PairPerBit(ClassOf(int32(len(suffix)))); err != nil { // #nosec G115 - bounded above
			return err
		}
		slots = append(slots, s)
	}
	ptr := newIntField(pointer)
	if err := bw.PairPerBit(ptr.class); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	for _, s := range slots {
		n := newIntField(int32(len(s.suffix))) // #nosec G115 - bounded above
		if err := writeFields(w, []intField{s.common, n}); err != nil {
			return err
		}
		if _, err := io.WriteString(w, s.suffix); err != nil {
			return err
		}
	}
	return WriteInt(w, ptr.v, ptr.class)
}

func (c *StringCodec) encodeSentinel(w Writer, pointer int32) error {
	f := newIntField(pointer)
	bw := newBitWriter(w)
	if err := bw.Bit(false); err != nil {
		return err
	}
	if err := bw.PairPerBit(f.class); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return WriteInt(w, f.v, f.class)
}

func (c *StringCodec) decodeEntry(r Reader, prev *StringTriple) (key StringTriple, pointer int32, entry bool, err error) {
	br := newBitReader(r)
	full, err := br.Bit()
	if err == io.EOF {
		return key, 0, false, io.EOF
	}
	if err != nil {
		return key, 0, false, corrupt(err, "entry header")
	}
	if !full {
		class, err := br.PairPerBit()
		if err != nil {
			return key, 0, false, corrupt(err, "entry header")
		}
		if pointer, err = ReadInt(r, class); err != nil {
			return key, 0, false, corrupt(err, "continuation pointer")
		}
		return key, pointer, false, nil
	}

	type slotClasses struct {
		attr, common, suffix int
	}
	var changed []slotClasses
	for slot := 0; slot < 3; slot++ {
		attr := c.order.Slot(slot)
		identical, err := br.Bit()
		if err != nil {
			return key, 0, false, corrupt(err, "entry header")
		}
		if identical {
			if prev == nil {
				return key, 0, false, corrupt(ErrCorrupt, "identical attribute without a previous key")
			}
			key[attr] = prev[attr]
			continue
		}
		sc := slotClasses{attr: attr}
		if sc.common, err = br.PairPerBit(); err != nil {
			return key, 0, false, corrupt(err, "entry header")
		}
		if sc.suffix, err = br.PairPerBit(); err != nil {
			return key, 0, false, corrupt(err, "entry header")
		}
		changed = append(changed, sc)
	}
	ptrClass, err := br.PairPerBit()
	if err != nil {
		return key, 0, false, corrupt(err, "entry header")
	}

	for _, sc := range changed {
		common, err := ReadInt(r, sc.common)
		if err != nil {
			return key, 0, false, corrupt(err, "common prefix length")
		}
		n, err := ReadInt(r, sc.suffix)
		if err != nil {
			return key, 0, false, corrupt(err, "suffix length")
		}
		var base string
		if prev != nil {
			base = prev[sc.attr]
		}
		if common < 0 || int(common) > len(base) || n < 0 {
			return key, 0, false, corrupt(ErrCorrupt, "prefix out of range")
		}
		if n > maxFrontCodedLen {
			return key, 0, false, errors.Wrapf(ErrCorrupt, "suffix length %d out of range", n)
		}
		suffix := make([]byte, n)
		if _, err := io.ReadFull(r, suffix); err != nil {
			return key, 0, false, corrupt(err, "suffix")
		}
		key[sc.attr] = base[:common] + string(suffix)
	}
	if pointer, err = ReadInt(r, ptrClass); err != nil {
		return key, 0, false, corrupt(err, "pointer")
	}
	return key, pointer, true, nil
}
