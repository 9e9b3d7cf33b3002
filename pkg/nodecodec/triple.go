package nodecodec

import (
	"io"

	"github.com/luposdate/luposdate-sub008/pkg/collation"
)

// Attribute is what the triple front-coding engine needs to know about one
// attribute representation.
type Attribute[A any] interface {
	// Equal reports whether a and b can be shared between consecutive keys.
	Equal(a, b A) bool
	// Literal and FromLiteral convert a value to and from its integer code.
	Literal(a A) int32
	FromLiteral(v int32) A
	// Delta and ApplyDelta code a value relative to the previous key's value.
	Delta(cur, prev A) int32
	ApplyDelta(prev A, d int32) A
	// Secondary returns the original-content code carried by a, if any.
	Secondary(a A) (int32, bool)
	WithSecondary(a A, v int32) A
}

// allDiffer is the shared-count value written when no previous key exists.
// With a previous key the same value means all three attributes are shared.
const allDiffer = 3

// tripleCodec is the front-coding engine behind RawCodec and InternedCodec.
//
// Entry layout: a header of flags and 2-bit classes (bit 0 entry flag, bit 1
// secondary flag, bits 2-3 shared slot count, then one class per transmitted
// field), flushed in whole bytes, followed by the fields in the same order.
// Fields are: the first differing slot as a delta when a previous key exists,
// every later slot as a literal, the secondary code, the pointer.
type tripleCodec[A any, K ~[3]A] struct {
	order collation.Order
	attr  Attribute[A]
}

// Order returns the collation order the codec is bound to.
func (c *tripleCodec[A, K]) Order() collation.Order {
	return c.order
}

// CanWrite reports that the triple codecs support encoding.
func (c *tripleCodec[A, K]) CanWrite() bool {
	return true
}

// EncodeLeafEntry encodes one key/pointer pair of a leaf node.
func (c *tripleCodec[A, K]) EncodeLeafEntry(w Writer, key K, value int32, prevKey *K, _ *int32) error {
	return c.encodeEntry(w, key, value, prevKey)
}

// EncodeEndOfLeaf encodes the sentinel that links to the next leaf.
func (c *tripleCodec[A, K]) EncodeEndOfLeaf(w Writer, next int32) error {
	return c.encodeSentinel(w, next)
}

// DecodeLeafEntry decodes the next record of a leaf node.
func (c *tripleCodec[A, K]) DecodeLeafEntry(r Reader, prevKey *K, _ *int32) (Leaf[K, int32], error) {
	key, pointer, entry, err := c.decodeEntry(r, prevKey)
	if err != nil {
		return Leaf[K, int32]{}, err
	}
	if !entry {
		return Leaf[K, int32]{Kind: KindEndOfNode, Next: pointer}, nil
	}
	return Leaf[K, int32]{Kind: KindEntry, Key: key, Value: pointer}, nil
}

// EncodeInnerEntry encodes one key/child pair of an inner node.
func (c *tripleCodec[A, K]) EncodeInnerEntry(w Writer, key K, child int32, prevKey *K) error {
	return c.encodeEntry(w, key, child, prevKey)
}

// EncodeEndOfInner encodes the last child pointer of an inner node.
func (c *tripleCodec[A, K]) EncodeEndOfInner(w Writer, child int32) error {
	return c.encodeSentinel(w, child)
}

// DecodeInnerEntry decodes the next record of an inner node.
func (c *tripleCodec[A, K]) DecodeInnerEntry(r Reader, prevKey *K) (Inner[K], error) {
	key, pointer, entry, err := c.decodeEntry(r, prevKey)
	if err != nil {
		return Inner[K]{}, err
	}
	if !entry {
		return Inner[K]{Kind: KindEndOfNode, Child: pointer}, nil
	}
	return Inner[K]{Kind: KindEntry, Key: key, HasKey: true, Child: pointer}, nil
}

// sharedSlots counts the leading slots equal to the previous key.
func (c *tripleCodec[A, K]) sharedSlots(key K, prev *K) int {
	if prev == nil {
		return allDiffer
	}
	n := 0
	for n < 3 {
		attr := c.order.Slot(n)
		if !c.attr.Equal(key[attr], (*prev)[attr]) {
			break
		}
		n++
	}
	return n
}

func (c *tripleCodec[A, K]) secondaryOf(key K) (int32, bool, error) {
	for _, attr := range []int{collation.Subject, collation.Predicate} {
		if _, ok := c.attr.Secondary(key[attr]); ok {
			return 0, false, ErrOriginalOutsideObject
		}
	}
	v, ok := c.attr.Secondary(key[collation.Object])
	return v, ok, nil
}

func (c *tripleCodec[A, K]) encodeEntry(w Writer, key K, pointer int32, prev *K) error {
	secondary, hasSecondary, err := c.secondaryOf(key)
	if err != nil {
		return err
	}
	shared := c.sharedSlots(key, prev)
	allShared := prev != nil && shared == allDiffer

	fields := make([]intField, 0, 5)
	if !allShared {
		first := shared
		if prev == nil {
			first = 0
		}
		for slot := first; slot < 3; slot++ {
			attr := c.order.Slot(slot)
			if slot == first && prev != nil {
				fields = append(fields, newIntField(c.attr.Delta(key[attr], (*prev)[attr])))
			} else {
				fields = append(fields, newIntField(c.attr.Literal(key[attr])))
			}
		}
		if hasSecondary {
			fields = append(fields, newIntField(secondary))
		}
	}
	fields = append(fields, newIntField(pointer))

	bw := newBitWriter(w)
	if err := bw.Bit(true); err != nil {
		return err
	}
	if err := bw.Bit(hasSecondary); err != nil {
		return err
	}
	if err := bw.Pair(shared); err != nil {
		return err
	}
	for _, f := range fields {
		if err := bw.Pair(f.class); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return writeFields(w, fields)
}

func (c *tripleCodec[A, K]) encodeSentinel(w Writer, pointer int32) error {
	f := newIntField(pointer)
	bw := newBitWriter(w)
	if err := bw.Bit(false); err != nil {
		return err
	}
	if err := bw.Bit(false); err != nil {
		return err
	}
	if err := bw.Pair(f.class); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return WriteInt(w, f.v, f.class)
}

// decodeEntry returns the key and pointer of the next record; entry is false
// for an end-of-node sentinel.
func (c *tripleCodec[A, K]) decodeEntry(r Reader, prev *K) (key K, pointer int32, entry bool, err error) {
	br := newBitReader(r)
	full, err := br.Bit()
	if err == io.EOF {
		return key, 0, false, io.EOF
	}
	if err != nil {
		return key, 0, false, corrupt(err, "entry header")
	}
	hasSecondary, err := br.Bit()
	if err != nil {
		return key, 0, false, corrupt(err, "entry header")
	}
	shared, err := br.Pair()
	if err != nil {
		return key, 0, false, corrupt(err, "entry header")
	}

	if !full {
		// The sentinel reuses bits 2-3 for the pointer class.
		pointer, err = ReadInt(r, shared)
		if err != nil {
			return key, 0, false, corrupt(err, "continuation pointer")
		}
		return key, pointer, false, nil
	}

	if prev != nil && shared == allDiffer {
		class, err := br.Pair()
		if err != nil {
			return key, 0, false, corrupt(err, "entry header")
		}
		if pointer, err = ReadInt(r, class); err != nil {
			return key, 0, false, corrupt(err, "pointer")
		}
		return *prev, pointer, true, nil
	}
	if prev == nil && shared != allDiffer {
		return key, 0, false, corrupt(ErrCorrupt, "shared attributes without a previous key")
	}

	first := shared
	if prev == nil {
		first = 0
	}
	classes := make([]int, 0, 5)
	n := 3 - first + 1
	if hasSecondary {
		n++
	}
	for i := 0; i < n; i++ {
		class, err := br.Pair()
		if err != nil {
			return key, 0, false, corrupt(err, "entry header")
		}
		classes = append(classes, class)
	}

	if prev != nil {
		key = *prev
	}
	for slot := first; slot < 3; slot++ {
		v, err := ReadInt(r, classes[slot-first])
		if err != nil {
			return key, 0, false, corrupt(err, "attribute")
		}
		attr := c.order.Slot(slot)
		if slot == first && prev != nil {
			key[attr] = c.attr.ApplyDelta((*prev)[attr], v)
		} else {
			key[attr] = c.attr.FromLiteral(v)
		}
	}
	next := 3 - first
	if hasSecondary {
		v, err := ReadInt(r, classes[next])
		if err != nil {
			return key, 0, false, corrupt(err, "original content")
		}
		key[collation.Object] = c.attr.WithSecondary(key[collation.Object], v)
		next++
	}
	if pointer, err = ReadInt(r, classes[next]); err != nil {
		return key, 0, false, corrupt(err, "pointer")
	}
	return key, pointer, true, nil
}
