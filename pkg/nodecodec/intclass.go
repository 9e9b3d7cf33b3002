package nodecodec

import (
	"io"
	"math"
)

// ClassOf returns the length class of v: the number of bytes beyond the first
// that its two's complement representation needs (0 to 3).
func ClassOf(v int32) int {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return 0
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 1
	case v >= -1<<23 && v <= 1<<23-1:
		return 2
	default:
		return 3
	}
}

// WriteInt writes the low class+1 bytes of v, least significant byte first.
func WriteInt(w io.ByteWriter, v int32, class int) error {
	u := uint32(v) // #nosec G115 - intentional bit-pattern conversion for binary encoding
	for i := 0; i <= class; i++ {
		if err := w.WriteByte(byte(u >> (8 * i))); err != nil {
			return err
		}
	}
	return nil
}

// ReadInt reads class+1 bytes written by WriteInt and sign-extends them.
func ReadInt(r io.ByteReader, class int) (int32, error) {
	var u uint32
	for i := 0; i <= class; i++ {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint32(c) << (8 * i)
	}
	shift := uint(32 - 8*(class+1))
	return int32(u<<shift) >> shift, nil // #nosec G115 - intentional bit-pattern conversion for sign extension
}

// intField is one length-classified integer of an entry payload.
type intField struct {
	v     int32
	class int
}

func newIntField(v int32) intField {
	return intField{v: v, class: ClassOf(v)}
}

func writeFields(w io.ByteWriter, fields []intField) error {
	for _, f := range fields {
		if err := WriteInt(w, f.v, f.class); err != nil {
			return err
		}
	}
	return nil
}
