package nodecodec

import (
	"io"

	"github.com/pkg/errors"
)

// windowBits is the number of flag positions a header window holds before it
// is flushed to (or refilled from) the stream as one byte.
const windowBits = 8

// bitWriter packs header flags and 2-bit length classes into byte windows.
//
// Bit i of a window is stored under mask 1<<i. A 2-bit class c is stored as
// the flag c>=2 followed by the flag c&1.
type bitWriter struct {
	w   io.ByteWriter
	buf byte
	pos uint
}

func newBitWriter(w io.ByteWriter) *bitWriter {
	return &bitWriter{w: w}
}

// Bit writes one flag, flushing a full window first.
func (b *bitWriter) Bit(v bool) error {
	if b.pos == windowBits {
		if err := b.flushWindow(); err != nil {
			return err
		}
	}
	if v {
		b.buf |= 1 << b.pos
	}
	b.pos++
	return nil
}

// Pair writes a 2-bit class with a single full-window check.
// The cursor must be pair-aligned.
func (b *bitWriter) Pair(class int) error {
	if b.pos%2 != 0 {
		return errors.Errorf("bit window: pair written at odd position %d", b.pos)
	}
	if b.pos == windowBits {
		if err := b.flushWindow(); err != nil {
			return err
		}
	}
	if class >= 2 {
		b.buf |= 1 << b.pos
	}
	if class&1 == 1 {
		b.buf |= 1 << (b.pos + 1)
	}
	b.pos += 2
	return nil
}

// PairPerBit writes a 2-bit class as two independent flags, so the two halves
// may land in different windows.
func (b *bitWriter) PairPerBit(class int) error {
	if err := b.Bit(class >= 2); err != nil {
		return err
	}
	return b.Bit(class&1 == 1)
}

// Flush writes the window if it holds any flag.
func (b *bitWriter) Flush() error {
	if b.pos == 0 {
		return nil
	}
	return b.flushWindow()
}

func (b *bitWriter) flushWindow() error {
	if err := b.w.WriteByte(b.buf); err != nil {
		return errors.Wrap(err, "bit window: flush")
	}
	b.buf, b.pos = 0, 0
	return nil
}

// bitReader is the decoding side of bitWriter.
type bitReader struct {
	r      io.ByteReader
	buf    byte
	pos    uint
	filled bool
}

func newBitReader(r io.ByteReader) *bitReader {
	return &bitReader{r: r, pos: windowBits}
}

// Bit reads one flag, filling a new window when the current one is used up.
// Running out of bytes on the first window is reported as io.EOF, on any later
// window as io.ErrUnexpectedEOF.
func (b *bitReader) Bit() (bool, error) {
	if b.pos == windowBits {
		if err := b.fill(); err != nil {
			return false, err
		}
	}
	v := b.buf&(1<<b.pos) != 0
	b.pos++
	return v, nil
}

// Pair reads a 2-bit class written by bitWriter.Pair.
func (b *bitReader) Pair() (int, error) {
	if b.pos%2 != 0 {
		return 0, errors.Errorf("bit window: pair read at odd position %d", b.pos)
	}
	if b.pos == windowBits {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	class := 0
	if b.buf&(1<<b.pos) != 0 {
		class = 2
	}
	if b.buf&(1<<(b.pos+1)) != 0 {
		class |= 1
	}
	b.pos += 2
	return class, nil
}

// PairPerBit reads a 2-bit class written by bitWriter.PairPerBit.
func (b *bitReader) PairPerBit() (int, error) {
	hi, err := b.Bit()
	if err != nil {
		return 0, err
	}
	lo, err := b.Bit()
	if err != nil {
		return 0, err
	}
	class := 0
	if hi {
		class = 2
	}
	if lo {
		class |= 1
	}
	return class, nil
}

func (b *bitReader) fill() error {
	c, err := b.r.ReadByte()
	if err != nil {
		if err == io.EOF && b.filled {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	b.buf, b.pos, b.filled = c, 0, true
	return nil
}
