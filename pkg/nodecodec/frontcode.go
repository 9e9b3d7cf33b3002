package nodecodec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Discriminator bytes of the byte-framed formats.
const (
	markEntry     byte = 0
	markEndOfNode byte = 1
)

// maxFrontCodedLen bounds the lengths ReadFrontCoded accepts.
const maxFrontCodedLen = 1 << 24

// WriteFrontCoded writes s as the number of leading bytes it shares with prev,
// the number of remaining bytes, and the remaining bytes.
func WriteFrontCoded(w Writer, s, prev string) error {
	common := CommonPrefix(prev, s)
	var buf [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(common))
	n += binary.PutUvarint(buf[n:], uint64(len(s)-common))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s[common:])
	return err
}

// ReadFrontCoded reads a string written by WriteFrontCoded against the same
// prev.
func ReadFrontCoded(r Reader, prev string) (string, error) {
	common, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if common > uint64(len(prev)) || n > maxFrontCodedLen {
		return "", errors.Wrapf(ErrCorrupt, "front coding: prefix %d of %d, suffix %d", common, len(prev), n)
	}
	suffix := make([]byte, n)
	if _, err := io.ReadFull(r, suffix); err != nil {
		return "", err
	}
	return prev[:common] + string(suffix), nil
}

// WriteVarBytesInt writes v as a byte count followed by that many bytes, least
// significant first. Leading zero bytes are dropped, so 0 takes a single byte.
func WriteVarBytesInt(w io.ByteWriter, v int32) error {
	u := uint32(v) // #nosec G115 - intentional bit-pattern conversion for binary encoding
	n := 0
	for x := u; x != 0; x >>= 8 {
		n++
	}
	if err := w.WriteByte(byte(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.WriteByte(byte(u >> (8 * i))); err != nil {
			return err
		}
	}
	return nil
}

// ReadVarBytesInt reads an integer written by WriteVarBytesInt.
func ReadVarBytesInt(r io.ByteReader) (int32, error) {
	n, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if n > 4 {
		return 0, errors.Wrapf(ErrCorrupt, "integer of %d bytes", n)
	}
	var u uint32
	for i := 0; i < int(n); i++ {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint32(c) << (8 * i)
	}
	return int32(u), nil // #nosec G115 - intentional bit-pattern conversion for binary decoding
}

// readMark reads the discriminator of the next record, passing a clean end of
// stream through as io.EOF.
func readMark(r io.ByteReader) (byte, error) {
	m, err := r.ReadByte()
	if err == io.EOF {
		return 0, io.EOF
	}
	if err != nil {
		return 0, corrupt(err, "record mark")
	}
	if m != markEntry && m != markEndOfNode {
		return 0, errors.Wrapf(ErrCorrupt, "record mark %d", m)
	}
	return m, nil
}

// stringKeys holds the key and inner-node coding shared by the codecs with a
// single string key.
type stringKeys struct{}

func prevString(prev *string) string {
	if prev == nil {
		return ""
	}
	return *prev
}

func (stringKeys) encodeEndOfNode(w Writer, pointer int32) error {
	if err := w.WriteByte(markEndOfNode); err != nil {
		return err
	}
	return WriteVarBytesInt(w, pointer)
}

func (stringKeys) readPointer(r Reader) (int32, error) {
	p, err := ReadVarBytesInt(r)
	if err != nil {
		return 0, corrupt(err, "pointer")
	}
	return p, nil
}

// EncodeInnerEntry encodes one key/child pair of an inner node.
func (k stringKeys) EncodeInnerEntry(w Writer, key string, child int32, prevKey *string) error {
	if err := w.WriteByte(markEntry); err != nil {
		return err
	}
	if err := WriteFrontCoded(w, key, prevString(prevKey)); err != nil {
		return err
	}
	return WriteVarBytesInt(w, child)
}

// EncodeEndOfInner encodes the last child pointer of an inner node.
func (k stringKeys) EncodeEndOfInner(w Writer, child int32) error {
	return k.encodeEndOfNode(w, child)
}

// DecodeInnerEntry decodes the next record of an inner node.
func (k stringKeys) DecodeInnerEntry(r Reader, prevKey *string) (Inner[string], error) {
	m, err := readMark(r)
	if err != nil {
		return Inner[string]{}, err
	}
	if m == markEndOfNode {
		child, err := k.readPointer(r)
		if err != nil {
			return Inner[string]{}, err
		}
		return Inner[string]{Kind: KindEndOfNode, Child: child}, nil
	}
	key, err := ReadFrontCoded(r, prevString(prevKey))
	if err != nil {
		return Inner[string]{}, corrupt(err, "key")
	}
	child, err := k.readPointer(r)
	if err != nil {
		return Inner[string]{}, err
	}
	return Inner[string]{Kind: KindEntry, Key: key, HasKey: true, Child: child}, nil
}
