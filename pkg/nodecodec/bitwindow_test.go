package nodecodec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitWriter_MaskPerPosition(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	for i := 0; i < 8; i++ {
		require.NoError(t, bw.Bit(i%3 == 0))
	}
	require.NoError(t, bw.Flush())
	// positions 0, 3, 6
	assert.Equal(t, []byte{0b01001001}, buf.Bytes())
}

func TestBitWriter_PairLayout(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	for _, c := range []int{0, 1, 2, 3} {
		require.NoError(t, bw.Pair(c))
	}
	require.NoError(t, bw.Flush())
	// class c -> (c>=2, c&1) at (2k, 2k+1)
	assert.Equal(t, []byte{0b11_01_10_00}, buf.Bytes())
}

func TestBitWriter_FlushOnlyWhenNonEmpty(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	require.NoError(t, bw.Flush())
	assert.Zero(t, buf.Len())

	for i := 0; i < 8; i++ {
		require.NoError(t, bw.Bit(true))
	}
	// a full window is written lazily, by the next flag or the flush
	assert.Zero(t, buf.Len())
	require.NoError(t, bw.Bit(true))
	assert.Equal(t, 1, buf.Len())
	require.NoError(t, bw.Flush())
	assert.Equal(t, []byte{0xFF, 0x01}, buf.Bytes())
}

func TestBitWriter_PairAtOddPosition(t *testing.T) {
	bw := newBitWriter(&bytes.Buffer{})
	require.NoError(t, bw.Bit(true))
	assert.Error(t, bw.Pair(1))
}

func TestBitWindow_PerBitPairsStraddleWindows(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	require.NoError(t, bw.Bit(true))
	classes := []int{3, 0, 2, 1, 3, 2}
	for _, c := range classes {
		require.NoError(t, bw.PairPerBit(c))
	}
	require.NoError(t, bw.Flush())
	// 13 flags
	require.Equal(t, 2, buf.Len())

	br := newBitReader(bytes.NewReader(buf.Bytes()))
	first, err := br.Bit()
	require.NoError(t, err)
	assert.True(t, first)
	for _, want := range classes {
		got, err := br.PairPerBit()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBitReader_EndOfStream(t *testing.T) {
	br := newBitReader(bytes.NewReader(nil))
	_, err := br.Bit()
	assert.Equal(t, io.EOF, err)

	br = newBitReader(bytes.NewReader([]byte{0xFF}))
	for i := 0; i < 4; i++ {
		_, err := br.Pair()
		require.NoError(t, err)
	}
	_, err = br.Pair()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}
