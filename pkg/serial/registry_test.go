package serial

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func roundTrip[T any](t *testing.T, reg *Registry, v T) T {
	t.Helper()
	s, err := Lookup[T](reg)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf, v))
	got, err := s.Read(&buf)
	require.NoError(t, err)
	assert.Zero(t, buf.Len(), "trailing bytes")
	return got
}

func TestDefault_Builtins(t *testing.T) {
	reg := Default()
	assert.Equal(t, int32(-12345), roundTrip[int32](t, reg, -12345))
	assert.Equal(t, int64(1<<40), roundTrip[int64](t, reg, 1<<40))
	assert.Equal(t, "héllo", roundTrip[string](t, reg, "héllo"))
	assert.Equal(t, []byte{0, 1, 2}, roundTrip[[]byte](t, reg, []byte{0, 1, 2}))
	assert.Equal(t, [3]int32{1, -2, 3}, roundTrip[[3]int32](t, reg, [3]int32{1, -2, 3}))
	assert.Equal(t, [3]string{"s", "", "o"}, roundTrip[[3]string](t, reg, [3]string{"s", "", "o"}))
	assert.Equal(t, []any{"x", 2.0, false}, roundTrip[any](t, reg, []any{"x", 2.0, false}))
}

func TestInt32_BigEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Int32{}.Write(&buf, 0x01020304))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
}

func TestLookup_ProtobufMessage(t *testing.T) {
	reg := NewRegistry()
	got := roundTrip[*wrapperspb.StringValue](t, reg, wrapperspb.String("spo"))
	assert.Equal(t, "spo", got.GetValue())

	st, err := structpb.NewStruct(map[string]any{"pages": 4.0})
	require.NoError(t, err)
	assert.True(t, proto.Equal(st, roundTrip[*structpb.Struct](t, reg, st)))
}

func TestLookup_Unregistered(t *testing.T) {
	_, err := Lookup[float64](NewRegistry())
	assert.ErrorIs(t, err, ErrNoSerializer)

	_, err = Lookup[structpb.Struct](NewRegistry())
	assert.ErrorIs(t, err, ErrNoSerializer)
}

func TestRegister_Replaces(t *testing.T) {
	reg := Default()
	Register[string](reg, upper{})
	assert.Equal(t, "ABC", roundTrip[string](t, reg, "abc"))
}

type upper struct{}

func (upper) Write(w io.Writer, v string) error {
	return String{}.Write(w, v)
}

func (upper) Read(r Reader) (string, error) {
	s, err := String{}.Read(r)
	return string(bytes.ToUpper([]byte(s))), err
}

func TestRead_EndOfStream(t *testing.T) {
	_, err := Int32{}.Read(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	_, err = String{}.Read(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	_, err = String{}.Read(bytes.NewReader([]byte{3, 'a'}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = Array3[int32]{Elem: Int32{}}.Read(bytes.NewReader([]byte{0, 0, 0, 1}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = Bytes{}.Read(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}))
	assert.Error(t, err)
}
