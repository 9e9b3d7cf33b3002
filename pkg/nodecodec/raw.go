package nodecodec

import (
	"fmt"

	"github.com/luposdate/luposdate-sub008/pkg/collation"
)

// Triple is a key of three integer attribute codes in logical (S, P, O) order.
type Triple [3]int32

func (t Triple) String() string {
	return fmt.Sprintf("(%d, %d, %d)", t[0], t[1], t[2])
}

// rawAttribute codes attributes as plain integers. Deltas wrap around so that
// any pair of int32 values round-trips through four bytes.
type rawAttribute struct{}

func (rawAttribute) Equal(a, b int32) bool { return a == b }

func (rawAttribute) Literal(a int32) int32 { return a }

func (rawAttribute) FromLiteral(v int32) int32 { return v }

func (rawAttribute) Secondary(int32) (int32, bool) { return 0, false }

func (rawAttribute) WithSecondary(a, _ int32) int32 { return a }

func (rawAttribute) Delta(cur, prev int32) int32 {
	return int32(uint32(cur) - uint32(prev)) // #nosec G115 - wrapping difference
}

func (rawAttribute) ApplyDelta(prev, d int32) int32 {
	return int32(uint32(prev) + uint32(d)) // #nosec G115 - wrapping sum
}

// RawCodec front-codes integer triples with a page pointer as value.
type RawCodec struct {
	tripleCodec[int32, Triple]
}

var _ Codec[Triple, int32] = (*RawCodec)(nil)

// NewRawCodec creates a raw attribute codec bound to order.
func NewRawCodec(order collation.Order) *RawCodec {
	return &RawCodec{tripleCodec[int32, Triple]{order: order, attr: rawAttribute{}}}
}
