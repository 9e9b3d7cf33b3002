package nodecodec

import (
	"fmt"

	"github.com/luposdate/luposdate-sub008/pkg/collation"
)

// LiteralCode is a dictionary code. When the interned form of a literal lost
// its exact surface text, Original holds the code of that text.
type LiteralCode struct {
	Code        int32
	Original    int32
	HasOriginal bool
}

// Code returns a LiteralCode without original content.
func Code(code int32) LiteralCode {
	return LiteralCode{Code: code}
}

// CodeWithOriginal returns a LiteralCode carrying original content.
func CodeWithOriginal(code, original int32) LiteralCode {
	return LiteralCode{Code: code, Original: original, HasOriginal: true}
}

func (l LiteralCode) String() string {
	if l.HasOriginal {
		return fmt.Sprintf("%d~%d", l.Code, l.Original)
	}
	return fmt.Sprintf("%d", l.Code)
}

// InternedTriple is a key of three dictionary codes in logical (S, P, O) order.
// Only the object may carry original content.
type InternedTriple [3]LiteralCode

func (t InternedTriple) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t[0], t[1], t[2])
}

// Codes strips the original content.
func (t InternedTriple) Codes() Triple {
	return Triple{t[0].Code, t[1].Code, t[2].Code}
}

type internedAttribute struct{}

func (internedAttribute) Equal(a, b LiteralCode) bool {
	if a.Code != b.Code || a.HasOriginal != b.HasOriginal {
		return false
	}
	return !a.HasOriginal || a.Original == b.Original
}

func (internedAttribute) Literal(a LiteralCode) int32 {
	return a.Code
}

func (internedAttribute) FromLiteral(v int32) LiteralCode {
	return LiteralCode{Code: v}
}

func (internedAttribute) Delta(cur, prev LiteralCode) int32 {
	return rawAttribute{}.Delta(cur.Code, prev.Code)
}

func (internedAttribute) ApplyDelta(prev LiteralCode, d int32) LiteralCode {
	return LiteralCode{Code: rawAttribute{}.ApplyDelta(prev.Code, d)}
}

func (internedAttribute) Secondary(a LiteralCode) (int32, bool) {
	return a.Original, a.HasOriginal
}

func (internedAttribute) WithSecondary(a LiteralCode, v int32) LiteralCode {
	a.Original, a.HasOriginal = v, true
	return a
}

// InternedCodec front-codes triples of dictionary codes. Header bit 1 flags an
// object with original content; its code follows the attribute fields.
type InternedCodec struct {
	tripleCodec[LiteralCode, InternedTriple]
}

var _ Codec[InternedTriple, int32] = (*InternedCodec)(nil)

// NewInternedCodec creates an interned literal codec bound to order.
func NewInternedCodec(order collation.Order) *InternedCodec {
	return &InternedCodec{tripleCodec[LiteralCode, InternedTriple]{order: order, attr: internedAttribute{}}}
}
