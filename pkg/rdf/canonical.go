package rdf

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Canonical returns the literal with its lexical form in XSD canonical
// representation. Literals of other datatypes, and lexical forms that do not
// parse, are returned unchanged.
func (l *Literal) Canonical() *Literal {
	if l.Datatype == nil {
		return l
	}
	var (
		canon string
		ok    bool
	)
	switch l.Datatype.IRI {
	case XSDInteger.IRI:
		canon, ok = canonicalInteger(l.Value)
	case XSDDecimal.IRI:
		canon, ok = canonicalDecimal(l.Value)
	case XSDDouble.IRI:
		canon, ok = canonicalDouble(l.Value)
	case XSDBoolean.IRI:
		canon, ok = canonicalBoolean(l.Value)
	}
	if !ok || canon == l.Value {
		return l
	}
	return NewLiteralWithDatatype(canon, l.Datatype)
}

// HasOriginalContent reports whether the lexical form differs from the
// canonical one, so that interning the literal loses its surface text.
func (l *Literal) HasOriginalContent() bool {
	return l.Canonical() != l
}

func canonicalInteger(s string) (string, bool) {
	var n big.Int
	if _, ok := n.SetString(strings.TrimSpace(s), 10); !ok {
		return "", false
	}
	return n.String(), true
}

func canonicalDecimal(s string) (string, bool) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" || !allDigits(intPart) || !allDigits(frac) {
		return "", false
	}
	intPart = strings.TrimLeft(intPart, "0")
	frac = strings.TrimRight(frac, "0")
	if intPart == "" {
		intPart = "0"
	}
	if frac == "" {
		frac = "0"
	}
	if intPart == "0" && frac == "0" {
		neg = false
	}
	if neg {
		return "-" + intPart + "." + frac, true
	}
	return intPart + "." + frac, true
}

func canonicalDouble(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "INF", "-INF", "NaN":
		return s, true
	case "+INF":
		return "INF", true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0E0", true
		}
		return "0.0E0", true
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'E', -1, 64), "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%sE%d", mantissa, e), true
}

func canonicalBoolean(s string) (string, bool) {
	switch strings.TrimSpace(s) {
	case "true", "1":
		return "true", true
	case "false", "0":
		return "false", true
	}
	return "", false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// escapeLiteral writes s with the N-Triples string escapes applied: named
// escapes where one exists, \uXXXX for other control characters.
func escapeLiteral(sb *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\f':
			sb.WriteString(`\f`)
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if r < 0x20 || r == 0x7F {
				fmt.Fprintf(sb, `\u%04X`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
}
