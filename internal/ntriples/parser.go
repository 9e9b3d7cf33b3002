// Package ntriples reads N-Triples documents and single N-Triples terms.
package ntriples

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/pkg/rdf"
)

// Parser reads one statement per line: <subject> <predicate> <object> .
type Parser struct {
	input  string
	pos    int
	length int
}

// NewParser creates a parser over one line or term.
func NewParser(input string) *Parser {
	return &Parser{
		input:  input,
		length: len(input),
	}
}

// ParseTerm parses a single term in N-Triples syntax, as produced by
// rdf.Term.String.
func ParseTerm(s string) (rdf.Term, error) {
	p := NewParser(s)
	term, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.pos != p.length {
		return nil, errors.Errorf("trailing input after term at position %d", p.pos)
	}
	return term, nil
}

// ReadAll parses every statement of r. Blank lines and comments are skipped.
func ReadAll(r io.Reader) ([]*rdf.Triple, error) {
	var triples []*rdf.Triple
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		p := NewParser(sc.Text())
		t, err := p.ParseStatement()
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if t != nil {
			triples = append(triples, t)
		}
	}
	return triples, errors.Wrap(sc.Err(), "read statements")
}

// ParseStatement parses one statement. It returns nil for an empty or
// comment-only line.
func (p *Parser) ParseStatement() (*rdf.Triple, error) {
	p.skipWhitespaceAndComments()
	if p.pos >= p.length {
		return nil, nil
	}

	subject, err := p.parseTerm()
	if err != nil {
		return nil, errors.Wrap(err, "subject")
	}
	if subject.Type() == rdf.TermTypeLiteral {
		return nil, errors.New("subject: literal not allowed")
	}
	p.skipWhitespaceAndComments()

	predicate, err := p.parseTerm()
	if err != nil {
		return nil, errors.Wrap(err, "predicate")
	}
	if predicate.Type() != rdf.TermTypeNamedNode {
		return nil, errors.New("predicate: IRI expected")
	}
	p.skipWhitespaceAndComments()

	object, err := p.parseTerm()
	if err != nil {
		return nil, errors.Wrap(err, "object")
	}
	p.skipWhitespaceAndComments()

	if p.pos >= p.length || p.input[p.pos] != '.' {
		return nil, errors.New("expected '.' at end of statement")
	}
	p.pos++
	p.skipWhitespaceAndComments()
	if p.pos < p.length {
		return nil, errors.Errorf("unexpected input after '.' at position %d", p.pos)
	}
	return rdf.NewTriple(subject, predicate, object), nil
}

func (p *Parser) skipWhitespaceAndComments() {
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			p.pos++
			continue
		}
		if ch == '#' {
			p.pos = p.length
		}
		break
	}
}

func (p *Parser) parseTerm() (rdf.Term, error) {
	if p.pos >= p.length {
		return nil, errors.New("unexpected end of input")
	}
	switch ch := p.input[p.pos]; ch {
	case '<':
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return rdf.NewNamedNode(iri), nil
	case '_':
		return p.parseBlankNode()
	case '"':
		return p.parseLiteral()
	default:
		return nil, errors.Errorf("unexpected character at position %d: %c", p.pos, ch)
	}
}

func (p *Parser) parseIRI() (string, error) {
	if p.pos >= p.length || p.input[p.pos] != '<' {
		return "", errors.New("expected '<' at start of IRI")
	}
	p.pos++

	start := p.pos
	for p.pos < p.length && p.input[p.pos] != '>' {
		p.pos++
	}
	if p.pos >= p.length {
		return "", errors.New("unclosed IRI")
	}
	iri := p.input[start:p.pos]
	p.pos++
	return iri, nil
}

func (p *Parser) parseBlankNode() (rdf.Term, error) {
	if p.pos+1 >= p.length || p.input[p.pos+1] != ':' {
		return nil, errors.New("expected ':' after '_' in blank node")
	}
	p.pos += 2

	start := p.pos
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '<' {
			break
		}
		p.pos++
	}
	label := strings.TrimSuffix(p.input[start:p.pos], ".")
	p.pos = start + len(label)
	if label == "" {
		return nil, errors.New("empty blank node label")
	}
	return rdf.NewBlankNode(label), nil
}

func (p *Parser) parseLiteral() (rdf.Term, error) {
	p.pos++

	var value strings.Builder
	for p.pos < p.length && p.input[p.pos] != '"' {
		ch := p.input[p.pos]
		if ch != '\\' {
			value.WriteByte(ch)
			p.pos++
			continue
		}
		p.pos++
		if p.pos >= p.length {
			return nil, errors.New("unexpected end of input in escape sequence")
		}
		switch esc := p.input[p.pos]; esc {
		case 'n':
			value.WriteByte('\n')
		case 't':
			value.WriteByte('\t')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case 'u', 'U':
			r, err := p.unicodeEscape(esc)
			if err != nil {
				return nil, err
			}
			value.WriteRune(r)
			continue
		default:
			value.WriteByte(esc)
		}
		p.pos++
	}
	if p.pos >= p.length {
		return nil, errors.New("unclosed string literal")
	}
	p.pos++

	if p.pos < p.length && p.input[p.pos] == '@' {
		p.pos++
		start := p.pos
		for p.pos < p.length {
			ch := p.input[p.pos]
			if !(ch == '-' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9') {
				break
			}
			p.pos++
		}
		if p.pos == start {
			return nil, errors.New("empty language tag")
		}
		return rdf.NewLiteralWithLanguage(value.String(), p.input[start:p.pos]), nil
	}
	if p.pos+1 < p.length && p.input[p.pos] == '^' && p.input[p.pos+1] == '^' {
		p.pos += 2
		datatype, err := p.parseIRI()
		if err != nil {
			return nil, errors.Wrap(err, "datatype")
		}
		return rdf.NewLiteralWithDatatype(value.String(), rdf.NewNamedNode(datatype)), nil
	}
	return rdf.NewLiteral(value.String()), nil
}

// unicodeEscape decodes \uXXXX or \UXXXXXXXX with the cursor on the u.
func (p *Parser) unicodeEscape(esc byte) (rune, error) {
	n := 4
	if esc == 'U' {
		n = 8
	}
	start := p.pos + 1
	if start+n > p.length {
		return 0, errors.New("truncated unicode escape")
	}
	v, err := strconv.ParseUint(p.input[start:start+n], 16, 32)
	if err != nil {
		return 0, errors.Wrap(err, "unicode escape")
	}
	p.pos = start + n
	return rune(v), nil
}
