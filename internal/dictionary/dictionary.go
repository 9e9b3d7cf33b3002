// Package dictionary interns RDF terms to dense integer codes.
package dictionary

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/luposdate/luposdate-sub008/internal/ntriples"
	"github.com/luposdate/luposdate-sub008/pkg/nodecodec"
	"github.com/luposdate/luposdate-sub008/pkg/rdf"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

// ErrUnknownCode is returned for codes the dictionary never assigned.
var ErrUnknownCode = errors.New("unknown dictionary code")

// Dictionary assigns codes 0, 1, 2, ... to term strings in first-seen order.
// Lookups go through xxh3 hash buckets; colliding strings share a bucket and
// are told apart by comparison.
type Dictionary struct {
	mu      sync.RWMutex
	buckets map[uint64][]int32
	values  []string
	terms   []rdf.Term
	saved   int // codes below saved are already in the dictionary table
}

// New creates an empty dictionary.
func New() *Dictionary {
	return &Dictionary{buckets: make(map[uint64][]int32)}
}

// Len returns the number of interned strings.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}

// Intern returns the code of s, assigning the next free code on first use.
func (d *Dictionary) Intern(s string) (int32, error) {
	h := xxh3.HashString(s)

	d.mu.RLock()
	code, ok := d.find(h, s)
	d.mu.RUnlock()
	if ok {
		return code, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if code, ok := d.find(h, s); ok {
		return code, nil
	}
	return d.add(h, s, nil)
}

// Code returns the code of s without interning it.
func (d *Dictionary) Code(s string) (int32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.find(xxh3.HashString(s), s)
}

// Value returns the string interned under code.
func (d *Dictionary) Value(code int32) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if code < 0 || int(code) >= len(d.values) {
		return "", errors.Wrapf(ErrUnknownCode, "%d", code)
	}
	return d.values[code], nil
}

func (d *Dictionary) find(h uint64, s string) (int32, bool) {
	for _, code := range d.buckets[h] {
		if d.values[code] == s {
			return code, true
		}
	}
	return 0, false
}

func (d *Dictionary) add(h uint64, s string, term rdf.Term) (int32, error) {
	if len(d.values) == math.MaxInt32 {
		return 0, errors.New("dictionary full")
	}
	code := int32(len(d.values)) // #nosec G115 - bounded above
	d.values = append(d.values, s)
	d.terms = append(d.terms, term)
	d.buckets[h] = append(d.buckets[h], code)
	return code, nil
}

// InternTerm interns the canonical form of term. Literals whose lexical form
// is not canonical also have their original form interned, and the returned
// code carries it.
func (d *Dictionary) InternTerm(term rdf.Term) (nodecodec.LiteralCode, error) {
	lit, ok := term.(*rdf.Literal)
	if !ok || !lit.HasOriginalContent() {
		code, err := d.internTerm(term)
		return nodecodec.Code(code), err
	}
	code, err := d.internTerm(lit.Canonical())
	if err != nil {
		return nodecodec.LiteralCode{}, err
	}
	original, err := d.internTerm(lit)
	if err != nil {
		return nodecodec.LiteralCode{}, err
	}
	return nodecodec.CodeWithOriginal(code, original), nil
}

func (d *Dictionary) internTerm(term rdf.Term) (int32, error) {
	s := term.String()
	h := xxh3.HashString(s)
	d.mu.Lock()
	defer d.mu.Unlock()
	if code, ok := d.find(h, s); ok {
		if d.terms[code] == nil {
			d.terms[code] = term
		}
		return code, nil
	}
	return d.add(h, s, term)
}

// InternTriple interns the three terms of t.
func (d *Dictionary) InternTriple(t *rdf.Triple) (nodecodec.InternedTriple, error) {
	var key nodecodec.InternedTriple
	for i, term := range t.Terms() {
		c, err := d.InternTerm(term)
		if err != nil {
			return key, errors.Wrapf(err, "attribute %d", i)
		}
		key[i] = c
	}
	return key, nil
}

// Term returns the term behind c, preferring its original form.
func (d *Dictionary) Term(c nodecodec.LiteralCode) (rdf.Term, error) {
	if c.HasOriginal {
		return d.TermOf(c.Original)
	}
	return d.TermOf(c.Code)
}

// TermOf parses the term interned under code. Parsed terms are cached.
func (d *Dictionary) TermOf(code int32) (rdf.Term, error) {
	d.mu.RLock()
	if code < 0 || int(code) >= len(d.values) {
		d.mu.RUnlock()
		return nil, errors.Wrapf(ErrUnknownCode, "%d", code)
	}
	term, s := d.terms[code], d.values[code]
	d.mu.RUnlock()
	if term != nil {
		return term, nil
	}

	term, err := ntriples.ParseTerm(s)
	if err != nil {
		return nil, errors.Wrapf(err, "code %d", code)
	}
	d.mu.Lock()
	d.terms[code] = term
	d.mu.Unlock()
	return term, nil
}

// Triple resolves an interned key back to terms.
func (d *Dictionary) Triple(key nodecodec.InternedTriple) (*rdf.Triple, error) {
	var terms [3]rdf.Term
	for i, c := range key {
		t, err := d.Term(c)
		if err != nil {
			return nil, err
		}
		terms[i] = t
	}
	return rdf.NewTriple(terms[0], terms[1], terms[2]), nil
}

func codeKey(code int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(code)) // #nosec G115 - codes are non-negative
}

// Save writes the entries added since the last Load or Save to the
// dictionary table. Entries are immutable once assigned, so earlier codes
// are never rewritten.
func (d *Dictionary) Save(txn store.Transaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for code := d.saved; code < len(d.values); code++ {
		if err := txn.Set(store.TableDictionary, codeKey(int32(code)), []byte(d.values[code])); err != nil { // #nosec G115 - bounded by add
			return errors.Wrapf(err, "save code %d", code)
		}
		d.saved = code + 1
	}
	return nil
}

// Unsaved returns the number of entries Save has yet to write.
func (d *Dictionary) Unsaved() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values) - d.saved
}

// Load replaces the dictionary content with the dictionary table. Codes must
// be dense, as written by Save.
func (d *Dictionary) Load(txn store.Transaction) error {
	it, err := txn.Scan(store.TableDictionary, nil)
	if err != nil {
		return err
	}
	defer it.Close()

	fresh := New()
	for it.Next() {
		k := it.Key()
		if len(k) != 4 {
			return errors.Errorf("dictionary key of %d bytes", len(k))
		}
		code := int32(binary.BigEndian.Uint32(k)) // #nosec G115 - written by codeKey
		if int(code) != len(fresh.values) {
			return errors.Errorf("dictionary code %d missing", len(fresh.values))
		}
		v, err := it.Value()
		if err != nil {
			return err
		}
		s := string(v)
		if _, err := fresh.add(xxh3.HashString(s), s, nil); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.buckets, d.values, d.terms = fresh.buckets, fresh.values, fresh.terms
	d.saved = len(fresh.values)
	return nil
}
