// Package index lays sorted entries out as chains of leaf pages and reads them
// back, keeping a binding record per index so a stream is never decoded with a
// codec other than the one that wrote it.
package index

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/luposdate/luposdate-sub008/pkg/collation"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

var (
	// ErrBindingMismatch is returned when an index is opened with a codec or
	// collation order other than the one it was created with.
	ErrBindingMismatch = errors.New("index binding mismatch")
	// ErrNoIndex is returned by LoadMeta for unknown index names.
	ErrNoIndex = errors.New("no such index")
)

// CodecKind names the entry layout of an index.
type CodecKind string

const (
	CodecRaw      CodecKind = "raw"
	CodecInterned CodecKind = "interned"
	CodecString   CodecKind = "string"
	CodecScalar   CodecKind = "scalar"
	CodecBuckets  CodecKind = "buckets"
	CodecGeneric  CodecKind = "generic"
)

// Ordered reports whether the layout is bound to a collation order.
func (k CodecKind) Ordered() bool {
	switch k {
	case CodecRaw, CodecInterned, CodecString:
		return true
	}
	return false
}

// ParseCodecKind validates a codec name.
func ParseCodecKind(s string) (CodecKind, error) {
	switch k := CodecKind(s); k {
	case CodecRaw, CodecInterned, CodecString, CodecScalar, CodecBuckets, CodecGeneric:
		return k, nil
	}
	return "", errors.Errorf("unknown codec %q", s)
}

// Meta is the binding record of one index.
type Meta struct {
	Name      string    `yaml:"name"`
	Codec     CodecKind `yaml:"codec"`
	Order     string    `yaml:"order,omitempty"`
	PageSize  int       `yaml:"page_size"`
	FirstPage int32     `yaml:"first_page"`
	Pages     int       `yaml:"pages"`
	Entries   int       `yaml:"entries"`
}

// Collation returns the bound collation order. Unordered layouts report SPO.
func (m Meta) Collation() (collation.Order, error) {
	if m.Order == "" {
		return collation.SPO, nil
	}
	return collation.Parse(m.Order)
}

// LoadMeta reads the binding record of name.
func LoadMeta(txn store.Transaction, name string) (Meta, error) {
	data, err := txn.Get(store.TableIndexMeta, []byte(name))
	if errors.Is(err, store.ErrNotFound) {
		return Meta{}, errors.Wrapf(ErrNoIndex, "%q", name)
	}
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Meta{}, errors.Wrapf(err, "index %q: metadata", name)
	}
	return m, nil
}

// SaveMeta writes the binding record of m.Name.
func SaveMeta(txn store.Transaction, m Meta) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrapf(err, "index %q: metadata", m.Name)
	}
	return txn.Set(store.TableIndexMeta, []byte(m.Name), data)
}

// Open returns the stored binding of want.Name. An index that does not exist
// yet is created from want. An existing index must match want's codec and
// order.
func Open(txn store.Transaction, want Meta, log logr.Logger) (Meta, error) {
	if want.Codec.Ordered() {
		o, err := want.Collation()
		if err != nil {
			return Meta{}, err
		}
		want.Order = o.String()
	} else {
		want.Order = ""
	}

	have, err := LoadMeta(txn, want.Name)
	if errors.Is(err, ErrNoIndex) {
		if err := SaveMeta(txn, want); err != nil {
			return Meta{}, err
		}
		log.Info("index created", "name", want.Name, "codec", want.Codec, "order", want.Order)
		return want, nil
	}
	if err != nil {
		return Meta{}, err
	}
	if have.Codec != want.Codec || have.Order != want.Order {
		return Meta{}, errors.Wrapf(ErrBindingMismatch, "index %q is %s/%s, opened as %s/%s",
			want.Name, have.Codec, have.Order, want.Codec, want.Order)
	}
	log.Info("index opened", "name", have.Name, "codec", have.Codec, "order", have.Order, "entries", have.Entries)
	return have, nil
}

// List returns the binding records of every index.
func List(txn store.Transaction) ([]Meta, error) {
	it, err := txn.Scan(store.TableIndexMeta, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var metas []Meta
	for it.Next() {
		data, err := it.Value()
		if err != nil {
			return nil, err
		}
		var m Meta
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrapf(err, "index %q: metadata", it.Key())
		}
		metas = append(metas, m)
	}
	return metas, nil
}
