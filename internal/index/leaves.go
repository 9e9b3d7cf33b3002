package index

import (
	"bytes"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/pkg/nodecodec"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

var (
	// ErrChainCycle is returned when continuation pointers revisit a page.
	ErrChainCycle = errors.New("leaf chain revisits a page")
	// ErrEntryTooLarge is returned when a single entry does not fit a page.
	ErrEntryTooLarge = errors.New("entry does not fit in a page")
)

// PageStore holds the pages of one index.
type PageStore interface {
	ReadPage(id int32) ([]byte, error)
	WritePage(id int32, data []byte) error
}

// Entry is one key/value pair of a leaf.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Stats describes a written chain.
type Stats struct {
	FirstPage int32
	LastPage  int32
	Pages     int
	Entries   int
}

// WriteLeaves packs entries into consecutive pages starting at first. Every
// page is a complete leaf stream of at most pageSize bytes: its first entry is
// coded without a previous key and it ends with a sentinel naming the next
// page, or nodecodec.NoPage on the last one. An empty entry list still writes
// one page holding only the sentinel.
func WriteLeaves[K, V any](ps PageStore, c nodecodec.Codec[K, V], pageSize int, first int32, entries []Entry[K, V]) (Stats, error) {
	if !c.CanWrite() {
		return Stats{}, errors.Wrap(nodecodec.ErrNotSupported, "write leaves")
	}
	if first <= nodecodec.NoPage {
		return Stats{}, errors.Errorf("first page %d must be positive", first)
	}

	st := Stats{FirstPage: first, LastPage: first}
	var page, scratch bytes.Buffer
	var prevKey *K
	var prevValue *V

	// sentinelLen is the size of the sentinel pointing past page id.
	sentinelLen := func(id int32) (int, error) {
		scratch.Reset()
		if err := c.EncodeEndOfLeaf(&scratch, id+1); err != nil {
			return 0, err
		}
		return scratch.Len(), nil
	}
	flush := func(next int32) error {
		if err := c.EncodeEndOfLeaf(&page, next); err != nil {
			return err
		}
		if err := ps.WritePage(st.LastPage, bytes.Clone(page.Bytes())); err != nil {
			return err
		}
		st.Pages++
		page.Reset()
		prevKey, prevValue = nil, nil
		return nil
	}

	for i := range entries {
		e := &entries[i]
		reserve, err := sentinelLen(st.LastPage)
		if err != nil {
			return st, err
		}
		scratch.Reset()
		if err := c.EncodeLeafEntry(&scratch, e.Key, e.Value, prevKey, prevValue); err != nil {
			return st, errors.Wrapf(err, "entry %d", i)
		}
		if page.Len()+scratch.Len()+reserve > pageSize && prevKey != nil {
			if err := flush(st.LastPage + 1); err != nil {
				return st, err
			}
			st.LastPage++
			if reserve, err = sentinelLen(st.LastPage); err != nil {
				return st, err
			}
			scratch.Reset()
			if err := c.EncodeLeafEntry(&scratch, e.Key, e.Value, nil, nil); err != nil {
				return st, errors.Wrapf(err, "entry %d", i)
			}
		}
		if scratch.Len()+reserve > pageSize {
			return st, errors.Wrapf(ErrEntryTooLarge, "entry %d: %d bytes, page size %d", i, scratch.Len(), pageSize)
		}
		if _, err := page.Write(scratch.Bytes()); err != nil {
			return st, err
		}
		prevKey, prevValue = &e.Key, &e.Value
		st.Entries++
	}
	return st, flush(nodecodec.NoPage)
}

// ScanLeaves decodes the leaf chain of the given number of pages starting at
// first and calls visit for every entry in order. A page that ends without a sentinel ends the
// chain. Continuation pointers outside the written pages are corrupt.
func ScanLeaves[K, V any](ps PageStore, c nodecodec.Codec[K, V], first int32, pages int, log logr.Logger, visit func(key K, value V) error) error {
	if first <= nodecodec.NoPage || pages <= 0 {
		return errors.Errorf("chain of %d pages at %d", pages, first)
	}
	last := int64(first) + int64(pages) - 1
	visited := bitset.New(uint(pages))
	for id := first; id != nodecodec.NoPage; {
		if int64(id) < int64(first) || int64(id) > last {
			return errors.Wrapf(nodecodec.ErrCorrupt, "page id %d outside %d..%d", id, first, last)
		}
		slot := uint(id - first)
		if visited.Test(slot) {
			return errors.Wrapf(ErrChainCycle, "page %d", id)
		}
		visited.Set(slot)

		data, err := ps.ReadPage(id)
		if err != nil {
			return err
		}
		next, err := scanPage(bytes.NewReader(data), c, visit)
		if err != nil {
			return errors.Wrapf(err, "page %d", id)
		}
		log.V(1).Info("leaf scanned", "page", id, "next", next)
		id = next
	}
	return nil
}

func scanPage[K, V any](r *bytes.Reader, c nodecodec.Codec[K, V], visit func(K, V) error) (int32, error) {
	var prevKey *K
	var prevValue *V
	for {
		e, err := c.DecodeLeafEntry(r, prevKey, prevValue)
		if err == io.EOF {
			return nodecodec.NoPage, nil
		}
		if err != nil {
			return 0, err
		}
		if e.Kind == nodecodec.KindEndOfNode {
			return e.Next, nil
		}
		if err := visit(e.Key, e.Value); err != nil {
			return 0, err
		}
		prevKey, prevValue = &e.Key, &e.Value
	}
}

// DefaultPageSize is used when a binding record leaves the page size unset.
const DefaultPageSize = 8192

// Rebuild writes entries as the leaf chain of the index bound by meta,
// starting at page 1, and saves the updated binding record.
func Rebuild[K, V any](txn store.Transaction, meta Meta, ps PageStore, c nodecodec.Codec[K, V], entries []Entry[K, V]) (Meta, error) {
	if meta.PageSize <= 0 {
		meta.PageSize = DefaultPageSize
	}
	st, err := WriteLeaves(ps, c, meta.PageSize, 1, entries)
	if err != nil {
		return meta, errors.Wrapf(err, "index %q", meta.Name)
	}
	meta.FirstPage, meta.Pages, meta.Entries = st.FirstPage, st.Pages, st.Entries
	return meta, SaveMeta(txn, meta)
}
