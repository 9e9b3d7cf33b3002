package main

import (
	"cmp"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/internal/dictionary"
	"github.com/luposdate/luposdate-sub008/internal/index"
	"github.com/luposdate/luposdate-sub008/internal/storage"
	"github.com/luposdate/luposdate-sub008/pkg/collation"
	"github.com/luposdate/luposdate-sub008/pkg/nodecodec"
	"github.com/luposdate/luposdate-sub008/pkg/rdf"
	"github.com/luposdate/luposdate-sub008/pkg/serial"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

// histogramBuckets is the number of intervals per histogram of a buckets index.
const histogramBuckets = 4

// buildIndex replaces the content of the index described by want with
// triples. The triple values are their positions in the input.
func buildIndex(txn store.Transaction, dict *dictionary.Dictionary, triples []*rdf.Triple, want index.Meta, log logr.Logger) (index.Meta, error) {
	meta, err := index.Open(txn, want, log)
	if err != nil {
		return meta, err
	}
	order, err := meta.Collation()
	if err != nil {
		return meta, err
	}
	ps := storage.NewPageFile(txn, meta.Name, log)
	if err := ps.Drop(); err != nil {
		return meta, err
	}

	switch meta.Codec {
	case index.CodecRaw:
		entries, err := rawEntries(dict, triples, order)
		if err != nil {
			return meta, err
		}
		return index.Rebuild[nodecodec.Triple, int32](txn, meta, ps, nodecodec.NewRawCodec(order), entries)
	case index.CodecInterned:
		entries, err := internedEntries(dict, triples, order)
		if err != nil {
			return meta, err
		}
		return index.Rebuild[nodecodec.InternedTriple, int32](txn, meta, ps, nodecodec.NewInternedCodec(order), entries)
	case index.CodecString:
		return index.Rebuild[nodecodec.StringTriple, int32](txn, meta, ps, nodecodec.NewStringCodec(order), stringEntries(triples, order))
	case index.CodecScalar:
		if _, err := internAll(dict, triples); err != nil {
			return meta, err
		}
		entries, err := scalarEntries(dict)
		if err != nil {
			return meta, err
		}
		return index.Rebuild[string, int32](txn, meta, ps, nodecodec.NewScalarStringCodec(), entries)
	case index.CodecBuckets:
		entries, err := bucketEntries(dict, triples)
		if err != nil {
			return meta, err
		}
		return index.Rebuild[string, []nodecodec.VarBucket](txn, meta, ps, nodecodec.NewBucketArrayCodec(), entries)
	case index.CodecGeneric:
		c, err := nodecodec.NewGenericCodec[[3]int32, int32](serial.Default())
		if err != nil {
			return meta, err
		}
		raw, err := rawEntries(dict, triples, collation.SPO)
		if err != nil {
			return meta, err
		}
		entries := make([]index.Entry[[3]int32, int32], len(raw))
		for i, e := range raw {
			entries[i] = index.Entry[[3]int32, int32]{Key: e.Key, Value: e.Value}
		}
		return index.Rebuild[[3]int32, int32](txn, meta, ps, c, entries)
	}
	return meta, errors.Errorf("index %q: unknown codec %q", meta.Name, meta.Codec)
}

func internAll(dict *dictionary.Dictionary, triples []*rdf.Triple) ([]nodecodec.InternedTriple, error) {
	keys := make([]nodecodec.InternedTriple, len(triples))
	for i, t := range triples {
		key, err := dict.InternTriple(t)
		if err != nil {
			return nil, errors.Wrapf(err, "triple %d", i)
		}
		keys[i] = key
	}
	return keys, nil
}

func internedEntries(dict *dictionary.Dictionary, triples []*rdf.Triple, order collation.Order) ([]index.Entry[nodecodec.InternedTriple, int32], error) {
	keys, err := internAll(dict, triples)
	if err != nil {
		return nil, err
	}
	entries := make([]index.Entry[nodecodec.InternedTriple, int32], len(keys))
	for i, k := range keys {
		entries[i] = index.Entry[nodecodec.InternedTriple, int32]{Key: k, Value: int32(i)} // #nosec G115 - bounded by the dictionary
	}
	slices.SortStableFunc(entries, func(a, b index.Entry[nodecodec.InternedTriple, int32]) int {
		if c := collation.Compare[int32](order, a.Key.Codes(), b.Key.Codes()); c != 0 {
			return c
		}
		return cmp.Compare(a.Key[2].Original, b.Key[2].Original)
	})
	return slices.CompactFunc(entries, func(a, b index.Entry[nodecodec.InternedTriple, int32]) bool {
		return a.Key == b.Key
	}), nil
}

func rawEntries(dict *dictionary.Dictionary, triples []*rdf.Triple, order collation.Order) ([]index.Entry[nodecodec.Triple, int32], error) {
	keys, err := internAll(dict, triples)
	if err != nil {
		return nil, err
	}
	entries := make([]index.Entry[nodecodec.Triple, int32], len(keys))
	for i, k := range keys {
		entries[i] = index.Entry[nodecodec.Triple, int32]{Key: k.Codes(), Value: int32(i)} // #nosec G115 - bounded by the dictionary
	}
	slices.SortStableFunc(entries, func(a, b index.Entry[nodecodec.Triple, int32]) int {
		return collation.Compare[int32](order, a.Key, b.Key)
	})
	return slices.CompactFunc(entries, func(a, b index.Entry[nodecodec.Triple, int32]) bool {
		return a.Key == b.Key
	}), nil
}

func stringEntries(triples []*rdf.Triple, order collation.Order) []index.Entry[nodecodec.StringTriple, int32] {
	entries := make([]index.Entry[nodecodec.StringTriple, int32], len(triples))
	for i, t := range triples {
		entries[i] = index.Entry[nodecodec.StringTriple, int32]{
			Key:   nodecodec.StringTriple{t.Subject.String(), t.Predicate.String(), t.Object.String()},
			Value: int32(i), // #nosec G115 - bounded by the input size
		}
	}
	slices.SortStableFunc(entries, func(a, b index.Entry[nodecodec.StringTriple, int32]) int {
		return collation.Compare[string](order, a.Key, b.Key)
	})
	return slices.CompactFunc(entries, func(a, b index.Entry[nodecodec.StringTriple, int32]) bool {
		return a.Key == b.Key
	})
}

// scalarEntries maps every dictionary string to its code.
func scalarEntries(dict *dictionary.Dictionary) ([]index.Entry[string, int32], error) {
	entries := make([]index.Entry[string, int32], dict.Len())
	for i := range entries {
		code := int32(i) // #nosec G115 - bounded by the dictionary
		s, err := dict.Value(code)
		if err != nil {
			return nil, err
		}
		entries[i] = index.Entry[string, int32]{Key: s, Value: code}
	}
	slices.SortFunc(entries, func(a, b index.Entry[string, int32]) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

// bucketEntries builds, per predicate, a histogram of the subject codes and
// one of the object codes.
func bucketEntries(dict *dictionary.Dictionary, triples []*rdf.Triple) ([]index.Entry[string, []nodecodec.VarBucket], error) {
	keys, err := internAll(dict, triples)
	if err != nil {
		return nil, err
	}
	type columns struct{ subjects, objects []int32 }
	byPredicate := make(map[string]*columns)
	for i, k := range keys {
		p := triples[i].Predicate.String()
		c := byPredicate[p]
		if c == nil {
			c = &columns{}
			byPredicate[p] = c
		}
		c.subjects = append(c.subjects, k[0].Code)
		c.objects = append(c.objects, k[2].Code)
	}

	entries := make([]index.Entry[string, []nodecodec.VarBucket], 0, len(byPredicate))
	for p, c := range byPredicate {
		entries = append(entries, index.Entry[string, []nodecodec.VarBucket]{
			Key:   p,
			Value: []nodecodec.VarBucket{histogram(c.subjects, histogramBuckets), histogram(c.objects, histogramBuckets)},
		})
	}
	slices.SortFunc(entries, func(a, b index.Entry[string, []nodecodec.VarBucket]) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

// histogram splits the sorted codes into at most n equal-count intervals.
// Each bucket records its upper bound, its number of distinct codes and the
// share of all codes it holds.
func histogram(codes []int32, n int) nodecodec.VarBucket {
	if len(codes) == 0 {
		return nodecodec.VarBucket{}
	}
	sorted := slices.Clone(codes)
	slices.Sort(sorted)
	vb := nodecodec.VarBucket{Min: sorted[0], Max: sorted[len(sorted)-1]}

	size := (len(sorted) + n - 1) / n
	for start := 0; start < len(sorted); {
		end := min(start+size, len(sorted))
		// equal codes stay in one bucket
		for end < len(sorted) && sorted[end] == sorted[end-1] {
			end++
		}
		part := sorted[start:end]
		vb.Buckets = append(vb.Buckets, nodecodec.Bucket{
			Literal:          part[len(part)-1],
			DistinctLiterals: float64(len(slices.Compact(slices.Clone(part)))),
			Selectivity:      float64(len(part)) / float64(len(sorted)),
		})
		start = end
	}
	return vb
}
