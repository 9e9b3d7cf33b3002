package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/internal/dictionary"
	"github.com/luposdate/luposdate-sub008/internal/index"
	"github.com/luposdate/luposdate-sub008/internal/storage"
	"github.com/luposdate/luposdate-sub008/pkg/nodecodec"
	"github.com/luposdate/luposdate-sub008/pkg/serial"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

// scanner reads the leaf chain of one index.
type scanner struct {
	txn     store.Transaction
	meta    index.Meta
	lenient bool
	log     logr.Logger
}

func scan[K, V any](s scanner, c nodecodec.Codec[K, V], visit func(K, V) error) error {
	if s.lenient {
		c = nodecodec.Lenient(c, s.log.WithValues("index", s.meta.Name))
	}
	ps := storage.NewPageFile(s.txn, s.meta.Name, s.log)
	return index.ScanLeaves(ps, c, s.meta.FirstPage, s.meta.Pages, s.log, visit)
}

// dumpIndex prints every entry of the named index, decoded with the codec it
// is bound to. Dictionary codes are resolved back to terms.
func dumpIndex(txn store.Transaction, dict *dictionary.Dictionary, name string, lenient bool, out io.Writer, log logr.Logger) error {
	meta, err := index.LoadMeta(txn, name)
	if err != nil {
		return err
	}
	order, err := meta.Collation()
	if err != nil {
		return err
	}
	s := scanner{txn: txn, meta: meta, lenient: lenient, log: log}

	switch meta.Codec {
	case index.CodecRaw:
		return scan[nodecodec.Triple, int32](s, nodecodec.NewRawCodec(order), func(k nodecodec.Triple, v int32) error {
			return printCodes(out, dict, k, v)
		})
	case index.CodecInterned:
		return scan[nodecodec.InternedTriple, int32](s, nodecodec.NewInternedCodec(order), func(k nodecodec.InternedTriple, v int32) error {
			t, err := dict.Triple(k)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s\t# %d %s\n", t, v, k)
			return err
		})
	case index.CodecString:
		return scan[nodecodec.StringTriple, int32](s, nodecodec.NewStringCodec(order), func(k nodecodec.StringTriple, v int32) error {
			_, err := fmt.Fprintf(out, "%s %s %s .\t# %d\n", k[0], k[1], k[2], v)
			return err
		})
	case index.CodecScalar:
		return scan[string, int32](s, nodecodec.NewScalarStringCodec(), func(k string, v int32) error {
			_, err := fmt.Fprintf(out, "%s\t%d\n", k, v)
			return err
		})
	case index.CodecBuckets:
		return scan[string, []nodecodec.VarBucket](s, nodecodec.NewReadOnlyBucketArrayCodec(), func(k string, v []nodecodec.VarBucket) error {
			_, err := fmt.Fprintf(out, "%s\t%s\n", k, formatHistograms(v))
			return err
		})
	case index.CodecGeneric:
		c, err := nodecodec.NewGenericCodec[[3]int32, int32](serial.Default())
		if err != nil {
			return err
		}
		return scan[[3]int32, int32](s, c, func(k [3]int32, v int32) error {
			return printCodes(out, dict, k, v)
		})
	}
	return errors.Errorf("index %q: unknown codec %q", meta.Name, meta.Codec)
}

func printCodes(out io.Writer, dict *dictionary.Dictionary, codes [3]int32, v int32) error {
	var terms [3]string
	for i, code := range codes {
		t, err := dict.TermOf(code)
		if err != nil {
			return err
		}
		terms[i] = t.String()
	}
	_, err := fmt.Fprintf(out, "%s %s %s .\t# %d %v\n", terms[0], terms[1], terms[2], v, codes)
	return err
}

func formatHistograms(hs []nodecodec.VarBucket) string {
	parts := make([]string, len(hs))
	for i, h := range hs {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d..%d]", h.Min, h.Max)
		for _, bk := range h.Buckets {
			fmt.Fprintf(&b, " <=%d:%g/%.2f", bk.Literal, bk.DistinctLiterals, bk.Selectivity)
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, " | ")
}

// listIndexes prints the binding record of every index.
func listIndexes(txn store.Transaction, out io.Writer) error {
	metas, err := index.List(txn)
	if err != nil {
		return err
	}
	for _, m := range metas {
		order := m.Order
		if order == "" {
			order = "-"
		}
		if _, err := fmt.Fprintf(out, "%-16s %-9s %-4s pages=%d entries=%d page_size=%d\n",
			m.Name, m.Codec, order, m.Pages, m.Entries, m.PageSize); err != nil {
			return err
		}
	}
	return nil
}
