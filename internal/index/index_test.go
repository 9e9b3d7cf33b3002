package index

import (
	"bytes"
	"math"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/luposdate/luposdate-sub008/internal/storage"
	"github.com/luposdate/luposdate-sub008/pkg/collation"
	"github.com/luposdate/luposdate-sub008/pkg/nodecodec"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

func newTxn(t *testing.T) store.Transaction {
	t.Helper()
	s, err := storage.NewInMemoryBadgerStorage(logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	txn, err := s.Begin(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = txn.Rollback() })
	return txn
}

func sortedTriples(order collation.Order, n int) []Entry[nodecodec.Triple, int32] {
	entries := make([]Entry[nodecodec.Triple, int32], n)
	for i := range entries {
		entries[i] = Entry[nodecodec.Triple, int32]{
			Key: nodecodec.Triple{
				int32(frand.Intn(50)),
				int32(frand.Intn(5)),
				int32(frand.Intn(1 << 20)),
			},
			Value: int32(i),
		}
	}
	slices.SortFunc(entries, func(a, b Entry[nodecodec.Triple, int32]) int {
		return collation.Compare[int32](order, a.Key, b.Key)
	})
	return entries
}

func collect[K, V any](t *testing.T, ps PageStore, c nodecodec.Codec[K, V], first int32, pages int) []Entry[K, V] {
	t.Helper()
	var got []Entry[K, V]
	require.NoError(t, ScanLeaves(ps, c, first, pages, logr.Discard(), func(k K, v V) error {
		got = append(got, Entry[K, V]{Key: k, Value: v})
		return nil
	}))
	return got
}

func TestWriteScan_CrossPage(t *testing.T) {
	txn := newTxn(t)
	for _, order := range collation.All() {
		t.Run(order.String(), func(t *testing.T) {
			ps := storage.NewPageFile(txn, "raw-"+order.String(), logr.Discard())
			c := nodecodec.NewRawCodec(order)
			entries := sortedTriples(order, 500)

			st, err := WriteLeaves(ps, c, 128, 1, entries)
			require.NoError(t, err)
			assert.Equal(t, 500, st.Entries)
			assert.Greater(t, st.Pages, 1)
			assert.Equal(t, int32(st.Pages), st.LastPage)

			assert.Equal(t, entries, collect[nodecodec.Triple, int32](t, ps, c, st.FirstPage, st.Pages))

			// every page fits and decodes on its own
			for id := st.FirstPage; id <= st.LastPage; id++ {
				page, err := ps.ReadPage(id)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(page), 128)
				next, err := scanPage(bytes.NewReader(page), nodecodec.Codec[nodecodec.Triple, int32](c), func(nodecodec.Triple, int32) error { return nil })
				require.NoError(t, err)
				if id == st.LastPage {
					assert.Equal(t, nodecodec.NoPage, next)
				} else {
					assert.Equal(t, id+1, next)
				}
			}
		})
	}
}

func TestWriteScan_Strings(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "words", logr.Discard())
	c := nodecodec.NewScalarStringCodec()

	words := []string{"alpha", "alphabet", "alphanumeric", "beta", "betamax", "gamma"}
	var entries []Entry[string, int32]
	for i := 0; i < 40; i++ {
		for j, w := range words {
			entries = append(entries, Entry[string, int32]{Key: w + strings.Repeat("z", i), Value: int32(i*10 + j)}) // #nosec G115 - bounded
		}
	}
	slices.SortFunc(entries, func(a, b Entry[string, int32]) int { return strings.Compare(a.Key, b.Key) })

	st, err := WriteLeaves(ps, c, 256, 3, entries)
	require.NoError(t, err)
	assert.Equal(t, int32(3), st.FirstPage)
	assert.Equal(t, entries, collect[string, int32](t, ps, c, 3, st.Pages))
}

func TestWriteLeaves_Empty(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "empty", logr.Discard())
	c := nodecodec.NewRawCodec(collation.SPO)

	st, err := WriteLeaves[nodecodec.Triple, int32](ps, c, 64, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pages)
	assert.Empty(t, collect[nodecodec.Triple, int32](t, ps, c, 1, st.Pages))
}

func TestWriteLeaves_EntryTooLarge(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "big", logr.Discard())
	c := nodecodec.NewStringCodec(collation.SPO)
	entries := []Entry[nodecodec.StringTriple, int32]{
		{Key: nodecodec.StringTriple{strings.Repeat("s", 100), "p", "o"}},
	}
	_, err := WriteLeaves(ps, c, 32, 1, entries)
	assert.ErrorIs(t, err, ErrEntryTooLarge)
}

func TestWriteLeaves_ReadOnlyCodec(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "ro", logr.Discard())
	_, err := WriteLeaves[string, []nodecodec.VarBucket](ps, nodecodec.NewReadOnlyBucketArrayCodec(), 64, 1, nil)
	assert.ErrorIs(t, err, nodecodec.ErrNotSupported)
}

func TestScanLeaves_Cycle(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "cycle", logr.Discard())
	c := nodecodec.NewRawCodec(collation.SPO)

	for id, next := range map[int32]int32{1: 2, 2: 1} {
		var buf bytes.Buffer
		require.NoError(t, c.EncodeLeafEntry(&buf, nodecodec.Triple{id, id, id}, 0, nil, nil))
		require.NoError(t, c.EncodeEndOfLeaf(&buf, next))
		require.NoError(t, ps.WritePage(id, buf.Bytes()))
	}
	err := ScanLeaves(ps, nodecodec.Codec[nodecodec.Triple, int32](c), 1, 2, logr.Discard(), func(nodecodec.Triple, int32) error { return nil })
	assert.ErrorIs(t, err, ErrChainCycle)
}

func TestScanLeaves_Corrupt(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "corrupt", logr.Discard())
	c := nodecodec.NewRawCodec(collation.SPO)
	entries := sortedTriples(collation.SPO, 3)
	st, err := WriteLeaves(ps, c, 4096, 1, entries)
	require.NoError(t, err)
	require.Equal(t, 1, st.Pages)

	page, err := ps.ReadPage(1)
	require.NoError(t, err)
	require.NoError(t, ps.WritePage(1, page[:len(page)-3]))

	err = ScanLeaves(ps, nodecodec.Codec[nodecodec.Triple, int32](c), 1, 1, logr.Discard(), func(nodecodec.Triple, int32) error { return nil })
	assert.ErrorIs(t, err, nodecodec.ErrCorrupt)

	lenient := nodecodec.Lenient[nodecodec.Triple, int32](c, logr.Discard())
	got := collect(t, ps, lenient, 1, 1)
	assert.LessOrEqual(t, len(got), 3)
}

func TestScanLeaves_PointerOutsideChain(t *testing.T) {
	txn := newTxn(t)
	ps := storage.NewPageFile(txn, "far", logr.Discard())
	c := nodecodec.NewRawCodec(collation.SPO)

	var buf bytes.Buffer
	require.NoError(t, c.EncodeLeafEntry(&buf, nodecodec.Triple{1, 2, 3}, 0, nil, nil))
	require.NoError(t, c.EncodeEndOfLeaf(&buf, math.MaxInt32))
	require.NoError(t, ps.WritePage(1, buf.Bytes()))

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	err := ScanLeaves(ps, nodecodec.Codec[nodecodec.Triple, int32](c), 1, 1, logr.Discard(), func(nodecodec.Triple, int32) error { return nil })
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, nodecodec.ErrCorrupt)
	assert.ErrorContains(t, err, "outside 1..1")
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))

	err = ScanLeaves(ps, nodecodec.Codec[nodecodec.Triple, int32](c), 0, 1, logr.Discard(), func(nodecodec.Triple, int32) error { return nil })
	assert.Error(t, err)
}

func TestOpen_Binding(t *testing.T) {
	txn := newTxn(t)

	m, err := Open(txn, Meta{Name: "spo", Codec: CodecInterned, Order: "spo", PageSize: 512}, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, "SPO", m.Order)

	again, err := Open(txn, Meta{Name: "spo", Codec: CodecInterned, Order: "SPO"}, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, 512, again.PageSize)

	_, err = Open(txn, Meta{Name: "spo", Codec: CodecRaw, Order: "SPO"}, logr.Discard())
	assert.ErrorIs(t, err, ErrBindingMismatch)
	_, err = Open(txn, Meta{Name: "spo", Codec: CodecInterned, Order: "OPS"}, logr.Discard())
	assert.ErrorIs(t, err, ErrBindingMismatch)

	_, err = Open(txn, Meta{Name: "bad", Codec: CodecRaw, Order: "XYZ"}, logr.Discard())
	assert.ErrorIs(t, err, collation.ErrUnknownOrder)

	stats, err := Open(txn, Meta{Name: "stats", Codec: CodecBuckets, Order: "POS"}, logr.Discard())
	require.NoError(t, err)
	assert.Empty(t, stats.Order)
}

func TestRebuildAndList(t *testing.T) {
	txn := newTxn(t)
	meta, err := Open(txn, Meta{Name: "pos", Codec: CodecRaw, Order: "POS", PageSize: 100}, logr.Discard())
	require.NoError(t, err)

	ps := storage.NewPageFile(txn, meta.Name, logr.Discard())
	entries := sortedTriples(collation.POS, 64)
	meta, err = Rebuild(txn, meta, ps, nodecodec.Codec[nodecodec.Triple, int32](nodecodec.NewRawCodec(collation.POS)), entries)
	require.NoError(t, err)
	assert.Equal(t, 64, meta.Entries)
	assert.Equal(t, int32(1), meta.FirstPage)

	loaded, err := LoadMeta(txn, "pos")
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)

	_, err = LoadMeta(txn, "missing")
	assert.ErrorIs(t, err, ErrNoIndex)

	metas, err := List(txn)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "pos", metas[0].Name)
}

func TestParseCodecKind(t *testing.T) {
	for _, k := range []CodecKind{CodecRaw, CodecInterned, CodecString, CodecScalar, CodecBuckets, CodecGeneric} {
		got, err := ParseCodecKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseCodecKind("zip")
	assert.Error(t, err)
	assert.True(t, CodecString.Ordered())
	assert.False(t, CodecScalar.Ordered())
}
