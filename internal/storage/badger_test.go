package storage

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	"github.com/luposdate/luposdate-sub008/pkg/store"
)

func TestTransactionSetGetDelete(t *testing.T) {
	s, err := NewInMemoryBadgerStorage(logr.Discard())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer s.Close()

	txn, err := s.Begin(true)
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := txn.Set(store.TableDictionary, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	// same key in another table is independent
	if _, err := txn.Get(store.TableIndexMeta, []byte("k")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound from other table, got %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ro, _ := s.Begin(false)
	got, err := ro.Get(store.TableDictionary, []byte("k"))
	if err != nil || string(got) != "v" {
		t.Errorf("get = %q, %v", got, err)
	}
	if err := ro.Set(store.TableDictionary, []byte("k"), nil); !errors.Is(err, store.ErrTransactionRO) {
		t.Errorf("expected ErrTransactionRO, got %v", err)
	}
	if err := ro.Delete(store.TableDictionary, []byte("k")); !errors.Is(err, store.ErrTransactionRO) {
		t.Errorf("expected ErrTransactionRO, got %v", err)
	}
	_ = ro.Rollback()

	txn, _ = s.Begin(true)
	if err := txn.Delete(store.TableDictionary, []byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := txn.Get(store.TableDictionary, []byte("k")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	_ = txn.Rollback()
}

func TestScanPrefix(t *testing.T) {
	s, err := NewInMemoryBadgerStorage(logr.Discard())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer s.Close()

	txn, _ := s.Begin(true)
	defer txn.Rollback()
	for _, k := range []string{"a/2", "a/1", "b/1", "a/3"} {
		if err := txn.Set(store.TablePages, []byte(k), []byte("x"+k)); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := txn.Set(store.TableIndexMeta, []byte("a/0"), nil); err != nil {
		t.Fatalf("set: %v", err)
	}

	it, err := txn.Scan(store.TablePages, []byte("a/"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		v, err := it.Value()
		if err != nil || !bytes.Equal(v, []byte("x"+string(it.Key()))) {
			t.Errorf("value of %s = %q, %v", it.Key(), v, err)
		}
	}
	_ = it.Close()

	want := []string{"a/1", "a/2", "a/3"}
	if len(keys) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}

	it, _ = txn.Scan(store.TablePages, nil)
	n := 0
	for it.Next() {
		n++
	}
	_ = it.Close()
	if n != 4 {
		t.Errorf("expected 4 keys in full table scan, got %d", n)
	}
}

func TestPageFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBadgerStorage(dir, logr.Discard())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	txn, _ := s.Begin(true)
	spo := NewPageFile(txn, "spo", logr.Discard())
	sp := NewPageFile(txn, "sp", logr.Discard())
	for id := int32(1); id <= 3; id++ {
		if err := spo.WritePage(id, []byte{byte(id)}); err != nil {
			t.Fatalf("write page %d: %v", id, err)
		}
	}
	if err := sp.WritePage(1, []byte("other index")); err != nil {
		t.Fatalf("write page: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// reopen from disk
	s, err = NewBadgerStorage(dir, logr.Discard())
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer s.Close()

	txn, _ = s.Begin(true)
	defer txn.Rollback()
	spo = NewPageFile(txn, "spo", logr.Discard())
	page, err := spo.ReadPage(2)
	if err != nil || !bytes.Equal(page, []byte{2}) {
		t.Errorf("page 2 = %v, %v", page, err)
	}
	if _, err := spo.ReadPage(9); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing page, got %v", err)
	}

	if err := spo.Drop(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := spo.ReadPage(1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after drop, got %v", err)
	}
	page, err = NewPageFile(txn, "sp", logr.Discard()).ReadPage(1)
	if err != nil || string(page) != "other index" {
		t.Errorf("drop removed pages of another index: %q, %v", page, err)
	}
}

// newSmallStorage opens an in-memory store whose transactions fill up after
// roughly a thousand writes.
func newSmallStorage(t *testing.T) *BadgerStorage {
	t.Helper()
	s, err := open(badger.DefaultOptions("").WithInMemory(true).WithMemTableSize(1<<20).WithValueThreshold(1<<10), logr.Discard())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTransactionSplitsWhenFull(t *testing.T) {
	s := newSmallStorage(t)
	const n = 10000

	txn, _ := s.Begin(true)
	for i := range n {
		if err := txn.Set(store.TableDictionary, []byte(fmt.Sprintf("k%05d", i)), bytes.Repeat([]byte{'v'}, 64)); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	if err := txn.Delete(store.TableDictionary, []byte("k00000")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if txn.(*BadgerTransaction).Splits() == 0 {
		t.Errorf("expected the transaction to split")
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ro, _ := s.Begin(false)
	defer ro.Rollback()
	it, _ := ro.Scan(store.TableDictionary, nil)
	count := 0
	for it.Next() {
		count++
	}
	_ = it.Close()
	if count != n-1 {
		t.Errorf("expected %d keys after commit, got %d", n-1, count)
	}
	if _, err := ro.Get(store.TableDictionary, []byte("k00000")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected deleted key to stay deleted, got %v", err)
	}
}

func TestTransactionFullWithOpenIterator(t *testing.T) {
	s := newSmallStorage(t)

	txn, _ := s.Begin(true)
	defer txn.Rollback()
	it, _ := txn.Scan(store.TablePages, nil)
	var err error
	for i := 0; err == nil && i < 10000; i++ {
		err = txn.Set(store.TablePages, []byte(fmt.Sprintf("p%05d", i)), bytes.Repeat([]byte{'p'}, 64))
	}
	if !errors.Is(err, badger.ErrTxnTooBig) {
		t.Errorf("expected ErrTxnTooBig while an iterator is open, got %v", err)
	}
	_ = it.Close()
	_ = it.Close()

	if err := txn.Set(store.TablePages, []byte("after"), nil); err != nil {
		t.Errorf("set after closing the iterator: %v", err)
	}
	if txn.(*BadgerTransaction).Splits() != 1 {
		t.Errorf("expected one split, got %d", txn.(*BadgerTransaction).Splits())
	}
}
