package storage

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/pkg/store"
)

// BadgerStorage implements Storage using BadgerDB
type BadgerStorage struct {
	db  *badger.DB
	log logr.Logger
}

// NewBadgerStorage creates a new BadgerDB-backed storage in path. Badger's
// own messages are routed to log at verbosity 2.
func NewBadgerStorage(path string, log logr.Logger) (*BadgerStorage, error) {
	return open(badger.DefaultOptions(path), log)
}

// NewInMemoryBadgerStorage creates a storage that lives only as long as the
// process.
func NewInMemoryBadgerStorage(log logr.Logger) (*BadgerStorage, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), log)
}

func open(opts badger.Options, log logr.Logger) (*BadgerStorage, error) {
	opts.Logger = badgerLogger{log.WithName("badger").V(2)}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger db")
	}
	log.V(1).Info("storage opened", "dir", opts.Dir, "inMemory", opts.InMemory)

	return &BadgerStorage{db: db, log: log}, nil
}

// Begin starts a new transaction
func (s *BadgerStorage) Begin(writable bool) (store.Transaction, error) {
	txn := s.db.NewTransaction(writable)
	return &BadgerTransaction{
		db:       s.db,
		txn:      txn,
		writable: writable,
		log:      s.log,
	}, nil
}

// Close closes the storage
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// Sync flushes writes to disk
func (s *BadgerStorage) Sync() error {
	return s.db.Sync()
}

// BadgerTransaction implements Transaction using BadgerDB.
//
// A write that would exceed badger's transaction size commits the writes so
// far and continues in a fresh transaction, unless an iterator is open. A
// later Rollback only discards the writes since the last such split.
type BadgerTransaction struct {
	db       *badger.DB
	txn      *badger.Txn
	writable bool
	log      logr.Logger
	open     int // iterators not yet closed
	splits   int
}

// Get retrieves a value by key
func (t *BadgerTransaction) Get(table store.Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(store.PrefixKey(table, key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set stores a key-value pair
func (t *BadgerTransaction) Set(table store.Table, key, value []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	k := store.PrefixKey(table, key)
	return t.update(func(txn *badger.Txn) error { return txn.Set(k, value) })
}

// Delete removes a key
func (t *BadgerTransaction) Delete(table store.Table, key []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	k := store.PrefixKey(table, key)
	return t.update(func(txn *badger.Txn) error { return txn.Delete(k) })
}

// update applies op, splitting the transaction once when it is full.
func (t *BadgerTransaction) update(op func(*badger.Txn) error) error {
	err := op(t.txn)
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}
	if t.open > 0 {
		return errors.Wrapf(err, "%d open iterators", t.open)
	}
	if err := t.txn.Commit(); err != nil {
		return errors.Wrap(err, "commit full transaction")
	}
	t.txn = t.db.NewTransaction(true)
	t.splits++
	t.log.V(1).Info("transaction split", "splits", t.splits)
	return op(t.txn)
}

// Splits returns how often the transaction was committed early.
func (t *BadgerTransaction) Splits() int {
	return t.splits
}

// Scan iterates over the keys of table starting with prefix
func (t *BadgerTransaction) Scan(table store.Table, prefix []byte) (store.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = store.PrefixKey(table, prefix)

	t.open++
	return &BadgerIterator{
		it:     t.txn.NewIterator(opts),
		txn:    t,
		prefix: store.TablePrefix(table),
		seek:   opts.Prefix,
	}, nil
}

// Commit commits the transaction
func (t *BadgerTransaction) Commit() error {
	return t.txn.Commit()
}

// Rollback rolls back the transaction
func (t *BadgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}

// BadgerIterator implements Iterator using BadgerDB
type BadgerIterator struct {
	it       *badger.Iterator
	txn      *BadgerTransaction
	prefix   []byte // table prefix stripped from keys
	seek     []byte
	started  bool
	hasValue bool
}

// Next advances to the next item
func (i *BadgerIterator) Next() bool {
	if !i.started {
		i.it.Seek(i.seek)
		i.started = true
	} else {
		i.it.Next()
	}
	i.hasValue = i.it.Valid()
	return i.hasValue
}

// Key returns the current key (without the table prefix)
func (i *BadgerIterator) Key() []byte {
	if !i.hasValue {
		return nil
	}
	return i.it.Item().KeyCopy(nil)[len(i.prefix):]
}

// Value returns the current value
func (i *BadgerIterator) Value() ([]byte, error) {
	if !i.hasValue {
		return nil, store.ErrNotFound
	}
	return i.it.Item().ValueCopy(nil)
}

// Close closes the iterator
func (i *BadgerIterator) Close() error {
	if i.it == nil {
		return nil
	}
	i.it.Close()
	i.it = nil
	i.txn.open--
	return nil
}

// badgerLogger adapts a logr.Logger to badger's printf-style logger.
type badgerLogger struct {
	log logr.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(errors.Errorf(format, args...), "badger")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...), "level", "warning")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.V(1).Info(fmt.Sprintf(format, args...))
}
