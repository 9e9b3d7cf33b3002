package storage

import (
	"encoding/binary"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/luposdate/luposdate-sub008/pkg/store"
)

// PageFile stores the node pages of one index inside a transaction. Pages are
// keyed by index name and page id, so pages of one index sort together in
// page order.
type PageFile struct {
	txn  store.Transaction
	name string
	log  logr.Logger
}

// NewPageFile binds the pages of index name to txn.
func NewPageFile(txn store.Transaction, name string, log logr.Logger) *PageFile {
	return &PageFile{txn: txn, name: name, log: log}
}

func (f *PageFile) key(id int32) []byte {
	k := make([]byte, 0, len(f.name)+5)
	k = append(k, f.name...)
	k = append(k, 0)
	return binary.BigEndian.AppendUint32(k, uint32(id)) // #nosec G115 - page ids are positive
}

// ReadPage returns the bytes of page id.
func (f *PageFile) ReadPage(id int32) ([]byte, error) {
	data, err := f.txn.Get(store.TablePages, f.key(id))
	if err != nil {
		return nil, errors.Wrapf(err, "index %s: page %d", f.name, id)
	}
	f.log.V(1).Info("page read", "index", f.name, "page", id, "bytes", len(data))
	return data, nil
}

// WritePage stores data as page id, replacing any previous content.
func (f *PageFile) WritePage(id int32, data []byte) error {
	if err := f.txn.Set(store.TablePages, f.key(id), data); err != nil {
		return errors.Wrapf(err, "index %s: page %d", f.name, id)
	}
	f.log.V(1).Info("page written", "index", f.name, "page", id, "bytes", len(data))
	return nil
}

// Drop deletes every page of the index.
func (f *PageFile) Drop() error {
	prefix := append([]byte(f.name), 0)
	it, err := f.txn.Scan(store.TablePages, prefix)
	if err != nil {
		return err
	}
	var keys [][]byte
	for it.Next() {
		keys = append(keys, it.Key())
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := f.txn.Delete(store.TablePages, k); err != nil {
			return errors.Wrapf(err, "index %s: drop", f.name)
		}
	}
	return nil
}
