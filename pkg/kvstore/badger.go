package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v2"

	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var _ KVStore = (*BadgerKVStore)(nil)

var blog = logging.New("kv").With("driver", "badger")

type bLogger struct {
	*logging.ZapLogger
}

func (bl *bLogger) Warningf(format string, args ...interface{}) {
	bl.ZapLogger.Warnf(format, args...)
}

func OpenBadger(basePath string) *BadgerDB {
	return &BadgerDB{
		basePath: basePath,
		dbs:      make(map[string]*badger.DB),
	}
}

type BadgerKVStore struct {
	db *badger.DB
}

func (b *BadgerKVStore) Get(_ context.Context, key Key) (Val, error) {
	var val Val
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}

		if err != nil {
			return fmt.Errorf("get value from badger: %w", err)
		}

		val, err = item.ValueCopy(nil)
		return err
	})

	return val, err
}

func (b *BadgerKVStore) Put(_ context.Context, key Key, val Val) error {
	for {
		err := b.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, val)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (b *BadgerKVStore) Del(_ context.Context, key Key) error {
	for {
		err := b.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (b *BadgerKVStore) Scan(_ context.Context, prefix Prefix) (Iter, error) {
	txn := b.db.NewTransaction(false)
	return &BadgerIter{
		txn:    txn,
		iter:   txn.NewIterator(badger.DefaultIteratorOptions),
		prefix: prefix,
	}, nil
}

var _ Iter = (*BadgerIter)(nil)

type BadgerIter struct {
	txn  *badger.Txn
	iter *badger.Iterator
	item *badger.Item

	seeked bool
	valid  bool
	prefix []byte
}

func (bi *BadgerIter) Next() bool {
	if bi.seeked {
		bi.iter.Next()
	} else {
		if len(bi.prefix) == 0 {
			bi.iter.Rewind()
		} else {
			bi.iter.Seek(bi.prefix)
		}
		bi.seeked = true
	}

	if len(bi.prefix) == 0 {
		bi.valid = bi.iter.Valid()
	} else {
		bi.valid = bi.iter.ValidForPrefix(bi.prefix)
	}

	if bi.valid {
		bi.item = bi.iter.Item()
	}

	return bi.valid
}

func (bi *BadgerIter) Key() Key {
	if !bi.valid {
		return nil
	}

	return bi.item.KeyCopy(nil)
}

func (bi *BadgerIter) View(_ context.Context, f func(Val) error) error {
	if !bi.valid {
		return ErrIterItemNotValid
	}

	return bi.item.Value(f)
}

func (bi *BadgerIter) Close() {
	bi.iter.Close()
	bi.txn.Discard()
}

var _ DB = (*BadgerDB)(nil)

type BadgerDB struct {
	basePath string
	dbs      map[string]*badger.DB
	mu       sync.Mutex
}

func (db *BadgerDB) Run(context.Context) error {
	return nil
}

func (db *BadgerDB) Close(context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var lastError error
	for k, innerDB := range db.dbs {
		if err := innerDB.Close(); err != nil {
			lastError = err
		}
		delete(db.dbs, k)
	}
	return lastError
}

func (db *BadgerDB) OpenCollection(_ context.Context, name string) (KVStore, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if innerDB, ok := db.dbs[name]; ok {
		return &BadgerKVStore{db: innerDB}, nil
	}

	path := filepath.Join(db.basePath, name)
	opts := badger.DefaultOptions(path).WithLogger(&bLogger{blog.With("path", path)})
	innerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open sub badger %s, %w", name, err)
	}

	db.dbs[name] = innerDB
	return &BadgerKVStore{db: innerDB}, nil
}
