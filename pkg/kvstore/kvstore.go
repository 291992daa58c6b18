package kvstore

import (
	"context"
	"fmt"

	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var Log = logging.New("kv")

var (
	ErrKeyNotFound      = fmt.Errorf("key not found")
	ErrIterItemNotValid = fmt.Errorf("iter item not valid")
)

type (
	Key    = []byte
	Val    = []byte
	Prefix = []byte
)

type KVStore interface {
	Get(ctx context.Context, key Key) (Val, error)
	Put(ctx context.Context, key Key, val Val) error
	Del(ctx context.Context, key Key) error
	// Scan iterates the keys starting with prefix in ascending order; an empty prefix scans everything.
	Scan(ctx context.Context, prefix Prefix) (Iter, error)
}

type Iter interface {
	Next() bool
	Key() Key
	View(ctx context.Context, f func(Val) error) error
	Close()
}

// DB hands out named collections sharing one backend.
type DB interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	OpenCollection(ctx context.Context, name string) (KVStore, error)
}
