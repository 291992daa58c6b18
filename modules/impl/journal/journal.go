package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/pkg/homedir"
	"github.com/padme-experiment/padme-cdr/pkg/kvstore"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
	"github.com/padme-experiment/padme-cdr/pkg/retry"
)

var log = logging.New("journal")

const (
	Collection = "journal"
	keyPrefix  = "batch/"
)

// Opener hands out the journal collection for a single operation. The release func gives
// the store back once the operation is done.
type Opener func(ctx context.Context) (kv kvstore.KVStore, release func() error, err error)

// Badger opens the badger store under base for each operation. A badger directory admits
// one process at a time, so the lock is only held while a record is read or written.
func Badger(base string) Opener {
	return func(ctx context.Context) (kvstore.KVStore, func() error, error) {
		db := kvstore.OpenBadger(base)
		kv, err := db.OpenCollection(ctx, Collection)
		if err != nil {
			return nil, nil, err
		}

		return kv, func() error { return db.Close(ctx) }, nil
	}
}

// Shared serves every operation from a db that stays open, such as a mongo connection.
func Shared(db kvstore.DB) Opener {
	return func(ctx context.Context) (kvstore.KVStore, func() error, error) {
		kv, err := db.OpenCollection(ctx, Collection)
		if err != nil {
			return nil, nil, err
		}

		return kv, func() error { return nil }, nil
	}
}

// Open picks the store backing the journal. Badger data lives under home unless a base
// dir is configured. The returned close func releases a shared connection, if any.
func Open(ctx context.Context, cfg modules.JournalConfig, home string) (Opener, func(context.Context) error, error) {
	switch cfg.Driver {
	case "", "badger":
		base := filepath.Join(home, "journal")
		if cfg.Badger != nil && cfg.Badger.BaseDir != "" {
			base = homedir.Expand(cfg.Badger.BaseDir)
		}

		log.Debugw("journal store", "driver", "badger", "dir", base)
		return Badger(base), func(context.Context) error { return nil }, nil

	case "mongo":
		if cfg.Mongo == nil || cfg.Mongo.DSN == "" {
			return nil, nil, fmt.Errorf("mongo journal requires a dsn")
		}

		db, err := kvstore.OpenMongo(ctx, cfg.Mongo.DSN, cfg.Mongo.DatabaseName)
		if err != nil {
			return nil, nil, err
		}

		log.Debugw("journal store", "driver", "mongo", "db", cfg.Mongo.DatabaseName)
		return Shared(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

var _ core.Journal = (*Journal)(nil)

type Journal struct {
	open  Opener
	retry retry.Options
}

func New(open Opener) *Journal {
	return &Journal{
		open: open,
		retry: retry.Options{
			MaxRounds: 20,
			Backoff:   250 * time.Millisecond,
		},
	}
}

// WithRetry overrides how long an operation waits for a store held by another process.
func (j *Journal) WithRetry(rounds int, backoff time.Duration) *Journal {
	cp := *j
	cp.retry = retry.Options{MaxRounds: rounds, Backoff: backoff}
	return &cp
}

func (j *Journal) with(ctx context.Context, f func(kv kvstore.KVStore) error) error {
	var (
		kv      kvstore.KVStore
		release func() error
	)

	opts := j.retry
	opts.OnFailure = func(round int, err error) {
		log.Debugw("journal store busy", "round", round, "err", err)
	}

	_, err := retry.Bounded(ctx, opts, func(ctx context.Context, _ int) (bool, error) {
		var err error
		kv, release, err = j.open(ctx)
		return err == nil, err
	})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	defer func() {
		if err := release(); err != nil {
			log.Warnw("failed to release journal store", "err", err)
		}
	}()

	return f(kv)
}

func key(id string) kvstore.Key {
	return kvstore.Key(keyPrefix + id)
}

func (j *Journal) Record(ctx context.Context, rec core.BatchRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("batch record without id")
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal batch record: %w", err)
	}

	err = j.with(ctx, func(kv kvstore.KVStore) error {
		return kv.Put(ctx, key(rec.ID), b)
	})
	if err != nil {
		return fmt.Errorf("save batch record %s: %w", rec.ID, err)
	}

	log.Debugw("batch recorded", "id", rec.ID, "batch", rec.BatchID, "files", len(rec.Results))
	return nil
}

func (j *Journal) Get(ctx context.Context, id string) (core.BatchRecord, error) {
	var (
		rec core.BatchRecord
		b   kvstore.Val
	)

	err := j.with(ctx, func(kv kvstore.KVStore) error {
		var err error
		b, err = kv.Get(ctx, key(id))
		return err
	})
	if err != nil {
		return rec, fmt.Errorf("load batch record %s: %w", id, err)
	}

	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal batch record %s: %w", id, err)
	}

	return rec, nil
}

// List returns every recorded batch, oldest first.
func (j *Journal) List(ctx context.Context) ([]core.BatchRecord, error) {
	recs := make([]core.BatchRecord, 0, 32)
	err := j.with(ctx, func(kv kvstore.KVStore) error {
		iter, err := kv.Scan(ctx, kvstore.Prefix(keyPrefix))
		if err != nil {
			return fmt.Errorf("scan journal: %w", err)
		}

		defer iter.Close()

		for iter.Next() {
			var rec core.BatchRecord
			if err := iter.View(ctx, func(data []byte) error {
				return json.Unmarshal(data, &rec)
			}); err != nil {
				return fmt.Errorf("scan batch record of key %s: %w", string(iter.Key()), err)
			}

			recs = append(recs, rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, k int) bool {
		return recs[i].Started.Before(recs[k].Started)
	})

	return recs, nil
}

var _ core.Journal = Discard{}

// Discard is used when the journal is disabled.
type Discard struct{}

func (Discard) Record(context.Context, core.BatchRecord) error {
	return nil
}

func (Discard) List(context.Context) ([]core.BatchRecord, error) {
	return nil, nil
}

func (Discard) Get(_ context.Context, id string) (core.BatchRecord, error) {
	return core.BatchRecord{}, fmt.Errorf("batch record %s: journal disabled: %w", id, kvstore.ErrKeyNotFound)
}
