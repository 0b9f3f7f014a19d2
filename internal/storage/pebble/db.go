package pebblestore

import (
	"bytes"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("pebblestore: not found")

// SyncMode selects WAL durability for writes.
type SyncMode int

const (
	// SyncModeGroup lets Pebble coalesce WAL syncs within a short interval.
	SyncModeGroup SyncMode = iota
	// SyncModeAlways syncs the WAL on every commit.
	SyncModeAlways
	// SyncModeNever never forces a WAL sync from the application.
	SyncModeNever
)

// Options configures the store.
type Options struct {
	// DataDir is the Pebble database directory. Required.
	DataDir string
	Sync    SyncMode
	// GroupInterval is the coalescing window for SyncModeGroup. Defaults to 5ms.
	GroupInterval time.Duration
	// Metrics observes read and commit sizes. Optional.
	Metrics MetricsHook
}

// MetricsHook is the observation surface for storage operations.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveCommit(elapsed time.Duration, ops int, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRead(time.Duration, int)        {}
func (noopMetrics) ObserveCommit(time.Duration, int, int) {}

// DB is a small key/value facade over Pebble used for configuration snapshots.
type DB struct {
	inner   *pebble.DB
	sync    bool
	metrics MetricsHook
}

// Open creates or opens the database at opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}
	po := &pebble.Options{}
	if opts.Sync == SyncModeGroup {
		interval := opts.GroupInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}
	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	m := opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &DB{inner: inner, sync: opts.Sync == SyncModeAlways, metrics: m}, nil
}

// Close closes the database. Safe on a nil receiver.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

func (db *DB) writeOpts() *pebble.WriteOptions {
	if db.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (db *DB) commit(b *pebble.Batch, ops int) error {
	start := time.Now()
	size := b.Len()
	err := b.Commit(db.writeOpts())
	db.metrics.ObserveCommit(time.Since(start), ops, size)
	return err
}

// Set stores value under key.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.commit(b, 1)
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.commit(b, 1)
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// Scan calls fn for every key with the given prefix in key order. Key and
// value slices are only valid during the call. Returning false stops the scan.
func (db *DB) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	it, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer it.Close()
	for ok := it.First(); ok; ok = it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// ReplacePrefix atomically removes every key under prefix and writes entries
// in its place. Keys in entries must carry the prefix.
func (db *DB) ReplacePrefix(prefix []byte, entries map[string][]byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
		return err
	}
	for k, v := range entries {
		if !bytes.HasPrefix([]byte(k), prefix) {
			return errors.New("pebblestore: key " + k + " outside prefix")
		}
		if err := b.Set([]byte(k), v, nil); err != nil {
			return err
		}
	}
	return db.commit(b, len(entries)+1)
}

// prefixEnd returns the smallest key greater than every key with prefix.
// A nil result means no upper bound.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
