// Package pebble exposes a Pebble LSM store through the engine boundary.
package pebble

import (
	"bytes"
	"errors"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

// Driver opens Pebble stores. Options: path (required unless in_memory),
// force_create, size (required with force_create), in_memory, cache_size.
var Driver = db.DriverFunc(Open)

// Store implements db.Engine on top of a Pebble database.
type Store struct {
	db.OrderedScans
	db     *pebble.DB
	cache  *pebble.Cache
	closed atomic.Bool
}

func Open(cfg *db.Config) (db.Engine, error) {
	if err := cfg.Consume(); err != nil {
		return nil, err
	}
	inMemory, _, err := cfg.Bool(KeyInMemory)
	if err != nil {
		return nil, err
	}
	create, err := cfg.CreateOptions(!inMemory)
	if err != nil {
		return nil, err
	}
	cacheSize, ok, err := cfg.Int64(KeyCacheSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		cacheSize = 64 * 1024 * 1024 // 64MB
	}

	cache := pebble.NewCache(cacheSize)
	opts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                32 * 1024 * 1024, // 32MB
		MemTableStopWritesThreshold: 4,                // 128MB of queued memtables
		ErrorIfExists:               create.ForceCreate,
		ErrorIfNotExists:            !create.ForceCreate && !inMemory,
	}
	if inMemory {
		opts.FS = vfs.NewMem()
		if create.Path == "" {
			create.Path = "mem"
		}
	}

	pdb, err := pebble.Open(create.Path, opts)
	if err != nil {
		cache.Unref()
		return nil, db.Wrap(db.StatusInvalidArgument, err)
	}
	log.Engine.Debug().Str("engine", "pebble").Str("path", create.Path).Bool("inMemory", inMemory).Msg("store opened")

	s := &Store{db: pdb, cache: cache}
	s.OrderedScans = db.OrderedScans{Open: s.newPositioner}
	return s, nil
}

func (s *Store) Exists(key []byte) (bool, error) {
	if s.closed.Load() {
		return false, db.Wrap(db.StatusInvalidArgument, ErrClosed)
	}
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, db.Wrap(db.StatusUnknownError, err)
	}
	return true, db.Wrap(db.StatusUnknownError, closer.Close())
}

func (s *Store) Get(key []byte, fn func(value []byte)) error {
	if s.closed.Load() {
		return db.Wrap(db.StatusInvalidArgument, ErrClosed)
	}
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return db.Errorf(db.StatusNotFound, "pebble: key not found")
	}
	if err != nil {
		return db.Wrap(db.StatusUnknownError, err)
	}
	defer closer.Close() //nolint:errcheck

	fn(value)
	return nil
}

func (s *Store) Put(key, value []byte) error {
	if s.closed.Load() {
		return db.Wrap(db.StatusInvalidArgument, ErrClosed)
	}
	return db.Wrap(db.StatusUnknownError, s.db.Set(key, value, pebble.Sync))
}

// Remove is a lookup followed by a delete; the pair is not atomic with respect
// to concurrent writers of the same key.
func (s *Store) Remove(key []byte) (bool, error) {
	found, err := s.Exists(key)
	if err != nil || !found {
		return false, err
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return false, db.Wrap(db.StatusUnknownError, err)
	}
	return true, nil
}

// Defrag compacts the whole key space. Pebble has no partial defragmentation,
// the percentages are only validated.
func (s *Store) Defrag(startPercent, amountPercent float64) error {
	if startPercent < 0 || amountPercent < 0 || startPercent+amountPercent > 100 {
		return db.Errorf(db.StatusInvalidArgument, "pebble: defrag range %v+%v out of bounds", startPercent, amountPercent)
	}
	iter, err := s.newPositioner()
	if err != nil {
		return err
	}
	if !iter.First() {
		return db.Wrap(db.StatusUnknownError, iter.Close())
	}
	first := bytes.Clone(iter.Key())
	iter.Last()
	end := append(bytes.Clone(iter.Key()), 0)
	if err := iter.Close(); err != nil {
		return db.Wrap(db.StatusUnknownError, err)
	}
	return db.Wrap(db.StatusDefragError, s.db.Compact(first, end, true))
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.db.Close()
	s.cache.Unref()
	return db.Wrap(db.StatusUnknownError, err)
}
