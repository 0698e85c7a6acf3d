// Package hashmap is a volatile unordered engine. It has no key order, so
// range scans and backward cursor movement are not supported.
package hashmap

import (
	"bytes"
	"sync"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

var Driver = db.DriverFunc(Open)

// Store implements db.Engine on a Go map. Stored slices are never modified
// in place, so snapshots can share them with the live map.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
	quota   db.Quota
}

func Open(cfg *db.Config) (db.Engine, error) {
	if err := cfg.Consume(); err != nil {
		return nil, err
	}
	create, err := cfg.CreateOptions(false)
	if err != nil {
		return nil, err
	}
	log.Engine.Debug().Str("engine", "hashmap").Uint64("size", create.Size).Msg("store opened")

	return &Store{
		records: make(map[string][]byte),
		quota:   db.Quota{Limit: create.Size},
	}, nil
}

func notSupported(op string) error {
	return db.Errorf(db.StatusNotSupported, "hashmap: %s requires an ordered engine", op)
}

func (s *Store) Ordered() bool { return false }

func (s *Store) Exists(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[string(key)]
	return ok, nil
}

func (s *Store) Get(key []byte, fn func(value []byte)) error {
	s.mu.RLock()
	value, ok := s.records[string(key)]
	s.mu.RUnlock()
	if !ok {
		return db.Errorf(db.StatusNotFound, "hashmap: key not found")
	}
	fn(value)
	return nil
}

func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSize := 0
	if old, ok := s.records[string(key)]; ok {
		oldSize = len(key) + len(old)
	}
	if err := s.quota.Replace(oldSize, len(key)+len(value)); err != nil {
		return err
	}
	s.records[string(key)] = bytes.Clone(value)
	return nil
}

func (s *Store) Remove(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[string(key)]
	if !ok {
		return false, nil
	}
	delete(s.records, string(key))
	_ = s.quota.Replace(len(key)+len(old), 0)
	return true, nil
}

func (s *Store) CountAll() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

func (s *Store) CountAbove([]byte) (uint64, error) { return 0, notSupported("count_above") }

func (s *Store) CountBelow([]byte) (uint64, error) { return 0, notSupported("count_below") }

func (s *Store) CountBetween(_, _ []byte) (uint64, error) {
	return 0, notSupported("count_between")
}

// GetAll visits a snapshot, so fn may write to the store.
func (s *Store) GetAll(fn db.VisitFunc) error {
	for _, r := range s.snapshot() {
		if fn(r.key, r.value) != 0 {
			return db.Errorf(db.StatusStoppedByCallback, "scan stopped by callback")
		}
	}
	return nil
}

func (s *Store) GetAbove([]byte, db.VisitFunc) error { return notSupported("get_above") }

func (s *Store) GetBelow([]byte, db.VisitFunc) error { return notSupported("get_below") }

func (s *Store) GetBetween(_, _ []byte, _ db.VisitFunc) error {
	return notSupported("get_between")
}

func (s *Store) Defrag(float64, float64) error {
	return db.Errorf(db.StatusNotSupported, "hashmap: volatile engine has nothing to defragment")
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.records)
	s.quota = db.Quota{Limit: s.quota.Limit}
	return nil
}

type record struct {
	key, value []byte
}

func (s *Store) snapshot() []record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record, 0, len(s.records))
	for k, v := range s.records {
		out = append(out, record{key: []byte(k), value: v})
	}
	return out
}

func (s *Store) NewCursor() (db.Cursor, error) {
	return newCursor(s.snapshot()), nil
}

func (s *Store) NewWriteCursor() (db.WriteCursor, error) {
	return &writeCursor{cursor: newCursor(s.snapshot()), put: s.Put}, nil
}
