// Package btree is a volatile ordered engine backed by an in-memory B-tree.
package btree

import (
	"bytes"
	"sync"

	"github.com/tidwall/btree"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

// Driver opens empty trees. The path is ignored; size, when set, caps the
// bytes held by keys and values.
var Driver = db.DriverFunc(Open)

type item struct {
	key, value []byte
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// Store implements db.Engine on an in-memory B-tree. Readers run lock free on
// copy-on-write snapshots; writers are serialized.
type Store struct {
	db.OrderedScans
	mu    sync.Mutex
	tree  *btree.BTreeG[item]
	quota db.Quota
}

func Open(cfg *db.Config) (db.Engine, error) {
	if err := cfg.Consume(); err != nil {
		return nil, err
	}
	create, err := cfg.CreateOptions(false)
	if err != nil {
		return nil, err
	}
	log.Engine.Debug().Str("engine", "btree").Uint64("size", create.Size).Msg("store opened")

	s := &Store{
		tree:  btree.NewBTreeG(less),
		quota: db.Quota{Limit: create.Size},
	}
	s.OrderedScans = db.OrderedScans{Open: s.newPositioner}
	return s, nil
}

func (s *Store) Exists(key []byte) (bool, error) {
	_, found := s.tree.Get(item{key: key})
	return found, nil
}

func (s *Store) Get(key []byte, fn func(value []byte)) error {
	it, found := s.tree.Get(item{key: key})
	if !found {
		return db.Errorf(db.StatusNotFound, "btree: key not found")
	}
	fn(it.value)
	return nil
}

func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSize := 0
	if old, found := s.tree.Get(item{key: key}); found {
		oldSize = len(old.key) + len(old.value)
	}
	if err := s.quota.Replace(oldSize, len(key)+len(value)); err != nil {
		return err
	}
	s.tree.Set(item{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (s *Store) Remove(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, found := s.tree.Delete(item{key: key})
	if found {
		_ = s.quota.Replace(len(old.key)+len(old.value), 0)
	}
	return found, nil
}

func (s *Store) Defrag(float64, float64) error {
	return db.Errorf(db.StatusNotSupported, "btree: volatile engine has nothing to defragment")
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Clear()
	s.quota = db.Quota{Limit: s.quota.Limit}
	return nil
}

func (s *Store) newPositioner() (db.Positioner, error) {
	return &positioner{it: s.tree.Copy().Iter()}, nil
}

func (s *Store) NewCursor() (db.Cursor, error) {
	p, _ := s.newPositioner()
	return db.NewOrderedCursor(p, nil), nil
}

func (s *Store) NewWriteCursor() (db.WriteCursor, error) {
	p, _ := s.newPositioner()
	return db.NewOrderedCursor(p, s.Put).(db.WriteCursor), nil
}

// positioner walks a snapshot of the tree.
type positioner struct {
	it    btree.IterG[item]
	valid bool
}

func (p *positioner) set(ok bool) bool {
	p.valid = ok
	return ok
}

func (p *positioner) First() bool { return p.set(p.it.First()) }

func (p *positioner) Last() bool { return p.set(p.it.Last()) }

func (p *positioner) SeekGE(key []byte) bool { return p.set(p.it.Seek(item{key: key})) }

func (p *positioner) SeekLT(key []byte) bool {
	if p.it.Seek(item{key: key}) {
		return p.set(p.it.Prev())
	}
	return p.set(p.it.Last())
}

func (p *positioner) Next() bool { return p.valid && p.set(p.it.Next()) }

func (p *positioner) Prev() bool { return p.valid && p.set(p.it.Prev()) }

func (p *positioner) Valid() bool { return p.valid }

func (p *positioner) Key() []byte { return p.it.Item().key }

func (p *positioner) Value() []byte { return p.it.Item().value }

func (p *positioner) Close() error {
	p.it.Release()
	return nil
}
