// Package leveldb exposes a goleveldb store through the engine boundary.
package leveldb

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

const KeyInMemory = "in_memory"

var ErrClosed = errors.New("leveldb: store is closed")

// Driver opens LevelDB stores. Options: path (required unless in_memory),
// force_create, size (required with force_create), in_memory. A store that
// fails to open because of corruption is recovered once.
var Driver = db.DriverFunc(Open)

// Store implements db.Engine on top of a LevelDB database.
type Store struct {
	db.OrderedScans
	mu sync.RWMutex
	db *leveldb.DB
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

	options := &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     16 * 1024 * 1024, // 16MB
		WriteBuffer:            32 * 1024 * 1024, // 32MB
		Filter:                 filter.NewBloomFilter(10),
		ErrorIfExist:           create.ForceCreate,
		ErrorIfMissing:         !create.ForceCreate && !inMemory,
	}

	var ldb *leveldb.DB
	if inMemory {
		ldb, err = leveldb.Open(storage.NewMemStorage(), options)
	} else {
		ldb, err = leveldb.OpenFile(create.Path, options)
		if lerrors.IsCorrupted(err) {
			log.Engine.Warn().Err(err).Str("path", create.Path).Msg("leveldb store corrupted, recovering")
			ldb, err = leveldb.RecoverFile(create.Path, options)
		}
	}
	if err != nil {
		return nil, db.Wrap(db.StatusInvalidArgument, err)
	}
	log.Engine.Debug().Str("engine", "leveldb").Str("path", create.Path).Bool("inMemory", inMemory).Msg("store opened")

	s := &Store{db: ldb}
	s.OrderedScans = db.OrderedScans{Open: s.newPositioner}
	return s, nil
}

// handle returns the open database under the read lock; release must be
// called when the operation is done.
func (s *Store) handle() (*leveldb.DB, func(), error) {
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return nil, nil, db.Wrap(db.StatusInvalidArgument, ErrClosed)
	}
	return s.db, s.mu.RUnlock, nil
}

func (s *Store) Exists(key []byte) (bool, error) {
	ldb, release, err := s.handle()
	if err != nil {
		return false, err
	}
	defer release()

	found, err := ldb.Has(key, nil)
	return found, db.Wrap(db.StatusUnknownError, err)
}

func (s *Store) Get(key []byte, fn func(value []byte)) error {
	ldb, release, err := s.handle()
	if err != nil {
		return err
	}
	defer release()

	value, err := ldb.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return db.Errorf(db.StatusNotFound, "leveldb: key not found")
	}
	if err != nil {
		return db.Wrap(db.StatusUnknownError, err)
	}
	fn(value)
	return nil
}

func (s *Store) Put(key, value []byte) error {
	ldb, release, err := s.handle()
	if err != nil {
		return err
	}
	defer release()

	return db.Wrap(db.StatusUnknownError, ldb.Put(key, value, nil))
}

func (s *Store) Remove(key []byte) (bool, error) {
	ldb, release, err := s.handle()
	if err != nil {
		return false, err
	}
	defer release()

	found, err := ldb.Has(key, nil)
	if err != nil || !found {
		return false, db.Wrap(db.StatusUnknownError, err)
	}
	if err := ldb.Delete(key, nil); err != nil {
		return false, db.Wrap(db.StatusUnknownError, err)
	}
	return true, nil
}

// Defrag compacts the whole key range; the percentages are only validated.
func (s *Store) Defrag(startPercent, amountPercent float64) error {
	if startPercent < 0 || amountPercent < 0 || startPercent+amountPercent > 100 {
		return db.Errorf(db.StatusInvalidArgument, "leveldb: defrag range %v+%v out of bounds", startPercent, amountPercent)
	}
	ldb, release, err := s.handle()
	if err != nil {
		return err
	}
	defer release()

	return db.Wrap(db.StatusDefragError, ldb.CompactRange(util.Range{}))
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return db.Wrap(db.StatusUnknownError, err)
}

func (s *Store) newPositioner() (db.Positioner, error) {
	ldb, release, err := s.handle()
	if err != nil {
		return nil, err
	}
	defer release()

	return &positioner{Iterator: ldb.NewIterator(nil, nil)}, nil
}

func (s *Store) NewCursor() (db.Cursor, error) {
	p, err := s.newPositioner()
	if err != nil {
		return nil, err
	}
	return db.NewOrderedCursor(p, nil), nil
}

func (s *Store) NewWriteCursor() (db.WriteCursor, error) {
	p, err := s.newPositioner()
	if err != nil {
		return nil, err
	}
	return db.NewOrderedCursor(p, s.Put).(db.WriteCursor), nil
}

// positioner adapts a LevelDB iterator, which works on an implicit snapshot,
// to db.Positioner.
type positioner struct {
	iterator.Iterator
}

func (p *positioner) SeekGE(key []byte) bool { return p.Seek(key) }

func (p *positioner) SeekLT(key []byte) bool {
	if p.Seek(key) {
		return p.Prev()
	}
	return p.Last()
}

func (p *positioner) Close() error {
	err := p.Error()
	p.Release()
	return err
}
