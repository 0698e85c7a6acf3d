// Package bbolt exposes a single bucket of a bbolt file through the engine
// boundary.
package bbolt

import (
	"bytes"
	"errors"
	"math"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

// KeyBucket selects the bucket holding the records; DefaultBucket otherwise.
const (
	KeyBucket     = "bucket"
	DefaultBucket = "kv"
)

// Driver opens bbolt files. Options: path (required, a file), force_create,
// size (required with force_create, used as the initial mmap size), bucket.
//
// Cursors run inside a transaction: a write cursor holds the single writer
// lock until it is closed, and a read cursor held across a write from the
// same goroutine can block that write while the file grows.
var Driver = db.DriverFunc(Open)

// Store implements db.Engine on top of a bbolt database.
type Store struct {
	db.OrderedScans
	db     *bbolt.DB
	bucket []byte
}

func Open(cfg *db.Config) (db.Engine, error) {
	if err := cfg.Consume(); err != nil {
		return nil, err
	}
	create, err := cfg.CreateOptions(true)
	if err != nil {
		return nil, err
	}
	bucket, ok, err := cfg.String(KeyBucket)
	if err != nil {
		return nil, err
	}
	if !ok || bucket == "" {
		bucket = DefaultBucket
	}

	_, statErr := os.Stat(create.Path)
	switch {
	case create.ForceCreate && statErr == nil:
		return nil, db.Errorf(db.StatusInvalidArgument, "bbolt: %s already exists", create.Path)
	case !create.ForceCreate && errors.Is(statErr, os.ErrNotExist):
		return nil, db.Errorf(db.StatusInvalidArgument, "bbolt: %s does not exist", create.Path)
	}

	opts := &bbolt.Options{Timeout: time.Second}
	if create.Size > 0 {
		opts.InitialMmapSize = int(min(create.Size, math.MaxInt32))
	}
	bdb, err := bbolt.Open(create.Path, 0600, opts)
	if err != nil {
		return nil, db.Wrap(db.StatusInvalidArgument, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		bdb.Close() //nolint:errcheck
		return nil, db.Wrap(db.StatusInvalidArgument, err)
	}
	log.Engine.Debug().Str("engine", "bbolt").Str("path", create.Path).Str("bucket", bucket).Msg("store opened")

	s := &Store{db: bdb, bucket: []byte(bucket)}
	s.OrderedScans = db.OrderedScans{Open: func() (db.Positioner, error) { return s.newPositioner(false) }}
	return s, nil
}

// seek positions c at key and reports whether the key is stored.
func seek(c *bbolt.Cursor, key []byte) ([]byte, bool) {
	k, v := c.Seek(key)
	return v, k != nil && bytes.Equal(k, key)
}

func (s *Store) view(fn func(b *bbolt.Bucket) error) error {
	return s.db.View(func(tx *bbolt.Tx) error { return fn(tx.Bucket(s.bucket)) })
}

func (s *Store) update(fn func(b *bbolt.Bucket) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error { return fn(tx.Bucket(s.bucket)) })
}

func (s *Store) Exists(key []byte) (found bool, err error) {
	err = s.view(func(b *bbolt.Bucket) error {
		_, found = seek(b.Cursor(), key)
		return nil
	})
	return found, mapError(err)
}

func (s *Store) Get(key []byte, fn func(value []byte)) error {
	err := s.view(func(b *bbolt.Bucket) error {
		v, found := seek(b.Cursor(), key)
		if !found {
			return db.Errorf(db.StatusNotFound, "bbolt: key not found")
		}
		fn(v)
		return nil
	})
	return mapError(err)
}

func (s *Store) Put(key, value []byte) error {
	return mapError(s.update(func(b *bbolt.Bucket) error { return b.Put(key, value) }))
}

func (s *Store) Remove(key []byte) (found bool, err error) {
	err = s.update(func(b *bbolt.Bucket) error {
		c := b.Cursor()
		if _, found = seek(c, key); !found {
			return nil
		}
		return c.Delete()
	})
	return found, mapError(err)
}

// Defrag is not supported: bbolt only compacts into a new file.
func (s *Store) Defrag(float64, float64) error {
	return db.Errorf(db.StatusNotSupported, "bbolt: defrag requires an offline compaction")
}

func (s *Store) Close() error {
	return mapError(s.db.Close())
}

func (s *Store) NewCursor() (db.Cursor, error) {
	p, err := s.newPositioner(false)
	if err != nil {
		return nil, err
	}
	return db.NewOrderedCursor(p, nil), nil
}

func (s *Store) NewWriteCursor() (db.WriteCursor, error) {
	p, err := s.newPositioner(true)
	if err != nil {
		return nil, err
	}
	return db.NewOrderedCursor(p, p.put).(db.WriteCursor), nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bbolt.ErrDatabaseNotOpen):
		return db.Wrap(db.StatusInvalidArgument, err)
	case errors.Is(err, bbolt.ErrKeyRequired), errors.Is(err, bbolt.ErrKeyTooLarge), errors.Is(err, bbolt.ErrValueTooLarge):
		return db.Wrap(db.StatusInvalidArgument, err)
	default:
		return db.Wrap(db.StatusUnknownError, err)
	}
}
