package pebble

import (
	"github.com/cockroachdb/pebble"

	"github.com/eigerco/kvbind/pkg/db"
)

// newPositioner returns an unbounded iterator. *pebble.Iterator already has
// the db.Positioner shape and sees a consistent view of the store.
func (s *Store) newPositioner() (db.Positioner, error) {
	if s.closed.Load() {
		return nil, db.Wrap(db.StatusInvalidArgument, ErrClosed)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, db.Wrap(db.StatusUnknownError, err)
	}
	return iter, nil
}

func (s *Store) NewCursor() (db.Cursor, error) {
	iter, err := s.newPositioner()
	if err != nil {
		return nil, err
	}
	return db.NewOrderedCursor(iter, nil), nil
}

func (s *Store) NewWriteCursor() (db.WriteCursor, error) {
	iter, err := s.newPositioner()
	if err != nil {
		return nil, err
	}
	return db.NewOrderedCursor(iter, s.Put).(db.WriteCursor), nil
}
