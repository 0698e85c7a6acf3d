package bbolt

import (
	"bytes"

	"go.etcd.io/bbolt"

	"github.com/eigerco/kvbind/pkg/db"
)

// positioner adapts a bbolt cursor to db.Positioner. It owns the transaction
// the cursor lives in: Close commits a writable transaction and rolls back a
// read-only one.
type positioner struct {
	tx   *bbolt.Tx
	b    *bbolt.Bucket
	c    *bbolt.Cursor
	k, v []byte
}

func (s *Store) newPositioner(writable bool) (*positioner, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, mapError(err)
	}
	b := tx.Bucket(s.bucket)
	return &positioner{tx: tx, b: b, c: b.Cursor()}, nil
}

func (p *positioner) at(k, v []byte) bool {
	p.k, p.v = k, v
	return k != nil
}

func (p *positioner) First() bool { return p.at(p.c.First()) }

func (p *positioner) Last() bool { return p.at(p.c.Last()) }

func (p *positioner) SeekGE(key []byte) bool { return p.at(p.c.Seek(key)) }

func (p *positioner) SeekLT(key []byte) bool {
	if k, _ := p.c.Seek(key); k == nil {
		return p.at(p.c.Last())
	}
	return p.at(p.c.Prev())
}

func (p *positioner) Next() bool {
	if p.k == nil {
		return false
	}
	return p.at(p.c.Next())
}

func (p *positioner) Prev() bool {
	if p.k == nil {
		return false
	}
	return p.at(p.c.Prev())
}

func (p *positioner) Valid() bool { return p.k != nil }

func (p *positioner) Key() []byte { return p.k }

func (p *positioner) Value() []byte { return p.v }

// put writes inside the cursor transaction. bbolt requires key and value to
// outlive the transaction and invalidates cursors on mutation, so both are
// copied and the cursor is repositioned afterwards.
func (p *positioner) put(key, value []byte) error {
	key = bytes.Clone(key)
	if err := p.b.Put(key, bytes.Clone(value)); err != nil {
		return mapError(err)
	}
	p.at(p.c.Seek(key))
	return nil
}

func (p *positioner) Close() error {
	if p.tx.Writable() {
		return mapError(p.tx.Commit())
	}
	return mapError(p.tx.Rollback())
}

var _ db.Positioner = (*positioner)(nil)
