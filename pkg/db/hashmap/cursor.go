package hashmap

import (
	"bytes"

	"github.com/eigerco/kvbind/pkg/db"
)

// cursor walks a snapshot in the map's iteration order. Only forward
// movement and exact seeks are meaningful without a key order.
type cursor struct {
	records []record
	index   map[string]int
	pos     int // -1 when unpositioned
}

func newCursor(records []record) *cursor {
	index := make(map[string]int, len(records))
	for i, r := range records {
		index[string(r.key)] = i
	}
	return &cursor{records: records, index: index, pos: -1}
}

func (c *cursor) moveTo(pos int) error {
	if pos < 0 || pos >= len(c.records) {
		c.pos = -1
		return db.Errorf(db.StatusNotFound, "cursor: no such record")
	}
	c.pos = pos
	return nil
}

func (c *cursor) Seek(key []byte) error {
	pos, ok := c.index[string(key)]
	if !ok {
		pos = -1
	}
	return c.moveTo(pos)
}

func (c *cursor) SeekToFirst() error { return c.moveTo(0) }

func (c *cursor) SeekLower([]byte) error    { return notSupported("seek_lower") }
func (c *cursor) SeekLowerEq([]byte) error  { return notSupported("seek_lower_eq") }
func (c *cursor) SeekHigher([]byte) error   { return notSupported("seek_higher") }
func (c *cursor) SeekHigherEq([]byte) error { return notSupported("seek_higher_eq") }
func (c *cursor) SeekToLast() error         { return notSupported("seek_to_last") }
func (c *cursor) IsPrev() (bool, error)     { return false, notSupported("is_prev") }
func (c *cursor) Prev() error               { return notSupported("prev") }

func (c *cursor) IsNext() (bool, error) {
	return c.pos >= 0 && c.pos+1 < len(c.records), nil
}

func (c *cursor) Next() error {
	if c.pos < 0 {
		return db.Errorf(db.StatusNotFound, "cursor: not positioned")
	}
	return c.moveTo(c.pos + 1)
}

func (c *cursor) current() (record, error) {
	if c.pos < 0 {
		return record{}, db.Errorf(db.StatusInvalidArgument, "cursor: not positioned")
	}
	return c.records[c.pos], nil
}

func (c *cursor) Key() ([]byte, error) {
	r, err := c.current()
	return r.key, err
}

func (c *cursor) ReadRange(pos, n int) ([]byte, error) {
	r, err := c.current()
	if err != nil {
		return nil, err
	}
	return db.Window(r.value, pos, n)
}

func (c *cursor) Close() error {
	c.records, c.index, c.pos = nil, nil, -1
	return nil
}

type writeCursor struct {
	*cursor
	put     func(key, value []byte) error
	pending []byte
}

func (w *writeCursor) Seek(key []byte) error {
	w.pending = nil
	return w.cursor.Seek(key)
}

func (w *writeCursor) SeekToFirst() error {
	w.pending = nil
	return w.cursor.SeekToFirst()
}

func (w *writeCursor) Next() error {
	w.pending = nil
	return w.cursor.Next()
}

func (w *writeCursor) ReadRange(pos, n int) ([]byte, error) {
	if w.pending != nil {
		return db.Window(w.pending, pos, n)
	}
	return w.cursor.ReadRange(pos, n)
}

func (w *writeCursor) WriteRange(pos, n int) ([]byte, error) {
	r, err := w.current()
	if err != nil {
		return nil, err
	}
	if w.pending == nil {
		w.pending = bytes.Clone(r.value)
	}
	return db.Window(w.pending, pos, n)
}

func (w *writeCursor) Commit() error {
	if w.pending == nil {
		return nil
	}
	r, err := w.current()
	if err != nil {
		return err
	}
	if err := w.put(r.key, w.pending); err != nil {
		return err
	}
	w.records[w.pos].value, w.pending = w.pending, nil
	return nil
}

func (w *writeCursor) Abort() error {
	w.pending = nil
	return nil
}
