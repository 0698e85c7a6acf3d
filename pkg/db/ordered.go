package db

import (
	"bytes"
	"errors"
)

// Positioner is the cursor shape shared by the ordered engines. It matches
// *pebble.Iterator; the other engines wrap their native cursors to fit it.
// Key and Value are only valid until the next movement.
type Positioner interface {
	First() bool
	Last() bool
	SeekGE(key []byte) bool
	SeekLT(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
}

// Range is a key interval with exclusive bounds. A nil bound is open.
type Range struct {
	Lower, Upper []byte
}

// Empty reports whether no key can satisfy the range, which is the case when
// both bounds are set and lower >= upper.
func (r Range) Empty() bool {
	return r.Lower != nil && r.Upper != nil && bytes.Compare(r.Lower, r.Upper) >= 0
}

func (r Range) start(p Positioner) bool {
	if r.Lower == nil {
		return p.First()
	}
	if !p.SeekGE(r.Lower) {
		return false
	}
	if bytes.Equal(p.Key(), r.Lower) {
		return p.Next()
	}
	return true
}

func (r Range) contains(key []byte) bool {
	return r.Upper == nil || bytes.Compare(key, r.Upper) < 0
}

// OrderedScans implements the count and visit operations of Engine on top of
// a fresh Positioner per call. Embedding engines only provide point
// operations and cursors.
type OrderedScans struct {
	Open func() (Positioner, error)
}

func (s OrderedScans) Ordered() bool { return true }

func (s OrderedScans) count(r Range) (n uint64, err error) {
	if r.Empty() {
		return 0, nil
	}
	p, err := s.Open()
	if err != nil {
		return 0, err
	}
	defer func() { err = errors.Join(err, Wrap(StatusUnknownError, p.Close())) }()

	for ok := r.start(p); ok && r.contains(p.Key()); ok = p.Next() {
		n++
	}
	return n, nil
}

func (s OrderedScans) visit(r Range, fn VisitFunc) (err error) {
	if r.Empty() {
		return nil
	}
	p, err := s.Open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, Wrap(StatusUnknownError, p.Close())) }()

	for ok := r.start(p); ok && r.contains(p.Key()); ok = p.Next() {
		if fn(p.Key(), p.Value()) != 0 {
			return Errorf(StatusStoppedByCallback, "scan stopped by callback")
		}
	}
	return nil
}

func (s OrderedScans) CountAll() (uint64, error) { return s.count(Range{}) }

func (s OrderedScans) CountAbove(key []byte) (uint64, error) {
	return s.count(Range{Lower: nonNil(key)})
}

func (s OrderedScans) CountBelow(key []byte) (uint64, error) {
	return s.count(Range{Upper: nonNil(key)})
}

func (s OrderedScans) CountBetween(key1, key2 []byte) (uint64, error) {
	return s.count(Range{Lower: nonNil(key1), Upper: nonNil(key2)})
}

func (s OrderedScans) GetAll(fn VisitFunc) error { return s.visit(Range{}, fn) }

func (s OrderedScans) GetAbove(key []byte, fn VisitFunc) error {
	return s.visit(Range{Lower: nonNil(key)}, fn)
}

func (s OrderedScans) GetBelow(key []byte, fn VisitFunc) error {
	return s.visit(Range{Upper: nonNil(key)}, fn)
}

func (s OrderedScans) GetBetween(key1, key2 []byte, fn VisitFunc) error {
	return s.visit(Range{Lower: nonNil(key1), Upper: nonNil(key2)}, fn)
}

// nonNil turns a nil bound into the empty key, so that an empty bound is
// still treated as a bound.
func nonNil(key []byte) []byte {
	if key == nil {
		return []byte{}
	}
	return key
}

// NewOrderedCursor adapts a Positioner to the Cursor contract. When put is
// non-nil the result also implements WriteCursor, committing through put.
func NewOrderedCursor(p Positioner, put func(key, value []byte) error) Cursor {
	c := &orderedCursor{p: p}
	if put == nil {
		return c
	}
	return &orderedWriteCursor{orderedCursor: c, put: put}
}

type orderedCursor struct {
	p     Positioner
	valid bool

	// value overrides the positioner value after a commit, because ordered
	// engines iterate a snapshot that does not observe the committed write.
	value []byte
}

func (c *orderedCursor) moved(ok bool) error {
	c.valid = ok
	c.value = nil
	if !ok {
		return Errorf(StatusNotFound, "cursor: no such record")
	}
	return nil
}

func (c *orderedCursor) Seek(key []byte) error {
	return c.moved(c.p.SeekGE(key) && bytes.Equal(c.p.Key(), key))
}

func (c *orderedCursor) SeekLower(key []byte) error {
	return c.moved(c.p.SeekLT(key))
}

func (c *orderedCursor) SeekLowerEq(key []byte) error {
	if c.p.SeekGE(key) && bytes.Equal(c.p.Key(), key) {
		return c.moved(true)
	}
	return c.moved(c.p.SeekLT(key))
}

func (c *orderedCursor) SeekHigher(key []byte) error {
	if !c.p.SeekGE(key) {
		return c.moved(false)
	}
	if bytes.Equal(c.p.Key(), key) {
		return c.moved(c.p.Next())
	}
	return c.moved(true)
}

func (c *orderedCursor) SeekHigherEq(key []byte) error {
	return c.moved(c.p.SeekGE(key))
}

func (c *orderedCursor) SeekToFirst() error { return c.moved(c.p.First()) }

func (c *orderedCursor) SeekToLast() error { return c.moved(c.p.Last()) }

// peek moves with step and restores the current position by seeking back to
// the current key, which exists in the snapshot being iterated.
func (c *orderedCursor) peek(step func() bool) (bool, error) {
	if !c.valid {
		return false, nil
	}
	cur := bytes.Clone(c.p.Key())
	ok := step()
	if !c.p.SeekGE(cur) || !bytes.Equal(c.p.Key(), cur) {
		c.valid = false
		return false, Errorf(StatusUnknownError, "cursor: lost position while peeking")
	}
	return ok, nil
}

func (c *orderedCursor) IsNext() (bool, error) { return c.peek(c.p.Next) }

func (c *orderedCursor) IsPrev() (bool, error) { return c.peek(c.p.Prev) }

func (c *orderedCursor) Next() error {
	if !c.valid {
		return Errorf(StatusNotFound, "cursor: not positioned")
	}
	return c.moved(c.p.Next())
}

func (c *orderedCursor) Prev() error {
	if !c.valid {
		return Errorf(StatusNotFound, "cursor: not positioned")
	}
	return c.moved(c.p.Prev())
}

func (c *orderedCursor) Key() ([]byte, error) {
	if !c.valid {
		return nil, Errorf(StatusInvalidArgument, "cursor: not positioned")
	}
	return c.p.Key(), nil
}

func (c *orderedCursor) current() []byte {
	if c.value != nil {
		return c.value
	}
	return c.p.Value()
}

func (c *orderedCursor) ReadRange(pos, n int) ([]byte, error) {
	if !c.valid {
		return nil, Errorf(StatusInvalidArgument, "cursor: not positioned")
	}
	return Window(c.current(), pos, n)
}

func (c *orderedCursor) Close() error {
	return Wrap(StatusUnknownError, c.p.Close())
}

type orderedWriteCursor struct {
	*orderedCursor
	put     func(key, value []byte) error
	pending []byte
}

func (c *orderedWriteCursor) moved(err error) error {
	c.pending = nil
	return err
}

func (c *orderedWriteCursor) Seek(key []byte) error {
	return c.moved(c.orderedCursor.Seek(key))
}

func (c *orderedWriteCursor) SeekLower(key []byte) error {
	return c.moved(c.orderedCursor.SeekLower(key))
}

func (c *orderedWriteCursor) SeekLowerEq(key []byte) error {
	return c.moved(c.orderedCursor.SeekLowerEq(key))
}

func (c *orderedWriteCursor) SeekHigher(key []byte) error {
	return c.moved(c.orderedCursor.SeekHigher(key))
}

func (c *orderedWriteCursor) SeekHigherEq(key []byte) error {
	return c.moved(c.orderedCursor.SeekHigherEq(key))
}

func (c *orderedWriteCursor) SeekToFirst() error { return c.moved(c.orderedCursor.SeekToFirst()) }

func (c *orderedWriteCursor) SeekToLast() error { return c.moved(c.orderedCursor.SeekToLast()) }

func (c *orderedWriteCursor) Next() error { return c.moved(c.orderedCursor.Next()) }

func (c *orderedWriteCursor) Prev() error { return c.moved(c.orderedCursor.Prev()) }

func (c *orderedWriteCursor) ReadRange(pos, n int) ([]byte, error) {
	if c.pending != nil {
		return Window(c.pending, pos, n)
	}
	return c.orderedCursor.ReadRange(pos, n)
}

func (c *orderedWriteCursor) WriteRange(pos, n int) ([]byte, error) {
	if !c.valid {
		return nil, Errorf(StatusInvalidArgument, "cursor: not positioned")
	}
	if c.pending == nil {
		c.pending = bytes.Clone(c.current())
	}
	return Window(c.pending, pos, n)
}

func (c *orderedWriteCursor) Commit() error {
	if c.pending == nil {
		return nil
	}
	if err := c.put(c.p.Key(), c.pending); err != nil {
		return err
	}
	c.value, c.pending = c.pending, nil
	return nil
}

func (c *orderedWriteCursor) Abort() error {
	c.pending = nil
	return nil
}

// Window returns value[pos:pos+n], clamping n to the end of the value. A pos
// beyond the end of the value is an invalid argument.
func Window(value []byte, pos, n int) ([]byte, error) {
	if pos < 0 || n < 0 || pos > len(value) {
		return nil, Errorf(StatusInvalidArgument, "cursor: range [%d, +%d) outside value of %d bytes", pos, n, len(value))
	}
	if n > len(value)-pos {
		n = len(value) - pos
	}
	return value[pos : pos+n], nil
}
