//go:build darwin || linux

package native

import (
	"bytes"
	"runtime"

	"github.com/eigerco/kvbind/pkg/db"
)

type cursor struct {
	it  uintptr
	fns *iteratorFuncs
}

func (c *cursor) seek(fn func(it, k, kb uintptr) int32, key []byte) error {
	code := fn(c.it, ptr(key), uintptr(len(key)))
	runtime.KeepAlive(key)
	return check(code)
}

func (c *cursor) Seek(key []byte) error         { return c.seek(c.fns.seek, key) }
func (c *cursor) SeekLower(key []byte) error    { return c.seek(c.fns.seekLower, key) }
func (c *cursor) SeekLowerEq(key []byte) error  { return c.seek(c.fns.seekLowerEq, key) }
func (c *cursor) SeekHigher(key []byte) error   { return c.seek(c.fns.seekHigher, key) }
func (c *cursor) SeekHigherEq(key []byte) error { return c.seek(c.fns.seekHigherEq, key) }
func (c *cursor) SeekToFirst() error            { return check(c.fns.seekToFirst(c.it)) }
func (c *cursor) SeekToLast() error             { return check(c.fns.seekToLast(c.it)) }
func (c *cursor) Next() error                   { return check(c.fns.next(c.it)) }
func (c *cursor) Prev() error                   { return check(c.fns.prev(c.it)) }

func (c *cursor) IsNext() (bool, error) {
	code := c.fns.isNext(c.it)
	if db.Status(code) == db.StatusNotFound {
		return false, nil
	}
	return code == 0, check(code)
}

// IsPrev has no native counterpart. It steps back and seeks to the current
// key again.
func (c *cursor) IsPrev() (bool, error) {
	key, err := c.Key()
	if err != nil {
		return false, err
	}
	key = bytes.Clone(key)

	err = c.Prev()
	if err != nil && !db.IsNotFound(err) {
		return false, err
	}
	if seekErr := c.Seek(key); seekErr != nil {
		return false, seekErr
	}
	return err == nil, nil
}

func (c *cursor) Key() ([]byte, error) {
	var k, kb uintptr
	if err := check(c.fns.key(c.it, &k, &kb)); err != nil {
		return nil, err
	}
	return view(k, kb), nil
}

func (c *cursor) ReadRange(pos, n int) ([]byte, error) {
	if pos < 0 || n < 0 {
		return nil, db.Errorf(db.StatusInvalidArgument, "cursor: negative range")
	}
	var data, rb uintptr
	if err := check(c.fns.readRange(c.it, uintptr(pos), uintptr(n), &data, &rb)); err != nil {
		return nil, err
	}
	return view(data, rb), nil
}

func (c *cursor) Close() error {
	if c.it != 0 {
		c.fns.delete(c.it)
		c.it = 0
	}
	return nil
}

type writeCursor struct {
	cursor
}

func (w *writeCursor) WriteRange(pos, n int) ([]byte, error) {
	if pos < 0 || n < 0 {
		return nil, db.Errorf(db.StatusInvalidArgument, "cursor: negative range")
	}
	var data, wb uintptr
	if err := check(pmemkvWriteIteratorWriteRange(w.it, uintptr(pos), uintptr(n), &data, &wb)); err != nil {
		return nil, err
	}
	return view(data, wb), nil
}

func (w *writeCursor) Commit() error { return check(pmemkvWriteIteratorCommit(w.it)) }

func (w *writeCursor) Abort() error {
	pmemkvWriteIteratorAbort(w.it)
	return nil
}
