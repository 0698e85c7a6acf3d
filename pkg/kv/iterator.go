package kv

import (
	"iter"
	"math"
	"time"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/eigerco/kvbind/pkg/db"
)

type cursorState uint8

const (
	unpositioned cursorState = iota
	positioned
	exhausted
	released
)

func (s cursorState) String() string {
	switch s {
	case unpositioned:
		return "unpositioned"
	case positioned:
		return "positioned"
	case exhausted:
		return "exhausted"
	default:
		return "released"
	}
}

var errReleased = newError(KindInvalidArgument, "iterator released")

// Iterator is a cursor over the records of a Database. A new Iterator is not
// positioned; one of the Seek methods has to succeed before Key and Value
// can be used. Seeks and moves report false, without error, when the
// requested record does not exist.
//
// An Iterator holds a reference to the database and must be closed. It is
// not safe for concurrent use. With stats enabled, seeks and moves are
// recorded as "iterator.seek", "iterator.next" and "iterator.prev".
type Iterator[K, V any] struct {
	db     *Database[K, V]
	cursor db.Cursor
	set    *buffer.Set
	state  cursorState
	err    error
}

// NewIterator creates a read only iterator.
func (d *Database[K, V]) NewIterator() (*Iterator[K, V], error) {
	it := &Iterator[K, V]{db: d}
	if err := it.open(func() (db.Cursor, error) { return d.engine.NewCursor() }); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator[K, V]) open(newCursor func() (db.Cursor, error)) error {
	d := it.db
	if err := d.acquire(); err != nil {
		return err
	}
	set, err := d.pool.Get()
	if err != nil {
		d.release()
		return mapError(err, nil)
	}
	c, err := newCursor()
	if err != nil {
		d.pool.Put(set)
		d.release()
		return mapError(err, nil)
	}
	it.cursor, it.set = c, set
	return nil
}

// usable fails once the iterator is closed or the database stopped.
func (it *Iterator[K, V]) usable() error {
	if it.state == released {
		return errReleased
	}
	if it.db.Stopped() {
		return ErrStopped
	}
	return nil
}

// moved applies the result of a cursor movement. A missing record leaves
// the iterator in miss.
func (it *Iterator[K, V]) moved(err error, miss cursorState) (bool, error) {
	if err == nil {
		it.state = positioned
		return true, nil
	}
	if db.IsNotFound(err) {
		it.state = miss
		return false, nil
	}
	it.state = unpositioned
	return false, mapError(err, nil)
}

// timed records fn under op when the database collects stats.
func (it *Iterator[K, V]) timed(op string, fn func() (bool, error)) (bool, error) {
	if it.db.stats == nil {
		return fn()
	}
	start := time.Now()
	ok, err := fn()
	it.db.stats.observe(op, time.Since(start), err)
	return ok, err
}

func (it *Iterator[K, V]) seek(key K, fn func([]byte) error) (bool, error) {
	if err := it.usable(); err != nil {
		return false, err
	}
	return it.timed("iterator.seek", func() (bool, error) {
		k, err := it.db.encodeKey(it.set, buffer.Key1, key)
		if err != nil {
			return false, err
		}
		return it.moved(fn(k), unpositioned)
	})
}

// Seek positions the iterator at key.
func (it *Iterator[K, V]) Seek(key K) (bool, error) { return it.seek(key, it.cursor.Seek) }

// SeekLower positions the iterator at the greatest key less than key.
func (it *Iterator[K, V]) SeekLower(key K) (bool, error) {
	return it.seek(key, it.cursor.SeekLower)
}

// SeekLowerEq positions the iterator at the greatest key less than or equal
// to key.
func (it *Iterator[K, V]) SeekLowerEq(key K) (bool, error) {
	return it.seek(key, it.cursor.SeekLowerEq)
}

// SeekHigher positions the iterator at the smallest key greater than key.
func (it *Iterator[K, V]) SeekHigher(key K) (bool, error) {
	return it.seek(key, it.cursor.SeekHigher)
}

// SeekHigherEq positions the iterator at the smallest key greater than or
// equal to key.
func (it *Iterator[K, V]) SeekHigherEq(key K) (bool, error) {
	return it.seek(key, it.cursor.SeekHigherEq)
}

func (it *Iterator[K, V]) SeekToFirst() (bool, error) {
	if err := it.usable(); err != nil {
		return false, err
	}
	return it.timed("iterator.seek", func() (bool, error) {
		return it.moved(it.cursor.SeekToFirst(), unpositioned)
	})
}

func (it *Iterator[K, V]) SeekToLast() (bool, error) {
	if err := it.usable(); err != nil {
		return false, err
	}
	return it.timed("iterator.seek", func() (bool, error) {
		return it.moved(it.cursor.SeekToLast(), unpositioned)
	})
}

func (it *Iterator[K, V]) peek(fn func() (bool, error)) (bool, error) {
	if err := it.usable(); err != nil {
		return false, err
	}
	if it.state != positioned {
		return false, nil
	}
	ok, err := fn()
	return ok, mapError(err, nil)
}

// IsNext reports whether Next would succeed, without moving.
func (it *Iterator[K, V]) IsNext() (bool, error) { return it.peek(it.cursor.IsNext) }

// IsPrev reports whether Prev would succeed, without moving.
func (it *Iterator[K, V]) IsPrev() (bool, error) { return it.peek(it.cursor.IsPrev) }

func (it *Iterator[K, V]) step(op string, fn func() error) (bool, error) {
	if err := it.usable(); err != nil {
		return false, err
	}
	switch it.state {
	case exhausted:
		return false, nil
	case unpositioned:
		return false, newError(KindInvalidArgument, "iterator is not positioned")
	}
	return it.timed(op, func() (bool, error) { return it.moved(fn(), exhausted) })
}

// Next moves to the following record. At the end it reports false and the
// iterator is exhausted until the next successful seek.
func (it *Iterator[K, V]) Next() (bool, error) { return it.step("iterator.next", it.cursor.Next) }

// Prev moves to the preceding record.
func (it *Iterator[K, V]) Prev() (bool, error) { return it.step("iterator.prev", it.cursor.Prev) }

func (it *Iterator[K, V]) current() error {
	if err := it.usable(); err != nil {
		return err
	}
	if it.state != positioned {
		return newError(KindInvalidArgument, "iterator is %s", it.state)
	}
	return nil
}

// KeyBytes returns the encoded key of the current record. The slice is only
// valid until the iterator moves.
func (it *Iterator[K, V]) KeyBytes() ([]byte, error) {
	if err := it.current(); err != nil {
		return nil, err
	}
	k, err := it.cursor.Key()
	return k, mapError(err, nil)
}

// ValueBytes returns the encoded value of the current record. The slice is
// only valid until the iterator moves.
func (it *Iterator[K, V]) ValueBytes() ([]byte, error) {
	if err := it.current(); err != nil {
		return nil, err
	}
	v, err := it.cursor.ReadRange(0, math.MaxInt32)
	return v, mapError(err, nil)
}

// Key decodes the key of the current record.
func (it *Iterator[K, V]) Key() (K, error) {
	raw, err := it.KeyBytes()
	if err != nil {
		var zero K
		return zero, err
	}
	return it.db.decodeKey(raw)
}

// Value decodes the value of the current record.
func (it *Iterator[K, V]) Value() (V, error) {
	raw, err := it.ValueBytes()
	if err != nil {
		var zero V
		return zero, err
	}
	return it.db.decodeValue(raw)
}

// All iterates every record from the first one. Iteration stops at the
// first error, which is then reported by Err.
func (it *Iterator[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		it.err = nil
		ok, err := it.SeekToFirst()
		for ; ok && err == nil; ok, err = it.Next() {
			k, kerr := it.Key()
			if kerr != nil {
				err = kerr
				break
			}
			v, verr := it.Value()
			if verr != nil {
				err = verr
				break
			}
			if !yield(k, v) {
				return
			}
		}
		it.err = err
	}
}

// Err returns the error that ended the last All iteration.
func (it *Iterator[K, V]) Err() error { return it.err }

// Close releases the iterator. It is safe to call more than once.
func (it *Iterator[K, V]) Close() error {
	if it.state == released {
		return nil
	}
	it.state = released
	err := mapError(it.cursor.Close(), nil)
	it.db.pool.Put(it.set)
	it.db.release()
	it.set = nil
	return err
}

// WriteIterator is an Iterator that can modify the current value in place.
// Changes become visible on Commit and are dropped by Abort or by moving
// the iterator.
type WriteIterator[K, V any] struct {
	Iterator[K, V]
	writer db.WriteCursor
}

func (d *Database[K, V]) NewWriteIterator() (*WriteIterator[K, V], error) {
	it := &WriteIterator[K, V]{Iterator: Iterator[K, V]{db: d}}
	err := it.open(func() (db.Cursor, error) {
		w, err := d.engine.NewWriteCursor()
		if err != nil {
			return nil, err
		}
		it.writer = w
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// WriteRange calls fn with a writable view of n bytes of the current value
// starting at pos. n is clamped to the end of the value.
func (it *WriteIterator[K, V]) WriteRange(pos, n int, fn func([]byte)) error {
	if err := it.current(); err != nil {
		return err
	}
	region, err := it.writer.WriteRange(pos, n)
	if err != nil {
		return mapError(err, nil)
	}
	fn(region)
	return nil
}

// SetValue replaces the current value in place. The encoded value must have
// exactly the size of the current one: write ranges cannot resize a record,
// so shorter values are rejected as well as longer ones.
func (it *WriteIterator[K, V]) SetValue(value V) error {
	current, err := it.ValueBytes()
	if err != nil {
		return err
	}
	encoded, err := it.db.encodeValue(it.set, value)
	if err != nil {
		return err
	}
	if len(encoded) != len(current) {
		return newError(KindInvalidArgument, "encoded value has %d bytes, current value has %d", len(encoded), len(current))
	}
	return it.WriteRange(0, len(encoded), func(region []byte) { copy(region, encoded) })
}

func (it *WriteIterator[K, V]) Commit() error {
	if err := it.current(); err != nil {
		return err
	}
	return mapError(it.writer.Commit(), nil)
}

func (it *WriteIterator[K, V]) Abort() error {
	if err := it.usable(); err != nil {
		return err
	}
	return mapError(it.writer.Abort(), nil)
}
