// Package kv is the typed client of the engines behind the db.Engine
// boundary. A Database converts keys and values with the converters it was
// built with and moves them through pooled pinned buffers.
package kv

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/eigerco/kvbind/pkg/converter"
	"github.com/eigerco/kvbind/pkg/db"
)

// Database is an open engine. It is safe for concurrent use; whether calls
// actually run in parallel is up to the engine.
//
// Every call and every live iterator holds a reference to the engine. Stop
// drops the reference owned by the Database and the engine is closed when
// the last reference is gone, so Stop never tears down an engine under an
// in-flight call.
type Database[K, V any] struct {
	name    string
	engine  db.Engine
	ordered bool
	keys    converter.Converter[K]
	values  converter.Converter[V]
	pool    *buffer.Pool
	logger  zerolog.Logger
	stats   *stats

	stopped atomic.Bool
	refs    atomic.Int64
	closed  chan struct{}
	err     error // teardown result, set before closed is closed
}

func newDatabase[K, V any](name string, engine db.Engine, keys converter.Converter[K], values converter.Converter[V], bufferSize int, logger zerolog.Logger, withStats bool) *Database[K, V] {
	d := &Database[K, V]{
		name:    name,
		engine:  engine,
		ordered: engine.Ordered(),
		keys:    keys,
		values:  values,
		pool:    buffer.NewPool(bufferSize),
		logger:  logger,
		closed:  make(chan struct{}),
	}
	if withStats {
		d.stats = newStats()
	}
	d.refs.Store(1)
	d.logger.Debug().Bool("ordered", d.ordered).Int("bufferSize", d.pool.SlotSize()).Msg("database opened")
	return d
}

// Engine returns the engine name the database was opened with.
func (d *Database[K, V]) Engine() string { return d.name }

// Ordered reports whether range queries and backward iteration are
// available.
func (d *Database[K, V]) Ordered() bool { return d.ordered }

// Stopped reports whether Stop has been called.
func (d *Database[K, V]) Stopped() bool { return d.stopped.Load() }

// Stop closes the database. Later calls return nil without doing anything.
// If calls or iterators are still in flight the engine is closed when the
// last of them finishes, and Stop returns nil without waiting; Done can be
// used to wait for it. Stop may be called from inside a callback.
func (d *Database[K, V]) Stop() error {
	if !d.stopped.CompareAndSwap(false, true) {
		return nil
	}
	d.logger.Debug().Msg("stopping database")
	if d.release() {
		return d.err
	}
	return nil
}

// Done is closed once the engine has been closed after Stop.
func (d *Database[K, V]) Done() <-chan struct{} { return d.closed }

// Err returns the error of closing the engine, once Done is closed.
func (d *Database[K, V]) Err() error {
	select {
	case <-d.closed:
		return d.err
	default:
		return nil
	}
}

// Stats returns latency quantiles per operation, sorted by operation name.
// It returns nil unless stats were enabled on the Builder.
func (d *Database[K, V]) Stats() []OpStats { return d.stats.snapshot() }

// Overflows returns how many payloads did not fit a pooled buffer.
func (d *Database[K, V]) Overflows() uint64 { return d.pool.Overflows() }

// acquire takes a reference, failing once the database is stopped.
func (d *Database[K, V]) acquire() error {
	for {
		if d.stopped.Load() {
			return ErrStopped
		}
		n := d.refs.Load()
		if n <= 0 {
			return ErrStopped
		}
		if d.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// release drops a reference and tears the engine down when it was the last
// one. It reports whether teardown ran.
func (d *Database[K, V]) release() bool {
	if d.refs.Add(-1) != 0 {
		return false
	}
	d.err = errors.Join(mapError(d.engine.Close(), nil), mapError(d.pool.Close(), nil))
	if d.err != nil {
		d.logger.Error().Err(d.err).Msg("unable to close engine")
	} else {
		d.logger.Debug().Msg("engine closed")
	}
	close(d.closed)
	return true
}

// call runs fn with a reference and a checked out buffer set.
func (d *Database[K, V]) call(op string, fn func(set *buffer.Set) error) (err error) {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	set, err := d.pool.Get()
	if err != nil {
		return mapError(err, nil)
	}
	defer d.pool.Put(set)

	if d.stats != nil {
		start := time.Now()
		defer func() { d.stats.observe(op, time.Since(start), err) }()
	}
	return fn(set)
}

// bufferConverter is implemented by converters whose values already are
// buffers, see converter.Buffer.
type bufferConverter[T any] interface {
	ToBuffer(v T) (*buffer.Buffer, error)
}

// encode converts v into the slot buffer of set. The result is valid until
// set is returned to the pool.
func encode[T any](set *buffer.Set, slot buffer.Slot, c converter.Converter[T], v T) ([]byte, error) {
	var (
		b   *buffer.Buffer
		err error
	)
	switch conv := c.(type) {
	case bufferConverter[T]:
		var in *buffer.Buffer
		if in, err = conv.ToBuffer(v); err == nil {
			b = set.Acquire(slot, in)
		}
	case converter.Appender[T]:
		b, err = set.AcquireFunc(slot, func(dst []byte) ([]byte, error) { return conv.AppendBytes(dst, v) })
	default:
		var raw []byte
		if raw, err = c.ToBytes(v); err == nil {
			b = set.Acquire(slot, buffer.Wrap(raw))
		}
	}
	if err != nil {
		return nil, conversionError(slot.String(), err)
	}
	return b.Bytes(), nil
}

func (d *Database[K, V]) encodeKey(set *buffer.Set, slot buffer.Slot, key K) ([]byte, error) {
	return encode(set, slot, d.keys, key)
}

func (d *Database[K, V]) encodeValue(set *buffer.Set, value V) ([]byte, error) {
	return encode(set, buffer.Value, d.values, value)
}

func (d *Database[K, V]) decodeKey(raw []byte) (K, error) {
	k, err := d.keys.FromBytes(raw)
	if err != nil {
		return k, conversionError("key", err)
	}
	return k, nil
}

func (d *Database[K, V]) decodeValue(raw []byte) (V, error) {
	v, err := d.values.FromBytes(raw)
	if err != nil {
		return v, conversionError("value", err)
	}
	return v, nil
}
