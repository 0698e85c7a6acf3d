package kv

import (
	"bytes"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/eigerco/kvbind/pkg/db"
)

// bound selects the key interval of a count or scan. All bounds are
// exclusive.
type bound uint8

const (
	boundAll bound = iota
	boundAbove
	boundBelow
	boundBetween
)

func (b bound) op(prefix string) string {
	switch b {
	case boundAbove:
		return prefix + "_above"
	case boundBelow:
		return prefix + "_below"
	case boundBetween:
		return prefix + "_between"
	default:
		return prefix + "_all"
	}
}

func (d *Database[K, V]) Exists(key K) (found bool, err error) {
	err = d.call("exists", func(set *buffer.Set) error {
		k, err := d.encodeKey(set, buffer.Key1, key)
		if err != nil {
			return err
		}
		found, err = d.engine.Exists(k)
		return mapError(err, nil)
	})
	return found, err
}

// Get calls fn with the value stored under key. fn is not called when the
// key is absent, which is not an error. An error returned by fn is returned
// unchanged.
func (d *Database[K, V]) Get(key K, fn func(V) error) error {
	return d.call("get", func(set *buffer.Set) error {
		k, err := d.encodeKey(set, buffer.Key1, key)
		if err != nil {
			return err
		}
		v := &visitor{}
		err = d.engine.Get(k, d.valueVisitor(v, fn))
		if db.IsNotFound(err) {
			err = nil
		}
		return v.finish(err)
	})
}

// GetCopy returns the value stored under key. The second result is false
// when the key is absent.
func (d *Database[K, V]) GetCopy(key K) (value V, found bool, err error) {
	err = d.Get(key, func(v V) error {
		value, found = v, true
		return nil
	})
	return value, found, err
}

// Put stores value under key, replacing any previous value.
func (d *Database[K, V]) Put(key K, value V) error {
	return d.call("put", func(set *buffer.Set) error {
		k, err := d.encodeKey(set, buffer.Key1, key)
		if err != nil {
			return err
		}
		v, err := d.encodeValue(set, value)
		if err != nil {
			return err
		}
		return mapError(d.engine.Put(k, v), k)
	})
}

// Remove deletes key and reports whether it was present.
func (d *Database[K, V]) Remove(key K) (removed bool, err error) {
	err = d.call("remove", func(set *buffer.Set) error {
		k, err := d.encodeKey(set, buffer.Key1, key)
		if err != nil {
			return err
		}
		removed, err = d.engine.Remove(k)
		return mapError(err, k)
	})
	return removed, err
}

// Defrag defragments amountPercent of the engine's storage starting at
// startPercent. Engines without fragmentation report KindNotSupported.
func (d *Database[K, V]) Defrag(startPercent, amountPercent float64) error {
	return d.call("defrag", func(*buffer.Set) error {
		return mapError(d.engine.Defrag(startPercent, amountPercent), nil)
	})
}

// bounds encodes the keys of b. It reports false when the interval is
// empty, in which case the engine need not be consulted.
func (d *Database[K, V]) bounds(set *buffer.Set, b bound, key1, key2 K) (k1, k2 []byte, ok bool, err error) {
	if b == boundAll {
		return nil, nil, true, nil
	}
	if !d.ordered {
		return nil, nil, false, newError(KindNotSupported, "%s requires an ordered engine, %s is unordered", b.op("range"), d.name)
	}
	if k1, err = d.encodeKey(set, buffer.Key1, key1); err != nil {
		return nil, nil, false, err
	}
	if b != boundBetween {
		return k1, nil, true, nil
	}
	if k2, err = d.encodeKey(set, buffer.Key2, key2); err != nil {
		return nil, nil, false, err
	}
	return k1, k2, bytes.Compare(k1, k2) < 0, nil
}

func (d *Database[K, V]) count(b bound, key1, key2 K) (n uint64, err error) {
	err = d.call(b.op("count"), func(set *buffer.Set) error {
		k1, k2, ok, err := d.bounds(set, b, key1, key2)
		if err != nil || !ok {
			return err
		}
		switch b {
		case boundAbove:
			n, err = d.engine.CountAbove(k1)
		case boundBelow:
			n, err = d.engine.CountBelow(k1)
		case boundBetween:
			n, err = d.engine.CountBetween(k1, k2)
		default:
			n, err = d.engine.CountAll()
		}
		return mapError(err, nil)
	})
	return n, err
}

func (d *Database[K, V]) scan(b bound, key1, key2 K, visit func(*visitor) db.VisitFunc) error {
	return d.call(b.op("get"), func(set *buffer.Set) error {
		k1, k2, ok, err := d.bounds(set, b, key1, key2)
		if err != nil || !ok {
			return err
		}
		v := &visitor{}
		fn := visit(v)
		switch b {
		case boundAbove:
			err = d.engine.GetAbove(k1, fn)
		case boundBelow:
			err = d.engine.GetBelow(k1, fn)
		case boundBetween:
			err = d.engine.GetBetween(k1, k2, fn)
		default:
			err = d.engine.GetAll(fn)
		}
		return v.finish(err)
	})
}

func (d *Database[K, V]) records(fn func(K, V) error) func(*visitor) db.VisitFunc {
	return func(v *visitor) db.VisitFunc { return d.recordVisitor(v, fn) }
}

func (d *Database[K, V]) keysOnly(fn func(K) error) func(*visitor) db.VisitFunc {
	return func(v *visitor) db.VisitFunc { return d.keyVisitor(v, fn) }
}

func (d *Database[K, V]) CountAll() (uint64, error) {
	var zero K
	return d.count(boundAll, zero, zero)
}

// CountAbove counts the keys strictly greater than key.
func (d *Database[K, V]) CountAbove(key K) (uint64, error) {
	return d.count(boundAbove, key, key)
}

// CountBelow counts the keys strictly less than key.
func (d *Database[K, V]) CountBelow(key K) (uint64, error) {
	return d.count(boundBelow, key, key)
}

// CountBetween counts the keys strictly between key1 and key2. It returns 0
// when key1 >= key2.
func (d *Database[K, V]) CountBetween(key1, key2 K) (uint64, error) {
	return d.count(boundBetween, key1, key2)
}

// GetAll calls fn for every record, in key order on ordered engines. The
// scan stops at the first error returned by fn, which is returned as is.
func (d *Database[K, V]) GetAll(fn func(K, V) error) error {
	var zero K
	return d.scan(boundAll, zero, zero, d.records(fn))
}

func (d *Database[K, V]) GetAbove(key K, fn func(K, V) error) error {
	return d.scan(boundAbove, key, key, d.records(fn))
}

func (d *Database[K, V]) GetBelow(key K, fn func(K, V) error) error {
	return d.scan(boundBelow, key, key, d.records(fn))
}

func (d *Database[K, V]) GetBetween(key1, key2 K, fn func(K, V) error) error {
	return d.scan(boundBetween, key1, key2, d.records(fn))
}

// GetKeys is GetAll without decoding values.
func (d *Database[K, V]) GetKeys(fn func(K) error) error {
	var zero K
	return d.scan(boundAll, zero, zero, d.keysOnly(fn))
}

func (d *Database[K, V]) GetKeysAbove(key K, fn func(K) error) error {
	return d.scan(boundAbove, key, key, d.keysOnly(fn))
}

func (d *Database[K, V]) GetKeysBelow(key K, fn func(K) error) error {
	return d.scan(boundBelow, key, key, d.keysOnly(fn))
}

func (d *Database[K, V]) GetKeysBetween(key1, key2 K, fn func(K) error) error {
	return d.scan(boundBetween, key1, key2, d.keysOnly(fn))
}
