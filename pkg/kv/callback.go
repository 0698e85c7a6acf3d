package kv

import "github.com/eigerco/kvbind/pkg/db"

// visitor carries the outcome of user callbacks across an engine scan. The
// engine only sees "continue" or "stop"; the error or panic that caused a
// stop is kept here and surfaced once the engine call has returned.
type visitor struct {
	err      error
	panicked bool
	panicVal any
}

// run invokes fn and converts its outcome into an engine visit result.
func (v *visitor) run(fn func() error) (result int) {
	defer func() {
		if r := recover(); r != nil {
			v.panicked, v.panicVal = true, r
			result = 1
		}
	}()
	if err := fn(); err != nil {
		v.err = err
		return 1
	}
	return 0
}

// finish returns the result of the scan: a captured panic is re-raised, a
// captured error is returned as is and an engine error is mapped.
func (v *visitor) finish(engineErr error) error {
	if v.panicked {
		panic(v.panicVal)
	}
	if v.err != nil {
		return v.err
	}
	return mapError(engineErr, nil)
}

// recordVisitor resolves the typed callback once and returns the visit
// function handed to the engine for the whole scan.
func (d *Database[K, V]) recordVisitor(v *visitor, fn func(K, V) error) db.VisitFunc {
	return func(rawKey, rawValue []byte) int {
		return v.run(func() error {
			key, err := d.decodeKey(rawKey)
			if err != nil {
				return err
			}
			value, err := d.decodeValue(rawValue)
			if err != nil {
				return err
			}
			return fn(key, value)
		})
	}
}

// keyVisitor is recordVisitor for key only scans; values are not decoded.
func (d *Database[K, V]) keyVisitor(v *visitor, fn func(K) error) db.VisitFunc {
	return func(rawKey, _ []byte) int {
		return v.run(func() error {
			key, err := d.decodeKey(rawKey)
			if err != nil {
				return err
			}
			return fn(key)
		})
	}
}

// valueVisitor adapts a point lookup callback.
func (d *Database[K, V]) valueVisitor(v *visitor, fn func(V) error) func([]byte) {
	return func(rawValue []byte) {
		v.run(func() error {
			value, err := d.decodeValue(rawValue)
			if err != nil {
				return err
			}
			return fn(value)
		})
	}
}
