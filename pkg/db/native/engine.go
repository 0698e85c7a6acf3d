//go:build darwin || linux

package native

import (
	"runtime"
	"sync/atomic"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

func check(code int32) error {
	return statusError(code, lastError)
}

// newConfig copies cfg into a native config. The caller owns the result until
// it is handed to pmemkv_open.
func newConfig(cfg *db.Config) (uintptr, error) {
	handle := pmemkvConfigNew()
	if handle == 0 {
		return 0, db.Errorf(db.StatusOutOfMemory, "native: unable to allocate config")
	}
	err := cfg.Each(func(key string, value any) error {
		switch v := value.(type) {
		case uint64:
			return check(pmemkvConfigPutUint64(handle, key, v))
		case int64:
			return check(pmemkvConfigPutInt64(handle, key, v))
		case string:
			return check(pmemkvConfigPutString(handle, key, v))
		default:
			return db.Errorf(db.StatusConfigTypeError, "native: unsupported value type %T for %s", value, key)
		}
	})
	if err != nil {
		pmemkvConfigDelete(handle)
		return 0, err
	}
	return handle, nil
}

// Store is an open libpmemkv database.
type Store struct {
	engine  string
	handle  uintptr
	ordered bool
	closed  atomic.Bool
}

func open(engine string, cfg *db.Config) (db.Engine, error) {
	config, err := newConfig(cfg)
	if err != nil {
		return nil, err
	}
	// pmemkv_open takes ownership of config whatever the outcome.
	var handle uintptr
	if err := check(pmemkvOpen(engine, config, &handle)); err != nil {
		return nil, err
	}
	log.Native.Debug().Str("engine", engine).Msg("native engine opened")
	return &Store{engine: engine, handle: handle, ordered: orderedEngines[engine]}, nil
}

func (s *Store) Ordered() bool { return s.ordered }

func (s *Store) Exists(key []byte) (bool, error) {
	code := pmemkvExists(s.handle, ptr(key), uintptr(len(key)))
	runtime.KeepAlive(key)
	if db.Status(code) == db.StatusNotFound {
		return false, nil
	}
	if err := check(code); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Get(key []byte, fn func(value []byte)) error {
	id, release := register(fn)
	defer release()
	code := pmemkvGet(s.handle, ptr(key), uintptr(len(key)), vCallback, id)
	runtime.KeepAlive(key)
	return check(code)
}

func (s *Store) Put(key, value []byte) error {
	code := pmemkvPut(s.handle, ptr(key), uintptr(len(key)), ptr(value), uintptr(len(value)))
	runtime.KeepAlive(key)
	runtime.KeepAlive(value)
	return check(code)
}

func (s *Store) Remove(key []byte) (bool, error) {
	code := pmemkvRemove(s.handle, ptr(key), uintptr(len(key)))
	runtime.KeepAlive(key)
	if db.Status(code) == db.StatusNotFound {
		return false, nil
	}
	if err := check(code); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CountAll() (uint64, error) {
	var n uint64
	return n, check(pmemkvCountAll(s.handle, &n))
}

func (s *Store) CountAbove(key []byte) (uint64, error) {
	var n uint64
	code := pmemkvCountAbove(s.handle, ptr(key), uintptr(len(key)), &n)
	runtime.KeepAlive(key)
	return n, check(code)
}

func (s *Store) CountBelow(key []byte) (uint64, error) {
	var n uint64
	code := pmemkvCountBelow(s.handle, ptr(key), uintptr(len(key)), &n)
	runtime.KeepAlive(key)
	return n, check(code)
}

func (s *Store) CountBetween(key1, key2 []byte) (uint64, error) {
	var n uint64
	code := pmemkvCountBetween(s.handle, ptr(key1), uintptr(len(key1)), ptr(key2), uintptr(len(key2)), &n)
	runtime.KeepAlive(key1)
	runtime.KeepAlive(key2)
	return n, check(code)
}

func (s *Store) GetAll(fn db.VisitFunc) error {
	id, release := register(fn)
	defer release()
	return check(pmemkvGetAll(s.handle, kvCallback, id))
}

func (s *Store) GetAbove(key []byte, fn db.VisitFunc) error {
	id, release := register(fn)
	defer release()
	code := pmemkvGetAbove(s.handle, ptr(key), uintptr(len(key)), kvCallback, id)
	runtime.KeepAlive(key)
	return check(code)
}

func (s *Store) GetBelow(key []byte, fn db.VisitFunc) error {
	id, release := register(fn)
	defer release()
	code := pmemkvGetBelow(s.handle, ptr(key), uintptr(len(key)), kvCallback, id)
	runtime.KeepAlive(key)
	return check(code)
}

func (s *Store) GetBetween(key1, key2 []byte, fn db.VisitFunc) error {
	id, release := register(fn)
	defer release()
	code := pmemkvGetBetween(s.handle, ptr(key1), uintptr(len(key1)), ptr(key2), uintptr(len(key2)), kvCallback, id)
	runtime.KeepAlive(key1)
	runtime.KeepAlive(key2)
	return check(code)
}

func (s *Store) Defrag(startPercent, amountPercent float64) error {
	return check(pmemkvDefrag(s.handle, startPercent, amountPercent))
}

func (s *Store) NewCursor() (db.Cursor, error) {
	var it uintptr
	if err := check(readIterator.new(s.handle, &it)); err != nil {
		return nil, err
	}
	return &cursor{it: it, fns: &readIterator}, nil
}

func (s *Store) NewWriteCursor() (db.WriteCursor, error) {
	var it uintptr
	if err := check(writeIterator.new(s.handle, &it)); err != nil {
		return nil, err
	}
	return &writeCursor{cursor: cursor{it: it, fns: &writeIterator}}, nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	pmemkvClose(s.handle)
	log.Native.Debug().Str("engine", s.engine).Msg("native engine closed")
	return nil
}
