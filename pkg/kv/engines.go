package kv

import (
	"sort"
	"sync"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/db/bbolt"
	"github.com/eigerco/kvbind/pkg/db/btree"
	"github.com/eigerco/kvbind/pkg/db/hashmap"
	"github.com/eigerco/kvbind/pkg/db/leveldb"
	"github.com/eigerco/kvbind/pkg/db/native"
	"github.com/eigerco/kvbind/pkg/db/pebble"
)

var (
	driversMu sync.RWMutex
	drivers   = map[string]db.Driver{
		"pebble":  pebble.Driver,
		"leveldb": leveldb.Driver,
		"bbolt":   bbolt.Driver,
		"btree":   btree.Driver,
		"hashmap": hashmap.Driver,
	}
)

// RegisterEngine makes d available under name, replacing any driver
// registered before.
func RegisterEngine(name string, d db.Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = d
}

// Engines returns the names of the engines implemented in Go. Any other name
// is looked up in libpmemkv.
func Engines() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// openEngine opens the named engine, consuming cfg.
func openEngine(name string, cfg *db.Config) (db.Engine, error) {
	if name == "" {
		cfg.Delete()
		return nil, newError(KindWrongEngineName, "empty engine name")
	}
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()
	if ok {
		e, err := d.Open(cfg)
		return e, mapError(err, nil)
	}

	if err := native.Load(); err != nil {
		cfg.Delete()
		return nil, &Error{Kind: KindWrongEngineName, Message: "unknown engine " + name, Err: err}
	}
	e, err := native.Driver(name).Open(cfg)
	return e, mapError(err, nil)
}
