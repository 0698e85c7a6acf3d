// Package native exposes the engines of libpmemkv through the db.Engine
// boundary. The shared library is loaded lazily on first use.
package native

import (
	"os"
	"runtime"
	"sync"

	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

// LibraryEnv names the environment variable that overrides the library path.
const LibraryEnv = "PMEMKV_LIBRARY"

var (
	loadOnce sync.Once
	loadErr  error
)

// Load loads libpmemkv and resolves its symbols. Only the first call does any
// work; later calls return the result of the first.
func Load() error {
	loadOnce.Do(func() {
		path := LibraryPath()
		loadErr = load(path)
		if loadErr != nil {
			log.Native.Error().Err(loadErr).Str("library", path).Msg("unable to load native library")
			return
		}
		log.Native.Debug().Str("library", path).Msg("native library loaded")
	})
	return loadErr
}

// LibraryPath returns the path Load uses: the value of PMEMKV_LIBRARY if set,
// otherwise the platform's default soname.
func LibraryPath() string {
	if path := os.Getenv(LibraryEnv); path != "" {
		return path
	}
	if runtime.GOOS == "darwin" {
		return "libpmemkv.1.dylib"
	}
	return "libpmemkv.so.1"
}

// orderedEngines are the libpmemkv engines that keep keys sorted. Engines
// not listed here are reported as unordered.
var orderedEngines = map[string]bool{
	"vsmap": true,
	"csmap": true,
	"stree": true,
	"radix": true,
	"tree3": true,
}

// Driver returns a driver opening the named libpmemkv engine.
func Driver(engine string) db.Driver {
	return db.DriverFunc(func(cfg *db.Config) (db.Engine, error) {
		if err := Load(); err != nil {
			cfg.Delete()
			return nil, db.Wrap(db.StatusUnknownError, err)
		}
		if err := cfg.Consume(); err != nil {
			return nil, err
		}
		return open(engine, cfg)
	})
}

// statusError converts a libpmemkv status code. Codes outside the known
// range are reported as StatusUnknownError.
func statusError(code int32, msg func() string) error {
	st := db.Status(code)
	if st == db.StatusOK {
		return nil
	}
	if st < db.StatusOK || st > db.StatusDefragError {
		st = db.StatusUnknownError
	}
	return &db.StatusError{Status: st, Msg: msg()}
}
