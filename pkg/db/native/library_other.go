//go:build !(darwin || linux)

package native

import (
	"errors"
	"runtime"

	"github.com/eigerco/kvbind/pkg/db"
)

func load(string) error {
	return errors.New("native engines are not available on " + runtime.GOOS)
}

func open(string, *db.Config) (db.Engine, error) {
	return nil, db.Errorf(db.StatusNotSupported, "native engines are not available on %s", runtime.GOOS)
}
