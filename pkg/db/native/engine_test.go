//go:build darwin || linux

package native

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvbind/internal/testutils"
	"github.com/eigerco/kvbind/pkg/db"
)

// These tests run against a real libpmemkv and are skipped unless
// PMEMKV_LIBRARY points at one.
func requireLibrary(t *testing.T) {
	if os.Getenv(LibraryEnv) == "" {
		t.Skipf("%s not set", LibraryEnv)
	}
	require.NoError(t, Load())
}

func TestVolatileSortedMap(t *testing.T) {
	requireLibrary(t)

	testutils.RunOrderedSuite(t, func(t *testing.T) db.Engine {
		dir := filepath.Join(t.TempDir(), "vsmap")
		require.NoError(t, os.Mkdir(dir, 0o755))

		cfg := db.NewConfig()
		require.NoError(t, cfg.PutString(db.KeyPath, dir))
		require.NoError(t, cfg.PutUint64(db.KeySize, 64<<20))
		e, err := Driver("vsmap").Open(cfg)
		require.NoError(t, err)
		return e
	})
}

func TestWrongEngineName(t *testing.T) {
	requireLibrary(t)

	_, err := Driver("no-such-engine").Open(db.NewConfig())
	require.Equal(t, db.StatusWrongEngineName, db.StatusOf(err))
}
