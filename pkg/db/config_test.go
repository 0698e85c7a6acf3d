package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, cfg *Config)
	}{
		{
			name: "typed_getters",
			fn:   testTypedGetters,
		},
		{
			name: "from_json",
			fn:   testFromJSON,
		},
		{
			name: "single_consumption",
			fn:   testSingleConsumption,
		},
		{
			name: "create_options",
			fn:   testCreateOptions,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, NewConfig())
		})
	}
}

func testTypedGetters(t *testing.T, cfg *Config) {
	require.NoError(t, cfg.PutUint64("size", 1024))
	require.NoError(t, cfg.PutString("path", "/tmp/db"))
	require.NoError(t, cfg.PutBool("force_create", true))
	require.NoError(t, cfg.PutInt64("offset", -3))

	size, ok, err := cfg.Uint64("size")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1024), size)

	_, _, err = cfg.Uint64("path")
	assert.Equal(t, StatusConfigTypeError, StatusOf(err))
	_, _, err = cfg.Uint64("offset")
	assert.Equal(t, StatusConfigTypeError, StatusOf(err))
	_, _, err = cfg.String("size")
	assert.Equal(t, StatusConfigTypeError, StatusOf(err))

	asInt, _, err := cfg.Int64("size")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), asInt)

	force, ok, err := cfg.Bool("force_create")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, force)

	_, ok, err = cfg.String("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"force_create", "offset", "path", "size"}, cfg.Keys())
	assert.Equal(t, StatusInvalidArgument, StatusOf(cfg.PutString("", "x")))
}

func testFromJSON(t *testing.T, cfg *Config) {
	require.NoError(t, cfg.FromJSON(`{"path": "/pmem/db", "size": 1073741824, "force_create": true, "delta": -1}`))

	path, _, err := cfg.String("path")
	require.NoError(t, err)
	assert.Equal(t, "/pmem/db", path)
	size, _, err := cfg.Uint64("size")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), size)
	delta, _, err := cfg.Int64("delta")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), delta)

	assert.Equal(t, StatusConfigParsingError, StatusOf(cfg.FromJSON(`{"path": `)))
	assert.Equal(t, StatusConfigTypeError, StatusOf(cfg.FromJSON(`{"nested": {"a": 1}}`)))
	assert.Equal(t, StatusConfigTypeError, StatusOf(cfg.FromJSON(`{"fraction": 1.5}`)))
}

func testSingleConsumption(t *testing.T, cfg *Config) {
	require.NoError(t, cfg.Consume())
	assert.Equal(t, StatusInvalidArgument, StatusOf(cfg.Consume()))
	assert.Equal(t, StatusInvalidArgument, StatusOf(cfg.PutUint64("size", 1)))

	// Delete after consumption does nothing.
	cfg.Delete()

	released := NewConfig()
	released.Delete()
	assert.Equal(t, StatusInvalidArgument, StatusOf(released.Consume()))
}

func testCreateOptions(t *testing.T, cfg *Config) {
	_, err := cfg.CreateOptions(true)
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
	assert.Contains(t, err.Error(), `"path"`)

	require.NoError(t, cfg.PutString(KeyPath, "/data"))
	require.NoError(t, cfg.PutBool(KeyForceCreate, true))
	_, err = cfg.CreateOptions(true)
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
	assert.Contains(t, err.Error(), `"size"`)

	require.NoError(t, cfg.PutUint64(KeySize, 4096))
	opts, err := cfg.CreateOptions(true)
	require.NoError(t, err)
	assert.Equal(t, CreateOptions{Path: "/data", Size: 4096, ForceCreate: true}, opts)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusUnknownError, StatusOf(errors.New("plain")))

	cause := errors.New("disk full")
	err := Wrap(StatusOutOfMemory, cause)
	assert.Equal(t, StatusOutOfMemory, StatusOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(StatusOutOfMemory, nil))

	// Wrapping keeps an existing status.
	assert.Equal(t, StatusNotFound, StatusOf(Wrap(StatusUnknownError, Errorf(StatusNotFound, "gone"))))

	assert.Equal(t, "status(42)", Status(42).String())
	assert.Equal(t, "not found: gone", Errorf(StatusNotFound, "gone").Error())
	assert.True(t, IsNotFound(Errorf(StatusNotFound, "x")))
}
