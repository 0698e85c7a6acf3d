package kv

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvbind/pkg/converter"
)

type openFunc func(t *testing.T) *Database[string, string]

// orderedEngines opens every ordered Go engine with string keys and values.
var orderedEngines = map[string]openFunc{
	"btree": func(t *testing.T) *Database[string, string] {
		return build(t, NewBuilder[string, string]("btree"))
	},
	"pebble": func(t *testing.T) *Database[string, string] {
		return build(t, NewBuilder[string, string]("pebble").SetOption("in_memory", true))
	},
	"leveldb": func(t *testing.T) *Database[string, string] {
		return build(t, NewBuilder[string, string]("leveldb").SetOption("in_memory", true))
	},
	"bbolt": func(t *testing.T) *Database[string, string] {
		return build(t, NewBuilder[string, string]("bbolt").
			SetPath(filepath.Join(t.TempDir(), "kv.db")).
			SetSize(1<<20).
			SetForceCreate(true))
	},
}

func build[K, V any](t *testing.T, b *Builder[K, V]) *Database[K, V] {
	t.Helper()
	d, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

var scenario = [][2]string{{"A", "1"}, {"AB", "2"}, {"AC", "3"}, {"B", "4"}, {"BB", "5"}, {"BC", "6"}}

func fill(t *testing.T, d *Database[string, string]) {
	t.Helper()
	for _, r := range scenario {
		require.NoError(t, d.Put(r[0], r[1]))
	}
}

func collect(t *testing.T, scan func(fn func(k, v string) error) error) []string {
	t.Helper()
	var out []string
	require.NoError(t, scan(func(k, v string) error {
		out = append(out, k+"="+v)
		return nil
	}))
	return out
}

func TestDatabase(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, d *Database[string, string])
	}{
		{name: "round_trip", fn: testRoundTrip},
		{name: "remove", fn: testRemove},
		{name: "count", fn: testCount},
		{name: "scenario", fn: testScenario},
		{name: "partition", fn: testPartition},
		{name: "empty_between", fn: testEmptyBetween},
		{name: "keys_only", fn: testKeysOnly},
		{name: "callback_error", fn: testCallbackError},
		{name: "callback_panic", fn: testCallbackPanic},
		{name: "reentrant_callback", fn: testReentrantCallback},
	}

	for engine, open := range orderedEngines {
		for _, tc := range tests {
			t.Run(engine+"/"+tc.name, func(t *testing.T) {
				d := open(t)
				assert.True(t, d.Ordered())
				tc.fn(t, d)
			})
		}
	}
}

func testRoundTrip(t *testing.T, d *Database[string, string]) {
	for i, v := range []string{"", "value", string(make([]byte, 4096))} {
		key := fmt.Sprintf("key%d", i)
		require.NoError(t, d.Put(key, v))

		got, found, err := d.GetCopy(key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, v, got)
	}

	_, found, err := d.GetCopy("missing")
	require.NoError(t, err)
	assert.False(t, found)

	called := false
	require.NoError(t, d.Get("missing", func(string) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func testRemove(t *testing.T, d *Database[string, string]) {
	require.NoError(t, d.Put("k", "v"))

	removed, err := d.Remove("k")
	require.NoError(t, err)
	assert.True(t, removed)

	exists, err := d.Exists("k")
	require.NoError(t, err)
	assert.False(t, exists)

	removed, err = d.Remove("k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func testCount(t *testing.T, d *Database[string, string]) {
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Put(fmt.Sprintf("key%02d", i), "v"))
	}
	n, err := d.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), n)

	require.NoError(t, d.Put("key07", "overwritten"))
	n, err = d.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), n)
}

func testScenario(t *testing.T, d *Database[string, string]) {
	fill(t, d)

	assert.Equal(t, []string{"BB=5", "BC=6"}, collect(t, func(fn func(k, v string) error) error {
		return d.GetAbove("B", fn)
	}))
	assert.Equal(t, []string{"A=1", "AB=2", "AC=3"}, collect(t, func(fn func(k, v string) error) error {
		return d.GetBelow("B", fn)
	}))
	assert.Equal(t, []string{"AB=2", "AC=3"}, collect(t, func(fn func(k, v string) error) error {
		return d.GetBetween("A", "B", fn)
	}))

	n, err := d.CountBetween("A", "B")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	n, err = d.CountAbove("B")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	n, err = d.CountBelow("B")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func testPartition(t *testing.T, d *Database[string, string]) {
	fill(t, d)
	all, err := d.CountAll()
	require.NoError(t, err)

	for _, b := range []string{"", "A", "AA", "AB", "B", "BA", "BC", "C"} {
		below, err := d.CountBelow(b)
		require.NoError(t, err)
		above, err := d.CountAbove(b)
		require.NoError(t, err)
		present, err := d.Exists(b)
		require.NoError(t, err)
		if present {
			below++
		}
		assert.Equal(t, all, below+above, "bound %q", b)
	}
}

func testEmptyBetween(t *testing.T, d *Database[string, string]) {
	fill(t, d)
	for _, bounds := range [][2]string{{"B", "A"}, {"AB", "AB"}, {"C", ""}} {
		n, err := d.CountBetween(bounds[0], bounds[1])
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, collect(t, func(fn func(k, v string) error) error {
			return d.GetBetween(bounds[0], bounds[1], fn)
		}))
	}
}

func testKeysOnly(t *testing.T, d *Database[string, string]) {
	fill(t, d)
	var keys []string
	require.NoError(t, d.GetKeysAbove("AB", func(k string) error {
		keys = append(keys, k)
		return nil
	}))
	assert.Equal(t, []string{"AC", "B", "BB", "BC"}, keys)

	keys = nil
	require.NoError(t, d.GetKeysBetween("A", "BB", func(k string) error {
		keys = append(keys, k)
		return nil
	}))
	assert.Equal(t, []string{"AB", "AC", "B"}, keys)
}

type callbackError struct{ at string }

func (e *callbackError) Error() string { return "stopped at " + e.at }

func testCallbackError(t *testing.T, d *Database[string, string]) {
	fill(t, d)
	expected := &callbackError{at: "B"}

	for run := 0; run < 2; run++ {
		var visited []string
		err := d.GetAll(func(k, v string) error {
			if k == "B" {
				return expected
			}
			visited = append(visited, k)
			return nil
		})
		assert.Same(t, expected, err)
		assert.Equal(t, []string{"A", "AB", "AC"}, visited)
	}

	sentinel := errors.New("stop")
	err := d.GetKeys(func(string) error { return sentinel })
	assert.Equal(t, sentinel, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func testCallbackPanic(t *testing.T, d *Database[string, string]) {
	fill(t, d)
	visited := 0
	assert.PanicsWithValue(t, "boom", func() {
		_ = d.GetAll(func(k, v string) error {
			visited++
			if k == "AB" {
				panic("boom")
			}
			return nil
		})
	})
	assert.Equal(t, 2, visited)

	// The database stays usable.
	n, err := d.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(scenario)), n)
}

func testReentrantCallback(t *testing.T, d *Database[string, string]) {
	fill(t, d)
	require.NoError(t, d.GetBelow("B", func(k, v string) error {
		got, found, err := d.GetCopy(k)
		if err != nil || !found || got != v {
			return fmt.Errorf("lookup of %s inside scan: %q %v %v", k, got, found, err)
		}
		return nil
	}))
}

func TestUnorderedEngine(t *testing.T) {
	d := build(t, NewBuilder[string, string]("hashmap"))
	assert.False(t, d.Ordered())
	fill(t, d)

	n, err := d.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(scenario)), n)

	var expected []string
	for _, r := range scenario {
		expected = append(expected, r[0]+"="+r[1])
	}
	assert.ElementsMatch(t, expected, collect(t, d.GetAll))

	noop := func(k, v string) error { return nil }
	for name, err := range map[string]error{
		"get_above":   d.GetAbove("A", noop),
		"get_below":   d.GetBelow("A", noop),
		"get_between": d.GetBetween("A", "B", noop),
		"keys_above":  d.GetKeysAbove("A", func(string) error { return nil }),
		"count_above": func() error { _, err := d.CountAbove("A"); return err }(),
		"count_below": func() error { _, err := d.CountBelow("A"); return err }(),
		"count_between": func() error {
			_, err := d.CountBetween("B", "A")
			return err
		}(),
	} {
		assert.ErrorIs(t, err, ErrNotSupported, name)
	}
}

func TestStop(t *testing.T) {
	d, err := NewBuilder[string, string]("btree").Build()
	require.NoError(t, err)
	require.NoError(t, d.Put("k", "v"))
	value, _, err := d.GetCopy("k")
	require.NoError(t, err)

	assert.False(t, d.Stopped())
	require.NoError(t, d.Stop())
	assert.True(t, d.Stopped())
	require.NoError(t, d.Stop())
	assert.True(t, d.Stopped())
	<-d.Done()

	// Results obtained before Stop stay valid.
	assert.Equal(t, "v", value)

	_, err = d.Exists("k")
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, d.Put("k", "v"), ErrStopped)
	assert.ErrorIs(t, d.GetAll(func(k, v string) error { return nil }), ErrStopped)
	_, err = d.NewIterator()
	assert.ErrorIs(t, err, ErrStopped)
	_, err = d.NewWriteIterator()
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopInsideCallback(t *testing.T) {
	d, err := NewBuilder[string, string]("btree").Build()
	require.NoError(t, err)
	fill(t, d)

	visited := 0
	require.NoError(t, d.GetAll(func(k, v string) error {
		visited++
		if k == "AB" {
			require.NoError(t, d.Stop())
			select {
			case <-d.Done():
				t.Error("engine closed while a scan was running")
			default:
			}
		}
		return nil
	}))
	assert.Equal(t, len(scenario), visited)
	<-d.Done()
	assert.NoError(t, d.Err())
}

func TestBufferOverflow(t *testing.T) {
	d := build(t, NewBuilder[[]byte, []byte]("btree").SetBufferSize(16))

	large := make([]byte, 64)
	for i := range large {
		large[i] = byte(i)
	}
	require.NoError(t, d.Put([]byte("small"), []byte("value")))
	assert.Zero(t, d.Overflows())

	require.NoError(t, d.Put([]byte("large"), large))
	assert.Equal(t, uint64(1), d.Overflows())

	got, found, err := d.GetCopy([]byte("large"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, large, got)
}

func TestConverters(t *testing.T) {
	d := build(t, NewBuilder[int64, []string]("btree").SetValueConverter(converter.JSON[[]string]{}))

	for _, k := range []int64{-5, 3, 0, -100, 42} {
		require.NoError(t, d.Put(k, []string{fmt.Sprint(k)}))
	}
	var keys []int64
	require.NoError(t, d.GetKeys(func(k int64) error {
		keys = append(keys, k)
		return nil
	}))
	assert.Equal(t, []int64{-100, -5, 0, 3, 42}, keys)

	n, err := d.CountBelow(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	v, found, err := d.GetCopy(42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"42"}, v)
}

func TestDecodeFailure(t *testing.T) {
	// Values that cannot be decoded stop the scan with an invalid argument
	// error instead of reaching the callback.
	bad := build(t, NewBuilder[string, uint64]("hashmap").SetValueConverter(truncating{}))
	require.NoError(t, bad.Put("k", 7))
	err := bad.GetAll(func(string, uint64) error {
		t.Fatal("callback reached with an undecodable value")
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// truncating writes one byte less than converter.Uint64 expects to read.
type truncating struct{ converter.Uint64 }

func (truncating) ToBytes(v uint64) ([]byte, error) {
	b, err := converter.Uint64{}.ToBytes(v)
	return b[1:], err
}

func (truncating) AppendBytes(dst []byte, v uint64) ([]byte, error) {
	b, err := converter.Uint64{}.ToBytes(v)
	return append(dst, b[1:]...), err
}

func TestStats(t *testing.T) {
	d := build(t, NewBuilder[string, string]("btree").EnableStats())
	fill(t, d)
	_, _, err := d.GetCopy("A")
	require.NoError(t, err)

	stats := d.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "get", stats[0].Op)
	assert.Equal(t, uint64(1), stats[0].Count)
	assert.Equal(t, "put", stats[1].Op)
	assert.Equal(t, uint64(len(scenario)), stats[1].Count)
	assert.Zero(t, stats[1].Errors)

	plain := build(t, NewBuilder[string, string]("btree"))
	assert.Nil(t, plain.Stats())
}
