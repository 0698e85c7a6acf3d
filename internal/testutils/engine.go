// Package testutils holds the conformance checks every engine behind the
// db.Engine boundary has to pass.
package testutils

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvbind/pkg/db"
)

// OpenFunc opens a fresh, empty engine for one subtest.
type OpenFunc func(t *testing.T) db.Engine

// Scenario is the six record data set used by the range checks.
var Scenario = [][2]string{{"A", "1"}, {"AB", "2"}, {"AC", "3"}, {"B", "4"}, {"BB", "5"}, {"BC", "6"}}

func RandomKey(t *testing.T, n int) []byte {
	key := make([]byte, n)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func Fill(t *testing.T, e db.Engine, records [][2]string) {
	t.Helper()
	for _, r := range records {
		require.NoError(t, e.Put([]byte(r[0]), []byte(r[1])))
	}
}

func Collect(t *testing.T, scan func(db.VisitFunc) error) []string {
	t.Helper()
	var out []string
	require.NoError(t, scan(func(k, v []byte) int {
		out = append(out, string(k)+"="+string(v))
		return 0
	}))
	return out
}

// RunOrderedSuite checks the full boundary contract of an ordered engine.
func RunOrderedSuite(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, e db.Engine)
	}{
		{name: "point_operations", fn: testPointOperations},
		{name: "count_and_overwrite", fn: testCountAndOverwrite},
		{name: "byte_wise_order", fn: testByteWiseOrder},
		{name: "exclusive_ranges", fn: testExclusiveRanges},
		{name: "partition", fn: testPartition},
		{name: "stop_by_callback", fn: testStopByCallback},
		{name: "cursor_seeks", fn: testCursorSeeks},
		{name: "write_cursor", fn: testWriteCursor},
		{name: "random_keys", fn: testRandomKeys},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := open(t)
			defer e.Close() //nolint:errcheck

			assert.True(t, e.Ordered())
			tc.fn(t, e)
		})
	}
}

func testPointOperations(t *testing.T, e db.Engine) {
	key, value := []byte("test-key"), []byte("test-value")

	require.NoError(t, e.Put(key, value))

	var got []byte
	require.NoError(t, e.Get(key, func(v []byte) { got = append([]byte(nil), v...) }))
	assert.Equal(t, value, got)

	exists, err := e.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	err = e.Get([]byte("non-existent"), func([]byte) { t.Fatal("callback invoked for a missing key") })
	assert.True(t, db.IsNotFound(err))

	removed, err := e.Remove(key)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = e.Remove(key)
	require.NoError(t, err)
	assert.False(t, removed)

	exists, err = e.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Empty values are values.
	require.NoError(t, e.Put([]byte("empty"), nil))
	exists, err = e.Exists([]byte("empty"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func testCountAndOverwrite(t *testing.T, e db.Engine) {
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Put([]byte(fmt.Sprintf("key%02d", i)), []byte("v")))
	}
	n, err := e.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)

	require.NoError(t, e.Put([]byte("key03"), []byte("overwritten")))
	n, err = e.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)

	var got string
	require.NoError(t, e.Get([]byte("key03"), func(v []byte) { got = string(v) }))
	assert.Equal(t, "overwritten", got)
}

func testByteWiseOrder(t *testing.T, e db.Engine) {
	Fill(t, e, [][2]string{{"\xff", "high"}, {"\x00", "low"}, {"a", "mid"}, {"\x7f", "ascii-end"}, {"\x80", "unsigned"}})
	assert.Equal(t,
		[]string{"\x00=low", "a=mid", "\x7f=ascii-end", "\x80=unsigned", "\xff=high"},
		Collect(t, e.GetAll))
}

func testExclusiveRanges(t *testing.T, e db.Engine) {
	Fill(t, e, Scenario)

	assert.Equal(t, []string{"BB=5", "BC=6"}, Collect(t, func(fn db.VisitFunc) error { return e.GetAbove([]byte("B"), fn) }))
	assert.Equal(t, []string{"A=1", "AB=2", "AC=3"}, Collect(t, func(fn db.VisitFunc) error { return e.GetBelow([]byte("B"), fn) }))
	assert.Equal(t, []string{"AB=2", "AC=3"}, Collect(t, func(fn db.VisitFunc) error { return e.GetBetween([]byte("A"), []byte("B"), fn) }))

	n, err := e.CountBetween([]byte("A"), []byte("B"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	for _, bounds := range [][2]string{{"B", "A"}, {"B", "B"}, {"BC", "A"}} {
		n, err := e.CountBetween([]byte(bounds[0]), []byte(bounds[1]))
		require.NoError(t, err)
		assert.Zero(t, n, "between %q and %q", bounds[0], bounds[1])
		assert.Empty(t, Collect(t, func(fn db.VisitFunc) error { return e.GetBetween([]byte(bounds[0]), []byte(bounds[1]), fn) }))
	}
}

func testPartition(t *testing.T, e db.Engine) {
	Fill(t, e, Scenario)
	all, err := e.CountAll()
	require.NoError(t, err)

	for _, b := range []string{"", "A", "AA", "AC", "B", "BD", "Z"} {
		below, err := e.CountBelow([]byte(b))
		require.NoError(t, err)
		above, err := e.CountAbove([]byte(b))
		require.NoError(t, err)
		present, err := e.Exists([]byte(b))
		require.NoError(t, err)
		extra := uint64(0)
		if present {
			extra = 1
		}
		assert.Equal(t, all, below+extra+above, "bound %q", b)
	}
}

func testStopByCallback(t *testing.T, e db.Engine) {
	Fill(t, e, Scenario)
	for run := 0; run < 2; run++ {
		visited := 0
		err := e.GetAll(func(k, v []byte) int {
			if string(k) == "B" {
				return 1
			}
			visited++
			return 0
		})
		assert.Equal(t, db.StatusStoppedByCallback, db.StatusOf(err))
		assert.Equal(t, 3, visited)
	}
}

func testCursorSeeks(t *testing.T, e db.Engine) {
	for i := 1; i <= 5; i++ {
		require.NoError(t, e.Put([]byte(fmt.Sprintf("key%d", i)), []byte(fmt.Sprintf("value%d", i))))
	}
	c, err := e.NewCursor()
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	keyIs := func(expected string) {
		t.Helper()
		k, err := c.Key()
		require.NoError(t, err)
		assert.Equal(t, expected, string(k))
	}

	require.NoError(t, c.SeekLower([]byte("key3")))
	keyIs("key2")
	assert.True(t, db.IsNotFound(c.SeekLower([]byte("key1"))))

	require.NoError(t, c.SeekLowerEq([]byte("key3")))
	keyIs("key3")
	require.NoError(t, c.SeekHigher([]byte("key3")))
	keyIs("key4")
	require.NoError(t, c.SeekHigherEq([]byte("key3")))
	keyIs("key3")
	assert.True(t, db.IsNotFound(c.SeekHigher([]byte("key5"))))

	require.NoError(t, c.SeekToFirst())
	keyIs("key1")
	require.NoError(t, c.Next())
	keyIs("key2")
	ok, err := c.IsPrev()
	require.NoError(t, err)
	assert.True(t, ok)
	keyIs("key2")

	require.NoError(t, c.SeekToLast())
	keyIs("key5")
	ok, err = c.IsNext()
	require.NoError(t, err)
	assert.False(t, ok)
	keyIs("key5")
	assert.True(t, db.IsNotFound(c.Next()))

	require.NoError(t, c.Seek([]byte("key4")))
	v, err := c.ReadRange(0, 100)
	require.NoError(t, err)
	assert.Equal(t, "value4", string(v))
	assert.True(t, db.IsNotFound(c.Seek([]byte("key0"))))
}

func testWriteCursor(t *testing.T, e db.Engine) {
	Fill(t, e, [][2]string{{"a", "0000"}, {"b", "1111"}})

	w, err := e.NewWriteCursor()
	require.NoError(t, err)

	require.NoError(t, w.Seek([]byte("b")))
	region, err := w.WriteRange(2, 2)
	require.NoError(t, err)
	copy(region, "xy")
	require.NoError(t, w.Commit())

	v, err := w.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "11xy", string(v))
	require.NoError(t, w.Close())

	var got string
	require.NoError(t, e.Get([]byte("b"), func(v []byte) { got = string(v) }))
	assert.Equal(t, "11xy", got)
}

func testRandomKeys(t *testing.T, e db.Engine) {
	keys := make(map[string]bool)
	for i := 0; i < 64; i++ {
		k := RandomKey(t, 16)
		keys[string(k)] = true
		require.NoError(t, e.Put(k, k))
	}
	n, err := e.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(keys)), n)

	var prev []byte
	require.NoError(t, e.GetAll(func(k, v []byte) int {
		if prev != nil {
			assert.Less(t, string(prev), string(k))
		}
		assert.Equal(t, k, v)
		prev = append(prev[:0], k...)
		return 0
	}))
}

// RunUnorderedSuite checks the boundary contract of an engine without key
// order: point operations and full scans work, everything range based fails
// with StatusNotSupported.
func RunUnorderedSuite(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, e db.Engine)
	}{
		{name: "point_operations", fn: testPointOperations},
		{name: "count_and_overwrite", fn: testCountAndOverwrite},
		{name: "ranges_not_supported", fn: testRangesNotSupported},
		{name: "full_scan", fn: testFullScan},
		{name: "forward_cursor", fn: testForwardCursor},
		{name: "write_cursor", fn: testWriteCursor},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := open(t)
			defer e.Close() //nolint:errcheck

			assert.False(t, e.Ordered())
			tc.fn(t, e)
		})
	}
}

func testRangesNotSupported(t *testing.T, e db.Engine) {
	Fill(t, e, Scenario)
	noop := func(k, v []byte) int { return 0 }

	for name, fn := range map[string]func() error{
		"count_above":   func() error { _, err := e.CountAbove([]byte("A")); return err },
		"count_below":   func() error { _, err := e.CountBelow([]byte("A")); return err },
		"count_between": func() error { _, err := e.CountBetween([]byte("A"), []byte("B")); return err },
		"get_above":     func() error { return e.GetAbove([]byte("A"), noop) },
		"get_below":     func() error { return e.GetBelow([]byte("A"), noop) },
		"get_between":   func() error { return e.GetBetween([]byte("A"), []byte("B"), noop) },
	} {
		assert.Equal(t, db.StatusNotSupported, db.StatusOf(fn()), name)
	}
}

func testFullScan(t *testing.T, e db.Engine) {
	Fill(t, e, Scenario)

	var expected []string
	for _, r := range Scenario {
		expected = append(expected, r[0]+"="+r[1])
	}
	assert.ElementsMatch(t, expected, Collect(t, e.GetAll))

	visited := 0
	err := e.GetAll(func(k, v []byte) int {
		visited++
		return 1
	})
	assert.Equal(t, db.StatusStoppedByCallback, db.StatusOf(err))
	assert.Equal(t, 1, visited)
}

func testForwardCursor(t *testing.T, e db.Engine) {
	Fill(t, e, Scenario)
	c, err := e.NewCursor()
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	require.NoError(t, c.Seek([]byte("AC")))
	v, err := c.ReadRange(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))
	assert.True(t, db.IsNotFound(c.Seek([]byte("missing"))))

	seen := 0
	for err := c.SeekToFirst(); err == nil; err = c.Next() {
		seen++
	}
	assert.Equal(t, len(Scenario), seen)

	assert.Equal(t, db.StatusNotSupported, db.StatusOf(c.SeekToLast()))
	assert.Equal(t, db.StatusNotSupported, db.StatusOf(c.SeekLower([]byte("B"))))
	assert.Equal(t, db.StatusNotSupported, db.StatusOf(c.Prev()))
	_, err = c.IsPrev()
	assert.Equal(t, db.StatusNotSupported, db.StatusOf(err))
}
