package db

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slicePositioner iterates a sorted snapshot of records.
type slicePositioner struct {
	keys, values [][]byte
	pos          int
	closed       bool
}

func newSlicePositioner(data map[string]string) *slicePositioner {
	p := &slicePositioner{pos: -1}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.keys = append(p.keys, []byte(k))
		p.values = append(p.values, []byte(data[k]))
	}
	return p
}

func (p *slicePositioner) set(i int) bool {
	if i < 0 || i >= len(p.keys) {
		p.pos = -1
		return false
	}
	p.pos = i
	return true
}

func (p *slicePositioner) First() bool { return p.set(0) }
func (p *slicePositioner) Last() bool  { return p.set(len(p.keys) - 1) }
func (p *slicePositioner) SeekGE(key []byte) bool {
	return p.set(sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) >= 0 }))
}
func (p *slicePositioner) SeekLT(key []byte) bool {
	return p.set(sort.Search(len(p.keys), func(i int) bool { return bytes.Compare(p.keys[i], key) >= 0 }) - 1)
}
func (p *slicePositioner) Next() bool    { return p.pos >= 0 && p.set(p.pos+1) }
func (p *slicePositioner) Prev() bool    { return p.pos >= 0 && p.set(p.pos-1) }
func (p *slicePositioner) Valid() bool   { return p.pos >= 0 }
func (p *slicePositioner) Key() []byte   { return p.keys[p.pos] }
func (p *slicePositioner) Value() []byte { return p.values[p.pos] }
func (p *slicePositioner) Close() error  { p.closed = true; return nil }

var scenario = map[string]string{"A": "1", "AB": "2", "AC": "3", "B": "4", "BB": "5", "BC": "6"}

func scansOver(data map[string]string) OrderedScans {
	return OrderedScans{Open: func() (Positioner, error) { return newSlicePositioner(data), nil }}
}

func collect(t *testing.T, visit func(VisitFunc) error) []string {
	t.Helper()
	var out []string
	require.NoError(t, visit(func(k, v []byte) int {
		out = append(out, string(k)+"="+string(v))
		return 0
	}))
	return out
}

func TestOrderedScans(t *testing.T) {
	s := scansOver(scenario)

	n, err := s.CountAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)

	n, err = s.CountBetween([]byte("A"), []byte("B"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, err = s.CountBetween([]byte("B"), []byte("A"))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.CountBetween([]byte("B"), []byte("B"))
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []string{"BB=5", "BC=6"}, collect(t, func(fn VisitFunc) error { return s.GetAbove([]byte("B"), fn) }))
	assert.Equal(t, []string{"A=1", "AB=2", "AC=3"}, collect(t, func(fn VisitFunc) error { return s.GetBelow([]byte("B"), fn) }))
	assert.Len(t, collect(t, s.GetAll), 6)

	// Partition: below + present + above == all, for present and absent bounds.
	for _, b := range []string{"A", "AB", "B", "BA", "C", ""} {
		below, err := s.CountBelow([]byte(b))
		require.NoError(t, err)
		above, err := s.CountAbove([]byte(b))
		require.NoError(t, err)
		present := uint64(0)
		if _, ok := scenario[b]; ok {
			present = 1
		}
		assert.Equal(t, uint64(6), below+present+above, "bound %q", b)
	}
}

func TestOrderedScansStop(t *testing.T) {
	s := scansOver(scenario)
	visited := 0
	err := s.GetAll(func(k, v []byte) int {
		visited++
		if string(k) == "AC" {
			return 1
		}
		return 0
	})
	assert.Equal(t, StatusStoppedByCallback, StatusOf(err))
	assert.Equal(t, 3, visited)
}

func TestOrderedCursor(t *testing.T) {
	data := map[string]string{"key1": "v1", "key2": "v2", "key3": "v3", "key5": "v5"}
	c := NewOrderedCursor(newSlicePositioner(data), nil)
	defer c.Close() //nolint:errcheck

	keyIs := func(expected string) {
		t.Helper()
		k, err := c.Key()
		require.NoError(t, err)
		assert.Equal(t, expected, string(k))
	}

	require.NoError(t, c.SeekLower([]byte("key3")))
	keyIs("key2")

	assert.True(t, IsNotFound(c.SeekLower([]byte("key1"))))
	_, err := c.Key()
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))

	require.NoError(t, c.SeekLowerEq([]byte("key3")))
	keyIs("key3")
	require.NoError(t, c.SeekLowerEq([]byte("key4")))
	keyIs("key3")
	require.NoError(t, c.SeekHigher([]byte("key3")))
	keyIs("key5")
	require.NoError(t, c.SeekHigherEq([]byte("key4")))
	keyIs("key5")
	assert.True(t, IsNotFound(c.SeekHigher([]byte("key5"))))

	assert.True(t, IsNotFound(c.Seek([]byte("key4"))))
	require.NoError(t, c.Seek([]byte("key2")))

	ok, err := c.IsNext()
	require.NoError(t, err)
	assert.True(t, ok)
	keyIs("key2")

	require.NoError(t, c.SeekToLast())
	keyIs("key5")
	ok, err = c.IsNext()
	require.NoError(t, err)
	assert.False(t, ok)
	keyIs("key5")
	ok, err = c.IsPrev()
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, IsNotFound(c.Next()))
	require.NoError(t, c.SeekToFirst())
	keyIs("key1")
	assert.True(t, IsNotFound(c.Prev()))

	require.NoError(t, c.SeekToFirst())
	v, err := c.ReadRange(1, 10)
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
	_, err = c.ReadRange(3, 1)
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
}

func TestOrderedWriteCursor(t *testing.T) {
	data := map[string]string{"a": "aaaa", "b": "bbbb"}
	written := map[string]string{}
	c := NewOrderedCursor(newSlicePositioner(data), func(k, v []byte) error {
		written[string(k)] = string(v)
		return nil
	})
	w, ok := c.(WriteCursor)
	require.True(t, ok)

	require.NoError(t, w.Seek([]byte("a")))
	region, err := w.WriteRange(1, 2)
	require.NoError(t, err)
	copy(region, "XY")

	v, err := w.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "aXYa", string(v))

	require.NoError(t, w.Commit())
	assert.Equal(t, "aXYa", written["a"])
	v, err = w.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "aXYa", string(v))

	// Uncommitted changes are dropped on abort and on movement.
	region, err = w.WriteRange(0, 1)
	require.NoError(t, err)
	copy(region, "Z")
	require.NoError(t, w.Abort())
	v, err = w.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "aXYa", string(v))

	require.NoError(t, w.Next())
	region, err = w.WriteRange(0, 1)
	require.NoError(t, err)
	copy(region, "Q")
	require.NoError(t, w.Prev())
	require.NoError(t, w.Commit())
	_, touched := written["b"]
	assert.False(t, touched)
}

func TestWindow(t *testing.T) {
	v, err := Window([]byte("abcdef"), 2, 100)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(v))

	v, err = Window([]byte("abc"), 3, 1)
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = Window([]byte("abc"), 4, 0)
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
}
