package converter

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip[T any](t *testing.T, c Converter[T], v T) T {
	t.Helper()
	b, err := c.ToBytes(v)
	require.NoError(t, err)
	out, err := c.FromBytes(b)
	require.NoError(t, err)
	return out
}

func TestRoundTrip(t *testing.T) {
	assert.Equal(t, []byte("raw"), roundTrip[[]byte](t, Bytes{}, []byte("raw")))
	assert.Equal(t, "héllo", roundTrip[string](t, String{}, "héllo"))
	assert.Equal(t, uint64(math.MaxUint64), roundTrip[uint64](t, Uint64{}, math.MaxUint64))
	assert.Equal(t, int64(math.MinInt64), roundTrip[int64](t, Int64{}, math.MinInt64))

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	assert.Equal(t, record{"a", 2}, roundTrip[record](t, JSON[record]{}, record{"a", 2}))
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte("engine-owned")
	out, err := Bytes{}.FromBytes(src)
	require.NoError(t, err)
	src[0] = 'X'
	assert.Equal(t, []byte("engine-owned"), out)
}

func TestOrderPreserving(t *testing.T) {
	ints := []int64{-300, 5, math.MinInt64, 0, -1, math.MaxInt64, 42}
	encoded := make([][]byte, len(ints))
	for i, v := range ints {
		b, err := Int64{}.ToBytes(v)
		require.NoError(t, err)
		encoded[i] = b
	}
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

	var decoded []int64
	for _, b := range encoded {
		v, err := Int64{}.FromBytes(b)
		require.NoError(t, err)
		decoded = append(decoded, v)
	}
	assert.True(t, sort.SliceIsSorted(decoded, func(i, j int) bool { return decoded[i] < decoded[j] }))

	a, _ := Uint64{}.ToBytes(255)
	b, _ := Uint64{}.ToBytes(256)
	assert.Equal(t, -1, bytes.Compare(a, b))
}

func TestGeneralNatural(t *testing.T) {
	tests := []struct {
		input    uint64
		expected []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{127, []byte{127}},
		{128, []byte{128, 128}},
		{1 << 14, []byte{192, 0, 64}},
		{math.MaxUint64, []byte{255, 255, 255, 255, 255, 255, 255, 255, 255}},
	}
	for _, tc := range tests {
		out, err := GeneralNatural{}.ToBytes(tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, out, "encode %d", tc.input)

		back, err := GeneralNatural{}.FromBytes(out)
		require.NoError(t, err)
		assert.Equal(t, tc.input, back)
	}

	_, err := GeneralNatural{}.FromBytes(nil)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = GeneralNatural{}.FromBytes([]byte{128})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestInvalidInput(t *testing.T) {
	_, err := Uint64{}.FromBytes([]byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = Int64{}.FromBytes(nil)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = JSON[map[string]int]{}.FromBytes([]byte("{"))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestAppend(t *testing.T) {
	dst := make([]byte, 0, 32)
	out, err := String{}.AppendBytes(dst, "abc")
	require.NoError(t, err)
	out, err = Uint64{}.AppendBytes(out, 1)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("abc"), 0, 0, 0, 0, 0, 0, 0, 1), out)
	assert.Same(t, &dst[:1][0], &out[0])
}

func TestBufferConverter(t *testing.T) {
	pinned := buffer.NewPinned(8)
	_, err := pinned.Write([]byte("pin"))
	require.NoError(t, err)

	same, err := Buffer{}.ToBuffer(pinned)
	require.NoError(t, err)
	assert.Same(t, pinned, same)

	out, err := Buffer{}.FromBytes([]byte("pin"))
	require.NoError(t, err)
	assert.True(t, out.Pinned())
	assert.Equal(t, []byte("pin"), out.Bytes())
}
