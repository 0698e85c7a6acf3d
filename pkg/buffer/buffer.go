// Package buffer provides the boundary-safe byte buffers that carry keys and
// values into an engine call, and the pool that recycles them.
package buffer

import "fmt"

// Buffer is a fixed-capacity byte region with a logical length marker. The
// length marks the payload size, never the remaining capacity.
//
// A pinned buffer has a stable address for as long as it is alive and may be
// handed to an engine without copying. Buffers produced by Wrap are not pinned:
// the caller keeps ownership of the memory and may reuse it concurrently.
type Buffer struct {
	data   []byte
	length int
	pinned bool
	mapped bool
}

// NewPinned allocates a pinned buffer with the given capacity on the Go heap.
func NewPinned(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity), pinned: true}
}

// Wrap returns a non-pinned buffer over b. The length is len(b).
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b, length: len(b)}
}

// Bytes returns the payload, i.e. the first Len bytes.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.length]
}

func (b *Buffer) Len() int { return b.length }

func (b *Buffer) Cap() int { return len(b.data) }

func (b *Buffer) Pinned() bool { return b.pinned }

// Reset sets the length marker back to zero. The contents are left untouched.
func (b *Buffer) Reset() { b.length = 0 }

// SetLength moves the length marker. It panics if n exceeds the capacity.
func (b *Buffer) SetLength(n int) {
	if n < 0 || n > len(b.data) {
		panic(fmt.Sprintf("buffer: length %d out of range [0, %d]", n, len(b.data)))
	}
	b.length = n
}

// Write replaces the payload with p. It fails without modifying the buffer
// when p does not fit.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > len(b.data) {
		return 0, fmt.Errorf("buffer: payload of %d bytes exceeds capacity %d", len(p), len(b.data))
	}
	b.length = copy(b.data, p)
	return b.length, nil
}
