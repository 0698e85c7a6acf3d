package buffer

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eigerco/kvbind/pkg/log"
)

// DefaultSize is the capacity of each pooled slot when none is configured.
const DefaultSize = 10 << 20 // 10MiB

var (
	ErrOutOfMemory = errors.New("buffer: unable to allocate pinned memory")
	ErrPoolClosed  = errors.New("buffer: pool is closed")
)

// Slot selects one of the three buffers of a Set.
type Slot uint8

const (
	Key1 Slot = iota
	// Key2 holds the upper bound of two-key range operations.
	Key2
	Value

	slotCount
)

func (s Slot) String() string {
	switch s {
	case Key1:
		return "key1"
	case Key2:
		return "key2"
	case Value:
		return "value"
	default:
		return "unknown"
	}
}

// Set is the triple of buffers used by one engine call. A Set is owned
// exclusively by the caller between Pool.Get and Pool.Put.
type Set struct {
	slots [slotCount]*Buffer
	pool  *Pool
}

// Acquire returns a pinned buffer holding payload. A pinned payload is
// returned unchanged. Otherwise the payload is copied into the slot buffer, or
// into a one-off buffer when it does not fit; the slot itself is never resized.
func (s *Set) Acquire(slot Slot, payload *Buffer) *Buffer {
	if payload.Pinned() {
		return payload
	}
	b := s.slots[slot]
	b.Reset()
	if payload.Len() > b.Cap() {
		one := NewPinned(payload.Len())
		one.length = copy(one.data, payload.Bytes())
		s.pool.overflow(slot, payload.Len())
		return one
	}
	b.length = copy(b.data, payload.Bytes())
	return b
}

// AcquireFunc lets encode append directly into the slot buffer. If encode has
// to grow past the slot capacity the grown slice is used as a one-off buffer.
func (s *Set) AcquireFunc(slot Slot, encode func(dst []byte) ([]byte, error)) (*Buffer, error) {
	b := s.slots[slot]
	b.Reset()
	out, err := encode(b.data[:0])
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return b, nil
	}
	if len(out) <= b.Cap() && &out[0] == &b.data[0] {
		b.length = len(out)
		return b, nil
	}
	s.pool.overflow(slot, len(out))
	return &Buffer{data: out, length: len(out), pinned: true}, nil
}

// Pool recycles buffer Sets between engine calls. Go exposes no stable worker
// identity, so sets are checked out and back in through a mutex guarded free
// list; the number of live sets grows to the peak number of concurrent calls.
type Pool struct {
	size int

	mu     sync.Mutex
	free   []*Set
	all    []*Set
	closed bool

	overflows atomic.Uint64
}

// NewPool creates a pool whose slots have size bytes of capacity each. A
// non-positive size selects DefaultSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{size: size}
}

// SlotSize returns the capacity of every pooled slot.
func (p *Pool) SlotSize() int { return p.size }

// Get checks out a Set, allocating a new one when the free list is empty.
func (p *Pool) Get() (*Set, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s, nil
	}

	s := &Set{pool: p}
	for i := range s.slots {
		data, mapped, err := allocPinned(p.size)
		if err != nil {
			releaseSet(s)
			return nil, errors.Join(ErrOutOfMemory, err)
		}
		s.slots[i] = &Buffer{data: data, pinned: true, mapped: mapped}
	}
	p.all = append(p.all, s)
	log.Binding.Debug().Int("sets", len(p.all)).Int("slotSize", p.size).Msg("buffer set allocated")
	return s, nil
}

// Put returns a Set to the free list.
func (p *Pool) Put(s *Set) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		releaseSet(s)
		return
	}
	p.free = append(p.free, s)
}

// Sets returns the number of sets allocated so far.
func (p *Pool) Sets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Overflows returns how many one-off buffers were allocated because a payload
// did not fit its slot.
func (p *Pool) Overflows() uint64 {
	return p.overflows.Load()
}

// Close releases the memory of every set. Sets still checked out are released
// when they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for _, s := range p.free {
		errs = append(errs, releaseSet(s))
	}
	p.free = nil
	p.all = nil
	return errors.Join(errs...)
}

func (p *Pool) overflow(slot Slot, size int) {
	p.overflows.Add(1)
	log.Binding.Trace().Stringer("slot", slot).Int("size", size).Int("slotSize", p.size).
		Msg("payload exceeds slot capacity, using one-off buffer")
}

func releaseSet(s *Set) error {
	var errs []error
	for i, b := range s.slots {
		if b == nil {
			continue
		}
		if b.mapped {
			errs = append(errs, freePinned(b.data))
		}
		s.slots[i] = nil
	}
	return errors.Join(errs...)
}
