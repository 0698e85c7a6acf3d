package kv

import (
	"sort"
	"sync"
	"time"

	"github.com/beorn7/perks/quantile"
)

var statsTargets = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

// OpStats summarizes the calls of one operation.
type OpStats struct {
	Op     string
	Count  uint64
	Errors uint64
	P50    time.Duration
	P90    time.Duration
	P99    time.Duration
}

type opStream struct {
	count, errors uint64
	latency       *quantile.Stream
}

// stats collects per operation latency quantiles. A nil *stats records
// nothing.
type stats struct {
	mu  sync.Mutex
	ops map[string]*opStream
}

func newStats() *stats {
	return &stats{ops: make(map[string]*opStream)}
}

func (s *stats) observe(op string, d time.Duration, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.ops[op]
	if !ok {
		o = &opStream{latency: quantile.NewTargeted(statsTargets)}
		s.ops[op] = o
	}
	o.count++
	if err != nil {
		o.errors++
	}
	o.latency.Insert(float64(d))
}

func (s *stats) snapshot() []OpStats {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]OpStats, 0, len(s.ops))
	for op, o := range s.ops {
		out = append(out, OpStats{
			Op:     op,
			Count:  o.count,
			Errors: o.errors,
			P50:    time.Duration(o.latency.Query(0.5)),
			P90:    time.Duration(o.latency.Query(0.9)),
			P99:    time.Duration(o.latency.Query(0.99)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}
