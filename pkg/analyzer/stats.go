package analyzer

import "sync/atomic"

// Stats holds the run counters, incremented lock-free by the worker pool.
type Stats struct {
	Inspected    atomic.Int64
	Matched      atomic.Int64
	Deduplicated atomic.Int64
	Gated        atomic.Int64
	Skipped      atomic.Int64
	Failed       atomic.Int64
}

// StatsSnapshot is a point-in-time copy for the operator summary.
type StatsSnapshot struct {
	Inspected    int64
	Matched      int64
	Deduplicated int64
	Gated        int64
	Skipped      int64
	Failed       int64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Inspected:    s.Inspected.Load(),
		Matched:      s.Matched.Load(),
		Deduplicated: s.Deduplicated.Load(),
		Gated:        s.Gated.Load(),
		Skipped:      s.Skipped.Load(),
		Failed:       s.Failed.Load(),
	}
}
