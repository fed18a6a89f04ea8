package stream

import "sync"

// Stats is a per-tick snapshot of coordinator counters, safe to read
// from other goroutines via Coordinator.Stats.
type Stats struct {
	Tick         uint64 `json:"tick"`
	Resident     int    `json:"resident"`
	Visible      int    `json:"visible"`
	InFlight     int    `json:"in_flight"`
	Workers      int    `json:"workers"`
	QueuedJobs   int    `json:"queued_jobs"`
	Parked       int    `json:"parked"`
	ParkedBytes  int    `json:"parked_bytes"`
	Generated    uint64 `json:"generated"`
	Meshed       uint64 `json:"meshed"`
	Evicted      uint64 `json:"evicted"`
	EditsApplied uint64 `json:"edits_applied"`
	EditsDropped uint64 `json:"edits_dropped"`
}

// statsCollector accumulates counters on the tick goroutine and
// publishes a snapshot once per tick.
type statsCollector struct {
	generated    uint64
	meshed       uint64
	evicted      uint64
	editsApplied uint64
	editsDropped uint64

	mu        sync.RWMutex
	published Stats
}

func (s *statsCollector) publish(c *Coordinator) {
	visible := 0
	for _, e := range c.entries {
		if e.visible {
			visible++
		}
	}
	snap := Stats{
		Tick:         c.tick,
		Resident:     c.store.Len(),
		Visible:      visible,
		InFlight:     len(c.jobs),
		Workers:      c.pool.Workers(),
		QueuedJobs:   c.pool.QueueLen(),
		Parked:       c.cache.Len(),
		ParkedBytes:  c.cache.CompressedBytes(),
		Generated:    s.generated,
		Meshed:       s.meshed,
		Evicted:      s.evicted,
		EditsApplied: s.editsApplied,
		EditsDropped: s.editsDropped,
	}
	s.mu.Lock()
	s.published = snap
	s.mu.Unlock()
}

// Stats returns the most recently published snapshot.
func (c *Coordinator) Stats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return c.stats.published
}
