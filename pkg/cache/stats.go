package cache

import (
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// maxOperationLabels bounds the per-operation metric map. Labels embed
// cache keys, so an unbounded key space would grow the map without
// limit; once full, metrics for new labels are dropped while existing
// labels keep updating.
const maxOperationLabels = 4096

// OperationMetric captures one timed cache operation.
type OperationMetric struct {
	// Duration is the wall-clock time of the operation, including the
	// compute path on a miss.
	Duration time.Duration `json:"duration"`

	// MemoryDelta is the change in heap allocation across the
	// operation in bytes. Negative after a garbage collection cycle.
	MemoryDelta int64 `json:"memory_delta"`

	// StartedAt is when the operation began.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the operation finished.
	EndedAt time.Time `json:"ended_at"`
}

// Statistics tracks hits, misses and per-operation performance for one
// cache service instance. All methods are safe for concurrent use.
type Statistics struct {
	hits   atomic.Uint64
	misses atomic.Uint64

	mu         sync.RWMutex
	operations map[string]OperationMetric
}

// NewStatistics creates an empty statistics recorder.
func NewStatistics() *Statistics {
	return &Statistics{
		operations: make(map[string]OperationMetric),
	}
}

// RecordHit counts one cache hit.
func (s *Statistics) RecordHit() {
	s.hits.Add(1)
}

// RecordMiss counts one cache miss.
func (s *Statistics) RecordMiss() {
	s.misses.Add(1)
}

// Hits returns the number of hits since creation or the last reset.
func (s *Statistics) Hits() uint64 {
	return s.hits.Load()
}

// Misses returns the number of misses since creation or the last reset.
func (s *Statistics) Misses() uint64 {
	return s.misses.Load()
}

// RecordOperation stores the metric under the given label. Repeated
// labels overwrite, so each label holds the most recent measurement.
func (s *Statistics) RecordOperation(label string, metric OperationMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[label]; !exists && len(s.operations) >= maxOperationLabels {
		return
	}
	s.operations[label] = metric
}

// Operation returns the most recent metric recorded under the label.
func (s *Statistics) Operation(label string) (OperationMetric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.operations[label]
	return m, ok
}

// Operations returns a snapshot of all recorded operation metrics.
func (s *Statistics) Operations() map[string]OperationMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]OperationMetric, len(s.operations))
	for label, m := range s.operations {
		out[label] = m
	}
	return out
}

// Reset clears counters and operation metrics.
func (s *Statistics) Reset() {
	s.mu.Lock()
	s.operations = make(map[string]OperationMetric)
	s.mu.Unlock()

	s.hits.Store(0)
	s.misses.Store(0)
}

// Summary is a point-in-time view of cache statistics.
type Summary struct {
	Hits    uint64    `json:"hits"`
	Misses  uint64    `json:"misses"`
	Total   uint64    `json:"total"`
	HitRate string    `json:"hit_rate"`
	TTL     TTLPolicy `json:"ttl"`
}

// HitRate formats hits out of (hits+misses) as a percentage string with
// at most two decimal places, e.g. "50%" or "33.33%". Returns "0%" when
// nothing has been counted yet.
func HitRate(hits, misses uint64) string {
	total := hits + misses
	if total == 0 {
		return "0%"
	}
	pct := float64(hits) / float64(total) * 100
	pct = math.Round(pct*100) / 100
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}
