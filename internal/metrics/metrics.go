// Package metrics tracks in-memory counters for the automation pipeline
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/groupkit/autopost/internal/pending"
)

// Collector is the global metrics collector instance
var (
	globalCollector *Collector
	once            sync.Once
)

// Collector tracks automation metrics in memory
type Collector struct {
	// Counters (atomic for thread-safety)
	totalPublished      atomic.Int64
	totalMissed         atomic.Int64
	totalRetries        atomic.Int64
	totalRecalculations atomic.Int64
	totalCancelled      atomic.Int64

	// Event tracking by status (protected by mutex)
	mu             sync.RWMutex
	eventsByStatus map[pending.Status]int64
	startTime      time.Time
}

// Metrics represents a snapshot of current automation metrics
type Metrics struct {
	TotalPublished      int64                    `json:"total_published"`
	TotalMissed         int64                    `json:"total_missed"`
	TotalRetries        int64                    `json:"total_retries"`
	TotalRecalculations int64                    `json:"total_recalculations"`
	TotalCancelled      int64                    `json:"total_cancelled"`
	EventsByStatus      map[pending.Status]int64 `json:"events_by_status"`
	Uptime              time.Duration            `json:"uptime"`
}

// Default returns the global metrics collector instance
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		eventsByStatus: make(map[pending.Status]int64),
		startTime:      time.Now(),
	}
}

// RecordPublished records a successfully published pending event
func (c *Collector) RecordPublished() {
	c.totalPublished.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsByStatus[pending.StatusPublished]++
}

// RecordMissed records a pending event whose publish time passed unhandled
func (c *Collector) RecordMissed() {
	c.totalMissed.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsByStatus[pending.StatusMissed]++
}

// RecordRetry records a failed publish attempt entering the retry loop
func (c *Collector) RecordRetry() {
	c.totalRetries.Add(1)
}

// RecordRecalculation records one profile recalculation pass
func (c *Collector) RecordRecalculation() {
	c.totalRecalculations.Add(1)
}

// RecordCancelled records a pending event that was cancelled
func (c *Collector) RecordCancelled() {
	c.totalCancelled.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsByStatus[pending.StatusCancelled]++
}

// GetMetrics returns a snapshot of current metrics
func (c *Collector) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byStatus := make(map[pending.Status]int64, len(c.eventsByStatus))
	for k, v := range c.eventsByStatus {
		byStatus[k] = v
	}

	return Metrics{
		TotalPublished:      c.totalPublished.Load(),
		TotalMissed:         c.totalMissed.Load(),
		TotalRetries:        c.totalRetries.Load(),
		TotalRecalculations: c.totalRecalculations.Load(),
		TotalCancelled:      c.totalCancelled.Load(),
		EventsByStatus:      byStatus,
		Uptime:              time.Since(c.startTime),
	}
}

// Reset clears all metrics (useful for testing)
func (c *Collector) Reset() {
	c.totalPublished.Store(0)
	c.totalMissed.Store(0)
	c.totalRetries.Store(0)
	c.totalRecalculations.Store(0)
	c.totalCancelled.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsByStatus = make(map[pending.Status]int64)
	c.startTime = time.Now()
}
