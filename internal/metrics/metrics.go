// Package metrics provides in-process counters for the crawl pipeline.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds the pipeline counters. All methods are safe for concurrent
// use by crawl workers.
type Metrics struct {
	mu sync.Mutex

	jobsCompleted int64
	jobsFailed    int64
	itemsFound    int64
	itemsCreated  int64
	itemsUpdated  int64
	itemsRemoved  int64
	pagesFetched  int64
	lastJobTime   time.Time
	startTime     time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	JobsCompleted int64     `json:"jobs_completed"`
	JobsFailed    int64     `json:"jobs_failed"`
	ItemsFound    int64     `json:"items_found"`
	ItemsCreated  int64     `json:"items_created"`
	ItemsUpdated  int64     `json:"items_updated"`
	ItemsRemoved  int64     `json:"items_removed"`
	PagesFetched  int64     `json:"pages_fetched"`
	LastJobTime   time.Time `json:"last_job_time"`
	StartTime     time.Time `json:"start_time"`
}

// NewMetrics creates a Metrics instance with the start time set.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// JobOutcome holds the per-job deltas recorded after one crawl+sync cycle.
type JobOutcome struct {
	Failed       bool
	ItemsFound   int
	ItemsCreated int
	ItemsUpdated int
	ItemsRemoved int
	PagesFetched int
}

// RecordJob folds one finished job into the counters.
func (m *Metrics) RecordJob(outcome JobOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if outcome.Failed {
		m.jobsFailed++
	} else {
		m.jobsCompleted++
	}
	m.itemsFound += int64(outcome.ItemsFound)
	m.itemsCreated += int64(outcome.ItemsCreated)
	m.itemsUpdated += int64(outcome.ItemsUpdated)
	m.itemsRemoved += int64(outcome.ItemsRemoved)
	m.pagesFetched += int64(outcome.PagesFetched)
	m.lastJobTime = time.Now()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		JobsCompleted: m.jobsCompleted,
		JobsFailed:    m.jobsFailed,
		ItemsFound:    m.itemsFound,
		ItemsCreated:  m.itemsCreated,
		ItemsUpdated:  m.itemsUpdated,
		ItemsRemoved:  m.itemsRemoved,
		PagesFetched:  m.pagesFetched,
		LastJobTime:   m.lastJobTime,
		StartTime:     m.startTime,
	}
}

// Reset zeroes the counters, keeping the original start time.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCompleted = 0
	m.jobsFailed = 0
	m.itemsFound = 0
	m.itemsCreated = 0
	m.itemsUpdated = 0
	m.itemsRemoved = 0
	m.pagesFetched = 0
	m.lastJobTime = time.Time{}
}
