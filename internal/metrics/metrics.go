// Package metrics provides pipeline metrics collection and reporting.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds counters for the ingestion pipeline. All methods are safe
// for concurrent use across source jobs.
type Metrics struct {
	mu sync.Mutex

	startTime time.Time

	itemsScraped int64
	itemsFailed  int64

	dealsCreated     int64
	dealsUpdated     int64
	dealsDeactivated int64

	rateLimitedRequests int64

	jobsSucceeded int64
	jobsFailed    int64
	jobsCancelled int64

	jobDurationTotal time.Duration
	lastJobFinished  time.Time
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// GetStartTime returns the time when metrics collection began.
func (m *Metrics) GetStartTime() time.Time {
	return m.startTime
}

// RecordItem counts one processed listing.
func (m *Metrics) RecordItem(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.itemsScraped++
	} else {
		m.itemsFailed++
	}
}

// RecordDealCreated counts one newly created deal.
func (m *Metrics) RecordDealCreated() { m.add(&m.dealsCreated) }

// RecordDealUpdated counts one refreshed deal.
func (m *Metrics) RecordDealUpdated() { m.add(&m.dealsUpdated) }

// RecordDealDeactivated counts one retired deal.
func (m *Metrics) RecordDealDeactivated() { m.add(&m.dealsDeactivated) }

// RecordRateLimited counts one throttled upstream response.
func (m *Metrics) RecordRateLimited() { m.add(&m.rateLimitedRequests) }

// RecordJob counts one finished job with its wall-clock duration.
func (m *Metrics) RecordJob(status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch status {
	case "succeeded":
		m.jobsSucceeded++
	case "failed":
		m.jobsFailed++
	case "cancelled":
		m.jobsCancelled++
	}
	m.jobDurationTotal += duration
	m.lastJobFinished = time.Now()
}

func (m *Metrics) add(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	ItemsScraped        int64         `json:"items_scraped"`
	ItemsFailed         int64         `json:"items_failed"`
	DealsCreated        int64         `json:"deals_created"`
	DealsUpdated        int64         `json:"deals_updated"`
	DealsDeactivated    int64         `json:"deals_deactivated"`
	RateLimitedRequests int64         `json:"rate_limited_requests"`
	JobsSucceeded       int64         `json:"jobs_succeeded"`
	JobsFailed          int64         `json:"jobs_failed"`
	JobsCancelled       int64         `json:"jobs_cancelled"`
	JobDurationTotal    time.Duration `json:"job_duration_total"`
	LastJobFinished     time.Time     `json:"last_job_finished"`
}

// Snapshot returns a consistent copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		ItemsScraped:        m.itemsScraped,
		ItemsFailed:         m.itemsFailed,
		DealsCreated:        m.dealsCreated,
		DealsUpdated:        m.dealsUpdated,
		DealsDeactivated:    m.dealsDeactivated,
		RateLimitedRequests: m.rateLimitedRequests,
		JobsSucceeded:       m.jobsSucceeded,
		JobsFailed:          m.jobsFailed,
		JobsCancelled:       m.jobsCancelled,
		JobDurationTotal:    m.jobDurationTotal,
		LastJobFinished:     m.lastJobFinished,
	}
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.itemsScraped = 0
	m.itemsFailed = 0
	m.dealsCreated = 0
	m.dealsUpdated = 0
	m.dealsDeactivated = 0
	m.rateLimitedRequests = 0
	m.jobsSucceeded = 0
	m.jobsFailed = 0
	m.jobsCancelled = 0
	m.jobDurationTotal = 0
	m.lastJobFinished = time.Time{}
}
