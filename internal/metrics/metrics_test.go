package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_RecordItem(t *testing.T) {
	m := NewMetrics()

	m.RecordItem(true)
	m.RecordItem(true)
	m.RecordItem(false)

	snap := m.Snapshot()
	if snap.ItemsScraped != 2 {
		t.Errorf("ItemsScraped = %d, want 2", snap.ItemsScraped)
	}
	if snap.ItemsFailed != 1 {
		t.Errorf("ItemsFailed = %d, want 1", snap.ItemsFailed)
	}
}

func TestMetrics_RecordJob(t *testing.T) {
	m := NewMetrics()

	m.RecordJob("succeeded", 2*time.Second)
	m.RecordJob("failed", time.Second)
	m.RecordJob("cancelled", time.Second)

	snap := m.Snapshot()
	if snap.JobsSucceeded != 1 || snap.JobsFailed != 1 || snap.JobsCancelled != 1 {
		t.Errorf("job counters = %d/%d/%d, want 1/1/1",
			snap.JobsSucceeded, snap.JobsFailed, snap.JobsCancelled)
	}
	if snap.JobDurationTotal != 4*time.Second {
		t.Errorf("JobDurationTotal = %v, want 4s", snap.JobDurationTotal)
	}
	if snap.LastJobFinished.IsZero() {
		t.Error("LastJobFinished not set")
	}
}

func TestMetrics_ConcurrentUpdates(t *testing.T) {
	m := NewMetrics()

	const workers = 10
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.RecordItem(true)
				m.RecordRateLimited()
				m.RecordDealCreated()
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	want := int64(workers * perWorker)
	if snap.ItemsScraped != want {
		t.Errorf("ItemsScraped = %d, want %d", snap.ItemsScraped, want)
	}
	if snap.RateLimitedRequests != want {
		t.Errorf("RateLimitedRequests = %d, want %d", snap.RateLimitedRequests, want)
	}
	if snap.DealsCreated != want {
		t.Errorf("DealsCreated = %d, want %d", snap.DealsCreated, want)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	start := m.GetStartTime()

	m.RecordItem(true)
	m.RecordDealUpdated()
	m.RecordDealDeactivated()
	m.Reset()

	snap := m.Snapshot()
	if snap.ItemsScraped != 0 || snap.DealsUpdated != 0 || snap.DealsDeactivated != 0 {
		t.Error("Reset() did not clear counters")
	}
	if !m.GetStartTime().Equal(start) {
		t.Error("Reset() must preserve the start time")
	}
}
