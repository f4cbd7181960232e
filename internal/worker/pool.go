// Package worker provides a bounded pool for running source jobs.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dealradar/dealradar/internal/logger"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is accepting tasks.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining

	// poolPercentageMultiplier converts ratio to percentage.
	poolPercentageMultiplier = 100
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task is one unit of work executed on the pool.
type Task func(ctx context.Context) error

// Pool bounds the number of concurrently running tasks. Submission blocks
// while all slots are busy, which caps total outbound scraping pressure
// across sources.
type Pool struct {
	size         int
	drainTimeout time.Duration
	logger       logger.Interface
	state        atomic.Int32
	sem          chan struct{}
	wg           sync.WaitGroup
	stopCh       chan struct{}

	tasksRun       atomic.Int64
	tasksSucceeded atomic.Int64
	tasksFailed    atomic.Int64
}

// NewPool creates a pool with the given number of slots.
func NewPool(size int, drainTimeout time.Duration, log logger.Interface) (*Pool, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be positive")
	}

	p := &Pool{
		size:         size,
		drainTimeout: drainTimeout,
		logger:       log.WithComponent("worker"),
		sem:          make(chan struct{}, size),
		stopCh:       make(chan struct{}),
	}
	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started", "pool_size", p.size)
	return nil
}

// Stop drains the pool, waiting for running tasks up to the drain timeout.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	case <-time.After(p.drainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit runs the task on the pool, blocking while all slots are busy.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.run(ctx, task)
	return nil
}

// TrySubmit runs the task only if a slot is free. Returns false when the
// pool is saturated.
func (p *Pool) TrySubmit(ctx context.Context, task Task) (bool, error) {
	if p.State() != PoolStateRunning {
		return false, errors.New("pool is not running")
	}

	select {
	case p.sem <- struct{}{}:
	default:
		return false, nil
	}

	p.run(ctx, task)
	return true, nil
}

func (p *Pool) run(ctx context.Context, task Task) {
	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()

		err := task(ctx)

		p.tasksRun.Add(1)
		if err != nil {
			p.tasksFailed.Add(1)
		} else {
			p.tasksSucceeded.Add(1)
		}
	}()
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsRunning returns true if the pool is accepting tasks.
func (p *Pool) IsRunning() bool {
	return p.State() == PoolStateRunning
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// BusyCount returns the number of occupied slots.
func (p *Pool) BusyCount() int {
	return len(p.sem)
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	busy := p.BusyCount()
	return PoolStats{
		State:          p.State(),
		PoolSize:       p.size,
		BusyWorkers:    busy,
		IdleWorkers:    p.size - busy,
		TasksRun:       p.tasksRun.Load(),
		TasksSucceeded: p.tasksSucceeded.Load(),
		TasksFailed:    p.tasksFailed.Load(),
	}
}

// PoolStats holds statistics for the pool.
type PoolStats struct {
	State          PoolState
	PoolSize       int
	BusyWorkers    int
	IdleWorkers    int
	TasksRun       int64
	TasksSucceeded int64
	TasksFailed    int64
}

// SuccessRate returns the success rate as a percentage.
func (s PoolStats) SuccessRate() float64 {
	if s.TasksRun == 0 {
		return 0
	}
	return float64(s.TasksSucceeded) / float64(s.TasksRun) * poolPercentageMultiplier
}

// Utilization returns the pool utilization as a percentage.
func (s PoolStats) Utilization() float64 {
	if s.PoolSize == 0 {
		return 0
	}
	return float64(s.BusyWorkers) / float64(s.PoolSize) * poolPercentageMultiplier
}
