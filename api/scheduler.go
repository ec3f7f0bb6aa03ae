/*
scheduler.go - Periodic deadline sweep

PURPOSE:
  Raises a warning notification for every OPEN shift whose due date has
  passed. The sweep itself lives in rota.Service.SweepOverdue and never
  repeats a warning, so running it often is harmless.

DESIGN:
  - robfig/cron drives the schedule (SCHEDULER_DEADLINE_SWEEP)
  - One sweep runs immediately on Start
  - Each run gets its own timeout-bounded context

USAGE:
  scheduler, err := NewDeadlineScheduler(svc, "@every 1h", logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - rota/service.go: SweepOverdue
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is the part of rota.Service the scheduler drives.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// DeadlineScheduler runs the overdue sweep on a cron schedule.
type DeadlineScheduler struct {
	Sweeper  Sweeper
	Schedule string
	Timeout  time.Duration
	Log      *zap.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	lastRun time.Time
	raised  int
}

// NewDeadlineScheduler validates schedule and prepares the scheduler.
func NewDeadlineScheduler(sweeper Sweeper, schedule string, log *zap.Logger) (*DeadlineScheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ds := &DeadlineScheduler{
		Sweeper:  sweeper,
		Schedule: schedule,
		Timeout:  30 * time.Second,
		Log:      log,
		cron:     cron.New(),
	}
	if _, err := ds.cron.AddFunc(schedule, ds.RunOnce); err != nil {
		return nil, err
	}
	return ds, nil
}

// Start runs one sweep and then follows the cron schedule.
func (ds *DeadlineScheduler) Start() {
	go ds.RunOnce()
	ds.cron.Start()
	ds.Log.Info("deadline scheduler started", zap.String("schedule", ds.Schedule))
}

// Stop waits for a running sweep to finish.
func (ds *DeadlineScheduler) Stop() {
	<-ds.cron.Stop().Done()
	ds.Log.Info("deadline scheduler stopped")
}

// RunOnce performs a single sweep.
func (ds *DeadlineScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), ds.Timeout)
	defer cancel()

	raised, err := ds.Sweeper.SweepOverdue(ctx)
	if err != nil {
		ds.Log.Warn("deadline sweep failed", zap.Error(err))
		return
	}

	ds.mu.Lock()
	ds.lastRun = time.Now()
	ds.raised += raised
	ds.mu.Unlock()

	if raised > 0 {
		ds.Log.Info("overdue shifts flagged", zap.Int("count", raised))
	}
}

// Status reports when the last successful sweep ran and how many warnings
// have been raised since start.
func (ds *DeadlineScheduler) Status() (lastRun time.Time, raised int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.lastRun, ds.raised
}
