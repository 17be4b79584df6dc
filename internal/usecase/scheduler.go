package usecase

import (
	"context"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// Scheduler wires the daily driver with the curation use case.
type Scheduler struct {
	driver  ports.Scheduler
	curator *Curator
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, curator *Curator) *Scheduler {
	return &Scheduler{driver: driver, curator: curator}
}

// Start registers the curation run with the provided scheduler. Runs are
// invoked sequentially by the driver; the engine assumes no overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.curator == nil {
		return nil
	}

	job := func(time.Time) {
		_ = s.curator.Run(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
