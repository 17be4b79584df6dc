package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// DailyScheduler fires the job once a day at the configured wall-clock
// time in the configured timezone.
type DailyScheduler struct {
	hour     int
	minute   int
	location *time.Location
	logger   *slog.Logger
	stop     chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler from configuration.
func NewDailyScheduler(cfg config.SchedulerConfig, logger *slog.Logger) *DailyScheduler {
	return &DailyScheduler{
		hour:     cfg.Hour,
		minute:   cfg.Minute,
		location: cfg.Location(),
		logger:   logger,
	}
}

// nextFireTime returns the next occurrence of the configured wall-clock
// time strictly after now.
func (d *DailyScheduler) nextFireTime(now time.Time) time.Time {
	local := now.In(d.location)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the timer loop. Calling Start on a running scheduler is
// a no-op.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || d.stop != nil {
		return nil
	}

	// The loop reads a local copy so Stop can clear d.stop without
	// racing the select.
	stop := make(chan struct{})
	d.stop = stop
	go func() {
		for {
			next := d.nextFireTime(time.Now())
			d.logger.Info("next curation run scheduled", "at", next.Format(time.RFC3339))

			timer := time.NewTimer(time.Until(next))
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the timer loop.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}
