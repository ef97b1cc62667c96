package retention

import (
	"context"
	"log/slog"
	"time"
)

type Job interface {
	Run(ctx context.Context, now time.Time, dryRun bool) (*Report, error)
}

// Scheduler runs a retention job at a fixed interval until its context is
// cancelled. Runs never overlap.
type Scheduler struct {
	job      Job
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(job Job, interval time.Duration) *Scheduler {
	return &Scheduler{job: job, interval: interval, now: time.Now}
}

// Run blocks until ctx is done. The first run starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		slog.Warn("Retention scheduler not started: interval is not positive.")
		return
	}

	slog.Info("Retention scheduler started.", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.job.Run(ctx, s.now(), false); err != nil {
			slog.Error("Scheduled retention run failed.", "reason", err)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}

		if ctx.Err() != nil {
			slog.Info("Retention scheduler stopped.")
			return
		}
	}
}
