package retention

import (
	"context"
	"errors"
	"time"
)

type StubJob struct {
	RunFunc func(ctx context.Context, now time.Time, dryRun bool) (*Report, error)
}

var _ Job = (*StubJob)(nil)

func (s *StubJob) Run(ctx context.Context, now time.Time, dryRun bool) (*Report, error) {
	if s.RunFunc == nil {
		return nil, errors.New("Run() not implemented by stub")
	}
	return s.RunFunc(ctx, now, dryRun)
}
