package ratelimit

import (
	"context"
	"time"
)

type StubLimiter struct {
	AllowFunc func(ctx context.Context, key string) (bool, time.Duration, error)
}

var _ Limiter = (*StubLimiter)(nil)

func (s *StubLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if s.AllowFunc == nil {
		return true, 0, nil
	}
	return s.AllowFunc(ctx, key)
}
