package export

import (
	"context"
	"errors"
)

type StubBuilder struct {
	BuildFunc func(ctx context.Context, userID string) (*Bundle, error)
}

var _ Builder = (*StubBuilder)(nil)

func (s *StubBuilder) Build(ctx context.Context, userID string) (*Bundle, error) {
	if s.BuildFunc == nil {
		return nil, errors.New("Build() not implemented by stub")
	}
	return s.BuildFunc(ctx, userID)
}
