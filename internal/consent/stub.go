package consent

import (
	"context"
	"errors"
)

type StubService struct {
	CurrentFunc  func(ctx context.Context, subject Subject) (*Status, error)
	SaveFunc     func(ctx context.Context, params SaveParams) (*Record, error)
	WithdrawFunc func(ctx context.Context, params WithdrawParams) (*Record, error)
	HistoryFunc  func(ctx context.Context, subject Subject, limit, offset int) ([]Record, error)
	Version      string
	URL          string
}

var _ ConsentService = (*StubService)(nil)

func (s *StubService) Current(ctx context.Context, subject Subject) (*Status, error) {
	if s.CurrentFunc == nil {
		return nil, errors.New("Current() not implemented by stub")
	}
	return s.CurrentFunc(ctx, subject)
}

func (s *StubService) Save(ctx context.Context, params SaveParams) (*Record, error) {
	if s.SaveFunc == nil {
		return nil, errors.New("Save() not implemented by stub")
	}
	return s.SaveFunc(ctx, params)
}

func (s *StubService) Withdraw(ctx context.Context, params WithdrawParams) (*Record, error) {
	if s.WithdrawFunc == nil {
		return nil, errors.New("Withdraw() not implemented by stub")
	}
	return s.WithdrawFunc(ctx, params)
}

func (s *StubService) History(ctx context.Context, subject Subject, limit, offset int) ([]Record, error) {
	if s.HistoryFunc == nil {
		return nil, errors.New("History() not implemented by stub")
	}
	return s.HistoryFunc(ctx, subject, limit, offset)
}

func (s *StubService) PolicyVersion() string { return s.Version }

func (s *StubService) PolicyURL() string { return s.URL }

type StubRepo struct {
	InsertFunc          func(ctx context.Context, rec *Record) error
	LatestFunc          func(ctx context.Context, subjectID string) (*Record, error)
	HistoryFunc         func(ctx context.Context, subjectID string, limit, offset int) ([]Record, error)
	DeleteBySubjectFunc func(ctx context.Context, subjectID string) (int, error)
	StatsFunc           func(ctx context.Context, policyVersion string) (*Stats, error)
}

var _ Repository = (*StubRepo)(nil)

func (r *StubRepo) Insert(ctx context.Context, rec *Record) error {
	if r.InsertFunc == nil {
		return errors.New("Insert() not implemented by stub")
	}
	return r.InsertFunc(ctx, rec)
}

func (r *StubRepo) Latest(ctx context.Context, subjectID string) (*Record, error) {
	if r.LatestFunc == nil {
		return nil, errors.New("Latest() not implemented by stub")
	}
	return r.LatestFunc(ctx, subjectID)
}

func (r *StubRepo) History(ctx context.Context, subjectID string, limit, offset int) ([]Record, error) {
	if r.HistoryFunc == nil {
		return nil, errors.New("History() not implemented by stub")
	}
	return r.HistoryFunc(ctx, subjectID, limit, offset)
}

func (r *StubRepo) DeleteBySubject(ctx context.Context, subjectID string) (int, error) {
	if r.DeleteBySubjectFunc == nil {
		return 0, errors.New("DeleteBySubject() not implemented by stub")
	}
	return r.DeleteBySubjectFunc(ctx, subjectID)
}

func (r *StubRepo) Stats(ctx context.Context, policyVersion string) (*Stats, error) {
	if r.StatsFunc == nil {
		return nil, errors.New("Stats() not implemented by stub")
	}
	return r.StatsFunc(ctx, policyVersion)
}
