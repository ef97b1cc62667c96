package dsr

import (
	"context"
	"errors"
	"time"
)

type StubService struct {
	SubmitFunc          func(ctx context.Context, params SubmitParams) (*Request, error)
	VerifyFunc          func(ctx context.Context, id string) (*Request, error)
	FindByReferenceFunc func(ctx context.Context, reference string) (*Request, error)
	GetFunc             func(ctx context.Context, id string) (*Request, error)
	ListFunc            func(ctx context.Context, f Filter) ([]Request, error)
	StartFunc           func(ctx context.Context, id, actorID string) (*Request, error)
	CompleteFunc        func(ctx context.Context, id, actorID, resolution string) (*Request, error)
	RejectFunc          func(ctx context.Context, id, actorID, reason string) (*Request, error)
	ExtendFunc          func(ctx context.Context, id, actorID string, params ExtendParams) (*Request, error)
}

var _ RequestService = (*StubService)(nil)

func (s *StubService) Submit(ctx context.Context, params SubmitParams) (*Request, error) {
	if s.SubmitFunc == nil {
		return nil, errors.New("Submit() not implemented by stub")
	}
	return s.SubmitFunc(ctx, params)
}

func (s *StubService) Verify(ctx context.Context, id string) (*Request, error) {
	if s.VerifyFunc == nil {
		return nil, errors.New("Verify() not implemented by stub")
	}
	return s.VerifyFunc(ctx, id)
}

func (s *StubService) FindByReference(ctx context.Context, reference string) (*Request, error) {
	if s.FindByReferenceFunc == nil {
		return nil, errors.New("FindByReference() not implemented by stub")
	}
	return s.FindByReferenceFunc(ctx, reference)
}

func (s *StubService) Get(ctx context.Context, id string) (*Request, error) {
	if s.GetFunc == nil {
		return nil, errors.New("Get() not implemented by stub")
	}
	return s.GetFunc(ctx, id)
}

func (s *StubService) List(ctx context.Context, f Filter) ([]Request, error) {
	if s.ListFunc == nil {
		return nil, errors.New("List() not implemented by stub")
	}
	return s.ListFunc(ctx, f)
}

func (s *StubService) Start(ctx context.Context, id, actorID string) (*Request, error) {
	if s.StartFunc == nil {
		return nil, errors.New("Start() not implemented by stub")
	}
	return s.StartFunc(ctx, id, actorID)
}

func (s *StubService) Complete(ctx context.Context, id, actorID, resolution string) (*Request, error) {
	if s.CompleteFunc == nil {
		return nil, errors.New("Complete() not implemented by stub")
	}
	return s.CompleteFunc(ctx, id, actorID, resolution)
}

func (s *StubService) Reject(ctx context.Context, id, actorID, reason string) (*Request, error) {
	if s.RejectFunc == nil {
		return nil, errors.New("Reject() not implemented by stub")
	}
	return s.RejectFunc(ctx, id, actorID, reason)
}

func (s *StubService) Extend(ctx context.Context, id, actorID string, params ExtendParams) (*Request, error) {
	if s.ExtendFunc == nil {
		return nil, errors.New("Extend() not implemented by stub")
	}
	return s.ExtendFunc(ctx, id, actorID, params)
}

type StubRepo struct {
	CreateFunc          func(ctx context.Context, req *Request) error
	FindFunc            func(ctx context.Context, id string) (*Request, error)
	FindByReferenceFunc func(ctx context.Context, reference string) (*Request, error)
	ListFunc            func(ctx context.Context, f Filter) ([]Request, error)
	ListBySubjectFunc   func(ctx context.Context, userID, emailHash string) ([]Request, error)
	UpdateFunc          func(ctx context.Context, req *Request, prevStatus string) error
	CountByStatusFunc   func(ctx context.Context) (map[string]int, error)
	CountOverdueFunc    func(ctx context.Context, now time.Time) (int, error)
	CountStaleFunc      func(ctx context.Context, kind string, before time.Time) (int, error)
	DeleteStaleFunc     func(ctx context.Context, kind string, before time.Time, limit int) (int, error)
}

var _ Repository = (*StubRepo)(nil)

func (r *StubRepo) Create(ctx context.Context, req *Request) error {
	if r.CreateFunc == nil {
		return errors.New("Create() not implemented by stub")
	}
	return r.CreateFunc(ctx, req)
}

func (r *StubRepo) Find(ctx context.Context, id string) (*Request, error) {
	if r.FindFunc == nil {
		return nil, errors.New("Find() not implemented by stub")
	}
	return r.FindFunc(ctx, id)
}

func (r *StubRepo) FindByReference(ctx context.Context, reference string) (*Request, error) {
	if r.FindByReferenceFunc == nil {
		return nil, errors.New("FindByReference() not implemented by stub")
	}
	return r.FindByReferenceFunc(ctx, reference)
}

func (r *StubRepo) List(ctx context.Context, f Filter) ([]Request, error) {
	if r.ListFunc == nil {
		return nil, errors.New("List() not implemented by stub")
	}
	return r.ListFunc(ctx, f)
}

func (r *StubRepo) ListBySubject(ctx context.Context, userID, emailHash string) ([]Request, error) {
	if r.ListBySubjectFunc == nil {
		return nil, errors.New("ListBySubject() not implemented by stub")
	}
	return r.ListBySubjectFunc(ctx, userID, emailHash)
}

func (r *StubRepo) Update(ctx context.Context, req *Request, prevStatus string) error {
	if r.UpdateFunc == nil {
		return errors.New("Update() not implemented by stub")
	}
	return r.UpdateFunc(ctx, req, prevStatus)
}

func (r *StubRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	if r.CountByStatusFunc == nil {
		return nil, errors.New("CountByStatus() not implemented by stub")
	}
	return r.CountByStatusFunc(ctx)
}

func (r *StubRepo) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	if r.CountOverdueFunc == nil {
		return 0, errors.New("CountOverdue() not implemented by stub")
	}
	return r.CountOverdueFunc(ctx, now)
}

func (r *StubRepo) CountStale(ctx context.Context, kind string, before time.Time) (int, error) {
	if r.CountStaleFunc == nil {
		return 0, errors.New("CountStale() not implemented by stub")
	}
	return r.CountStaleFunc(ctx, kind, before)
}

func (r *StubRepo) DeleteStale(ctx context.Context, kind string, before time.Time, limit int) (int, error) {
	if r.DeleteStaleFunc == nil {
		return 0, errors.New("DeleteStale() not implemented by stub")
	}
	return r.DeleteStaleFunc(ctx, kind, before, limit)
}

// StubEraser records the accounts it was asked to erase.
type StubEraser struct {
	Erased []string
	Err    error
}

var _ Eraser = (*StubEraser)(nil)

func (e *StubEraser) Erase(_ context.Context, userID, _, _ string) error {
	if e.Err != nil {
		return e.Err
	}
	e.Erased = append(e.Erased, userID)
	return nil
}

type StubExporter struct {
	SummaryFunc func(ctx context.Context, userID string) (string, error)
}

var _ Exporter = (*StubExporter)(nil)

func (e *StubExporter) Summary(ctx context.Context, userID string) (string, error) {
	if e.SummaryFunc == nil {
		return "", errors.New("Summary() not implemented by stub")
	}
	return e.SummaryFunc(ctx, userID)
}
