package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

type StubService struct {
	ListFunc        func(ctx context.Context, f Filter) ([]Entry, error)
	ListByActorFunc func(ctx context.Context, actorID string, limit, offset int) ([]Entry, error)
}

var _ AuditService = (*StubService)(nil)

func (s *StubService) List(ctx context.Context, f Filter) ([]Entry, error) {
	if s.ListFunc == nil {
		return nil, errors.New("List() not implemented by stub")
	}
	return s.ListFunc(ctx, f)
}

func (s *StubService) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]Entry, error) {
	if s.ListByActorFunc == nil {
		return nil, errors.New("ListByActor() not implemented by stub")
	}
	return s.ListByActorFunc(ctx, actorID, limit, offset)
}

type StubRepo struct {
	InsertFunc       func(ctx context.Context, e *Entry) error
	ListFunc         func(ctx context.Context, f Filter) ([]Entry, error)
	CountBeforeFunc  func(ctx context.Context, before time.Time) (int, error)
	DeleteBeforeFunc func(ctx context.Context, before time.Time, limit int) (int, error)
	ScrubActorFunc   func(ctx context.Context, actorID string) (int, error)
}

var _ Repository = (*StubRepo)(nil)

func (r *StubRepo) Insert(ctx context.Context, e *Entry) error {
	if r.InsertFunc == nil {
		return errors.New("Insert() not implemented by stub")
	}
	return r.InsertFunc(ctx, e)
}

func (r *StubRepo) List(ctx context.Context, f Filter) ([]Entry, error) {
	if r.ListFunc == nil {
		return nil, errors.New("List() not implemented by stub")
	}
	return r.ListFunc(ctx, f)
}

func (r *StubRepo) CountBefore(ctx context.Context, before time.Time) (int, error) {
	if r.CountBeforeFunc == nil {
		return 0, errors.New("CountBefore() not implemented by stub")
	}
	return r.CountBeforeFunc(ctx, before)
}

func (r *StubRepo) DeleteBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	if r.DeleteBeforeFunc == nil {
		return 0, errors.New("DeleteBefore() not implemented by stub")
	}
	return r.DeleteBeforeFunc(ctx, before, limit)
}

func (r *StubRepo) ScrubActor(ctx context.Context, actorID string) (int, error) {
	if r.ScrubActorFunc == nil {
		return 0, errors.New("ScrubActor() not implemented by stub")
	}
	return r.ScrubActorFunc(ctx, actorID)
}

// MemoryRecorder keeps recorded entries in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
	Err     error
}

var _ Recorder = (*MemoryRecorder)(nil)

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryRecorder) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Entry(nil), m.entries...)
}

// Actions lists the recorded actions in order.
func (m *MemoryRecorder) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	actions := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		actions = append(actions, e.Action)
	}
	return actions
}
