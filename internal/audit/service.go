package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	CountBefore(ctx context.Context, before time.Time) (int, error)
	DeleteBefore(ctx context.Context, before time.Time, limit int) (int, error)
	ScrubActor(ctx context.Context, actorID string) (int, error)
}

type Service struct {
	repo Repository
}

var _ Recorder = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record stores e synchronously. It joins the transaction carried by ctx,
// if any. Addresses are always stored truncated.
func (s *Service) Record(ctx context.Context, e Entry) error {
	e.IPAddress = web.AnonymizeIP(e.IPAddress)
	if err := s.repo.Insert(ctx, &e); err != nil {
		return fmt.Errorf("record %s: %w", e.Action, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]Entry, error) {
	return s.repo.List(ctx, Filter{ActorID: actorID, Limit: limit, Offset: offset})
}

func (s *Service) CountBefore(ctx context.Context, before time.Time) (int, error) {
	return s.repo.CountBefore(ctx, before)
}

// ScrubActor drops the IP address and user agent from every entry of an
// erased subject. It joins the transaction carried by ctx.
func (s *Service) ScrubActor(ctx context.Context, actorID string) (int, error) {
	n, err := s.repo.ScrubActor(ctx, actorID)
	if err != nil {
		return 0, fmt.Errorf("scrub audit entries: %w", err)
	}
	return n, nil
}

// Purge deletes entries older than before in batches and returns the total
// removed.
func (s *Service) Purge(ctx context.Context, before time.Time, batch int) (int, error) {
	total := 0
	for {
		n, err := s.repo.DeleteBefore(ctx, before, batch)
		total += n
		if err != nil {
			return total, fmt.Errorf("purge audit entries: %w", err)
		}

		if n < batch {
			return total, nil
		}

		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
