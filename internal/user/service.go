package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Repository is the interface for user management.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	Find(ctx context.Context, userID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	UpdateProfile(ctx context.Context, userID string, params ProfileParams) (*User, error)
	TouchLogin(ctx context.Context, userID string, at time.Time) error
	ListInactive(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error)
	CountInactive(ctx context.Context, before time.Time) (int, error)
	ListUnverified(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error)
	CountUnverified(ctx context.Context, before time.Time) (int, error)
	Delete(ctx context.Context, userID string) error
	Anonymize(ctx context.Context, userID, email string, at time.Time) error
	CountStaleKeys(ctx context.Context) (int, error)
	Rekey(ctx context.Context, batch int) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	return s.repo.Create(ctx, params)
}

func (s *Service) Find(ctx context.Context, userID string) (*User, error) {
	return s.repo.Find(ctx, userID)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateProfile rectifies the personal fields of an account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, params ProfileParams) (*User, error) {
	u, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	slog.Info("Profile rectified.", "user", u)
	return u, nil
}

func (s *Service) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	return s.repo.TouchLogin(ctx, userID, at)
}

func (s *Service) ListInactive(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error) {
	return s.repo.ListInactive(ctx, before, after, limit)
}

func (s *Service) CountInactive(ctx context.Context, before time.Time) (int, error) {
	return s.repo.CountInactive(ctx, before)
}

func (s *Service) ListUnverified(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error) {
	return s.repo.ListUnverified(ctx, before, after, limit)
}

func (s *Service) CountUnverified(ctx context.Context, before time.Time) (int, error) {
	return s.repo.CountUnverified(ctx, before)
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.repo.Delete(ctx, userID)
}

func (s *Service) Anonymize(ctx context.Context, userID, email string, at time.Time) error {
	return s.repo.Anonymize(ctx, userID, email, at)
}

func (s *Service) CountStaleKeys(ctx context.Context) (int, error) {
	return s.repo.CountStaleKeys(ctx)
}

// RekeyAll re-encrypts every row on an old key in batches and returns the
// number of rows rewritten.
func (s *Service) RekeyAll(ctx context.Context, batch int) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := s.repo.Rekey(ctx, batch)
		total += n
		if err != nil {
			return total, fmt.Errorf("rekey batch: %w", err)
		}

		if n == 0 {
			slog.Info("Rekey finished.", "rows", total)
			return total, nil
		}
		slog.Info("Rekeyed batch.", "rows", n)
	}
}
