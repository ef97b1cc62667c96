package user

import (
	"context"
	"errors"
	"time"
)

type StubService struct {
	ListFunc          func(ctx context.Context, limit, offset int) ([]User, error)
	FindFunc          func(ctx context.Context, userID string) (*User, error)
	UpdateProfileFunc func(ctx context.Context, userID string, params ProfileParams) (*User, error)
}

var _ UserService = (*StubService)(nil)

func (s *StubService) List(ctx context.Context, limit, offset int) ([]User, error) {
	if s.ListFunc == nil {
		return nil, errors.New("List() not implemented by stub")
	}
	return s.ListFunc(ctx, limit, offset)
}

func (s *StubService) Find(ctx context.Context, userID string) (*User, error) {
	if s.FindFunc == nil {
		return nil, errors.New("Find() not implemented by stub")
	}
	return s.FindFunc(ctx, userID)
}

func (s *StubService) UpdateProfile(ctx context.Context, userID string, params ProfileParams) (*User, error) {
	if s.UpdateProfileFunc == nil {
		return nil, errors.New("UpdateProfile() not implemented by stub")
	}
	return s.UpdateProfileFunc(ctx, userID, params)
}

type StubRepo struct {
	CreateFunc          func(ctx context.Context, params CreateParams) (*User, error)
	FindFunc            func(ctx context.Context, userID string) (*User, error)
	FindByEmailFunc     func(ctx context.Context, email string) (*User, error)
	ListFunc            func(ctx context.Context, limit, offset int) ([]User, error)
	UpdateProfileFunc   func(ctx context.Context, userID string, params ProfileParams) (*User, error)
	TouchLoginFunc      func(ctx context.Context, userID string, at time.Time) error
	ListInactiveFunc    func(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error)
	CountInactiveFunc   func(ctx context.Context, before time.Time) (int, error)
	ListUnverifiedFunc  func(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error)
	CountUnverifiedFunc func(ctx context.Context, before time.Time) (int, error)
	DeleteFunc          func(ctx context.Context, userID string) error
	AnonymizeFunc       func(ctx context.Context, userID, email string, at time.Time) error
	CountStaleKeysFunc  func(ctx context.Context) (int, error)
	RekeyFunc           func(ctx context.Context, batch int) (int, error)
}

var _ Repository = (*StubRepo)(nil)

func (r *StubRepo) Create(ctx context.Context, params CreateParams) (*User, error) {
	if r.CreateFunc == nil {
		return nil, errors.New("Create() not implemented by stub")
	}
	return r.CreateFunc(ctx, params)
}

func (r *StubRepo) Find(ctx context.Context, userID string) (*User, error) {
	if r.FindFunc == nil {
		return nil, errors.New("Find() not implemented by stub")
	}
	return r.FindFunc(ctx, userID)
}

func (r *StubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if r.FindByEmailFunc == nil {
		return nil, errors.New("FindByEmail() not implemented by stub")
	}
	return r.FindByEmailFunc(ctx, email)
}

func (r *StubRepo) List(ctx context.Context, limit, offset int) ([]User, error) {
	if r.ListFunc == nil {
		return nil, errors.New("List() not implemented by stub")
	}
	return r.ListFunc(ctx, limit, offset)
}

func (r *StubRepo) UpdateProfile(ctx context.Context, userID string, params ProfileParams) (*User, error) {
	if r.UpdateProfileFunc == nil {
		return nil, errors.New("UpdateProfile() not implemented by stub")
	}
	return r.UpdateProfileFunc(ctx, userID, params)
}

func (r *StubRepo) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	if r.TouchLoginFunc == nil {
		return errors.New("TouchLogin() not implemented by stub")
	}
	return r.TouchLoginFunc(ctx, userID, at)
}

func (r *StubRepo) ListInactive(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error) {
	if r.ListInactiveFunc == nil {
		return nil, errors.New("ListInactive() not implemented by stub")
	}
	return r.ListInactiveFunc(ctx, before, after, limit)
}

func (r *StubRepo) CountInactive(ctx context.Context, before time.Time) (int, error) {
	if r.CountInactiveFunc == nil {
		return 0, errors.New("CountInactive() not implemented by stub")
	}
	return r.CountInactiveFunc(ctx, before)
}

func (r *StubRepo) ListUnverified(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error) {
	if r.ListUnverifiedFunc == nil {
		return nil, errors.New("ListUnverified() not implemented by stub")
	}
	return r.ListUnverifiedFunc(ctx, before, after, limit)
}

func (r *StubRepo) CountUnverified(ctx context.Context, before time.Time) (int, error) {
	if r.CountUnverifiedFunc == nil {
		return 0, errors.New("CountUnverified() not implemented by stub")
	}
	return r.CountUnverifiedFunc(ctx, before)
}

func (r *StubRepo) Delete(ctx context.Context, userID string) error {
	if r.DeleteFunc == nil {
		return errors.New("Delete() not implemented by stub")
	}
	return r.DeleteFunc(ctx, userID)
}

func (r *StubRepo) Anonymize(ctx context.Context, userID, email string, at time.Time) error {
	if r.AnonymizeFunc == nil {
		return errors.New("Anonymize() not implemented by stub")
	}
	return r.AnonymizeFunc(ctx, userID, email, at)
}

func (r *StubRepo) CountStaleKeys(ctx context.Context) (int, error) {
	if r.CountStaleKeysFunc == nil {
		return 0, errors.New("CountStaleKeys() not implemented by stub")
	}
	return r.CountStaleKeysFunc(ctx)
}

func (r *StubRepo) Rekey(ctx context.Context, batch int) (int, error) {
	if r.RekeyFunc == nil {
		return 0, errors.New("Rekey() not implemented by stub")
	}
	return r.RekeyFunc(ctx, batch)
}
