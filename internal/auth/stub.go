package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/user"
)

type StubService struct {
	RegisterFunc          func(ctx context.Context, params RegisterParams) (*user.User, error)
	VerifyFunc            func(ctx context.Context, userID string) error
	LoginFunc             func(ctx context.Context, params LoginParams) (string, string, error)
	RefreshFunc           func(ctx context.Context, refreshToken string) (string, error)
	SendPasswordResetFunc func(ctx context.Context, email string) error
	ResetPasswordFunc     func(ctx context.Context, userID, newPassword string) error
}

var _ AuthService = (*StubService)(nil)

func (s *StubService) Register(ctx context.Context, params RegisterParams) (*user.User, error) {
	if s.RegisterFunc == nil {
		return nil, errors.New("Register() not implemented by stub")
	}
	return s.RegisterFunc(ctx, params)
}

func (s *StubService) Verify(ctx context.Context, userID string) error {
	if s.VerifyFunc == nil {
		return errors.New("Verify() not implemented by stub")
	}
	return s.VerifyFunc(ctx, userID)
}

func (s *StubService) Login(ctx context.Context, params LoginParams) (accessToken, refreshToken string, err error) {
	if s.LoginFunc == nil {
		return "", "", errors.New("Login() not implemented by stub")
	}
	return s.LoginFunc(ctx, params)
}

func (s *StubService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if s.RefreshFunc == nil {
		return "", errors.New("Refresh() not implemented by stub")
	}
	return s.RefreshFunc(ctx, refreshToken)
}

func (s *StubService) SendPasswordReset(ctx context.Context, email string) error {
	if s.SendPasswordResetFunc == nil {
		return errors.New("SendPasswordReset() not implemented by stub")
	}
	return s.SendPasswordResetFunc(ctx, email)
}

func (s *StubService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if s.ResetPasswordFunc == nil {
		return errors.New("ResetPassword() not implemented by stub")
	}
	return s.ResetPasswordFunc(ctx, userID, newPassword)
}

type StubRepo struct {
	VerifyFunc         func(ctx context.Context, userID string) error
	ChangePasswordFunc func(ctx context.Context, userID, passwordHash string) error
}

var _ Repository = (*StubRepo)(nil)

func (r *StubRepo) Verify(ctx context.Context, userID string) error {
	if r.VerifyFunc == nil {
		return errors.New("Verify() not implemented by stub")
	}
	return r.VerifyFunc(ctx, userID)
}

func (r *StubRepo) ChangePassword(ctx context.Context, userID, passwordHash string) error {
	if r.ChangePasswordFunc == nil {
		return errors.New("ChangePassword() not implemented by stub")
	}
	return r.ChangePasswordFunc(ctx, userID, passwordHash)
}

type StubUserService struct {
	CreateFunc      func(ctx context.Context, params user.CreateParams) (*user.User, error)
	FindFunc        func(ctx context.Context, userID string) (*user.User, error)
	FindByEmailFunc func(ctx context.Context, email string) (*user.User, error)
	TouchLoginFunc  func(ctx context.Context, userID string, at time.Time) error
}

var _ UserService = (*StubUserService)(nil)

func (s *StubUserService) Create(ctx context.Context, params user.CreateParams) (*user.User, error) {
	if s.CreateFunc == nil {
		return nil, errors.New("Create() not implemented by stub")
	}
	return s.CreateFunc(ctx, params)
}

func (s *StubUserService) Find(ctx context.Context, userID string) (*user.User, error) {
	if s.FindFunc == nil {
		return nil, errors.New("Find() not implemented by stub")
	}
	return s.FindFunc(ctx, userID)
}

func (s *StubUserService) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	if s.FindByEmailFunc == nil {
		return nil, errors.New("FindByEmail() not implemented by stub")
	}
	return s.FindByEmailFunc(ctx, email)
}

func (s *StubUserService) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	if s.TouchLoginFunc == nil {
		return nil
	}
	return s.TouchLoginFunc(ctx, userID, at)
}
