package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/platform/hash"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

var _ AuthService = (*Service)(nil)

var (
	ErrUserNotVerified    = errors.New("auth service: email not verified")
	ErrUserExists         = errors.New("auth service: user already exists")
	ErrInvalidCredentials = errors.New("auth service: invalid credentials")
	ErrTermsNotAccepted   = errors.New("auth service: terms not accepted")
)

type Repository interface {
	Verify(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	repo    Repository
	userSvc UserService
	hasher  hash.Hasher
	signer  jwt.Signer
	sender  notify.Sender
	cfg     *config.Config
	now     func() time.Time
}

func NewService(repo Repository, provider *Provider) *Service {
	return &Service{
		repo:    repo,
		userSvc: provider.UserSvc,
		hasher:  provider.Hasher,
		signer:  provider.Signer,
		sender:  provider.Sender,
		cfg:     provider.Cfg,
		now:     time.Now,
	}
}

type RegisterParams struct {
	Email       string
	Password    string
	Name        string
	AcceptTerms bool
}

func (p RegisterParams) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", logging.MaskEmail(p.Email)),
		slog.Bool("accept_terms", p.AcceptTerms),
	)
}

// Register creates an account and mails a verification link. The accepted
// terms version is the consent policy version in force.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*user.User, error) {
	if !params.AcceptTerms {
		return nil, ErrTermsNotAccepted
	}

	existing, err := s.userSvc.FindByEmail(ctx, params.Email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if existing != nil {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.userSvc.Create(ctx, user.CreateParams{
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: passwordHash,
		TermsVersion: s.cfg.Consent.PolicyVersion,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendLink(ctx, u, PathVerify, notify.TmplVerification, "Verify your email", "Email verification"); err != nil {
		slog.Error("Failed to send verification email.", "user", u, "reason", err)
	}

	return u, nil
}

func (s *Service) sendLink(ctx context.Context, u *user.User, path, tmpl, subject, title string) error {
	audience := s.cfg.Server.URL + path
	token, err := s.signer.Sign(u.ID, []string{audience}, s.cfg.Email.VerifyTTL.Duration)
	if err != nil {
		return fmt.Errorf("sign link token: %w", err)
	}

	return s.sender.Send(ctx, notify.Message{
		To:       u.Email,
		Subject:  subject,
		Template: tmpl,
		Data: map[string]string{
			"Title":  title,
			"Header": subject,
			"Link":   audience + "?token=" + token,
		},
	})
}

func (s *Service) Verify(ctx context.Context, userID string) error {
	if err := s.repo.Verify(ctx, userID); err != nil {
		return fmt.Errorf("verify user %s: %w", userID, err)
	}
	return nil
}

type LoginParams struct {
	Email    string
	Password string
}

func (p LoginParams) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", logging.MaskEmail(p.Email)),
		slog.String("password", logging.MaskChar),
	)
}

// Login checks the credentials and returns an access and a refresh token.
// Erased accounts never log in.
func (s *Service) Login(ctx context.Context, params LoginParams) (accessToken, refreshToken string, err error) {
	u, err := s.userSvc.FindByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("find user by email: %w", err)
	}

	if u.IsAnonymized() || u.PasswordHash == "" {
		return "", "", ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(params.Password, u.PasswordHash)
	if err != nil {
		return "", "", fmt.Errorf("verify password of user %s: %w", u.ID, err)
	}

	if !ok {
		return "", "", ErrInvalidCredentials
	}

	if !u.IsVerified() {
		return "", "", ErrUserNotVerified
	}

	accessToken, err = s.signer.Sign(u.ID, []string{AccessAudience(s.cfg)}, s.cfg.JWT.TTL.Duration)
	if err != nil {
		return "", "", fmt.Errorf("sign access token of user %s: %w", u.ID, err)
	}

	refreshToken, err = s.signer.Sign(u.ID, []string{RefreshAudience(s.cfg)}, s.cfg.JWT.RefreshTTL.Duration)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token of user %s: %w", u.ID, err)
	}

	if err := s.userSvc.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		return "", "", fmt.Errorf("touch login of user %s: %w", u.ID, err)
	}

	slog.Info("User logged in.", "user", u)
	return accessToken, refreshToken, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.signer.Verify(refreshToken, RefreshAudience(s.cfg))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	u, err := s.userSvc.Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user %s: %w", claims.UserID, err)
	}

	if u.IsAnonymized() {
		return "", ErrInvalidCredentials
	}

	accessToken, err := s.signer.Sign(u.ID, []string{AccessAudience(s.cfg)}, s.cfg.JWT.TTL.Duration)
	if err != nil {
		return "", fmt.Errorf("sign access token of user %s: %w", u.ID, err)
	}
	return accessToken, nil
}

// SendPasswordReset mails a reset link. Unknown and erased addresses are
// ignored so the response does not reveal whether an account exists.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	u, err := s.userSvc.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			slog.Info("Password reset requested for unknown address.", "email", logging.MaskEmail(email))
			return nil
		}
		return fmt.Errorf("find user by email: %w", err)
	}

	if u.IsAnonymized() {
		return nil
	}

	if err := s.sendLink(ctx, u, PathReset, notify.TmplResetPassword, "Reset your password", "Password reset"); err != nil {
		return fmt.Errorf("send reset link: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.repo.ChangePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("change password of user %s: %w", userID, err)
	}

	slog.Info("Password reset.", "user_id", userID)
	return nil
}
