// Package auth registers accounts and issues access tokens.
package auth

import (
	"context"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/hash"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

// Paths that double as token audiences.
const (
	PathVerify  = "/auth/verify"
	PathReset   = "/auth/reset"
	PathRefresh = "/auth/refresh"
)

// UserService is the part of the user module auth depends on.
type UserService interface {
	Create(ctx context.Context, params user.CreateParams) (*user.User, error)
	Find(ctx context.Context, userID string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	TouchLogin(ctx context.Context, userID string, at time.Time) error
}

type Provider struct {
	Cfg       *config.Config
	DB        db.Executor
	Hasher    hash.Hasher
	Signer    jwt.Signer
	Sender    notify.Sender
	UserSvc   UserService
	CSRFBaker web.Baker
}

// AccessAudience is the audience of access tokens.
func AccessAudience(cfg *config.Config) string {
	return cfg.JWT.Issuer
}

// RefreshAudience is the audience of refresh tokens.
func RefreshAudience(cfg *config.Config) string {
	return cfg.Server.URL + PathRefresh
}

type Module struct {
	svc     *Service
	handler *Handler
}

func (m *Module) Handler() *Handler {
	return m.handler
}

func (m *Module) Service() *Service {
	return m.svc
}

func NewModule(provider *Provider) *Module {
	repo := NewRepository(provider.DB)
	svc := NewService(repo, provider)
	handler := NewHandler(svc, provider)
	return &Module{
		handler: handler,
		svc:     svc,
	}
}
