// Package user manages accounts and their encrypted personal fields.
package user

import (
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Additional authenticated data binding each ciphertext to its column.
const (
	aadName  = "users.name"
	aadPhone = "users.phone"
)

type User struct {
	ID              string
	Email           string
	Name            string
	Phone           string
	PasswordHash    string
	Role            string
	VerifiedAt      *time.Time
	LastLoginAt     *time.Time
	TermsVersion    string
	TermsAcceptedAt *time.Time
	AnonymizedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Cursor is the position after the last account of a page. The zero value
// starts at the oldest account.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Next returns the cursor positioned after u.
func (u *User) Next() Cursor {
	return Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
}

func (u *User) IsAnonymized() bool {
	return u.AnonymizedAt != nil
}

func (u *User) IsVerified() bool {
	return u.VerifiedAt != nil
}

func (u *User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", u.ID),
		slog.String("email", logging.MaskEmail(u.Email)),
		slog.String("role", u.Role),
		slog.Bool("verified", u.IsVerified()),
		slog.Bool("anonymized", u.IsAnonymized()),
	)
}

type Module struct {
	repo    *SQLRepository
	svc     *Service
	handler *Handler
}

func (m *Module) Handler() *Handler {
	return m.handler
}

func (m *Module) Service() *Service {
	return m.svc
}

func NewModule(dbExec db.Executor, cipher crypto.Cipher) *Module {
	repo := NewRepository(dbExec, cipher)
	svc := NewService(repo)
	handler := NewHandler(svc)
	return &Module{
		repo:    repo,
		svc:     svc,
		handler: handler,
	}
}
