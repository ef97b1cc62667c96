// Package dsr handles data subject requests: access, rectification,
// erasure, portability, restriction and objection.
//
// A request moves through
//
//	unverified -> pending -> in_progress -> completed | rejected
//
// and may also be rejected while unverified or pending. It must be answered
// before its due date, which can be extended once.
package dsr

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
	"github.com/google/uuid"
)

const (
	TypeAccess        = "access"
	TypeRectification = "rectification"
	TypeErasure       = "erasure"
	TypePortability   = "portability"
	TypeRestriction   = "restriction"
	TypeObjection     = "objection"
)

var Types = []string{TypeAccess, TypeRectification, TypeErasure, TypePortability, TypeRestriction, TypeObjection}

const (
	StatusUnverified = "unverified"
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

var transitions = map[string][]string{
	StatusUnverified: {StatusPending, StatusRejected},
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusCompleted, StatusRejected},
}

var (
	ErrNotFound          = errors.New("dsr: request not found")
	ErrInvalidType       = errors.New("dsr: invalid request type")
	ErrInvalidTransition = errors.New("dsr: invalid status transition")
	ErrAlreadyExtended   = errors.New("dsr: deadline already extended")
	ErrInvalidExtension  = errors.New("dsr: invalid extension")
	ErrAlreadyVerified   = errors.New("dsr: request already verified")
)

// CanTransition reports whether a request may move from one status to
// another.
func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

func ValidType(t string) bool {
	return slices.Contains(Types, t)
}

type Request struct {
	ID              string
	Reference       string
	UserID          string
	Email           string
	EmailHash       string
	Type            string
	Description     string
	Status          string
	Resolution      string
	DueAt           time.Time
	ExtendedAt      *time.Time
	ExtensionReason string
	VerifiedAt      *time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen reports whether the request still awaits an answer.
func (r *Request) IsOpen() bool {
	return r.Status == StatusPending || r.Status == StatusInProgress
}

func (r *Request) IsOverdue(now time.Time) bool {
	return r.IsOpen() && now.After(r.DueAt)
}

func (r *Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("reference", r.Reference),
		slog.String("email", logging.MaskEmail(r.Email)),
		slog.String("type", r.Type),
		slog.String("status", r.Status),
	)
}

// NewReference returns a short code the subject can quote, e.g. DSR-3F9A0C1B.
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DSR-" + strings.ToUpper(id[:8])
}

type Provider struct {
	Cfg       *config.Config
	DB        db.Executor
	TxMgr     db.TxManager
	Cipher    crypto.Cipher
	Signer    jwt.Signer
	Sender    notify.Sender
	Publisher events.Publisher
	Auditor   audit.Recorder
	Users     UserFinder
	Eraser    Eraser
	Exporter  Exporter
	Metrics   *metrics.Metrics
}

type Module struct {
	svc     *Service
	handler *Handler
}

func (m *Module) Service() *Service {
	return m.svc
}

func (m *Module) Handler() *Handler {
	return m.handler
}

func NewModule(provider *Provider) *Module {
	repo := NewRepository(provider.DB, provider.Cipher)
	svc := NewService(repo, provider)
	return &Module{
		svc:     svc,
		handler: NewHandler(svc, provider.Signer, VerifyAudience(provider.Cfg)),
	}
}
