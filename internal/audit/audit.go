// Package audit records who accessed or changed personal data.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

// Actions written by the domain services.
const (
	ActionProfileRead    = "profile.read"
	ActionProfileUpdated = "profile.updated"
	ActionDataExported   = "data.exported"
	ActionSubjectErased  = "subject.erased"
	ActionRequestChanged = "request.changed"
	ActionConsentChanged = "consent.changed"
	ActionAuditViewed    = "audit.viewed"
	ActionUsersListed    = "users.listed"
)

type Entry struct {
	ID        string
	ActorID   string
	Action    string
	Resource  string
	Method    string
	Path      string
	Status    int
	IPAddress string
	UserAgent string
	Metadata  map[string]string
	CreatedAt time.Time
}

func (e Entry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("actor_id", e.ActorID),
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.Int("status", e.Status),
	)
}

// Recorder stores audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Module struct {
	svc      *Service
	recorder *AsyncRecorder
	handler  *Handler
}

func (m *Module) Service() *Service {
	return m.svc
}

// Recorder returns the queue used by the request middleware.
func (m *Module) Recorder() *AsyncRecorder {
	return m.recorder
}

func (m *Module) Handler() *Handler {
	return m.handler
}

func NewModule(dbExec db.Executor, m *metrics.Metrics, queueSize, workers int) *Module {
	repo := NewRepository(dbExec)
	svc := NewService(repo)
	return &Module{
		svc:      svc,
		recorder: NewAsyncRecorder(svc, m, queueSize, workers),
		handler:  NewHandler(svc),
	}
}
