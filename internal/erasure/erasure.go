// Package erasure implements the right to be forgotten. Accounts are
// anonymized in place so request and audit history keep a valid subject.
package erasure

import (
	"errors"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/hash"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

var ErrAlreadyErased = errors.New("erasure: subject already erased")

// Triggers label the erasure metric.
const (
	TriggerSelf     = "self"
	TriggerOperator = "operator"
	TriggerSystem   = "system"
)

// Trigger names who started the erasure of userID.
func Trigger(userID, actorID string) string {
	switch actorID {
	case "":
		return TriggerSystem
	case userID:
		return TriggerSelf
	default:
		return TriggerOperator
	}
}

// PseudonymEmail is the address an erased account is left with.
func PseudonymEmail(userID string) string {
	return "erased+" + userID + "@anonymized.invalid"
}

type Provider struct {
	Cfg       *config.Config
	TxMgr     db.TxManager
	Users     Users
	Consent   ConsentEraser
	Requests  RequestPseudonymizer
	Activity  ActivityScrubber
	Auditor   Recorder
	Hasher    hash.Hasher
	Sender    notify.Sender
	Publisher events.Publisher
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
	svc := NewService(provider)
	return &Module{
		svc:     svc,
		handler: NewHandler(svc, provider.Users, provider.Hasher, provider.Cfg.Cookie.Name),
	}
}
