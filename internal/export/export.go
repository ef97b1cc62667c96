// Package export assembles the personal data held about an account for the
// rights of access and portability.
package export

import (
	"github.com/ferdiebergado/gdprkit/internal/config"
)

// FormatVersion changes when the bundle layout changes.
const FormatVersion = "1"

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

func NewModule(cfg *config.Config, users UserFinder, consent ConsentHistory, requests RequestLister, activity ActivityLister) *Module {
	svc := NewService(cfg, users, consent, requests, activity)
	return &Module{
		svc:     svc,
		handler: NewHandler(svc),
	}
}
