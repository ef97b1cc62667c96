package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/auth"
	"github.com/ferdiebergado/gdprkit/internal/compliance"
	"github.com/ferdiebergado/gdprkit/internal/consent"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/erasure"
	"github.com/ferdiebergado/gdprkit/internal/export"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/provider"
	"github.com/ferdiebergado/gdprkit/internal/retention"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

// Modules holds every domain module built on top of one provider. The HTTP
// server and the command line tool share it.
type Modules struct {
	User       *user.Module
	Auth       *auth.Module
	Consent    *consent.Module
	Audit      *audit.Module
	Erasure    *erasure.Module
	Export     *export.Module
	DSR        *dsr.Module
	Compliance *compliance.Module
	Retention  *retention.Runner
	Mail       *notify.Dispatcher
}

// subjectRequests lists the requests of an account straight from the
// repository so the export module does not depend on the request workflow.
type subjectRequests struct {
	repo *dsr.SQLRepository
	key  string
}

func (s subjectRequests) ListBySubject(ctx context.Context, userID, email string) ([]dsr.Request, error) {
	return s.repo.ListBySubject(ctx, userID, crypto.BlindIndex(s.key, email))
}

func NewModules(p *provider.Provider) *Modules {
	cfg := p.Cfg

	mail := notify.NewDispatcher(p.Mailer, cfg.Notify.QueueSize, cfg.Notify.Workers)
	userModule := user.NewModule(p.DB, p.Cipher)
	userSvc := userModule.Service()
	auditModule := audit.NewModule(p.DB, p.Metrics, cfg.Audit.QueueSize, cfg.Audit.Workers)
	auditSvc := auditModule.Service()
	consentModule := consent.NewModule(p.DB, cfg, p.Publisher, p.Metrics)
	consentSvc := consentModule.Service()
	requestRepo := dsr.NewRepository(p.DB, p.Cipher)

	authModule := auth.NewModule(&auth.Provider{
		Cfg:       cfg,
		DB:        p.DB,
		Hasher:    p.Hasher,
		Signer:    p.Signer,
		Sender:    mail,
		UserSvc:   userSvc,
		CSRFBaker: p.CSRFBaker,
	})

	erasureModule := erasure.NewModule(&erasure.Provider{
		Cfg:       cfg,
		TxMgr:     p.TxMgr,
		Users:     userSvc,
		Consent:   consentSvc,
		Requests:  requestRepo,
		Activity:  auditSvc,
		Auditor:   auditSvc,
		Hasher:    p.Hasher,
		Sender:    mail,
		Publisher: p.Publisher,
		Metrics:   p.Metrics,
	})

	exportModule := export.NewModule(cfg, userSvc, consentSvc,
		subjectRequests{repo: requestRepo, key: crypto.SubKey(cfg.App.Key, crypto.PurposeBlindIndex)}, auditSvc)

	dsrModule := dsr.NewModule(&dsr.Provider{
		Cfg:       cfg,
		DB:        p.DB,
		TxMgr:     p.TxMgr,
		Cipher:    p.Cipher,
		Signer:    p.Signer,
		Sender:    mail,
		Publisher: p.Publisher,
		Auditor:   auditSvc,
		Users:     userSvc,
		Eraser:    erasureModule.Service(),
		Exporter:  exportModule.Service(),
		Metrics:   p.Metrics,
	})

	runner := retention.NewRunner(&retention.Provider{
		Cfg:      cfg.Retention,
		TxMgr:    p.TxMgr,
		Users:    userSvc,
		Eraser:   erasureModule.Service(),
		Consent:  consentSvc,
		Audit:    auditSvc,
		Requests: dsrModule.Service(),
		Metrics:  p.Metrics,
	})

	complianceModule := compliance.NewModule(&compliance.Provider{
		Cfg:       cfg,
		Requests:  dsrModule.Service(),
		Consent:   consentSvc,
		Retention: runner,
		Keys:      userSvc,
		Cipher:    p.Cipher,
	})

	return &Modules{
		User:       userModule,
		Auth:       authModule,
		Consent:    consentModule,
		Audit:      auditModule,
		Erasure:    erasureModule,
		Export:     exportModule,
		DSR:        dsrModule,
		Compliance: complianceModule,
		Retention:  runner,
		Mail:       mail,
	}
}

// Start launches the mail and audit workers.
func (m *Modules) Start() {
	m.Mail.Start()
	m.Audit.Recorder().Start()
}

// Close drains the audit and mail queues.
func (m *Modules) Close(ctx context.Context) error {
	var errs []error
	if err := m.Audit.Recorder().Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close audit recorder: %w", err))
	}
	if err := m.Mail.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close mail dispatcher: %w", err))
	}
	return errors.Join(errs...)
}
