package dsr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/erasure"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

const PathVerify = "/requests/verify"

const dateLayout = "2 January 2006"

type Repository interface {
	Create(ctx context.Context, req *Request) error
	Find(ctx context.Context, id string) (*Request, error)
	FindByReference(ctx context.Context, reference string) (*Request, error)
	List(ctx context.Context, f Filter) ([]Request, error)
	ListBySubject(ctx context.Context, userID, emailHash string) ([]Request, error)
	Update(ctx context.Context, req *Request, prevStatus string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountOverdue(ctx context.Context, now time.Time) (int, error)
	CountStale(ctx context.Context, kind string, before time.Time) (int, error)
	DeleteStale(ctx context.Context, kind string, before time.Time, limit int) (int, error)
}

type UserFinder interface {
	Find(ctx context.Context, userID string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

// Eraser erases the account named in an erasure request.
type Eraser interface {
	Erase(ctx context.Context, userID, reason, actorID string) error
}

// Exporter describes the personal data an access request returns.
type Exporter interface {
	Summary(ctx context.Context, userID string) (string, error)
}

type Service struct {
	repo      Repository
	txMgr     db.TxManager
	users     UserFinder
	eraser    Eraser
	exporter  Exporter
	signer    jwt.Signer
	sender    notify.Sender
	publisher events.Publisher
	auditor   audit.Recorder
	metrics   *metrics.Metrics
	cfg       *config.Config
	now       func() time.Time
}

func NewService(repo Repository, provider *Provider) *Service {
	return &Service{
		repo:      repo,
		txMgr:     provider.TxMgr,
		users:     provider.Users,
		eraser:    provider.Eraser,
		exporter:  provider.Exporter,
		signer:    provider.Signer,
		sender:    provider.Sender,
		publisher: provider.Publisher,
		auditor:   provider.Auditor,
		metrics:   provider.Metrics,
		cfg:       provider.Cfg,
		now:       time.Now,
	}
}

// EmailHash is the blind index under which requests from email are stored.
func (s *Service) EmailHash(email string) string {
	return crypto.BlindIndex(crypto.SubKey(s.cfg.App.Key, crypto.PurposeBlindIndex), email)
}

type SubmitParams struct {
	Email       string
	Type        string
	Description string

	// UserID is the authenticated submitter, if any.
	UserID string
}

func (p SubmitParams) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", logging.MaskEmail(p.Email)),
		slog.String("type", p.Type),
		slog.Bool("authenticated", p.UserID != ""),
	)
}

// Submit records a request. Authenticated submitters whose account address
// matches skip verification; everyone else is mailed a verification link.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*Request, error) {
	if !ValidType(params.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, params.Type)
	}

	now := s.now().UTC()
	req := &Request{
		Reference:   NewReference(),
		Email:       strings.TrimSpace(params.Email),
		EmailHash:   s.EmailHash(params.Email),
		Type:        params.Type,
		Description: params.Description,
		Status:      StatusUnverified,
		DueAt:       now.Add(s.cfg.DSR.ResponseWindow.Duration),
		CreatedAt:   now,
	}

	if params.UserID != "" {
		u, err := s.users.Find(ctx, params.UserID)
		if err != nil {
			return nil, fmt.Errorf("find submitter: %w", err)
		}

		if strings.EqualFold(u.Email, req.Email) && !u.IsAnonymized() {
			req.UserID = u.ID
			req.Status = StatusPending
			req.VerifiedAt = &now
		}
	}

	data := map[string]string{}
	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		if req.Status == StatusUnverified {
			link, err := s.verificationLink(req)
			if err != nil {
				return fmt.Errorf("sign verification link: %w", err)
			}
			data["Link"] = link
		}
		return s.audit(txCtx, req, params.UserID, "", req.Status)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Request(req.Type, req.Status)
	s.publish(ctx, events.RequestSubmitted, req)
	s.mail(ctx, req, notify.TmplDSRReceived, "We received your request", data)

	slog.Info("Data subject request submitted.", "request", req)
	return req, nil
}

func (s *Service) verificationLink(req *Request) (string, error) {
	audience := VerifyAudience(s.cfg)
	token, err := s.signer.Sign(req.ID, []string{audience}, s.cfg.DSR.VerifyTTL.Duration)
	if err != nil {
		return "", err
	}
	return audience + "?token=" + token, nil
}

// VerifyAudience is the audience of request verification tokens.
func VerifyAudience(cfg *config.Config) string {
	return cfg.Server.URL + PathVerify
}

// Verify confirms the requester controls the address. The request is linked
// to the account registered to that address, if any.
func (s *Service) Verify(ctx context.Context, id string) (*Request, error) {
	req, err := s.change(ctx, id, "", func(ctx context.Context, req *Request, now time.Time) error {
		if req.Status != StatusUnverified {
			return ErrAlreadyVerified
		}

		if req.UserID == "" {
			u, err := s.users.FindByEmail(ctx, req.Email)
			switch {
			case err == nil && !u.IsAnonymized():
				req.UserID = u.ID
			case err != nil && !errors.Is(err, user.ErrNotFound):
				return fmt.Errorf("find account of requester: %w", err)
			}
		}

		req.Status = StatusPending
		req.VerifiedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RequestVerified, req)
	s.mail(ctx, req, notify.TmplDSRVerified, "Your request is verified", nil)
	return req, nil
}

func (s *Service) FindByReference(ctx context.Context, reference string) (*Request, error) {
	req, err := s.repo.FindByReference(ctx, strings.ToUpper(strings.TrimSpace(reference)))
	if err != nil {
		return nil, fmt.Errorf("find request %s: %w", reference, err)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	req, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find request %s: %w", id, err)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Request, error) {
	if f.Overdue && f.Now.IsZero() {
		f.Now = s.now().UTC()
	}
	return s.repo.List(ctx, f)
}

// ListBySubject returns the requests of an account, matched by id or by the
// address it was submitted from.
func (s *Service) ListBySubject(ctx context.Context, userID, email string) ([]Request, error) {
	return s.repo.ListBySubject(ctx, userID, s.EmailHash(email))
}

// Start takes a pending request into work.
func (s *Service) Start(ctx context.Context, id, actorID string) (*Request, error) {
	req, err := s.change(ctx, id, actorID, func(_ context.Context, req *Request, _ time.Time) error {
		return transition(req, StatusInProgress)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RequestUpdated, req)
	return req, nil
}

// Complete answers a request. Erasure requests erase the linked account and
// access or portability requests record what the export holds.
func (s *Service) Complete(ctx context.Context, id, actorID, resolution string) (*Request, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, StatusCompleted)
	}

	note, err := s.fulfil(ctx, current, actorID)
	if err != nil {
		return nil, fmt.Errorf("fulfil request %s: %w", current.Reference, err)
	}

	req, err := s.change(ctx, id, actorID, func(_ context.Context, req *Request, now time.Time) error {
		if err := transition(req, StatusCompleted); err != nil {
			return err
		}
		req.Resolution = strings.TrimSpace(resolution + " " + note)
		req.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RequestUpdated, req)
	s.mail(ctx, req, notify.TmplDSRCompleted, "Your request is complete", map[string]string{"Resolution": req.Resolution})
	return req, nil
}

const noAccount = "No account is registered to the requester's address."

func (s *Service) fulfil(ctx context.Context, req *Request, actorID string) (string, error) {
	switch req.Type {
	case TypeErasure:
		if req.UserID == "" {
			return noAccount, nil
		}

		err := s.eraser.Erase(ctx, req.UserID, "request "+req.Reference, actorID)
		switch {
		case err == nil:
			return "The account and its personal data were erased.", nil
		case errors.Is(err, erasure.ErrAlreadyErased), errors.Is(err, user.ErrNotFound):
			return "The account had already been erased.", nil
		default:
			return "", err
		}

	case TypeAccess, TypePortability:
		if req.UserID == "" {
			return noAccount, nil
		}

		summary, err := s.exporter.Summary(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		return summary + " Download it at " + s.cfg.Server.URL + "/me/export.", nil
	}

	return "", nil
}

// Reject closes a request without fulfilling it. reason is sent to the
// requester.
func (s *Service) Reject(ctx context.Context, id, actorID, reason string) (*Request, error) {
	req, err := s.change(ctx, id, actorID, func(_ context.Context, req *Request, now time.Time) error {
		if err := transition(req, StatusRejected); err != nil {
			return err
		}
		req.Resolution = reason
		req.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RequestUpdated, req)
	s.mail(ctx, req, notify.TmplDSRRejected, "Your request was declined", map[string]string{"Reason": reason})
	return req, nil
}

type ExtendParams struct {
	By     time.Duration
	Reason string
}

// Extend moves the due date of an open request once, by at most the
// configured maximum extension.
func (s *Service) Extend(ctx context.Context, id, actorID string, params ExtendParams) (*Request, error) {
	if params.By <= 0 || params.By > s.cfg.DSR.MaxExtension.Duration {
		return nil, fmt.Errorf("%w: %s is not within (0, %s]", ErrInvalidExtension, params.By, s.cfg.DSR.MaxExtension.Duration)
	}

	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrInvalidExtension)
	}

	req, err := s.change(ctx, id, actorID, func(_ context.Context, req *Request, now time.Time) error {
		if !req.IsOpen() {
			return fmt.Errorf("%w: cannot extend a %s request", ErrInvalidTransition, req.Status)
		}

		if req.ExtendedAt != nil {
			return ErrAlreadyExtended
		}

		req.DueAt = req.DueAt.Add(params.By)
		req.ExtendedAt = &now
		req.ExtensionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RequestUpdated, req)
	s.mail(ctx, req, notify.TmplDSRExtended, "We need more time for your request", map[string]string{"Reason": reason})
	return req, nil
}

func transition(req *Request, to string) error {
	if !CanTransition(req.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, req.Status, to)
	}
	req.Status = to
	return nil
}

// change loads a request, applies fn and stores the result with an audit
// entry in one transaction.
func (s *Service) change(ctx context.Context, id, actorID string, fn func(context.Context, *Request, time.Time) error) (*Request, error) {
	var (
		req  *Request
		prev string
	)
	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.repo.Find(txCtx, id)
		if err != nil {
			return fmt.Errorf("find request %s: %w", id, err)
		}

		prev = req.Status
		now := s.now().UTC()
		if err := fn(txCtx, req, now); err != nil {
			return err
		}
		req.UpdatedAt = now

		if err := s.repo.Update(txCtx, req, prev); err != nil {
			return fmt.Errorf("update request %s: %w", id, err)
		}
		return s.audit(txCtx, req, actorID, prev, req.Status)
	})
	if err != nil {
		return nil, err
	}

	if req.Status != prev {
		s.metrics.Request(req.Type, req.Status)
	}
	slog.Info("Data subject request changed.", "request", req, "actor_id", actorID)
	return req, nil
}

func (s *Service) audit(ctx context.Context, req *Request, actorID, from, to string) error {
	err := s.auditor.Record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   audit.ActionRequestChanged,
		Resource: "data_request:" + req.ID,
		Metadata: map[string]string{
			"reference": req.Reference,
			"type":      req.Type,
			"from":      from,
			"to":        to,
		},
	})
	if err != nil {
		return fmt.Errorf("audit request %s: %w", req.Reference, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, req *Request) {
	subjectID := req.UserID
	if subjectID == "" {
		subjectID = req.EmailHash
	}

	e := events.New(eventType, subjectID, map[string]string{
		"reference": req.Reference,
		"type":      req.Type,
		"status":    req.Status,
	})
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.Error("Failed to publish request event.", "request", req, "reason", err)
	}
}

func (s *Service) mail(ctx context.Context, req *Request, tmpl, subject string, extra map[string]string) {
	data := map[string]string{
		"Title":     subject,
		"Header":    subject,
		"Reference": req.Reference,
		"Type":      req.Type,
		"Status":    req.Status,
		"DueDate":   req.DueAt.Format(dateLayout),
	}
	for k, v := range extra {
		data[k] = v
	}

	err := s.sender.Send(ctx, notify.Message{
		To:       req.Email,
		Subject:  subject + " (" + req.Reference + ")",
		Template: tmpl,
		Data:     data,
	})
	if err != nil {
		slog.Error("Failed to queue request mail.", "request", req, "template", tmpl, "reason", err)
	}
}

// Counts returns the number of requests per status and how many open
// requests are past their due date.
func (s *Service) Counts(ctx context.Context) (byStatus map[string]int, overdue int, err error) {
	byStatus, err = s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count requests by status: %w", err)
	}

	overdue, err = s.repo.CountOverdue(ctx, s.now().UTC())
	if err != nil {
		return nil, 0, fmt.Errorf("count overdue requests: %w", err)
	}
	return byStatus, overdue, nil
}

func (s *Service) CountStale(ctx context.Context, kind string, before time.Time) (int, error) {
	return s.repo.CountStale(ctx, kind, before)
}

// PurgeStale deletes stale requests of kind in batches and returns the total
// removed.
func (s *Service) PurgeStale(ctx context.Context, kind string, before time.Time, batch int) (int, error) {
	total := 0
	for {
		n, err := s.repo.DeleteStale(ctx, kind, before, batch)
		total += n
		if err != nil {
			return total, fmt.Errorf("purge %s requests: %w", kind, err)
		}

		if n < batch {
			return total, nil
		}

		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
