package erasure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type Users interface {
	Find(ctx context.Context, userID string) (*user.User, error)
	Anonymize(ctx context.Context, userID, email string, at time.Time) error
}

type ConsentEraser interface {
	Erase(ctx context.Context, subjectID string) (int, error)
}

// RequestPseudonymizer rewrites the address on the data subject requests of
// an erased account.
type RequestPseudonymizer interface {
	Pseudonymize(ctx context.Context, userID, emailHash, pseudonym, pseudonymHash string) (int, error)
}

type ActivityScrubber interface {
	ScrubActor(ctx context.Context, actorID string) (int, error)
}

type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Result counts what an erasure touched.
type Result struct {
	UserID         string
	ConsentRecords int
	Requests       int
	AuditEntries   int
	ErasedAt       time.Time
}

func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", r.UserID),
		slog.Int("consent_records", r.ConsentRecords),
		slog.Int("requests", r.Requests),
		slog.Int("audit_entries", r.AuditEntries),
	)
}

type Service struct {
	txMgr     db.TxManager
	users     Users
	consent   ConsentEraser
	requests  RequestPseudonymizer
	activity  ActivityScrubber
	auditor   Recorder
	sender    notify.Sender
	publisher events.Publisher
	metrics   *metrics.Metrics
	cfg       *config.Config
	now       func() time.Time
}

func NewService(provider *Provider) *Service {
	return &Service{
		txMgr:     provider.TxMgr,
		users:     provider.Users,
		consent:   provider.Consent,
		requests:  provider.Requests,
		activity:  provider.Activity,
		auditor:   provider.Auditor,
		sender:    provider.Sender,
		publisher: provider.Publisher,
		metrics:   provider.Metrics,
		cfg:       provider.Cfg,
		now:       time.Now,
	}
}

// Erase anonymizes the account of userID and removes or pseudonymizes the
// personal data linked to it. reason is kept in the audit trail.
func (s *Service) Erase(ctx context.Context, userID, reason, actorID string) error {
	_, err := s.EraseWithResult(ctx, userID, reason, actorID)
	return err
}

func (s *Service) EraseWithResult(ctx context.Context, userID, reason, actorID string) (*Result, error) {
	var (
		res   = &Result{UserID: userID}
		email string
	)

	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		u, err := s.users.Find(txCtx, userID)
		if err != nil {
			return fmt.Errorf("find user %s: %w", userID, err)
		}

		if u.IsAnonymized() {
			return fmt.Errorf("%w: user %s", ErrAlreadyErased, userID)
		}
		email = u.Email

		res.ErasedAt = s.now().UTC()
		pseudonym := PseudonymEmail(userID)
		if err := s.users.Anonymize(txCtx, userID, pseudonym, res.ErasedAt); err != nil {
			return fmt.Errorf("anonymize user %s: %w", userID, err)
		}

		if res.ConsentRecords, err = s.consent.Erase(txCtx, userID); err != nil {
			return err
		}

		key := crypto.SubKey(s.cfg.App.Key, crypto.PurposeBlindIndex)
		res.Requests, err = s.requests.Pseudonymize(txCtx, userID, crypto.BlindIndex(key, email), pseudonym, crypto.BlindIndex(key, pseudonym))
		if err != nil {
			return fmt.Errorf("pseudonymize requests: %w", err)
		}

		if res.AuditEntries, err = s.activity.ScrubActor(txCtx, userID); err != nil {
			return err
		}

		return s.auditor.Record(txCtx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionSubjectErased,
			Resource: "user:" + userID,
			Metadata: map[string]string{
				"reason":          reason,
				"consent_records": fmt.Sprint(res.ConsentRecords),
				"requests":        fmt.Sprint(res.Requests),
				"audit_entries":   fmt.Sprint(res.AuditEntries),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Erasure(Trigger(userID, actorID))

	e := events.New(events.SubjectErased, userID, map[string]string{"reason": reason})
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.Error("Failed to publish erasure event.", "user_id", userID, "reason", err)
	}

	err = s.sender.Send(ctx, notify.Message{
		To:       email,
		Subject:  "Your account was erased",
		Template: notify.TmplAccountErased,
		Data: map[string]string{
			"Title":  "Your account was erased",
			"Header": "Your account was erased",
			"Date":   res.ErasedAt.Format("2 January 2006"),
		},
	})
	if err != nil {
		slog.Error("Failed to queue erasure confirmation.", "user_id", userID, "reason", err)
	}

	slog.Info("Subject erased.", "result", res, "actor_id", actorID)
	return res, nil
}
