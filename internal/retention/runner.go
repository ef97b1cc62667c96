package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

const defaultBatchSize = 100

type Users interface {
	ListInactive(ctx context.Context, before time.Time, after user.Cursor, limit int) ([]user.User, error)
	CountInactive(ctx context.Context, before time.Time) (int, error)
	ListUnverified(ctx context.Context, before time.Time, after user.Cursor, limit int) ([]user.User, error)
	CountUnverified(ctx context.Context, before time.Time) (int, error)
	Delete(ctx context.Context, userID string) error
}

type Eraser interface {
	Erase(ctx context.Context, userID, reason, actorID string) error
}

type ConsentEraser interface {
	Erase(ctx context.Context, subjectID string) (int, error)
}

type AuditPurger interface {
	CountBefore(ctx context.Context, before time.Time) (int, error)
	Purge(ctx context.Context, before time.Time, batch int) (int, error)
}

type RequestPurger interface {
	CountStale(ctx context.Context, kind string, before time.Time) (int, error)
	PurgeStale(ctx context.Context, kind string, before time.Time, batch int) (int, error)
}

type Provider struct {
	Cfg      *config.Retention
	TxMgr    db.TxManager
	Users    Users
	Eraser   Eraser
	Consent  ConsentEraser
	Audit    AuditPurger
	Requests RequestPurger
	Metrics  *metrics.Metrics
}

type Runner struct {
	cfg      *config.Retention
	txMgr    db.TxManager
	users    Users
	eraser   Eraser
	consent  ConsentEraser
	audit    AuditPurger
	requests RequestPurger
	metrics  *metrics.Metrics
}

func NewRunner(provider *Provider) *Runner {
	return &Runner{
		cfg:      provider.Cfg,
		txMgr:    provider.TxMgr,
		users:    provider.Users,
		eraser:   provider.Eraser,
		consent:  provider.Consent,
		audit:    provider.Audit,
		requests: provider.Requests,
		metrics:  provider.Metrics,
	}
}

type policy struct {
	name    string
	period  time.Duration
	count   func(ctx context.Context, cutoff time.Time) (int, error)
	process func(ctx context.Context, cutoff time.Time, res *PolicyResult) error
}

func (r *Runner) policies() []policy {
	return []policy{
		{PolicyInactiveUsers, r.cfg.InactiveUserAfter.Duration, r.users.CountInactive, r.eraseInactive},
		{PolicyUnverifiedUsers, r.cfg.UnverifiedUserAfter.Duration, r.users.CountUnverified, r.deleteUnverified},
		{PolicyAuditLog, r.cfg.AuditLogTTL.Duration, r.audit.CountBefore, r.purgeAudit},
		{PolicyClosedRequests, r.cfg.ClosedRequestTTL.Duration, r.countRequests(dsr.StaleClosed), r.purgeRequests(dsr.StaleClosed)},
		{PolicyUnverifiedRequests, r.cfg.UnverifiedRequestTTL.Duration, r.countRequests(dsr.StaleUnverified), r.purgeRequests(dsr.StaleUnverified)},
	}
}

// Run applies every enabled policy relative to now. In a dry run only the
// candidates are counted. A failing item or policy is recorded in the report
// and the run moves on; the returned error joins the policy errors.
func (r *Runner) Run(ctx context.Context, now time.Time, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun, StartedAt: time.Now().UTC()}

	var errs []error
	for _, p := range r.policies() {
		if p.period <= 0 {
			continue
		}

		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := PolicyResult{Policy: p.name, Cutoff: now.Add(-p.period).UTC()}

		candidates, err := p.count(ctx, res.Cutoff)
		if err == nil {
			res.Candidates = candidates
			if !dryRun && candidates > 0 {
				err = p.process(ctx, res.Cutoff, &res)
			}
		}

		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("policy %s: %w", p.name, err))
			slog.Error("Retention policy failed.", "policy", p.name, "reason", err)
		}

		r.metrics.RetentionProcessed(p.name, res.Processed)
		report.Policies = append(report.Policies, res)
	}

	report.FinishedAt = time.Now().UTC()
	slog.Info("Retention run finished.", "report", report)
	return report, errors.Join(errs...)
}

func (r *Runner) batchSize() int {
	if r.cfg.BatchSize > 0 {
		return r.cfg.BatchSize
	}
	return defaultBatchSize
}

// eachUser pages through list with a cursor and feeds every account to fn.
// A failed account stays behind the cursor, so each candidate is tried once
// per run.
func (r *Runner) eachUser(ctx context.Context, cutoff time.Time, res *PolicyResult,
	list func(context.Context, time.Time, user.Cursor, int) ([]user.User, error),
	fn func(context.Context, *user.User) error,
) error {
	batch := r.batchSize()
	var after user.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		users, err := list(ctx, cutoff, after, batch)
		if err != nil {
			return err
		}

		for i := range users {
			u := &users[i]
			if err := fn(ctx, u); err != nil {
				res.Failures = append(res.Failures, Failure{ID: u.ID, Error: err.Error()})
				slog.Warn("Retention item failed.", "policy", res.Policy, "user", u, "reason", err)
				continue
			}
			res.Processed++
		}

		if len(users) < batch {
			return nil
		}
		after = users[len(users)-1].Next()
	}
}

func (r *Runner) eraseInactive(ctx context.Context, cutoff time.Time, res *PolicyResult) error {
	reason := "inactive since " + cutoff.Format(time.DateOnly)
	return r.eachUser(ctx, cutoff, res, r.users.ListInactive, func(ctx context.Context, u *user.User) error {
		return r.eraser.Erase(ctx, u.ID, reason, "")
	})
}

// deleteUnverified removes accounts that never confirmed their address
// together with their consent records.
func (r *Runner) deleteUnverified(ctx context.Context, cutoff time.Time, res *PolicyResult) error {
	return r.eachUser(ctx, cutoff, res, r.users.ListUnverified, func(ctx context.Context, u *user.User) error {
		return r.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
			if _, err := r.consent.Erase(txCtx, u.ID); err != nil {
				return err
			}
			return r.users.Delete(txCtx, u.ID)
		})
	})
}

func (r *Runner) purgeAudit(ctx context.Context, cutoff time.Time, res *PolicyResult) error {
	n, err := r.audit.Purge(ctx, cutoff, r.batchSize())
	res.Processed = n
	return err
}

func (r *Runner) countRequests(kind string) func(context.Context, time.Time) (int, error) {
	return func(ctx context.Context, cutoff time.Time) (int, error) {
		return r.requests.CountStale(ctx, kind, cutoff)
	}
}

func (r *Runner) purgeRequests(kind string) func(context.Context, time.Time, *PolicyResult) error {
	return func(ctx context.Context, cutoff time.Time, res *PolicyResult) error {
		n, err := r.requests.PurgeStale(ctx, kind, cutoff, r.batchSize())
		res.Processed = n
		return err
	}
}
