// Package retention removes personal data that has outlived its purpose.
//
// Each policy selects records older than a cutoff derived from the
// configuration and either erases, deletes or purges them in batches. A
// policy with a zero period is disabled.
package retention

import (
	"log/slog"
	"time"
)

// Policy names, also used as the metric label.
const (
	PolicyInactiveUsers      = "inactive_users"
	PolicyUnverifiedUsers    = "unverified_users"
	PolicyAuditLog           = "audit_log"
	PolicyClosedRequests     = "closed_requests"
	PolicyUnverifiedRequests = "unverified_requests"
)

// Failure is an item a policy could not process.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type PolicyResult struct {
	Policy     string    `json:"policy"`
	Cutoff     time.Time `json:"cutoff"`
	Candidates int       `json:"candidates"`
	Processed  int       `json:"processed"`
	Failures   []Failure `json:"failures,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type Report struct {
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Policies   []PolicyResult `json:"policies"`
}

// Processed returns the number of records changed across all policies.
func (r *Report) Processed() int {
	n := 0
	for _, p := range r.Policies {
		n += p.Processed
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Policies {
		n += len(p.Failures)
		if p.Error != "" {
			n++
		}
	}
	return n
}

func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("dry_run", r.DryRun),
		slog.Int("policies", len(r.Policies)),
		slog.Int("processed", r.Processed()),
		slog.Int("failed", r.Failed()),
		slog.Duration("took", r.FinishedAt.Sub(r.StartedAt)),
	)
}
