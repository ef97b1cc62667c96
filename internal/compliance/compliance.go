// Package compliance summarises the state of the GDPR controls into a report
// with a checklist an auditor can read.
package compliance

import (
	"time"
)

// Checklist item keys.
const (
	CheckNoOverdueRequests = "no_overdue_requests"
	CheckPolicyPublished   = "consent_policy_published"
	CheckRetentionEnabled  = "retention_enabled"
	CheckEncryptionCurrent = "encryption_on_current_key"
	CheckDPOConfigured     = "dpo_contact_configured"
	CheckPolicyURL         = "privacy_policy_url_configured"
)

type RequestSummary struct {
	Open     int            `json:"open"`
	Overdue  int            `json:"overdue"`
	ByStatus map[string]int `json:"by_status"`
}

type ConsentSummary struct {
	PolicyVersion string  `json:"policy_version"`
	Subjects      int     `json:"subjects"`
	AnalyticsRate float64 `json:"analytics_rate"`
	MarketingRate float64 `json:"marketing_rate"`
	StaleVersion  int     `json:"stale_version"`
}

type RetentionSummary struct {
	Enabled         bool `json:"enabled"`
	UsersDue        int  `json:"users_due"`
	AuditEntriesDue int  `json:"audit_entries_due"`
	RequestsDue     int  `json:"requests_due"`
}

type EncryptionSummary struct {
	CurrentKey    string `json:"current_key"`
	RowsOnOldKeys int    `json:"rows_on_old_keys"`
}

type CheckItem struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Controller  string            `json:"controller,omitempty"`
	Requests    RequestSummary    `json:"requests"`
	Consent     ConsentSummary    `json:"consent"`
	Retention   RetentionSummary  `json:"retention"`
	Encryption  EncryptionSummary `json:"encryption"`
	Checklist   []CheckItem       `json:"checklist"`
}

// Passed reports whether every checklist item passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checklist {
		if !c.Passed {
			return false
		}
	}
	return true
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
		handler: NewHandler(svc),
	}
}
