package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/consent"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/retention"
)

type RequestCounter interface {
	Counts(ctx context.Context) (byStatus map[string]int, overdue int, err error)
}

type ConsentStats interface {
	Stats(ctx context.Context) (*consent.Stats, error)
}

type RetentionPreview interface {
	Run(ctx context.Context, now time.Time, dryRun bool) (*retention.Report, error)
}

type KeyStatus interface {
	CountStaleKeys(ctx context.Context) (int, error)
}

type KeyIdentifier interface {
	CurrentKeyID() string
}

type Provider struct {
	Cfg       *config.Config
	Requests  RequestCounter
	Consent   ConsentStats
	Retention RetentionPreview
	Keys      KeyStatus
	Cipher    KeyIdentifier
}

type Service struct {
	requests  RequestCounter
	consent   ConsentStats
	retention RetentionPreview
	keys      KeyStatus
	cipher    KeyIdentifier
	cfg       *config.Config
	now       func() time.Time
}

func NewService(provider *Provider) *Service {
	return &Service{
		requests:  provider.Requests,
		consent:   provider.Consent,
		retention: provider.Retention,
		keys:      provider.Keys,
		cipher:    provider.Cipher,
		cfg:       provider.Cfg,
		now:       time.Now,
	}
}

// Report gathers the current figures and evaluates the checklist.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	now := s.now().UTC()
	r := &Report{GeneratedAt: now, Controller: s.cfg.Compliance.ControllerName}

	byStatus, overdue, err := s.requests.Counts(ctx)
	if err != nil {
		return nil, err
	}
	r.Requests = RequestSummary{
		Open:     byStatus[dsr.StatusPending] + byStatus[dsr.StatusInProgress],
		Overdue:  overdue,
		ByStatus: byStatus,
	}

	stats, err := s.consent.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("consent stats: %w", err)
	}
	r.Consent = ConsentSummary{
		PolicyVersion: s.cfg.Consent.PolicyVersion,
		Subjects:      stats.Subjects,
		AnalyticsRate: rate(stats.Analytics, stats.Subjects),
		MarketingRate: rate(stats.Marketing, stats.Subjects),
		StaleVersion:  stats.StaleVersion,
	}

	preview, err := s.retention.Run(ctx, now, true)
	if err != nil {
		return nil, fmt.Errorf("preview retention: %w", err)
	}
	r.Retention = retentionSummary(s.cfg.Retention.Enabled, preview)

	stale, err := s.keys.CountStaleKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rows on old keys: %w", err)
	}
	r.Encryption = EncryptionSummary{CurrentKey: s.cipher.CurrentKeyID(), RowsOnOldKeys: stale}

	r.Checklist = s.checklist(r)

	slog.Info("Compliance report generated.", "passed", r.Passed(), "overdue_requests", overdue)
	return r, nil
}

func retentionSummary(enabled bool, preview *retention.Report) RetentionSummary {
	sum := RetentionSummary{Enabled: enabled}
	for _, p := range preview.Policies {
		switch p.Policy {
		case retention.PolicyInactiveUsers, retention.PolicyUnverifiedUsers:
			sum.UsersDue += p.Candidates
		case retention.PolicyAuditLog:
			sum.AuditEntriesDue += p.Candidates
		case retention.PolicyClosedRequests, retention.PolicyUnverifiedRequests:
			sum.RequestsDue += p.Candidates
		}
	}
	return sum
}

func (s *Service) checklist(r *Report) []CheckItem {
	return []CheckItem{
		{
			Key:    CheckNoOverdueRequests,
			Title:  "Data subject requests are answered on time",
			Passed: r.Requests.Overdue == 0,
			Detail: fmt.Sprintf("%d overdue of %d open", r.Requests.Overdue, r.Requests.Open),
		},
		{
			Key:    CheckPolicyPublished,
			Title:  "A consent policy version is published",
			Passed: r.Consent.PolicyVersion != "",
			Detail: r.Consent.PolicyVersion,
		},
		{
			Key:    CheckRetentionEnabled,
			Title:  "Retention cleanup runs automatically",
			Passed: r.Retention.Enabled,
		},
		{
			Key:    CheckEncryptionCurrent,
			Title:  "Personal fields are encrypted with the current key",
			Passed: r.Encryption.RowsOnOldKeys == 0,
			Detail: fmt.Sprintf("%d rows on old keys", r.Encryption.RowsOnOldKeys),
		},
		{
			Key:    CheckDPOConfigured,
			Title:  "A data protection officer contact is configured",
			Passed: s.cfg.Compliance.DPOEmail != "",
		},
		{
			Key:    CheckPolicyURL,
			Title:  "The privacy policy URL is configured",
			Passed: s.cfg.Consent.PolicyURL != "",
			Detail: s.cfg.Consent.PolicyURL,
		},
	}
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
