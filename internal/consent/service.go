package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

var ErrStaleVersion = errors.New("consent: policy version is not current")

type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	Latest(ctx context.Context, subjectID string) (*Record, error)
	History(ctx context.Context, subjectID string, limit, offset int) ([]Record, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int, error)
	Stats(ctx context.Context, policyVersion string) (*Stats, error)
}

type Service struct {
	repo      Repository
	cfg       *config.Consent
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(repo Repository, cfg *config.Consent, publisher events.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		cfg:       cfg,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// Status is the current consent of a subject. Without a record only the
// necessary category is granted.
type Status struct {
	Choices       Choices
	PolicyVersion string
	UpdatedAt     *time.Time
	Prompt        bool
}

// Current returns the newest consent of subject. Prompt is set when there is
// no consent, when it was given for another policy version or when it is
// older than the configured maximum age.
func (s *Service) Current(ctx context.Context, subject Subject) (*Status, error) {
	rec, err := s.repo.Latest(ctx, subject.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Status{Choices: Choices{Necessary: true}, PolicyVersion: s.cfg.PolicyVersion, Prompt: true}, nil
		}
		return nil, fmt.Errorf("latest consent of %s: %w", subject.Type, err)
	}

	createdAt := rec.CreatedAt
	return &Status{
		Choices:       rec.Choices,
		PolicyVersion: rec.PolicyVersion,
		UpdatedAt:     &createdAt,
		Prompt:        s.needsPrompt(rec),
	}, nil
}

func (s *Service) needsPrompt(rec *Record) bool {
	if rec.PolicyVersion != s.cfg.PolicyVersion {
		return true
	}

	maxAge := s.cfg.MaxAge.Duration
	return maxAge > 0 && s.now().Sub(rec.CreatedAt) > maxAge
}

type SaveParams struct {
	Subject       Subject
	Choices       Choices
	PolicyVersion string
	Source        string
	IPAddress     string
	UserAgent     string
}

// Save appends a consent record. The necessary category is always granted.
// A submission for any policy version other than the current one fails with
// ErrStaleVersion.
func (s *Service) Save(ctx context.Context, params SaveParams) (*Record, error) {
	if params.PolicyVersion != s.cfg.PolicyVersion {
		return nil, fmt.Errorf("%w: got %q, current %q", ErrStaleVersion, params.PolicyVersion, s.cfg.PolicyVersion)
	}

	action := ActionUpdate
	if _, err := s.repo.Latest(ctx, params.Subject.ID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("latest consent of %s: %w", params.Subject.Type, err)
		}
		action = ActionGrant
	}

	choices := params.Choices
	choices.Necessary = true

	return s.append(ctx, params, choices, action)
}

type WithdrawParams struct {
	Subject   Subject
	Source    string
	IPAddress string
	UserAgent string
}

// Withdraw records the refusal of every optional category.
func (s *Service) Withdraw(ctx context.Context, params WithdrawParams) (*Record, error) {
	return s.append(ctx, SaveParams{
		Subject:       params.Subject,
		PolicyVersion: s.cfg.PolicyVersion,
		Source:        params.Source,
		IPAddress:     params.IPAddress,
		UserAgent:     params.UserAgent,
	}, Choices{Necessary: true}, ActionWithdraw)
}

func (s *Service) append(ctx context.Context, params SaveParams, choices Choices, action string) (*Record, error) {
	source := params.Source
	if source == "" {
		source = SourceAPI
	}

	rec := &Record{
		SubjectID:     params.Subject.ID,
		SubjectType:   params.Subject.Type,
		Choices:       choices,
		PolicyVersion: params.PolicyVersion,
		Action:        action,
		Source:        source,
		IPAddress:     web.AnonymizeIP(params.IPAddress),
		UserAgent:     params.UserAgent,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert consent: %w", err)
	}

	for category, granted := range choices.Optional() {
		s.metrics.ConsentDecision(category, granted)
	}

	event := events.New(events.ConsentChanged, rec.SubjectID, map[string]string{
		"subject_type":      rec.SubjectType,
		"action":            rec.Action,
		"policy_version":    rec.PolicyVersion,
		CategoryPreferences: strconv.FormatBool(choices.Preferences),
		CategoryAnalytics:   strconv.FormatBool(choices.Analytics),
		CategoryMarketing:   strconv.FormatBool(choices.Marketing),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish consent event.", "record", rec, "reason", err)
	}

	slog.Info("Consent recorded.", "record", rec)
	return rec, nil
}

func (s *Service) History(ctx context.Context, subject Subject, limit, offset int) ([]Record, error) {
	recs, err := s.repo.History(ctx, subject.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("consent history of %s: %w", subject.Type, err)
	}
	return recs, nil
}

// Erase deletes every record of subjectID. It joins the transaction carried
// by ctx.
func (s *Service) Erase(ctx context.Context, subjectID string) (int, error) {
	n, err := s.repo.DeleteBySubject(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("erase consent records: %w", err)
	}
	return n, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, s.cfg.PolicyVersion)
}

func (s *Service) PolicyVersion() string {
	return s.cfg.PolicyVersion
}

func (s *Service) PolicyURL() string {
	return s.cfg.PolicyURL
}
