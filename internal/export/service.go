package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/consent"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type UserFinder interface {
	Find(ctx context.Context, userID string) (*user.User, error)
}

type ConsentHistory interface {
	History(ctx context.Context, subject consent.Subject, limit, offset int) ([]consent.Record, error)
}

type RequestLister interface {
	ListBySubject(ctx context.Context, userID, email string) ([]dsr.Request, error)
}

type ActivityLister interface {
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]audit.Entry, error)
}

type Controller struct {
	Name     string `json:"name,omitempty"`
	DPOEmail string `json:"dpo_email,omitempty"`
}

// Bundle is the machine-readable copy of an account's personal data.
type Bundle struct {
	Format      string               `json:"format"`
	GeneratedAt time.Time            `json:"generated_at"`
	Controller  Controller           `json:"controller"`
	Profile     *user.UserData       `json:"profile"`
	Consent     []consent.RecordData `json:"consent"`
	Requests    []dsr.RequestData    `json:"requests"`
	Activity    []audit.EntryData    `json:"activity"`
}

type Service struct {
	users    UserFinder
	consent  ConsentHistory
	requests RequestLister
	activity ActivityLister
	cfg      *config.Compliance
	now      func() time.Time
}

func NewService(cfg *config.Config, users UserFinder, consentHistory ConsentHistory, requests RequestLister, activity ActivityLister) *Service {
	return &Service{
		users:    users,
		consent:  consentHistory,
		requests: requests,
		activity: activity,
		cfg:      cfg.Compliance,
		now:      time.Now,
	}
}

// Build collects the decrypted profile, the consent history, the data subject
// requests and the activity trail of userID.
func (s *Service) Build(ctx context.Context, userID string) (*Bundle, error) {
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}

	records, err := s.consent.History(ctx, consent.Subject{ID: userID, Type: consent.SubjectUser}, 0, 0)
	if err != nil {
		return nil, err
	}

	reqs, err := s.requests.ListBySubject(ctx, userID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("list requests of %s: %w", userID, err)
	}

	entries, err := s.activity.ListByActor(ctx, userID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list activity of %s: %w", userID, err)
	}

	now := s.now().UTC()
	b := &Bundle{
		Format:      FormatVersion,
		GeneratedAt: now,
		Controller:  Controller{Name: s.cfg.ControllerName, DPOEmail: s.cfg.DPOEmail},
		Profile:     user.NewUserData(u),
		Consent:     make([]consent.RecordData, 0, len(records)),
		Requests:    make([]dsr.RequestData, 0, len(reqs)),
		Activity:    make([]audit.EntryData, 0, len(entries)),
	}

	for i := range records {
		b.Consent = append(b.Consent, *consent.NewRecordData(&records[i]))
	}
	for i := range reqs {
		b.Requests = append(b.Requests, *dsr.NewRequestData(&reqs[i], now))
	}
	for i := range entries {
		b.Activity = append(b.Activity, *audit.NewEntryData(&entries[i]))
	}

	slog.Info("Personal data export built.", "user", u, "consent_records", len(b.Consent),
		"requests", len(b.Requests), "activity", len(b.Activity))
	return b, nil
}

// Summary describes in one sentence what an export of userID holds.
func (s *Service) Summary(ctx context.Context, userID string) (string, error) {
	b, err := s.Build(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("The export holds the profile, %s, %s and %s.",
		plural(len(b.Consent), "consent record"),
		plural(len(b.Requests), "request"),
		plural(len(b.Activity), "activity entry")), nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if noun[len(noun)-1] == 'y' {
		return fmt.Sprintf("%d %sies", n, noun[:len(noun)-1])
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
