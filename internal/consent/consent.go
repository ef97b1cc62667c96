// Package consent stores the cookie consent choices of users and anonymous
// visitors. Records are append-only; the newest record of a subject is its
// current consent.
package consent

import (
	"log/slog"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

const (
	CategoryNecessary   = "necessary"
	CategoryPreferences = "preferences"
	CategoryAnalytics   = "analytics"
	CategoryMarketing   = "marketing"
)

const (
	SubjectUser    = "user"
	SubjectVisitor = "visitor"
)

const (
	ActionGrant    = "grant"
	ActionUpdate   = "update"
	ActionWithdraw = "withdraw"
)

const (
	SourceBanner   = "banner"
	SourceSettings = "settings"
	SourceAPI      = "api"
)

// Category describes one consent category on the banner.
type Category struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

var Categories = []Category{
	{CategoryNecessary, true, "Session, security and load balancing cookies. Always active."},
	{CategoryPreferences, false, "Remembers settings such as language and region."},
	{CategoryAnalytics, false, "Anonymous usage statistics that help improve the service."},
	{CategoryMarketing, false, "Personalised advertising and campaign measurement."},
}

type Choices struct {
	Necessary   bool `json:"necessary"`
	Preferences bool `json:"preferences"`
	Analytics   bool `json:"analytics"`
	Marketing   bool `json:"marketing"`
}

// Optional returns the choices of the categories a subject may refuse.
func (c Choices) Optional() map[string]bool {
	return map[string]bool{
		CategoryPreferences: c.Preferences,
		CategoryAnalytics:   c.Analytics,
		CategoryMarketing:   c.Marketing,
	}
}

// Subject is the user or visitor a consent record belongs to.
type Subject struct {
	ID   string
	Type string
}

type Record struct {
	ID            string
	SubjectID     string
	SubjectType   string
	Choices       Choices
	PolicyVersion string
	Action        string
	Source        string
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
}

func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("subject_type", r.SubjectType),
		slog.String("action", r.Action),
		slog.String("policy_version", r.PolicyVersion),
	)
}

// Stats summarises the current consent of every subject.
type Stats struct {
	Subjects     int
	Analytics    int
	Marketing    int
	StaleVersion int
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

func NewModule(dbExec db.Executor, cfg *config.Config, publisher events.Publisher, m *metrics.Metrics) *Module {
	repo := NewRepository(dbExec)
	svc := NewService(repo, cfg.Consent, publisher, m)
	codec := NewCookieCodec(cfg.Consent.CookieName, crypto.SubKey(cfg.App.Key, crypto.PurposeConsentCookie), cfg.Consent.MaxAge.Duration)
	return &Module{
		svc:     svc,
		handler: NewHandler(svc, codec, cfg.Consent),
	}
}
