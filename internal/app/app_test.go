package app

import (
	"context"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	timex "github.com/ferdiebergado/gdprkit/internal/pkg/time"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/email"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/hash"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
	"github.com/ferdiebergado/gdprkit/internal/platform/ratelimit"
	"github.com/ferdiebergado/gdprkit/internal/platform/router"
	"github.com/ferdiebergado/gdprkit/internal/platform/validation"
	"github.com/ferdiebergado/gdprkit/internal/provider"
)

const appKey = "app-key"

func TestMain(m *testing.M) {
	logging.SetupLogger("testing", "error", os.Stdout)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	day := 24 * time.Hour
	return &config.Config{
		App:    &config.App{Name: "gdprkit", Env: "testing", Key: appKey},
		Server: &config.Server{URL: "https://gdpr.example.com", MaxBodyBytes: 1 << 20},
		JWT:    &config.JWT{JTILength: 8, Issuer: "gdprkit", TTL: timex.Duration{Duration: time.Minute}},
		CSRF: &config.CSRF{
			CookieName:   "csrf_token",
			HeaderName:   "X-CSRF-Token",
			TokenLength:  16,
			CookieMaxAge: timex.Duration{Duration: time.Hour},
		},
		Cookie:     &config.Cookie{Name: "refresh_token", MaxAge: timex.Duration{Duration: day}},
		Email:      &config.Email{},
		SMTP:       &config.SMTP{},
		Argon2:     &config.Argon2{Memory: 1024, Iterations: 1, Threads: 1, SaltLength: 16, KeyLength: 32},
		Encryption: &config.Encryption{KeyIDs: []string{"k1"}, KMS: &config.KMS{}},
		Consent: &config.Consent{
			PolicyVersion:     "2024-06",
			CookieName:        "consent",
			VisitorCookieName: "visitor_id",
			MaxAge:            timex.Duration{Duration: 180 * day},
		},
		DSR: &config.DSR{
			ResponseWindow: timex.Duration{Duration: 30 * day},
			MaxExtension:   timex.Duration{Duration: 60 * day},
			VerifyTTL:      timex.Duration{Duration: 48 * time.Hour},
		},
		Retention:  &config.Retention{BatchSize: 100},
		Audit:      &config.Queue{QueueSize: 10, Workers: 1},
		Notify:     &config.Queue{QueueSize: 10, Workers: 1},
		RateLimit:  &config.RateLimit{Requests: 1, Window: timex.Duration{Duration: time.Minute}},
		Redis:      &config.Redis{},
		Kafka:      &config.Kafka{},
		Compliance: &config.Compliance{ControllerName: "Example Ltd"},
	}
}

func newTestProvider(t *testing.T) (*provider.Provider, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	cfg := testConfig()

	signer, err := jwt.NewGolangJWTSigner(cfg.JWT, crypto.SubKey(appKey, crypto.PurposeJWT))
	if err != nil {
		t.Fatalf("jwt.NewGolangJWTSigner() = %v", err)
	}

	hasher, err := hash.NewArgon2Hasher(cfg.Argon2, crypto.SubKey(appKey, crypto.PurposePassword))
	if err != nil {
		t.Fatalf("hash.NewArgon2Hasher() = %v", err)
	}

	keyring, err := provider.NewKeyring(context.Background(), cfg)
	if err != nil {
		t.Fatalf("provider.NewKeyring() = %v", err)
	}

	return &provider.Provider{
		Cfg:       cfg,
		DB:        conn,
		TxMgr:     db.NewSQLTxManager(conn),
		Signer:    signer,
		Mailer:    email.LogMailer{},
		Validator: validation.NewGoPlaygroundValidator(),
		Hasher:    hasher,
		Router:    router.NewGoexpressRouter(),
		Cipher:    keyring,
		Publisher: &events.RecordingPublisher{},
		Limiter:   ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration),
		Metrics:   metrics.New(),
		CSRFBaker: security.NewCSRFCookieBaker(cfg.CSRF, crypto.SubKey(appKey, crypto.PurposeCSRF)),
	}, mock
}

func TestRoutes_RequireToken(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	mountRoutes(p, NewModules(p))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/me"},
		{http.MethodPatch, "/me"},
		{http.MethodDelete, "/me"},
		{http.MethodGet, "/me/export"},
		{http.MethodGet, "/me/activity"},
		{http.MethodGet, "/users"},
		{http.MethodGet, "/admin/audit"},
		{http.MethodGet, "/admin/compliance"},
		{http.MethodGet, "/admin/requests"},
		{http.MethodPost, "/admin/requests/r-1/complete"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			p.Router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("rec.Code = %d, want: %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRoutes_AdminNeedsRole(t *testing.T) {
	t.Parallel()

	p, mock := newTestProvider(t)
	mountRoutes(p, NewModules(p))

	token, err := p.Signer.Sign("u-1", []string{p.Cfg.JWT.Issuer}, time.Minute)
	if err != nil {
		t.Fatalf("p.Signer.Sign() = %v", err)
	}

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/admin/compliance", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	p.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("rec.Code = %d, want: %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRoutes_Metrics(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	mountRoutes(p, NewModules(p))

	rec := httptest.NewRecorder()
	p.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Errorf("rec.Code = %d, want: %d", rec.Code, http.StatusOK)
	}
}

func TestRoutes_SubmitIsRateLimited(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	mountRoutes(p, NewModules(p))

	submit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(`{"type":"access"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:4711"
		rec := httptest.NewRecorder()
		p.Router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := submit(); code == http.StatusTooManyRequests {
		t.Fatalf("first submission was rate limited")
	}
	if code := submit(); code != http.StatusTooManyRequests {
		t.Errorf("rec.Code = %d, want: %d", code, http.StatusTooManyRequests)
	}
}

func TestSubjectRequests_ListBySubject(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer conn.Close()

	email := "Ann@Example.com"
	mock.ExpectQuery("FROM data_requests WHERE user_id = \\$1 OR email_hash = \\$2").
		WithArgs([]driver.Value{"u-1", crypto.BlindIndex(appKey, email)}...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	lister := subjectRequests{repo: dsr.NewRepository(conn, crypto.PlainCipher{}), key: appKey}
	reqs, err := lister.ListBySubject(context.Background(), "u-1", email)
	if err != nil {
		t.Fatalf("ListBySubject() = %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("len(reqs) = %d, want: 0", len(reqs))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
