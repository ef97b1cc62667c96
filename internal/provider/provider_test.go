package provider_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	timex "github.com/ferdiebergado/gdprkit/internal/pkg/time"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/email"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/platform/ratelimit"
	"github.com/ferdiebergado/gdprkit/internal/provider"
)

func TestMain(m *testing.M) {
	logging.SetupLogger("testing", "error", os.Stdout)
	os.Exit(m.Run())
}

func testConfig(keyIDs ...string) *config.Config {
	return &config.Config{
		App:        &config.App{Key: "app-key"},
		JWT:        &config.JWT{JTILength: 8, Issuer: "gdprkit"},
		CSRF:       &config.CSRF{CookieName: "csrf_token", TokenLength: 16},
		Email:      &config.Email{},
		SMTP:       &config.SMTP{},
		Argon2:     &config.Argon2{Memory: 1024, Iterations: 1, Threads: 1, SaltLength: 16, KeyLength: 32},
		Encryption: &config.Encryption{KeyIDs: keyIDs, KMS: &config.KMS{}},
		RateLimit:  &config.RateLimit{Requests: 5, Window: timex.Duration{Duration: time.Minute}},
		Redis:      &config.Redis{},
		Kafka:      &config.Kafka{},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	conn, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer conn.Close()

	p, err := provider.New(context.Background(), testConfig("k1"), conn)
	if err != nil {
		t.Fatalf("provider.New() = %v", err)
	}
	defer p.Close()

	if _, ok := p.Mailer.(email.LogMailer); !ok {
		t.Errorf("p.Mailer = %T, want: email.LogMailer", p.Mailer)
	}
	if _, ok := p.Publisher.(events.LogPublisher); !ok {
		t.Errorf("p.Publisher = %T, want: events.LogPublisher", p.Publisher)
	}
	if _, ok := p.Limiter.(*ratelimit.MemoryLimiter); !ok {
		t.Errorf("p.Limiter = %T, want: *ratelimit.MemoryLimiter", p.Limiter)
	}
	if p.Cipher.CurrentKeyID() != "k1" {
		t.Errorf("p.Cipher.CurrentKeyID() = %q, want: %q", p.Cipher.CurrentKeyID(), "k1")
	}
}

func TestNew_SubKeys(t *testing.T) {
	t.Parallel()

	conn, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer conn.Close()

	cfg := testConfig("k1")
	p, err := provider.New(context.Background(), cfg, conn)
	if err != nil {
		t.Fatalf("provider.New() = %v", err)
	}
	defer p.Close()

	token, err := p.Signer.Sign("u-1", []string{"gdprkit"}, time.Minute)
	if err != nil {
		t.Fatalf("p.Signer.Sign() = %v", err)
	}

	raw, err := jwt.NewGolangJWTSigner(cfg.JWT, cfg.App.Key)
	if err != nil {
		t.Fatalf("jwt.NewGolangJWTSigner() = %v", err)
	}
	if _, err := raw.Verify(token, "gdprkit"); err == nil {
		t.Error("token verified with the raw application key")
	}

	derived, err := jwt.NewGolangJWTSigner(cfg.JWT, crypto.SubKey(cfg.App.Key, crypto.PurposeJWT))
	if err != nil {
		t.Fatalf("jwt.NewGolangJWTSigner() = %v", err)
	}
	if _, err := derived.Verify(token, "gdprkit"); err != nil {
		t.Errorf("derived.Verify() = %v", err)
	}

	cookie, err := p.CSRFBaker.Bake()
	if err != nil {
		t.Fatalf("p.CSRFBaker.Bake() = %v", err)
	}
	if err := security.NewCSRFCookieBaker(cfg.CSRF, cfg.App.Key).Check(cookie); err == nil {
		t.Error("csrf cookie checked with the raw application key")
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()

	if _, err := provider.New(context.Background(), nil, nil); err == nil {
		t.Error("provider.New(nil, nil) succeeded")
	}
}

func TestNewKeyring(t *testing.T) {
	t.Parallel()

	old, err := provider.NewKeyring(context.Background(), testConfig("2023a"))
	if err != nil {
		t.Fatalf("provider.NewKeyring() = %v", err)
	}

	token, err := old.Encrypt("Ann Example", "users.name")
	if err != nil {
		t.Fatalf("old.Encrypt() = %v", err)
	}

	rotated, err := provider.NewKeyring(context.Background(), testConfig("2023a", "2024a"))
	if err != nil {
		t.Fatalf("provider.NewKeyring() = %v", err)
	}

	if rotated.CurrentKeyID() != "2024a" {
		t.Errorf("rotated.CurrentKeyID() = %q, want: %q", rotated.CurrentKeyID(), "2024a")
	}
	if !rotated.NeedsRotation(token) {
		t.Error("token sealed with the old key does not need rotation")
	}

	plain, err := rotated.Decrypt(token, "users.name")
	if err != nil {
		t.Fatalf("rotated.Decrypt() = %v", err)
	}
	if plain != "Ann Example" {
		t.Errorf("plain = %q, want: %q", plain, "Ann Example")
	}
}

func TestNewKeyring_NoKeys(t *testing.T) {
	t.Parallel()

	if _, err := provider.NewKeyring(context.Background(), testConfig()); err == nil {
		t.Error("provider.NewKeyring() with no key ids succeeded")
	}
}
