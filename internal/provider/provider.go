// Package provider builds the infrastructure shared by every module.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
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
	"github.com/redis/go-redis/v9"
)

type Provider struct {
	Cfg       *config.Config
	DB        *sql.DB
	TxMgr     db.TxManager
	Signer    jwt.Signer
	Mailer    email.Mailer
	Validator validation.Validator
	Hasher    hash.Hasher
	Router    router.Router
	Cipher    *crypto.Keyring
	Publisher events.Publisher
	Limiter   ratelimit.Limiter
	Metrics   *metrics.Metrics
	CSRFBaker web.Baker

	redis *redis.Client
}

func New(ctx context.Context, cfg *config.Config, dbConn *sql.DB) (*Provider, error) {
	if cfg == nil || dbConn == nil {
		return nil, errors.New("config and dbconn should not be nil")
	}

	signer, err := jwt.NewGolangJWTSigner(cfg.JWT, crypto.SubKey(cfg.App.Key, crypto.PurposeJWT))
	if err != nil {
		return nil, fmt.Errorf("new jwt signer: %w", err)
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := hash.NewArgon2Hasher(cfg.Argon2, crypto.SubKey(cfg.App.Key, crypto.PurposePassword))
	if err != nil {
		return nil, fmt.Errorf("new hasher: %w", err)
	}

	cipher, err := NewKeyring(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		Cfg:       cfg,
		DB:        dbConn,
		TxMgr:     db.NewSQLTxManager(dbConn),
		Signer:    signer,
		Mailer:    mailer,
		Validator: validation.NewGoPlaygroundValidator(),
		Hasher:    hasher,
		Router:    router.NewGoexpressRouter(),
		Cipher:    cipher,
		Publisher: newPublisher(cfg.Kafka),
		Metrics:   metrics.New(),
		CSRFBaker: security.NewCSRFCookieBaker(cfg.CSRF, crypto.SubKey(cfg.App.Key, crypto.PurposeCSRF)),
	}

	if err := p.setupLimiter(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

// NewKeyring loads the field encryption keys. The last configured key id
// encrypts new values.
func NewKeyring(ctx context.Context, cfg *config.Config) (*crypto.Keyring, error) {
	encCfg := cfg.Encryption
	ids := encCfg.KeyIDs
	if len(ids) == 0 {
		return nil, errors.New("no encryption key ids configured")
	}

	var (
		keys map[string][]byte
		err  error
	)
	if encCfg.KMS.Enabled {
		client, cerr := crypto.NewKMSClient(ctx, encCfg.KMS.Region)
		if cerr != nil {
			return nil, cerr
		}
		keys, err = crypto.NewKMSKeySource(client).Keys(ctx, encCfg.KMS.DataKeys, ids)
	} else {
		keys, err = crypto.DeriveKeys(cfg.App.Key, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("load encryption keys: %w", err)
	}

	keyring, err := crypto.NewKeyring(keys, ids[len(ids)-1])
	if err != nil {
		return nil, fmt.Errorf("new keyring: %w", err)
	}
	return keyring, nil
}

func newMailer(cfg *config.Config) (email.Mailer, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("SMTP_HOST is not set, mails will only be logged.")
		return email.LogMailer{}, nil
	}

	mailer, err := email.NewSMTPMailer(cfg.SMTP, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("new mailer: %w", err)
	}
	return mailer, nil
}

func newPublisher(cfg *config.Kafka) events.Publisher {
	if len(cfg.Brokers) == 0 {
		slog.Info("No kafka brokers configured, events will be logged.")
		return events.LogPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

func (p *Provider) setupLimiter(ctx context.Context) error {
	rlCfg := p.Cfg.RateLimit
	if p.Cfg.Redis.URL == "" {
		p.Limiter = ratelimit.NewMemoryLimiter(rlCfg.Requests, rlCfg.Window.Duration)
		return nil
	}

	client, err := ratelimit.NewRedisClient(ctx, p.Cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	p.redis = client
	p.Limiter = ratelimit.NewRedisLimiter(client, rlCfg.Requests, rlCfg.Window.Duration)
	return nil
}

// Close releases the broker and cache connections. The database is owned by
// the caller.
func (p *Provider) Close() error {
	var errs []error
	if p.Publisher != nil {
		if err := p.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
