package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/ferdiebergado/gdprkit/internal/pkg/env"
	timex "github.com/ferdiebergado/gdprkit/internal/pkg/time"
)

var ErrInvalid = errors.New("config: invalid configuration")

type App struct {
	Name     string `json:"name,omitempty"`
	Env      string `json:"env,omitempty" env:"ENV"`
	LogLevel string `json:"log_level,omitempty" env:"LOG_LEVEL"`
	Key      string `json:"-" env:"APP_KEY"`
}

type Server struct {
	URL             string         `json:"url,omitempty" env:"URL"`
	Port            int            `json:"port,omitempty" env:"PORT"`
	ReadTimeout     timex.Duration `json:"read_timeout,omitempty"`
	WriteTimeout    timex.Duration `json:"write_timeout,omitempty"`
	IdleTimeout     timex.Duration `json:"idle_timeout,omitempty"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout,omitempty"`
	MaxBodyBytes    int64          `json:"max_body_bytes,omitempty"`
	AllowedOrigin   string         `json:"allowed_origin,omitempty" env:"ALLOWED_ORIGIN"`
	TrustedProxies  []string       `json:"trusted_proxies,omitempty" env:"TRUSTED_PROXIES"`
}

// Proxies parses TrustedProxies. Entries are CIDR prefixes or single
// addresses.
func (s *Server) Proxies() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, v := range s.TrustedProxies {
		if prefix, err := netip.ParsePrefix(v); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("%w: server.trusted_proxies: %q is not an address or prefix", ErrInvalid, v)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type DB struct {
	Driver          string         `json:"driver,omitempty"`
	MaxOpenConns    int            `json:"max_open_conns,omitempty"`
	MaxIdleConns    int            `json:"max_idle_conns,omitempty"`
	ConnMaxIdleTime timex.Duration `json:"conn_max_idle_time,omitempty"`
	ConnMaxLifetime timex.Duration `json:"conn_max_lifetime,omitempty"`
	PingTimeout     timex.Duration `json:"ping_timeout,omitempty"`
}

type JWT struct {
	JTILength  uint32         `json:"jti_length,omitempty"`
	Issuer     string         `json:"issuer,omitempty"`
	TTL        timex.Duration `json:"ttl,omitempty"`
	RefreshTTL timex.Duration `json:"refresh_ttl,omitempty"`
}

type CSRF struct {
	CookieName   string         `json:"cookie_name,omitempty"`
	HeaderName   string         `json:"header_name,omitempty"`
	TokenLength  uint32         `json:"token_length,omitempty"`
	CookieMaxAge timex.Duration `json:"cookie_max_age,omitempty"`
}

type Cookie struct {
	Name   string         `json:"name,omitempty"`
	MaxAge timex.Duration `json:"max_age,omitempty"`
}

type Email struct {
	Templates string         `json:"templates,omitempty"`
	Layout    string         `json:"layout,omitempty"`
	Sender    string         `json:"sender,omitempty" env:"MAIL_SENDER"`
	VerifyTTL timex.Duration `json:"verify_ttl,omitempty"`
}

type SMTP struct {
	Host     string `json:"-" env:"SMTP_HOST"`
	Port     int    `json:"-" env:"SMTP_PORT"`
	User     string `json:"-" env:"SMTP_USER"`
	Password string `json:"-" env:"SMTP_PASS"`
}

func (s *SMTP) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("user", maskChar),
		slog.String("password", maskChar),
	)
}

type Argon2 struct {
	Memory     uint32 `json:"memory,omitempty"`
	Iterations uint32 `json:"iterations,omitempty"`
	Threads    uint8  `json:"threads,omitempty"`
	SaltLength uint32 `json:"salt_length,omitempty"`
	KeyLength  uint32 `json:"key_length,omitempty"`
}

type KMS struct {
	Enabled bool   `json:"enabled,omitempty" env:"KMS_ENABLED"`
	Region  string `json:"region,omitempty" env:"AWS_REGION"`

	// MasterKeyID is the KMS key that wraps new data keys.
	MasterKeyID string `json:"master_key_id,omitempty" env:"KMS_MASTER_KEY_ID"`

	// DataKeys maps key ids to base64 encoded KMS ciphertext blobs.
	DataKeys map[string]string `json:"data_keys,omitempty"`
}

type Encryption struct {
	// KeyIDs lists the field encryption keys in rotation order. The last one
	// encrypts new values.
	KeyIDs []string `json:"key_ids,omitempty" env:"ENCRYPTION_KEY_IDS"`
	KMS    *KMS     `json:"kms,omitempty"`
}

type Consent struct {
	PolicyVersion     string         `json:"policy_version,omitempty" env:"CONSENT_POLICY_VERSION"`
	PolicyURL         string         `json:"policy_url,omitempty"`
	MaxAge            timex.Duration `json:"max_age,omitempty"`
	CookieName        string         `json:"cookie_name,omitempty"`
	VisitorCookieName string         `json:"visitor_cookie_name,omitempty"`
}

type DSR struct {
	ResponseWindow timex.Duration `json:"response_window,omitempty"`
	MaxExtension   timex.Duration `json:"max_extension,omitempty"`
	VerifyTTL      timex.Duration `json:"verify_ttl,omitempty"`
}

type Retention struct {
	Enabled              bool           `json:"enabled,omitempty" env:"RETENTION_ENABLED"`
	Interval             timex.Duration `json:"interval,omitempty"`
	BatchSize            int            `json:"batch_size,omitempty"`
	InactiveUserAfter    timex.Duration `json:"inactive_user_after,omitempty"`
	UnverifiedUserAfter  timex.Duration `json:"unverified_user_after,omitempty"`
	AuditLogTTL          timex.Duration `json:"audit_log_ttl,omitempty"`
	ClosedRequestTTL     timex.Duration `json:"closed_request_ttl,omitempty"`
	UnverifiedRequestTTL timex.Duration `json:"unverified_request_ttl,omitempty"`
}

type Queue struct {
	QueueSize int `json:"queue_size,omitempty"`
	Workers   int `json:"workers,omitempty"`
}

type RateLimit struct {
	Requests int            `json:"requests,omitempty"`
	Window   timex.Duration `json:"window,omitempty"`
}

type Redis struct {
	URL string `json:"-" env:"REDIS_URL"`
}

type Kafka struct {
	Brokers []string `json:"brokers,omitempty" env:"KAFKA_BROKERS"`
	Topic   string   `json:"topic,omitempty" env:"KAFKA_TOPIC"`
}

type Compliance struct {
	ControllerName string `json:"controller_name,omitempty"`
	DPOEmail       string `json:"dpo_email,omitempty" env:"DPO_EMAIL"`
}

type Config struct {
	App        *App        `json:"app,omitempty"`
	Server     *Server     `json:"server,omitempty"`
	DB         *DB         `json:"db,omitempty"`
	JWT        *JWT        `json:"jwt,omitempty"`
	CSRF       *CSRF       `json:"csrf,omitempty"`
	Cookie     *Cookie     `json:"cookie,omitempty"`
	Email      *Email      `json:"email,omitempty"`
	SMTP       *SMTP       `json:"-"`
	Argon2     *Argon2     `json:"argon2,omitempty"`
	Encryption *Encryption `json:"encryption,omitempty"`
	Consent    *Consent    `json:"consent,omitempty"`
	DSR        *DSR        `json:"dsr,omitempty"`
	Retention  *Retention  `json:"retention,omitempty"`
	Audit      *Queue      `json:"audit,omitempty"`
	Notify     *Queue      `json:"notify,omitempty"`
	RateLimit  *RateLimit  `json:"rate_limit,omitempty"`
	Redis      *Redis      `json:"-"`
	Kafka      *Kafka      `json:"kafka,omitempty"`
	Compliance *Compliance `json:"compliance,omitempty"`
}

const maskChar = "*"

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app", c.App.Name),
		slog.String("env", c.App.Env),
		slog.Any("server", c.Server),
		slog.Any("db", c.DB),
		slog.Any("jwt", c.JWT),
		slog.Any("smtp", c.SMTP),
		slog.Any("consent", c.Consent),
		slog.Any("dsr", c.DSR),
		slog.Any("retention", c.Retention),
		slog.Bool("redis", c.Redis.URL != ""),
		slog.Any("kafka_brokers", c.Kafka.Brokers),
	)
}

// Load reads the json config file and applies the environment overrides.
func Load(cfgFile string) (*Config, error) {
	slog.Info("Loading config...")
	cfgFile = filepath.Clean(cfgFile)
	configFile, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
	}

	cfg := &Config{
		App:        &App{},
		Server:     &Server{},
		DB:         &DB{},
		JWT:        &JWT{},
		CSRF:       &CSRF{},
		Cookie:     &Cookie{},
		Email:      &Email{},
		SMTP:       &SMTP{},
		Argon2:     &Argon2{},
		Encryption: &Encryption{KMS: &KMS{}},
		Consent:    &Consent{},
		DSR:        &DSR{},
		Retention:  &Retention{},
		Audit:      &Queue{},
		Notify:     &Queue{},
		RateLimit:  &RateLimit{},
		Redis:      &Redis{},
		Kafka:      &Kafka{},
		Compliance: &Compliance{},
	}

	if err := json.Unmarshal(configFile, cfg); err != nil {
		return nil, fmt.Errorf("decode json config %s: %w", cfgFile, err)
	}

	if err := env.OverrideStruct(cfg); err != nil {
		return nil, fmt.Errorf("override config with env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Config loaded.", "config_file", cfgFile, slog.Any("config", cfg))
	return cfg, nil
}

// Validate checks the settings the services cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.App.Key == "":
		return fmt.Errorf("%w: APP_KEY is not set", ErrInvalid)
	case len(c.Encryption.KeyIDs) == 0:
		return fmt.Errorf("%w: encryption.key_ids is empty", ErrInvalid)
	case c.Consent.PolicyVersion == "":
		return fmt.Errorf("%w: consent.policy_version is empty", ErrInvalid)
	case c.DSR.ResponseWindow.Duration <= 0:
		return fmt.Errorf("%w: dsr.response_window must be positive", ErrInvalid)
	case c.Retention.BatchSize <= 0:
		return fmt.Errorf("%w: retention.batch_size must be positive", ErrInvalid)
	}

	if _, err := c.Server.Proxies(); err != nil {
		return err
	}

	if c.Encryption.KMS.Enabled {
		for _, id := range c.Encryption.KeyIDs {
			if _, ok := c.Encryption.KMS.DataKeys[id]; !ok {
				return fmt.Errorf("%w: no kms data key for key id %q", ErrInvalid, id)
			}
		}
	}

	return nil
}
