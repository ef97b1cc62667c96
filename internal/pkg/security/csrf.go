package security

import (
	"crypto/hmac"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

var (
	ErrInvalidToken = errors.New("security: invalid signed token")
	ErrMACMismatch  = errors.New("security: mac mismatch")
)

var _ web.Baker = &CSRFCookieBaker{}

type CSRFCookieBaker struct {
	name       string
	length     uint32
	expiration time.Duration
	pepper     string
}

func (c *CSRFCookieBaker) Bake() (*http.Cookie, error) {
	token, err := GenerateRandomBytesURLEncoded(c.length)
	if err != nil {
		return nil, err
	}

	csrfCookie := NewSecureCookie(c.name, Sign(token, c.pepper), c.expiration)
	csrfCookie.HttpOnly = false

	return csrfCookie, nil
}

// Check verifies the signature of the provided CSRF token.
func (c *CSRFCookieBaker) Check(csrfCookie *http.Cookie) error {
	if _, err := Unsign(csrfCookie.Value, c.pepper); err != nil {
		return fmt.Errorf("check csrf cookie: %w", err)
	}
	return nil
}

// NewCSRFCookieBaker creates and returns a new instance of CSRFCookieBaker configured
// with the provided CSRF configuration and security key.
func NewCSRFCookieBaker(cfg *config.CSRF, securityKey string) *CSRFCookieBaker {
	return &CSRFCookieBaker{
		name:       cfg.CookieName,
		length:     cfg.TokenLength,
		expiration: cfg.CookieMaxAge.Duration,
		pepper:     securityKey,
	}
}

// Sign appends a base64url HMAC of value to value, separated by a dot.
func Sign(value, key string) string {
	sig := base64.RawURLEncoding.EncodeToString(SHA256Hash(value, key))
	return value + "." + sig
}

// Unsign verifies a value produced by Sign and returns the original value.
func Unsign(signed, key string) (string, error) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || idx == len(signed)-1 {
		return "", ErrInvalidToken
	}
	value, sig := signed[:idx], signed[idx+1:]

	sigBytes, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("base64 decode signature: %w", err)
	}

	if !hmac.Equal(sigBytes, SHA256Hash(value, key)) {
		return "", ErrMACMismatch
	}
	return value, nil
}
