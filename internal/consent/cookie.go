package consent

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
)

var ErrInvalidCookie = errors.New("consent: invalid consent cookie")

// CookieState is the consent summary the banner script reads from the
// consent cookie.
type CookieState struct {
	PolicyVersion string  `json:"v"`
	Choices       Choices `json:"c"`
	UpdatedAt     int64   `json:"t"`
}

// CookieCodec writes and verifies the signed consent cookie. The value is
// base64url JSON followed by an HMAC so the frontend can read it but not
// forge it.
type CookieCodec struct {
	name   string
	key    string
	maxAge time.Duration
}

func NewCookieCodec(name, key string, maxAge time.Duration) *CookieCodec {
	return &CookieCodec{name: name, key: key, maxAge: maxAge}
}

func (c *CookieCodec) Name() string {
	return c.name
}

// Expire returns a cookie that removes the consent cookie from the browser.
func (c *CookieCodec) Expire() *http.Cookie {
	cookie := security.NewSecureCookie(c.name, "", -1)
	cookie.HttpOnly = false
	cookie.SameSite = http.SameSiteLaxMode
	return cookie
}

func (c *CookieCodec) Encode(rec *Record) (*http.Cookie, error) {
	payload, err := json.Marshal(CookieState{
		PolicyVersion: rec.PolicyVersion,
		Choices:       rec.Choices,
		UpdatedAt:     rec.CreatedAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal consent cookie: %w", err)
	}

	value := security.Sign(base64.RawURLEncoding.EncodeToString(payload), c.key)

	cookie := security.NewSecureCookie(c.name, value, c.maxAge)
	cookie.HttpOnly = false
	cookie.SameSite = http.SameSiteLaxMode
	return cookie, nil
}

func (c *CookieCodec) Decode(cookie *http.Cookie) (*CookieState, error) {
	encoded, err := security.Unsign(cookie.Value, c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %w", ErrInvalidCookie, err)
	}

	var state CookieState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("%w: unmarshal payload: %w", ErrInvalidCookie, err)
	}
	return &state, nil
}
