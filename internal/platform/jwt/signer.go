package jwt

import (
	"errors"
	"time"
)

var ErrInvalidToken = errors.New("jwt: invalid token")

// Claims represents the JWT claims that are processed for authentication.
type Claims struct {
	UserID    string
	ID        string
	ExpiresAt time.Time
}

// Signer defines methods for signing and verifying JWT tokens.
//
// Verify only accepts tokens whose audience contains the given audience, so a
// token minted for one purpose cannot be replayed for another.
type Signer interface {
	Sign(subject string, audience []string, duration time.Duration) (token string, err error)
	Verify(tokenString, audience string) (*Claims, error)
}
