package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingAuthHeader = errors.New("security: missing Authorization header")
	ErrMissingBearer     = errors.New("security: missing Bearer prefix")
)

func GenerateRandomBytes(length uint32) ([]byte, error) {
	key := make([]byte, length)

	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}

	return key, nil
}

func GenerateRandomBytesURLEncoded(length uint32) (string, error) {
	key, err := GenerateRandomBytes(length)
	if err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(key), nil
}

func CheckUint(i int) error {
	if i < 0 || i > int(^uint32(0)) {
		return fmt.Errorf("integer %d does not fit in uint32", i)
	}
	return nil
}

// SHA256Hash returns the HMAC-SHA256 of plain keyed with key.
func SHA256Hash(plain, key string) []byte {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(plain))
	return h.Sum(nil)
}

// SHA256HashHex is SHA256Hash encoded as lower case hex.
func SHA256HashHex(plain, key string) string {
	return hex.EncodeToString(SHA256Hash(plain, key))
}

func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingBearer
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
