// Package crypto encrypts personal data fields at rest.
//
// Encrypted values are self-describing tokens of the form
//
//	v1.<key id>.<base64url(nonce || ciphertext)>
//
// so rows written under an older key stay readable after rotation and can be
// found and re-encrypted later.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const tokenVersion = "v1"

var (
	ErrUnknownKey   = errors.New("crypto: unknown key id")
	ErrDecrypt      = errors.New("crypto: decryption failed")
	ErrMalformed    = errors.New("crypto: malformed token")
	ErrInvalidKeyID = errors.New("crypto: invalid key id")
)

// Cipher encrypts and decrypts single field values. The aad binds a
// ciphertext to the column it was written for.
type Cipher interface {
	Encrypt(plain, aad string) (string, error)
	Decrypt(token, aad string) (string, error)
	NeedsRotation(token string) bool
	CurrentKeyID() string
}

// Keyring is a Cipher backed by XChaCha20-Poly1305 keys.
type Keyring struct {
	aeads   map[string]cipher.AEAD
	current string
}

var _ Cipher = (*Keyring)(nil)

// NewKeyring builds a keyring from 32 byte keys. current names the key used
// for new ciphertexts.
func NewKeyring(keys map[string][]byte, current string) (*Keyring, error) {
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("%w: current key %q is not in the keyring", ErrUnknownKey, current)
	}

	aeads := make(map[string]cipher.AEAD, len(keys))
	for id, key := range keys {
		if id == "" || strings.Contains(id, ".") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKeyID, id)
		}

		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("new aead for key %q: %w", id, err)
		}
		aeads[id] = aead
	}

	return &Keyring{aeads: aeads, current: current}, nil
}

func (k *Keyring) CurrentKeyID() string {
	return k.current
}

// Encrypt seals plain with the current key. An empty plain value yields an
// empty token so optional columns stay NULL.
func (k *Keyring) Encrypt(plain, aad string) (string, error) {
	if plain == "" {
		return "", nil
	}

	aead := k.aeads[k.current]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plain), []byte(aad))
	return tokenVersion + "." + k.current + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (k *Keyring) Decrypt(token, aad string) (string, error) {
	if token == "" {
		return "", nil
	}

	keyID, payload, err := parseToken(token)
	if err != nil {
		return "", err
	}

	aead, ok := k.aeads[keyID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}

	sealed, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: decode payload: %v", ErrMalformed, err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: payload too short", ErrMalformed)
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// NeedsRotation reports whether token was sealed with a key other than the
// current one.
func (k *Keyring) NeedsRotation(token string) bool {
	if token == "" {
		return false
	}

	keyID, _, err := parseToken(token)
	return err != nil || keyID != k.current
}

// KeyID returns the key id embedded in token.
func KeyID(token string) (string, error) {
	keyID, _, err := parseToken(token)
	return keyID, err
}

func parseToken(token string) (keyID, payload string, err error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != tokenVersion || parts[1] == "" || parts[2] == "" {
		return "", "", ErrMalformed
	}
	return parts[1], parts[2], nil
}
