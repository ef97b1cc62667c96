package crypto

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type StubCipher struct {
	EncryptFunc       func(plain, aad string) (string, error)
	DecryptFunc       func(token, aad string) (string, error)
	NeedsRotationFunc func(token string) bool
	CurrentKeyIDFunc  func() string
}

var _ Cipher = (*StubCipher)(nil)

func (s *StubCipher) Encrypt(plain, aad string) (string, error) {
	if s.EncryptFunc == nil {
		return "", errors.New("Encrypt not implemented by stub")
	}
	return s.EncryptFunc(plain, aad)
}

func (s *StubCipher) Decrypt(token, aad string) (string, error) {
	if s.DecryptFunc == nil {
		return "", errors.New("Decrypt not implemented by stub")
	}
	return s.DecryptFunc(token, aad)
}

func (s *StubCipher) NeedsRotation(token string) bool {
	if s.NeedsRotationFunc == nil {
		return false
	}
	return s.NeedsRotationFunc(token)
}

func (s *StubCipher) CurrentKeyID() string {
	if s.CurrentKeyIDFunc == nil {
		return ""
	}
	return s.CurrentKeyIDFunc()
}

// PlainCipher is a Cipher that prefixes values instead of encrypting them.
// Tests use it to assert what reaches the database.
type PlainCipher struct{}

var _ Cipher = PlainCipher{}

func (PlainCipher) Encrypt(plain, aad string) (string, error) {
	if plain == "" {
		return "", nil
	}
	return "enc:" + aad + ":" + plain, nil
}

func (PlainCipher) Decrypt(token, aad string) (string, error) {
	if token == "" {
		return "", nil
	}
	prefix := "enc:" + aad + ":"
	if len(token) < len(prefix) || token[:len(prefix)] != prefix {
		return "", ErrDecrypt
	}
	return token[len(prefix):], nil
}

func (PlainCipher) NeedsRotation(string) bool { return false }

func (PlainCipher) CurrentKeyID() string { return "plain" }

type StubKMS struct {
	DecryptFunc         func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	GenerateDataKeyFunc func(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
}

var _ KMSAPI = (*StubKMS)(nil)

func (s *StubKMS) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if s.DecryptFunc == nil {
		return nil, errors.New("Decrypt not implemented by stub")
	}
	return s.DecryptFunc(ctx, params, optFns...)
}

func (s *StubKMS) GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	if s.GenerateDataKeyFunc == nil {
		return nil, errors.New("GenerateDataKey not implemented by stub")
	}
	return s.GenerateDataKeyFunc(ctx, params, optFns...)
}
