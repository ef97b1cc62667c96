package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyInfoPrefix    = "gdprkit field key "
	subKeyInfoPrefix = "gdprkit subkey "
)

// Purposes of the secrets derived from the application key with SubKey.
const (
	PurposeBlindIndex    = "blind index"
	PurposeConsentCookie = "consent cookie"
	PurposeCSRF          = "csrf"
	PurposeJWT           = "jwt"
	PurposePassword      = "password pepper"
)

// DeriveKeys derives one key per id from the application key with
// HKDF-SHA256. It is the key source when KMS is disabled.
func DeriveKeys(appKey string, ids []string) (map[string][]byte, error) {
	if appKey == "" {
		return nil, errors.New("derive keys: application key is empty")
	}

	keys := make(map[string][]byte, len(ids))
	for _, id := range ids {
		r := hkdf.New(sha256.New, []byte(appKey), nil, []byte(keyInfoPrefix+id))
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("derive key %q: %w", id, err)
		}
		keys[id] = key
	}
	return keys, nil
}

// SubKey derives the hex encoded secret used for one purpose from the
// application key, so no two signing or hashing schemes share a key.
func SubKey(appKey, purpose string) string {
	r := hkdf.New(sha256.New, []byte(appKey), nil, []byte(subKeyInfoPrefix+purpose))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF-SHA256 reads up to 255 blocks.
		panic(fmt.Sprintf("derive %s subkey: %v", purpose, err))
	}
	return hex.EncodeToString(key)
}

// KMSAPI is the part of the AWS KMS client used to create and unwrap data keys.
type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
}

// KMSKeySource unwraps data keys that were generated with KMS GenerateDataKey
// and stored as base64 ciphertext blobs in the configuration.
type KMSKeySource struct {
	client KMSAPI
}

func NewKMSKeySource(client KMSAPI) *KMSKeySource {
	return &KMSKeySource{client: client}
}

// NewKMSClient loads the default AWS credential chain for region.
func NewKMSClient(ctx context.Context, region string) (*kms.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return kms.NewFromConfig(cfg), nil
}

func (s *KMSKeySource) Keys(ctx context.Context, wrapped map[string]string, ids []string) (map[string][]byte, error) {
	keys := make(map[string][]byte, len(ids))
	for _, id := range ids {
		blob, ok := wrapped[id]
		if !ok {
			return nil, fmt.Errorf("%w: no wrapped data key for %q", ErrUnknownKey, id)
		}

		ciphertext, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return nil, fmt.Errorf("decode wrapped key %q: %w", id, err)
		}

		out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
			CiphertextBlob: ciphertext,
		})
		if err != nil {
			return nil, fmt.Errorf("kms decrypt key %q: %w", id, err)
		}

		if len(out.Plaintext) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("kms key %q has %d bytes, want %d", id, len(out.Plaintext), chacha20poly1305.KeySize)
		}

		slog.Info("Data key unwrapped.", "key_id", id, "kms_key", aws.ToString(out.KeyId))
		keys[id] = out.Plaintext
	}
	return keys, nil
}

// NewDataKey asks KMS for a fresh 256 bit data key under masterKeyID and
// returns its wrapped form, base64 encoded for the configuration file.
func (s *KMSKeySource) NewDataKey(ctx context.Context, masterKeyID string) (string, error) {
	out, err := s.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(masterKeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return "", fmt.Errorf("generate data key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}
