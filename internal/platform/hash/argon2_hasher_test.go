package hash_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/platform/hash"
)

func newHasher(t *testing.T) *hash.Argon2Hasher {
	t.Helper()

	opts := &config.Argon2{
		Memory:     16 * 1024,
		Iterations: 1,
		Threads:    1,
		SaltLength: 16,
		KeyLength:  32,
	}
	hasher, err := hash.NewArgon2Hasher(opts, "paminta")
	if err != nil {
		t.Fatal(err)
	}
	return hasher
}

func TestArgon2Hasher_Hash(t *testing.T) {
	t.Parallel()

	hashed, err := newHasher(t).Hash("rice")
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(hashed, "$")
	if got, want := len(parts), 6; got != want {
		t.Errorf("len(parts) = %d, want: %d", got, want)
	}

	if got, want := parts[1], "argon2id"; got != want {
		t.Errorf("parts[1] = %q, want: %q", got, want)
	}
}

func TestArgon2Hasher_Verify(t *testing.T) {
	t.Parallel()

	hasher := newHasher(t)
	hashed, err := hasher.Hash("rice")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, plain, hashed string
		want                bool
		wantErr             error
	}{
		{"Matching password", "rice", hashed, true, nil},
		{"Wrong password", "garlic", hashed, false, nil},
		{"Cleared hash", "rice", "", false, nil},
		{"Unknown algorithm", "rice", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", false, hash.ErrInvalidFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := hasher.Verify(tc.plain, tc.hashed)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("hasher.Verify() = %v, want: %v", err, tc.wantErr)
			}

			if got != tc.want {
				t.Errorf("hasher.Verify() = %v, want: %v", got, tc.want)
			}
		})
	}
}

func TestNewArgon2Hasher_InvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := hash.NewArgon2Hasher(&config.Argon2{}, "pepper"); err == nil {
		t.Error("hash.NewArgon2Hasher() = nil, want: error")
	}
}
