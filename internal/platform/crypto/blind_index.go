package crypto

import (
	"strings"

	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
)

// BlindIndex returns a keyed digest of value that allows equality lookups
// without storing value. Case and surrounding whitespace are ignored.
func BlindIndex(key, value string) string {
	return security.SHA256HashHex(strings.ToLower(strings.TrimSpace(value)), key)
}
