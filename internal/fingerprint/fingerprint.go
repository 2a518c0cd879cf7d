// Package fingerprint computes the content hash that gates redundant
// generation runs. The hash only detects change; collisions cost a skipped
// regeneration, never incorrect output.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of text.
func Sum(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
