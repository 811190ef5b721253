package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex SHA-256 of the extracted text. Hashing the
// text rather than the raw bytes means cosmetic markup changes do not
// force a re-index.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
