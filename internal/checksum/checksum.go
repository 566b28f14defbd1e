// Package checksum computes content hashes for change detection and the
// deterministic ids that tie a document path to its index entry.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// idLength is the number of hex characters kept for an index id.
const idLength = 32

// Sum returns the hex-encoded SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// PathID derives the index id for a sanitized document path. The same path
// always yields the same id, so re-indexing overwrites instead of duplicating.
func PathID(path string) string {
	return Sum([]byte(path))[:idLength]
}
