package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// EntryKey returns the provider key for url inside generation gen.
// URLs are hashed so key length stays bounded no matter how long the query is.
func EntryKey(prefix, gen, url string) string {
	sum := sha256.Sum256([]byte(url))
	return prefix + ":" + gen + ":" + hex.EncodeToString(sum[:16])
}
