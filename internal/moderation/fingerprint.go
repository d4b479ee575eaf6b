package moderation

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/robalyx/toxguard/pkg/utils"
)

var normalizer = utils.NewTextNormalizer() //nolint:gochecknoglobals // safe for concurrent use

// Fingerprint returns the cache key of a message: the hex SHA-256 of the
// normalized text. Messages that differ only in case, compatibility forms,
// accents or spacing share a fingerprint. Word order is preserved.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(normalizer.Normalize(text)))
	return hex.EncodeToString(sum[:])
}
