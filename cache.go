package aigate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ineyio/aigate/prompt"
)

// Cache stores generation results by fingerprint.
type Cache interface {
	// Get returns a live entry. Expired or unreadable entries are misses.
	Get(ctx context.Context, fingerprint string) (GenerationResult, bool)

	// Put stores a result for ttl.
	Put(ctx context.Context, fingerprint string, result GenerationResult, ttl time.Duration) error
}

// Fingerprint returns a stable hash of a prompt and its context.
func Fingerprint(promptText string, c prompt.Context) string {
	h := sha256.New()
	h.Write([]byte(promptText))
	h.Write([]byte{0})
	// Struct fields marshal in declaration order and map keys sorted, so
	// the encoding is stable.
	ctxJSON, _ := json.Marshal(c)
	h.Write(ctxJSON)
	return hex.EncodeToString(h.Sum(nil))
}
