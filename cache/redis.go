package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/aigate"
)

// Redis is a shared response cache storing JSON-encoded results with a
// native Redis TTL.
type Redis struct {
	client    goredis.Cmdable
	keyPrefix string
	log       *slog.Logger
}

var _ aigate.Cache = (*Redis)(nil)

// RedisOption configures Redis.
type RedisOption func(*Redis)

// WithKeyPrefix sets the key prefix (default "aigate:cache:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.keyPrefix = prefix }
}

// WithLogger sets the logger for read failures, which are otherwise
// reported only as misses.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.log = l }
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client goredis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		client:    client,
		keyPrefix: "aigate:cache:",
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a cached result. Missing, expired, unreadable and corrupt
// entries are all misses.
func (r *Redis) Get(ctx context.Context, fingerprint string) (aigate.GenerationResult, bool) {
	data, err := r.client.Get(ctx, r.keyPrefix+fingerprint).Bytes()
	if errors.Is(err, goredis.Nil) {
		return aigate.GenerationResult{}, false
	}
	if err != nil {
		r.log.Warn("cache read failed", "fingerprint", fingerprint, "error", err)
		return aigate.GenerationResult{}, false
	}

	var result aigate.GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.log.Warn("cache entry corrupt", "fingerprint", fingerprint, "error", err)
		return aigate.GenerationResult{}, false
	}
	return result, true
}

// Put stores a result for ttl. A non-positive ttl stores nothing.
func (r *Redis) Put(ctx context.Context, fingerprint string, result aigate.GenerationResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("aigate/cache: encode result: %w", err)
	}
	if err := r.client.Set(ctx, r.keyPrefix+fingerprint, data, ttl).Err(); err != nil {
		return fmt.Errorf("aigate/cache: put: %w", err)
	}
	return nil
}
