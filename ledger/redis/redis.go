// Package redis provides a Redis-backed UsageLedger.
//
// Each tenant period is one hash whose fields are resource names. Commits
// run as a single Lua script so every delta lands atomically, which makes
// the ledger safe to share between gateway instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/aigate"
	"github.com/ineyio/aigate/quota"
)

// Ledger is a Redis-backed UsageLedger.
type Ledger struct {
	client    goredis.Cmdable
	keyPrefix string
	retention time.Duration
}

var _ aigate.UsageLedger = (*Ledger)(nil)

// Option configures Ledger.
type Option func(*Ledger)

// WithKeyPrefix sets the Redis key prefix (default "aigate:usage:").
func WithKeyPrefix(prefix string) Option {
	return func(l *Ledger) { l.keyPrefix = prefix }
}

// WithRetention expires a period's hash this long after its last commit.
// By default no expiry is set and periods are kept for audit.
func WithRetention(d time.Duration) Option {
	return func(l *Ledger) { l.retention = d }
}

// New creates a Redis-backed ledger.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Ledger {
	l := &Ledger{
		client:    client,
		keyPrefix: "aigate:usage:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) periodKey(tenantID string, period aigate.Period) string {
	return l.keyPrefix + tenantID + ":" + string(period)
}

// commitScript atomically applies a set of deltas.
// KEYS[1] = period hash key
// ARGV[1] = retention in seconds (0 = none)
// ARGV[2..] = resource, delta pairs
var commitScript = goredis.NewScript(`
local key = KEYS[1]
local retention = tonumber(ARGV[1])
for i = 2, #ARGV, 2 do
    redis.call("HINCRBY", key, ARGV[i], tonumber(ARGV[i + 1]))
end
if retention > 0 then
    redis.call("EXPIRE", key, retention)
end
return 1
`)

// Current returns the counter for one resource.
func (l *Ledger) Current(ctx context.Context, tenantID string, period aigate.Period, resource quota.Resource) (int64, error) {
	v, err := l.client.HGet(ctx, l.periodKey(tenantID, period), string(resource)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("aigate/redis: current: %w", err)
	}
	return v, nil
}

// Commit adds every delta in one script call.
func (l *Ledger) Commit(ctx context.Context, tenantID string, period aigate.Period, deltas map[quota.Resource]int64) error {
	if err := aigate.ValidateDeltas(deltas); err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}

	resources := make([]string, 0, len(deltas))
	for r := range deltas {
		resources = append(resources, string(r))
	}
	sort.Strings(resources)

	args := make([]any, 0, 1+2*len(resources))
	args = append(args, int64(l.retention/time.Second))
	for _, r := range resources {
		args = append(args, r, deltas[quota.Resource(r)])
	}

	if err := commitScript.Run(ctx, l.client, []string{l.periodKey(tenantID, period)}, args...).Err(); err != nil {
		return fmt.Errorf("aigate/redis: commit: %w", err)
	}
	return nil
}

// Record returns all counters for the period.
func (l *Ledger) Record(ctx context.Context, tenantID string, period aigate.Period) (aigate.UsageRecord, error) {
	vals, err := l.client.HGetAll(ctx, l.periodKey(tenantID, period)).Result()
	if err != nil {
		return aigate.UsageRecord{}, fmt.Errorf("aigate/redis: record: %w", err)
	}

	counters := make(map[quota.Resource]int64, len(vals))
	for field, raw := range vals {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return aigate.UsageRecord{}, fmt.Errorf("aigate/redis: record: field %s: %w", field, err)
		}
		counters[quota.Resource(field)] = n
	}
	return aigate.UsageRecord{TenantID: tenantID, Period: period, Counters: counters}, nil
}
