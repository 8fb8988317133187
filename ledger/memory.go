// Package ledger provides UsageLedger implementations.
//
// Memory keeps counters in process and suits single-instance deployments
// and tests. The redis and postgres subpackages share counters between
// gateway instances.
package ledger

import (
	"context"
	"sync"

	"github.com/ineyio/aigate"
	"github.com/ineyio/aigate/quota"
)

// Memory is an in-memory UsageLedger. Periods never reset; a new period is
// simply a new key.
type Memory struct {
	mu       sync.RWMutex
	counters map[key]map[quota.Resource]int64
}

type key struct {
	tenantID string
	period   aigate.Period
}

var _ aigate.UsageLedger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{counters: make(map[key]map[quota.Resource]int64)}
}

// Current returns the counter for one resource.
func (m *Memory) Current(_ context.Context, tenantID string, period aigate.Period, resource quota.Resource) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counters[key{tenantID, period}][resource], nil
}

// Commit adds every delta under one lock, so readers never observe a
// partial commit.
func (m *Memory) Commit(_ context.Context, tenantID string, period aigate.Period, deltas map[quota.Resource]int64) error {
	if err := aigate.ValidateDeltas(deltas); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{tenantID, period}
	c, ok := m.counters[k]
	if !ok {
		c = make(map[quota.Resource]int64, len(deltas))
		m.counters[k] = c
	}
	for r, d := range deltas {
		c[r] += d
	}
	return nil
}

// Record returns a copy of all counters for the period.
func (m *Memory) Record(_ context.Context, tenantID string, period aigate.Period) (aigate.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.counters[key{tenantID, period}]
	counters := make(map[quota.Resource]int64, len(src))
	for r, v := range src {
		counters[r] = v
	}
	return aigate.UsageRecord{TenantID: tenantID, Period: period, Counters: counters}, nil
}
