package aigate

import (
	"context"
	"time"

	"github.com/ineyio/aigate/quota"
)

// UsageLedger stores per-tenant, per-period usage counters.
type UsageLedger interface {
	// Current returns the counter for one resource; zero if never used.
	Current(ctx context.Context, tenantID string, period Period, resource quota.Resource) (int64, error)

	// Commit atomically adds every delta. Negative deltas are rejected with
	// ErrNegativeUsage.
	Commit(ctx context.Context, tenantID string, period Period, deltas map[quota.Resource]int64) error

	// Record returns all counters for the period.
	Record(ctx context.Context, tenantID string, period Period) (UsageRecord, error)
}

// Period is a calendar billing month, formatted "2006-01".
type Period string

// PeriodOf returns the UTC billing period containing t.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

// UsageRecord aggregates one tenant's counters for one period.
type UsageRecord struct {
	TenantID string
	Period   Period
	Counters map[quota.Resource]int64
}

// ValidateDeltas returns ErrNegativeUsage if any delta is negative.
func ValidateDeltas(deltas map[quota.Resource]int64) error {
	for _, d := range deltas {
		if d < 0 {
			return ErrNegativeUsage
		}
	}
	return nil
}

// noopLedger reports zero usage and discards commits.
type noopLedger struct{}

func (noopLedger) Current(context.Context, string, Period, quota.Resource) (int64, error) {
	return 0, nil
}

func (noopLedger) Commit(_ context.Context, _ string, _ Period, deltas map[quota.Resource]int64) error {
	return ValidateDeltas(deltas)
}

func (noopLedger) Record(_ context.Context, tenantID string, period Period) (UsageRecord, error) {
	return UsageRecord{TenantID: tenantID, Period: period, Counters: map[quota.Resource]int64{}}, nil
}
