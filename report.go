package aigate

import (
	"context"
	"fmt"

	"github.com/ineyio/aigate/quota"
)

// Consume checks and records a non-AI resource (messages, orders, storage)
// for a tenant in the current period. The returned decision is the one that
// admitted or refused the consumption. A refused consumption records nothing.
//
// Admission only requires current usage to be below the limit, and the whole
// amount is then committed, so the last admitted consumption can overshoot
// the limit by up to amount. The excess is billed through Tier.Overage.
func (g *Gateway) Consume(ctx context.Context, tenantID string, resource quota.Resource, amount int64) (quota.Decision, error) {
	if amount < 0 {
		return quota.Decision{}, fmt.Errorf("%w: %s=%d", ErrNegativeUsage, resource, amount)
	}

	tenant, tier, err := g.resolve(ctx, tenantID)
	if err != nil {
		return quota.Decision{}, err
	}
	period := PeriodOf(g.now())

	current, err := g.ledger.Current(ctx, tenant.ID, period, resource)
	if err != nil {
		return quota.Decision{}, fmt.Errorf("aigate: read usage %s for tenant %s: %w", resource, tenant.ID, err)
	}

	d := tier.Check(resource, current)
	if !d.Allowed {
		g.meter.OnReject(RejectEvent{
			TenantID: tenant.ID,
			Tier:     tier.Name,
			Resource: resource,
			Current:  d.Current,
			Limit:    d.Limit,
		})
		return d, &QuotaExceededError{
			TenantID: tenant.ID,
			Tier:     tier.Name,
			Resource: resource,
			Current:  d.Current,
			Limit:    d.Limit,
		}
	}

	if amount == 0 {
		return d, nil
	}
	if err := g.ledger.Commit(ctx, tenant.ID, period, map[quota.Resource]int64{resource: amount}); err != nil {
		return d, fmt.Errorf("aigate: commit usage %s for tenant %s: %w", resource, tenant.ID, err)
	}
	return d, nil
}

// Report summarizes a tenant's usage for a period.
type Report struct {
	TenantID  string                            `json:"tenant_id"`
	Tier      string                            `json:"tier"`
	Period    Period                            `json:"period"`
	Usage     map[quota.Resource]int64          `json:"usage"`
	Decisions map[quota.Resource]quota.Decision `json:"decisions"`
	Bill      quota.Bill                        `json:"bill"`
}

// Report returns the tenant's counters for period, the quota decision for
// every resource the tier lists, and the overage bill.
func (g *Gateway) Report(ctx context.Context, tenantID string, period Period) (Report, error) {
	tenant, tier, err := g.resolve(ctx, tenantID)
	if err != nil {
		return Report{}, err
	}

	rec, err := g.ledger.Record(ctx, tenant.ID, period)
	if err != nil {
		return Report{}, fmt.Errorf("aigate: read usage record for tenant %s: %w", tenant.ID, err)
	}

	usage := make(map[quota.Resource]int64, len(rec.Counters))
	for r, v := range rec.Counters {
		usage[r] = v
	}

	decisions := make(map[quota.Resource]quota.Decision, len(tier.Limits))
	for r := range tier.Limits {
		decisions[r] = tier.Check(r, usage[r])
	}

	return Report{
		TenantID:  tenant.ID,
		Tier:      tier.Name,
		Period:    period,
		Usage:     usage,
		Decisions: decisions,
		Bill:      quota.Invoice(tier, usage),
	}, nil
}
