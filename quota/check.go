package quota

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Current   int64
	Remaining int64
	Unlimited bool
}

// Check decides whether one more unit of resource may be consumed given the
// current usage. Allowed is current < limit, so the first unit past the
// limit is the first one rejected. Resources the tier does not list are
// rejected with a zero limit.
func Check(t Tier, r Resource, current int64) Decision {
	limit, ok := t.Limit(r)
	if !ok {
		return Decision{Current: current}
	}

	if IsUnlimited(limit) {
		return Decision{
			Allowed:   true,
			Limit:     limit,
			Current:   current,
			Remaining: -1,
			Unlimited: true,
		}
	}

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   current < limit,
		Limit:     limit,
		Current:   current,
		Remaining: remaining,
	}
}
