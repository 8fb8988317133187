package quota

// Rate prices usage beyond a limit in whole billing units.
type Rate struct {
	UnitSize     int64   `yaml:"unit_size"`
	PricePerUnit float64 `yaml:"price_per_unit"`
}

// Units returns the number of billing units for an amount, rounded up.
func (r Rate) Units(amount int64) int64 {
	if amount <= 0 || r.UnitSize <= 0 {
		return 0
	}
	return (amount + r.UnitSize - 1) / r.UnitSize
}

// Cost returns the price of an amount over the limit.
func (r Rate) Cost(amount int64) float64 {
	return float64(r.Units(amount)) * r.PricePerUnit
}

// Overage computes the cost of amountOverLimit units of a resource. Partial
// billing units are always charged as full units.
func (t Tier) Overage(r Resource, amountOverLimit int64) float64 {
	rate, ok := t.Rates[r]
	if !ok {
		return 0
	}
	return rate.Cost(amountOverLimit)
}

// Line is one resource on a Bill.
type Line struct {
	Resource Resource
	Used     int64
	Limit    int64
	Over     int64
	Units    int64
	Cost     float64
}

// Bill is the overage invoice for one billing period.
type Bill struct {
	Tier  string
	Lines []Line
	Total float64
}

// Invoice computes overage for every limited resource in usage. Unlimited
// resources and resources within their limit produce no line.
func Invoice(t Tier, usage map[Resource]int64) Bill {
	bill := Bill{Tier: t.Name}
	for _, r := range Resources {
		used := usage[r]
		limit, ok := t.Limit(r)
		if !ok || IsUnlimited(limit) || used <= limit {
			continue
		}

		over := used - limit
		rate := t.Rates[r]
		line := Line{
			Resource: r,
			Used:     used,
			Limit:    limit,
			Over:     over,
			Units:    rate.Units(over),
			Cost:     rate.Cost(over),
		}
		bill.Lines = append(bill.Lines, line)
		bill.Total += line.Cost
	}
	return bill
}
