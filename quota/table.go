package quota

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table maps tier names to tiers. It is built once at startup and never
// mutated afterwards.
type Table map[string]Tier

// Lookup returns the tier with the given name.
func (t Table) Lookup(name string) (Tier, bool) {
	tier, ok := t[name]
	return tier, ok
}

// DefaultRates are the overage rates used by DefaultTable.
func DefaultRates() map[Resource]Rate {
	return map[Resource]Rate{
		AIRequests: {UnitSize: 10_000, PricePerUnit: 5},
		AITokens:   {UnitSize: 100_000, PricePerUnit: 1},
		Messages:   {UnitSize: 1_000, PricePerUnit: 2},
		Orders:     {UnitSize: 100, PricePerUnit: 1},
		StorageMB:  {UnitSize: 1_024, PricePerUnit: 0.5},
	}
}

// DefaultTable returns the built-in free, starter, professional and
// enterprise tiers.
func DefaultTable() Table {
	return Table{
		"free": {
			Name: "free",
			Limits: map[Resource]int64{
				AIRequests: 500,
				AITokens:   100_000,
				Messages:   1_000,
				Orders:     100,
				StorageMB:  100,
			},
			Features: map[Feature]bool{
				FeatureResponseCache: true,
			},
			Rates: DefaultRates(),
		},
		"starter": {
			Name: "starter",
			Limits: map[Resource]int64{
				AIRequests: 5_000,
				AITokens:   500_000,
				Messages:   10_000,
				Orders:     1_000,
				StorageMB:  1_024,
			},
			Features: map[Feature]bool{
				FeatureFunctionCalling: true,
				FeatureCustomRules:     true,
				FeatureResponseCache:   true,
			},
			Rates: DefaultRates(),
		},
		"professional": {
			Name: "professional",
			Limits: map[Resource]int64{
				AIRequests: 50_000,
				AITokens:   Unlimited,
				Messages:   100_000,
				Orders:     10_000,
				StorageMB:  10_240,
			},
			Features: map[Feature]bool{
				FeatureFunctionCalling: true,
				FeatureCustomRules:     true,
				FeatureResponseCache:   true,
			},
			Rates: DefaultRates(),
		},
		"enterprise": {
			Name: "enterprise",
			Limits: map[Resource]int64{
				AIRequests: Unlimited,
				AITokens:   Unlimited,
				Messages:   Unlimited,
				Orders:     Unlimited,
				StorageMB:  Unlimited,
			},
			Features: map[Feature]bool{
				FeatureFunctionCalling: true,
				FeatureCustomRules:     true,
				FeatureResponseCache:   true,
			},
			Rates: DefaultRates(),
		},
	}
}

type tableFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// LoadTable reads tiers from a YAML file of the form
//
//	tiers:
//	  - name: free
//	    limits: {ai_requests: 500}
//	    features: {function_calling: false}
//	    overage: {ai_requests: {unit_size: 10000, price_per_unit: 5}}
//
// Tiers without an overage section get DefaultRates.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quota: read tiers: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses YAML tier definitions. See LoadTable.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("quota: parse tiers: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("quota: at least one tier is required")
	}

	table := make(Table, len(f.Tiers))
	for i, t := range f.Tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("quota: tiers[%d]: name is required", i)
		}
		if _, dup := table[t.Name]; dup {
			return nil, fmt.Errorf("quota: duplicate tier %q", t.Name)
		}
		for r, limit := range t.Limits {
			if limit < 0 {
				return nil, fmt.Errorf("quota: tier %q: negative limit for %s", t.Name, r)
			}
		}
		if t.Rates == nil {
			t.Rates = DefaultRates()
		}
		table[t.Name] = t
	}
	return table, nil
}
