// Package quota implements plan-tier limits, quota decisions and overage billing.
//
// Everything in this package is pure: a Tier is loaded once at startup and
// decisions are functions of (tier, resource, current usage).
package quota

// Unlimited is the limit sentinel. Any limit at or above it is treated as
// unlimited regardless of usage.
const Unlimited int64 = 999_999

// Resource names a metered resource.
type Resource string

const (
	AIRequests Resource = "ai_requests"
	AITokens   Resource = "ai_tokens"
	Messages   Resource = "messages"
	Orders     Resource = "orders"
	StorageMB  Resource = "storage_mb"
)

// Resources lists every metered resource in billing order.
var Resources = []Resource{AIRequests, AITokens, Messages, Orders, StorageMB}

// Feature names a boolean plan capability.
type Feature string

const (
	FeatureFunctionCalling Feature = "function_calling"
	FeatureCustomRules     Feature = "custom_rules"
	FeatureResponseCache   Feature = "response_cache"
)

// Tier is a subscription plan with fixed resource limits, feature flags and
// overage rates.
type Tier struct {
	Name     string             `yaml:"name"`
	Limits   map[Resource]int64 `yaml:"limits"`
	Features map[Feature]bool   `yaml:"features"`
	Rates    map[Resource]Rate  `yaml:"overage"`
}

// Limit returns the configured limit for a resource and whether one exists.
func (t Tier) Limit(r Resource) (int64, bool) {
	v, ok := t.Limits[r]
	return v, ok
}

// Has reports whether the tier enables a feature.
func (t Tier) Has(f Feature) bool {
	return t.Features[f]
}

// Check is shorthand for Check(t, r, current).
func (t Tier) Check(r Resource, current int64) Decision {
	return Check(t, r, current)
}

// IsUnlimited reports whether a limit value means "no limit".
func IsUnlimited(limit int64) bool {
	return limit >= Unlimited
}
