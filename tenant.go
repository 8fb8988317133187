package aigate

import (
	"context"

	"github.com/ineyio/aigate/prompt"
)

// Tenant is the account whose quota and usage are tracked.
type Tenant struct {
	ID    string        `yaml:"id"`
	Tier  string        `yaml:"tier"`
	Rules []prompt.Rule `yaml:"rules"`
}

// TenantDirectory resolves tenants. Implementations return an error wrapping
// ErrUnknownTenant for ids they do not know.
type TenantDirectory interface {
	Lookup(ctx context.Context, tenantID string) (Tenant, error)
}
