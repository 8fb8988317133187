// Package tenant provides a static TenantDirectory.
package tenant

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ineyio/aigate"
)

// Static is an in-memory TenantDirectory. It is safe for concurrent use and
// may be updated while serving.
type Static struct {
	mu      sync.RWMutex
	tenants map[string]aigate.Tenant
}

var _ aigate.TenantDirectory = (*Static)(nil)

// NewStatic creates a directory holding the given tenants.
func NewStatic(tenants ...aigate.Tenant) (*Static, error) {
	s := &Static{tenants: make(map[string]aigate.Tenant, len(tenants))}
	for _, t := range tenants {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts or replaces a tenant.
func (s *Static) Add(t aigate.Tenant) error {
	if t.ID == "" {
		return fmt.Errorf("aigate/tenant: id is required")
	}
	if t.Tier == "" {
		return fmt.Errorf("aigate/tenant: %s: tier is required", t.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	return nil
}

// Lookup implements aigate.TenantDirectory.
func (s *Static) Lookup(_ context.Context, tenantID string) (aigate.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return aigate.Tenant{}, fmt.Errorf("%w: %q", aigate.ErrUnknownTenant, tenantID)
	}
	return t, nil
}

type staticFile struct {
	Tenants []aigate.Tenant `yaml:"tenants"`
}

// LoadStatic reads tenants from a YAML file of the form
//
//	tenants:
//	  - id: shop-1
//	    tier: starter
//	    rules:
//	      - text: Always answer in Spanish.
//	        priority: 10
//
// Environment variables are expanded before parsing.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("aigate/tenant: read: %w", err)
	}

	var f staticFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("aigate/tenant: parse: %w", err)
	}

	seen := make(map[string]bool, len(f.Tenants))
	for _, t := range f.Tenants {
		if seen[t.ID] {
			return nil, fmt.Errorf("aigate/tenant: duplicate tenant %q", t.ID)
		}
		seen[t.ID] = true
	}

	return NewStatic(f.Tenants...)
}
