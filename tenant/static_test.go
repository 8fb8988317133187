package tenant_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/aigate"
	"github.com/ineyio/aigate/prompt"
	"github.com/ineyio/aigate/tenant"
)

func TestStatic_Lookup(t *testing.T) {
	dir, err := tenant.NewStatic(aigate.Tenant{ID: "shop-1", Tier: "free"})
	require.NoError(t, err)

	got, err := dir.Lookup(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "free", got.Tier)

	_, err = dir.Lookup(context.Background(), "shop-2")
	assert.ErrorIs(t, err, aigate.ErrUnknownTenant)
}

func TestStatic_AddReplaces(t *testing.T) {
	dir, err := tenant.NewStatic()
	require.NoError(t, err)

	require.NoError(t, dir.Add(aigate.Tenant{ID: "shop-1", Tier: "free"}))
	require.NoError(t, dir.Add(aigate.Tenant{ID: "shop-1", Tier: "starter"}))

	got, err := dir.Lookup(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "starter", got.Tier)

	assert.Error(t, dir.Add(aigate.Tenant{Tier: "free"}))
	assert.Error(t, dir.Add(aigate.Tenant{ID: "x"}))
}

func TestLoadStatic(t *testing.T) {
	t.Setenv("SHOP_TIER", "professional")

	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  - id: shop-1
    tier: starter
    rules:
      - name: language
        text: Always answer in Spanish.
        priority: 10
  - id: shop-2
    tier: ${SHOP_TIER}
`), 0o600))

	dir, err := tenant.LoadStatic(path)
	require.NoError(t, err)

	s1, err := dir.Lookup(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, []prompt.Rule{{Name: "language", Text: "Always answer in Spanish.", Priority: 10}}, s1.Rules)

	s2, err := dir.Lookup(context.Background(), "shop-2")
	require.NoError(t, err)
	assert.Equal(t, "professional", s2.Tier)
}

func TestLoadStatic_Invalid(t *testing.T) {
	tests := map[string]string{
		"duplicate":    "tenants:\n  - {id: a, tier: free}\n  - {id: a, tier: free}\n",
		"missing tier": "tenants:\n  - {id: a}\n",
		"bad yaml":     "tenants: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tenants.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := tenant.LoadStatic(path)
			assert.Error(t, err)
		})
	}

	_, err := tenant.LoadStatic(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
