package aigate_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/aigate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aigate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PRIMARY_KEY", "sk-primary")

	path := writeConfig(t, `
model: gemini-2.0-flash
base_instructions: You are the store assistant.
credentials:
  - id: primary
    api_key: ${PRIMARY_KEY}
cooldown: 90s
temperature: 0.4
compress_prompts: true
pricing:
  input_per_million: 0.1
  output_per_million: 0.4
cache:
  enabled: true
  classes: [faq, sentiment]
`)

	cfg, err := aigate.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	require.Len(t, cfg.Credentials, 1)
	assert.Equal(t, "sk-primary", cfg.Credentials[0].APIKey)
	assert.Equal(t, 90*time.Second, cfg.Cooldown)
	assert.Equal(t, aigate.DefaultAttemptTimeout, cfg.AttemptTimeout)
	assert.Equal(t, 0.4, *cfg.Temperature)
	assert.Nil(t, cfg.MaxOutputTokens)
	assert.True(t, cfg.CompressPrompts)
	assert.Equal(t, aigate.DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, aigate.DefaultCacheCapacity, cfg.Cache.Capacity)
	assert.Equal(t, []string{"faq", "sentiment"}, cfg.Cache.Classes)
}

func TestLoadConfig_CredentialEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k0")
	t.Setenv("GEMINI_API_KEY_2", "k2")
	t.Setenv("GEMINI_API_KEY_10", "k10")
	t.Setenv("GEMINI_API_KEY_1", "k1")
	t.Setenv("GEMINI_API_KEY_X", "ignored")
	t.Setenv("GEMINI_API_KEY_3", "")

	path := writeConfig(t, `
model: m
base_instructions: b
credential_env: GEMINI_API_KEY
`)

	cfg, err := aigate.LoadConfig(path)
	require.NoError(t, err)

	var keys []string
	for _, c := range cfg.Credentials {
		keys = append(keys, c.APIKey)
	}
	assert.Equal(t, []string{"k0", "k1", "k2", "k10"}, keys)
	assert.Equal(t, "gemini_api_key_10", cfg.Credentials[3].ID)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"no model":        "base_instructions: b\ncredentials: [{id: a, api_key: k}]\n",
		"no instructions": "model: m\ncredentials: [{id: a, api_key: k}]\n",
		"no credentials":  "model: m\nbase_instructions: b\n",
		"empty key":       "model: m\nbase_instructions: b\ncredentials: [{id: a, api_key: ''}]\n",
		"duplicate id":    "model: m\nbase_instructions: b\ncredentials: [{id: a, api_key: k}, {id: a, api_key: k2}]\n",
		"negative":        "model: m\nbase_instructions: b\ncredentials: [{id: a, api_key: k}]\ncooldown: -1s\n",
		"bad yaml":        "model: [",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := aigate.LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := aigate.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
