package aigate

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to zero config values.
const (
	DefaultCooldown       = 60 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
	DefaultCacheTTL       = time.Hour
	DefaultCacheCapacity  = 1024
)

// Config is the top-level gateway configuration.
type Config struct {
	Model            string       `yaml:"model"`
	BaseInstructions string       `yaml:"base_instructions"`
	Credentials      []Credential `yaml:"credentials"`
	// CredentialEnv, when set, appends credentials from PREFIX, PREFIX_1,
	// PREFIX_2, ... environment variables.
	CredentialEnv string `yaml:"credential_env"`

	Cooldown        time.Duration `yaml:"cooldown"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	Temperature     *float64      `yaml:"temperature"`
	MaxOutputTokens *int          `yaml:"max_output_tokens"`
	CompressPrompts bool          `yaml:"compress_prompts"`

	Pricing Pricing     `yaml:"pricing"`
	Cache   CacheConfig `yaml:"cache"`
	// TiersFile optionally replaces the built-in tier table.
	TiersFile string `yaml:"tiers_file"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
	// Classes lists the request classes that may be served from cache.
	// Conversational or personalized classes must never be listed.
	Classes []string `yaml:"classes"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("aigate: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("aigate: parse config: %w", err)
	}

	if cfg.CredentialEnv != "" {
		cfg.Credentials = append(cfg.Credentials, CredentialsFromEnv(cfg.CredentialEnv)...)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("aigate: config: model is required")
	}
	if strings.TrimSpace(c.BaseInstructions) == "" {
		return fmt.Errorf("aigate: config: base_instructions is required")
	}
	if len(c.Credentials) == 0 {
		return fmt.Errorf("aigate: config: at least one credential is required")
	}

	ids := make(map[string]bool, len(c.Credentials))
	for i, cred := range c.Credentials {
		if cred.ID == "" {
			return fmt.Errorf("aigate: config: credentials[%d]: id is required", i)
		}
		if cred.APIKey == "" {
			return fmt.Errorf("aigate: config: credentials[%d] (%s): api_key is empty", i, cred.ID)
		}
		if ids[cred.ID] {
			return fmt.Errorf("aigate: config: duplicate credential id %q", cred.ID)
		}
		ids[cred.ID] = true
	}

	if c.Cooldown < 0 || c.AttemptTimeout < 0 || c.Cache.TTL < 0 {
		return fmt.Errorf("aigate: config: durations must not be negative")
	}
	if c.Pricing.InputPerMillion < 0 || c.Pricing.OutputPerMillion < 0 {
		return fmt.Errorf("aigate: config: pricing must not be negative")
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = DefaultCacheCapacity
	}
	return c
}

// CredentialsFromEnv loads credentials from the variable named prefix and
// from prefix_1, prefix_2, ... in numeric order. Gaps are allowed and there
// is no upper bound. Empty values are skipped.
func CredentialsFromEnv(prefix string) []Credential {
	type numbered struct {
		n    int
		cred Credential
	}

	var found []numbered
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}

		n := 0
		switch {
		case name == prefix:
		case strings.HasPrefix(name, prefix+"_"):
			v, err := strconv.Atoi(strings.TrimPrefix(name, prefix+"_"))
			if err != nil || v < 1 {
				continue
			}
			n = v
		default:
			continue
		}

		found = append(found, numbered{
			n:    n,
			cred: Credential{ID: strings.ToLower(name), APIKey: value},
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	creds := make([]Credential, len(found))
	for i, f := range found {
		creds[i] = f.cred
	}
	return creds
}
