// Package config loads the generation, safety, and runner settings that
// parameterize an agent deployment. It layers three sources the way the
// teacher's config package layers providers: a YAML file (optional), local
// .env convenience via github.com/joho/godotenv, and process environment
// variables, decoded through github.com/mitchellh/mapstructure so a partial
// map of overrides (e.g. pulled from a discovered agent manifest) can be
// merged onto an existing Config without redeclaring every field.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/relaykit/agentcore/model"
)

// RunnerConfig holds the Runner knobs that are usually environment- or
// deployment-specific rather than baked into agent code.
type RunnerConfig struct {
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	MaxIterations  int           `yaml:"max_iterations,omitempty"`
	MaxHistorySize int           `yaml:"max_history_size,omitempty"`
}

// ProviderConfig carries the credentials and endpoint overrides for one
// model provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Config is the root configuration structure, assembled from a YAML file,
// environment variables, and programmatic overrides.
type Config struct {
	LogLevel   string                    `yaml:"log_level,omitempty"`
	Generation model.GenerationConfig    `yaml:"generation,omitempty"`
	Safety     model.SafetySettings      `yaml:"safety,omitempty"`
	Runner     RunnerConfig              `yaml:"runner,omitempty"`
	Providers  map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// Default returns a Config with the same zero-value defaults the runner and
// agent packages apply on their own (DefaultTimeout, DefaultMaxIterations,
// DefaultMaxHistorySize), so callers that skip Load entirely still get
// sensible values back from Config.
func Default() Config {
	return Config{
		LogLevel: "info",
		Runner: RunnerConfig{
			Timeout:        300 * time.Second,
			MaxIterations:  10,
			MaxHistorySize: 200,
		},
	}
}

// Load loads .env.local and .env into the process environment, reads a YAML
// config file at path (if it exists), then overlays ADK_-prefixed environment
// variables and the provider API-key variables. A missing path is not an
// error: Load returns Default()
// overlaid with whatever environment variables are set, matching hector's
// zero-config fallback.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to environment-only config
		default:
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// loadDotEnv loads .env.local then .env into the process environment,
// ignoring a missing file but surfacing a malformed one.
func loadDotEnv() error {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	for _, name := range []string{"anthropic", "openai"} {
		key := os.Getenv(envKeyFor(name))
		if key == "" {
			continue
		}
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		p := cfg.Providers[name]
		p.APIKey = key
		cfg.Providers[name] = p
	}
}

func envKeyFor(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// ApplyOverrides decodes a map of loosely-typed overrides onto cfg using
// mapstructure, the same way the teacher's Loader decodes expanded YAML maps
// onto its Config. WeaklyTypedInput is enabled so string-encoded durations
// and numbers (as would arrive from an agent manifest's front-matter) decode
// without a prior type-specific pass.
func (c *Config) ApplyOverrides(overrides map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("config: applying overrides: %w", err)
	}
	return nil
}

// ProviderCredential returns the API key configured for the named provider,
// empty if none is set.
func (c Config) ProviderCredential(provider string) string {
	return c.Providers[provider].APIKey
}
