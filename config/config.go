package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, env-expands, parses, defaults, and validates the
// configuration file at path. Environment variables referenced as
// ${VAR:-default}, ${VAR}, or $VAR are expanded against the process
// environment (after LoadEnvFiles has populated it from any local .env
// files) before YAML parsing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
	}

	expanded := expandEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config '%s' validation failed: %w", path, err)
	}

	return &cfg, nil
}
