package goAuthClient

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "GOAUTHCLIENT_"

// LoadConfigFromEnv overlays GOAUTHCLIENT_* variables on DefaultConfig and validates the result.
//
// Example: GOAUTHCLIENT_TRANSPORT_BASE_URL=https://mcpanda.example/api
// GOAUTHCLIENT_REFRESH_TIMEOUT=5s.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
