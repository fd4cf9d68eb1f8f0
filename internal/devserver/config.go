package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable read by LoadConfigFromEnv.
const EnvPrefix = "MCPANDA_DEV_"

// Config tunes the development backend.
type Config struct {
	AccessTTL     time.Duration `env:"ACCESS_TTL"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL"`
	JWTSecret     string        `env:"JWT_SECRET"`
	Issuer        string        `env:"ISSUER"`
	KeyPrefix     string        `env:"KEY_PREFIX"`
	SecureCookies bool          `env:"SECURE_COOKIES"`
	SeedData      bool          `env:"SEED_DATA"`
	// ReissueDelay slows every reissue call so concurrent expiries overlap.
	ReissueDelay    time.Duration `env:"REISSUE_DELAY"`
	DefaultPageSize int           `env:"DEFAULT_PAGE_SIZE"`

	// Per refresh family and per login email, within ThrottleWindow. Zero
	// disables the limit.
	ReissueLimit   int           `env:"REISSUE_LIMIT"`
	LoginLimit     int           `env:"LOGIN_LIMIT"`
	ThrottleWindow time.Duration `env:"THROTTLE_WINDOW"`
}

func DefaultConfig() Config {
	return Config{
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		JWTSecret:       "mcpanda-dev-secret-do-not-deploy",
		Issuer:          "mcpanda-dev",
		KeyPrefix:       "mcpanda",
		SeedData:        true,
		DefaultPageSize: 10,
		ThrottleWindow:  time.Minute,
	}
}

// LoadConfigFromEnv overlays MCPANDA_DEV_* variables on DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("devserver: token TTLs must be > 0")
	}
	if c.RefreshTTL < c.AccessTTL {
		return errors.New("devserver: RefreshTTL must be >= AccessTTL")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("devserver: JWTSecret must be at least 16 bytes")
	}
	if c.KeyPrefix == "" {
		return errors.New("devserver: KeyPrefix required")
	}
	if c.ReissueDelay < 0 {
		return errors.New("devserver: ReissueDelay must be >= 0")
	}
	if c.ReissueLimit < 0 || c.LoginLimit < 0 {
		return errors.New("devserver: throttle limits must be >= 0")
	}
	if (c.ReissueLimit > 0 || c.LoginLimit > 0) && c.ThrottleWindow <= 0 {
		return errors.New("devserver: ThrottleWindow must be > 0 when a throttle is enabled")
	}
	if c.DefaultPageSize <= 0 {
		return errors.New("devserver: DefaultPageSize must be > 0")
	}
	return nil
}
