package goAuthClient

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of a Gateway.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Transport TransportConfig `envPrefix:"TRANSPORT_"`
	Refresh   RefreshConfig   `envPrefix:"REFRESH_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Audit     AuditConfig     `envPrefix:"AUDIT_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig controls how descriptors become HTTP requests.
type TransportConfig struct {
	BaseURL         string            `env:"BASE_URL"`
	RequestTimeout  time.Duration     `env:"REQUEST_TIMEOUT"`
	DefaultHeaders  map[string]string `env:"DEFAULT_HEADERS"`
	RequestIDHeader string            `env:"REQUEST_ID_HEADER"`
	MaxResponseSize int64             `env:"MAX_RESPONSE_SIZE"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls auth-failure detection and the refresh call.
type RefreshConfig struct {
	Path              string        `env:"PATH"`
	Timeout           time.Duration `env:"TIMEOUT"`
	AuthExpiredStatus int           `env:"AUTH_EXPIRED_STATUS"`
}

// SessionConfig names the navigation targets handed to the session observer.
type SessionConfig struct {
	LoginPath string `env:"LOGIN_PATH"`
	HomePath  string `env:"HOME_PATH"`
}

// AuditConfig controls audit dispatcher buffering.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"ENABLE_LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			BaseURL:         "http://localhost:8080/api",
			RequestTimeout:  30 * time.Second,
			RequestIDHeader: "X-Request-ID",
			MaxResponseSize: 8 << 20,
		},
		Refresh: RefreshConfig{
			Path:              "/auth/reissue",
			Timeout:           10 * time.Second,
			AuthExpiredStatus: http.StatusUnauthorized,
		},
		Session: SessionConfig{
			LoginPath: "/login",
			HomePath:  "/",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration used when Builder.WithConfig is not called.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Transport.DefaultHeaders != nil {
		out.Transport.DefaultHeaders = make(map[string]string, len(cfg.Transport.DefaultHeaders))
		for k, v := range cfg.Transport.DefaultHeaders {
			out.Transport.DefaultHeaders[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// Transport
	if strings.TrimSpace(c.Transport.BaseURL) == "" {
		return errors.New("Transport BaseURL is required")
	}
	u, err := url.Parse(c.Transport.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Transport BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Transport BaseURL scheme must be http or https")
	}
	if c.Transport.RequestTimeout < 0 {
		return errors.New("Transport RequestTimeout must be >= 0")
	}
	if c.Transport.MaxResponseSize <= 0 {
		return errors.New("Transport MaxResponseSize must be > 0")
	}

	// Refresh
	if !strings.HasPrefix(c.Refresh.Path, "/") {
		return errors.New("Refresh Path must start with /")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}
	if c.Refresh.AuthExpiredStatus < 400 || c.Refresh.AuthExpiredStatus > 599 {
		return errors.New("Refresh AuthExpiredStatus must be a 4xx or 5xx status")
	}

	// Session
	if !strings.HasPrefix(c.Session.LoginPath, "/") {
		return errors.New("Session LoginPath must start with /")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
