package goAuthClient

import (
	"errors"
	"log"
	"net/http"
	"net/http/cookiejar"

	"github.com/MrEthical07/goAuthClient/refresh"
)

// Builder assembles a Gateway.
//
// Builder instances are intended to be configured during initialization and are single-use.
type Builder struct {
	config Config

	doer      Doer
	refresher Refresher
	observer  SessionObserver
	auditSink AuditSink
	logger    *log.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithHTTPClient sets the client that carries the ambient credential.
// Without it Build creates an *http.Client with a fresh cookie jar.
func (b *Builder) WithHTTPClient(doer Doer) *Builder {
	b.doer = doer
	return b
}

// WithRefresher overrides the refresh call. Without it Build posts to
// Transport.BaseURL + Refresh.Path through the same HTTP client.
func (b *Builder) WithRefresher(r Refresher) *Builder {
	b.refresher = r
	return b
}

// WithSessionObserver registers the collaborator told about unrecoverable refresh failures.
func (b *Builder) WithSessionObserver(o SessionObserver) *Builder {
	b.observer = o
	return b
}

// WithAuditSink sets the sink audit events are dispatched to when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for degraded-path warnings. Defaults to log.Default().
func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Gateway.
func (b *Builder) Build() (*Gateway, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	doer := b.doer
	if doer == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		doer = &http.Client{Jar: jar}
	}

	baseURL := trimBaseURL(cfg.Transport.BaseURL)

	refresher := b.refresher
	if refresher == nil {
		rc, err := refresh.NewClient(refresh.Config{
			Endpoint: baseURL + cfg.Refresh.Path,
			Doer:     doer,
		})
		if err != nil {
			return nil, err
		}
		refresher = rc
	}

	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	gw := &Gateway{
		config:    cfg,
		baseURL:   baseURL,
		doer:      doer,
		refresher: refresher,
		observer:  b.observer,
		logger:    logger,
	}
	gw.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	gw.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return gw, nil
}
