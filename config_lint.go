package goAuthClient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	// LintInfo marks a choice worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that degrades behaviour under load or failure.
	LintWarn
	// LintHigh marks a setting that exposes credentials or breaks the session flow.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding of Config.Lint.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range r.BySeverity(min) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports settings that validate but are likely mistakes. Call Validate first.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if u, err := url.Parse(c.Transport.BaseURL); err == nil && u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
		add("base_url_insecure", LintHigh, "credential cookies travel over plain http to a non-loopback host")
	}
	if c.Transport.RequestTimeout == 0 {
		add("request_timeout_disabled", LintWarn, "requests without a deadline can park callers indefinitely")
	}
	if c.Refresh.Timeout > 30*time.Second {
		add("refresh_timeout_long", LintWarn, "every pending caller waits up to Refresh.Timeout")
	}
	if c.Transport.RequestTimeout > 0 && c.Refresh.Timeout > c.Transport.RequestTimeout {
		add("refresh_timeout_exceeds_request", LintInfo, "refresh may outlive the request timeout of the callers it serves")
	}
	if c.Refresh.AuthExpiredStatus != http.StatusUnauthorized {
		add("auth_status_nonstandard", LintInfo, fmt.Sprintf("auth expiry detected on status %d", c.Refresh.AuthExpiredStatus))
	}
	if c.Transport.RequestIDHeader == "" {
		add("request_id_disabled", LintInfo, "requests are sent without a correlation id")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "refresh and session events are not audited")
	} else if !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink blocks the refresh path")
	}

	return ws
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
