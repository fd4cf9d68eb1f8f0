package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one gateway counter for exporters.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one gateway latency histogram for exporters.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for Gateway.AuditDropped.
const AuditDroppedName = "goauthclient_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricRequestSent, Name: "goauthclient_request_sent_total", Help: "Round trips issued, replays included."},
	{ID: goAuthClient.MetricRequestFailed, Name: "goauthclient_request_failed_total", Help: "Transport errors and non-auth error statuses passed through."},
	{ID: goAuthClient.MetricAuthExpired, Name: "goauthclient_auth_expired_total", Help: "Responses carrying the auth-expired status."},
	{ID: goAuthClient.MetricRefreshStarted, Name: "goauthclient_refresh_started_total", Help: "Refresh calls issued."},
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Refresh cycles that renewed the credential."},
	{ID: goAuthClient.MetricRefreshFailure, Name: "goauthclient_refresh_failure_total", Help: "Refresh cycles that ended the session."},
	{ID: goAuthClient.MetricRefreshTimeout, Name: "goauthclient_refresh_timeout_total", Help: "Refresh calls abandoned after the refresh timeout."},
	{ID: goAuthClient.MetricPendingQueued, Name: "goauthclient_pending_queued_total", Help: "Callers parked behind an in-flight refresh."},
	{ID: goAuthClient.MetricReplayed, Name: "goauthclient_replayed_total", Help: "Requests replayed after a successful refresh."},
	{ID: goAuthClient.MetricRetryExhausted, Name: "goauthclient_retry_exhausted_total", Help: "Replayed requests rejected with auth expiry again."},
	{ID: goAuthClient.MetricSessionTerminated, Name: "goauthclient_session_terminated_total", Help: "Session-termination notifications emitted."},
}

var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Refresh call latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the gateway's eight
// latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for use inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array; missing buckets are zero and
// extra ones are dropped.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
