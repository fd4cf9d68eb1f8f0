// Package prometheus renders gateway counters and the refresh latency
// histogram in Prometheus text exposition format.
//
// Counter names are goauthclient_*_total; the histogram is
// goauthclient_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount Handler.
//   - Mutate gateway state.
package prometheus
