// Package refresh performs the credential refresh call against the reissue
// endpoint.
//
// The request goes straight to the HTTP client that carries the ambient
// credential cookies. It never passes through the gateway, so a rejected
// reissue surfaces as an error instead of queueing behind the refresh it is
// part of.
//
// # What this package must NOT do
//
//   - Import goAuthClient; the gateway depends on this package, not the reverse.
//   - Retry. One call per invocation; the gateway decides what happens next.
//   - Store tokens. A token pair in the response body is inspected, never kept.
package refresh
