// Package goAuthClient is the API client of the MCPanda community platform. Its
// core is the authenticated request Gateway: it issues API calls over a
// cookie-bearing HTTP client and hides credential expiry from callers behind a
// single-flight refresh gate.
//
// Build a Gateway once per session with [New] ... [Builder.Build] and inject it
// wherever requests originate; the api package wraps it with typed operations.
//
// # Refresh coordination
//
// When a response carries the auth-expired status (401 by default):
//
//   - the first caller flips the gate to refreshing and issues the only refresh call;
//   - callers failing while the refresh is in flight are parked, in order;
//   - on success every parked caller and the originator replay their own request once;
//   - on failure all of them receive a [RefreshError] and the [SessionObserver]
//     is notified exactly once.
//
// A replayed request that hits the auth-expired status again fails with
// [ErrRetryExhausted]; it never triggers another refresh. All other responses
// and errors pass through untouched.
//
// # What this package must NOT do
//
//   - Read, parse or store the ambient credential; cookies belong to the HTTP client.
//   - Navigate or clear identity state; that is the session observer's job.
//   - Expose the gate state or pending list outside the Gateway.
package goAuthClient
