// Package session owns the client-side identity state of a signed-in member
// and reacts to session termination.
//
// # Architecture boundaries
//
// [Store] persists the member profile ([MemoryStore] for a single process,
// [RedisStore] when several workers share one session). [Manager] implements
// goAuthClient.SessionObserver: when the gateway reports an unrecoverable
// refresh failure it clears the profile and navigates to the login page.
//
// # What this package must NOT do
//
//   - Touch credentials; cookies stay inside the HTTP client.
//   - Issue refresh calls or retry requests.
package session
