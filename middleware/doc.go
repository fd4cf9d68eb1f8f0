// Package middleware guards the development backend's HTTP routes with the
// access-token cookie.
//
// # Guards
//
//   - [CookieGuard] requires a valid token and answers 401 with an empty body otherwise.
//   - [OptionalAuth] serves anonymous requests but still rejects a stale token.
//
// Both read the accessToken cookie (or an Authorization bearer header), delegate
// verification to a [Validator], and inject the claims into the request context.
//
// # What this package must NOT do
//
//   - Issue or refresh tokens.
//   - Access Redis; revocation checks belong to the Validator.
package middleware
