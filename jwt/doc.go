// Package jwt issues and verifies member access tokens for the development
// backend and exposes an unverified expiry probe for tokens returned by the
// reissue endpoint.
//
// The gateway itself never parses credentials; only the refresh client (for
// diagnostics) and the dev backend (as issuer) use this package.
package jwt
