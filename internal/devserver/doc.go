// Package devserver emulates the MCPanda backend for tests, the load test and
// local development.
//
// Access tokens are HS256 JWT cookies carrying a generation claim, so
// ExpireAccessTokens can invalidate every live credential at once. Refresh
// tokens are opaque rotating secrets grouped in families stored in Redis; a
// reused secret revokes its whole family. Articles, comments and MCPs live in
// memory.
package devserver
