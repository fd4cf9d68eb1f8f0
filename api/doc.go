// Package api exposes the MCPanda community endpoints as typed operations.
//
// Every call goes through a Sender, normally the *goAuthClient.Gateway, so
// credential expiry is handled below this layer. Errors from the Sender are
// returned unchanged; callers match *goAuthClient.StatusError or the gateway
// sentinels with errors.Is / errors.As.
package api
