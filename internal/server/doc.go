// Package server holds the state behind the draftbox MCP tools.
//
// # Key Components
//
// ServerContext owns the token store, the draft composer and at most one
// OAuth callback listener. Its methods are the operations the tools expose:
// building consent URLs, running the listener, exchanging codes by hand,
// creating drafts and reporting or clearing the sign-in state.
//
// Listeners run on the context passed to NewServerContext, not on the
// context of the tool call that started them, so a sign-in can complete
// after the call has returned. Shutdown stops the listener and waits for it.
//
// HealthChecker serves liveness, readiness and a detailed report that
// includes whether a token is stored and whether a listener is waiting.
//
// MetricsServer exposes the Prometheus registry and the health endpoints on a
// separate address.
package server
