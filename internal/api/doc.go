// Package api exposes the REST gateway. It injects user queries into the
// chat bus as a synthetic user, waits for the routed reply, and serves the
// active session listing and statistics. Authentication is optional static
// bearer tokens; metrics are exported on /metrics.
package api
