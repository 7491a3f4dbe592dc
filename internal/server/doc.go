// Package server provides the shared state of the resender MCP server and
// the metrics endpoint used by both the server and long resend runs.
//
// ServerContext owns the run settings, the exclusion list and a Gmail
// client that is created on first use from the stored OAuth token.
//
// MetricsServer exposes /metrics for Prometheus scraping. With a
// HealthChecker it also serves /healthz, /readyz and /healthz/detailed;
// readiness fails while no token is stored or while the Gmail circuit
// breaker is open.
package server
