// Package server provides the HTTP surfaces of a running assistant.
//
// MetricsServer serves /metrics for Prometheus on its own port.
//
// ControlServer listens on a loopback address and serves:
//   - /healthz and /healthz/detailed (liveness, uptime, scheduler state)
//   - /readyz, which fails once a stop was requested
//   - /mcp, a streamable HTTP MCP endpoint with the assistant_status and
//     assistant_stop tools
//
// assistant_stop is one of the sources of the cancellation signal, next
// to SIGINT/SIGTERM and "exit" on stdin.
package server
