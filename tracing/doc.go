// Package tracing is a thin wrapper around OpenTelemetry tracing.  The
// gateway's remote calls (content classification, security checks) open a
// client span per request; applications that do not need tracing simply
// never call Init and every span becomes a no-op.
package tracing
