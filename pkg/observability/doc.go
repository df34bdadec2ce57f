// Package observability provides logging, metrics, tracing, health checks
// and graceful shutdown for the IAM service.
//
// Logging is JSON via logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("login succeeded")
//
// Prometheus metrics are registered on a caller supplied registry and
// served by MetricsHandler. OpenTelemetry export is optional; when disabled
// TracingMiddleware still creates spans against the global no-op provider.
package observability
