// Package instrumentation provides OpenTelemetry instrumentation for draftbox.
//
// # Metrics
//
// OAuth callback listener:
//   - oauth_callback_requests_total: connections handled, by outcome
//     (completed, failed, ignored, unreadable)
//   - oauth_callback_request_duration_seconds: handling time including the code exchange
//   - oauth_callback_listeners_active: listeners waiting for a redirect
//
// OAuth:
//   - oauth_auth_total: authorization code exchanges by result
//   - oauth_token_refresh_total: refresh attempts by result (success, failure, expired)
//
// Google API:
//   - google_api_operations_total: Gmail API operations by service, operation, status
//   - google_api_operation_duration_seconds: Gmail API operation durations
//
// MCP tools:
//   - mcp_tool_invocations_total: invocations by tool name and status
//   - mcp_tool_duration_seconds: tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>), token endpoint
// calls (google.oauth.exchange, google.oauth.refresh) and Gmail API calls
// (google.gmail.drafts.create).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: plain HTTP for OTLP export
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_METRIC_EXPORT_INTERVAL: push interval in milliseconds (default: 10000)
//   - OTEL_SERVICE_NAME: Service name (default: draftbox)
//
// The stdout exporters write to stderr, or to the writer passed with
// WithDiagnosticsWriter, because stdout carries the MCP stdio transport.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig(),
//		instrumentation.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail,
//		instrumentation.OperationCreateDraft, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
