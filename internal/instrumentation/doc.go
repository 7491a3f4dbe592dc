// Package instrumentation provides OpenTelemetry instrumentation for the
// resender CLI and its MCP server.
//
// # Metrics
//
// Resend pipeline metrics:
//   - resender_messages_total: Counter of candidate messages by status and gate decision
//   - resender_dispatch_total: Counter of sends and draft creations by mode and status
//   - resender_dispatch_duration_seconds: Histogram of dispatch durations
//   - resender_exclusions_added_total: Counter of recipients added to the exclusion list
//
// Google API metrics:
//   - google_api_operations_total: Counter of Gmail API operations by operation and status
//   - google_api_operation_duration_seconds: Histogram of Gmail API operation durations
//   - gmail_circuit_breaker_transitions_total: Counter of circuit breaker state changes
//
// OAuth and MCP metrics:
//   - oauth_auth_total: Counter of interactive authorization attempts by result
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for each processed message (resend.message), each Gmail
// API call (google.gmail.<operation>) and each MCP tool invocation
// (tool.<name>). Exclusions are recorded as exclusion.added events on the
// message span. Every span and metric carries the service name, version and
// the resender.command resource attribute.
//
// # Configuration
//
// LoadConfig reads these environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces and metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: export over plain HTTP (default: false)
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: resender)
//   - METRICS_EXPORT_INTERVAL: push exporter flush interval (default: 10s)
//   - METRICS_DETAILED_LABELS: add recipient domains to exclusion metrics
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: MCP tool audit log
//
// Exporters that write to stdout write to stderr instead, since stdout
// carries the MCP protocol under serve.
//
// # Example Usage
//
//	config, err := instrumentation.LoadConfig(os.Getenv)
//	if err != nil {
//		return err
//	}
//	config.Command = "resend"
//	provider, err := instrumentation.NewProvider(ctx, config)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordDispatch(ctx, "immediate", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
