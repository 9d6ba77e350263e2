// Package instrumentation provides OpenTelemetry instrumentation for the
// inboxreply assistant.
//
// # Metrics
//
// Cycle metrics:
//   - assistant_cycles_total: Counter of completed cycles by outcome (idle, drafted, degraded)
//   - assistant_cycle_duration_seconds: Histogram of Checking+Drafting time per cycle
//   - assistant_ledger_size: Gauge of ids in the deduplication ledger
//
// Pipeline metrics:
//   - assistant_emails_ingested_total: Counter of admitted emails
//   - assistant_emails_skipped_total: Counter of rejected search results by reason
//   - assistant_emails_classified_total: Counter of classification results
//   - assistant_drafts_total / assistant_draft_duration_seconds: Drafting outcomes and latency
//   - assistant_replies_total: Counter of submitted replies by status
//
// External API metrics:
//   - external_api_operations_total: Counter of Gmail and Ollama calls by service, operation, status
//   - external_api_operation_duration_seconds: Histogram of those calls
//
// # Tracing
//
// Spans are created for each pipeline stage (assistant.<stage>) and for each
// external call (<service>.<operation>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: inboxreply)
//   - METRICS_DETAILED_LABELS: Attach sender domains to reply metrics
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m := provider.Metrics()
//	m.RecordCycle(ctx, instrumentation.CycleIdle, time.Since(start))
package instrumentation
