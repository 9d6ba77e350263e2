package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrOutcome   = "outcome"
	attrReason    = "reason"
	attrResult    = "result"
	attrDomain    = "sender_domain"
)

// Metrics provides methods for recording observability metrics.
// The zero value (and a nil *Metrics) is a valid no-op recorder, which is
// what a disabled Provider hands out.
type Metrics struct {
	// Cycle metrics
	cyclesTotal   metric.Int64Counter
	cycleDuration metric.Float64Histogram
	ledgerSize    metric.Int64Gauge

	// Pipeline metrics
	emailsIngestedTotal   metric.Int64Counter
	emailsSkippedTotal    metric.Int64Counter
	emailsClassifiedTotal metric.Int64Counter
	draftsTotal           metric.Int64Counter
	draftDuration         metric.Float64Histogram
	repliesTotal          metric.Int64Counter

	// External API metrics
	apiOperationsTotal   metric.Int64Counter
	apiOperationDuration metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether sender domains are attached
// to reply metrics.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.cyclesTotal, err = meter.Int64Counter(
		"assistant_cycles_total",
		metric.WithDescription("Total number of completed poll cycles by outcome"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_cycles_total counter: %w", err)
	}

	m.cycleDuration, err = meter.Float64Histogram(
		"assistant_cycle_duration_seconds",
		metric.WithDescription("Duration of the Checking and Drafting states of a cycle, excluding the wait"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_cycle_duration_seconds histogram: %w", err)
	}

	m.ledgerSize, err = meter.Int64Gauge(
		"assistant_ledger_size",
		metric.WithDescription("Number of message ids recorded in the deduplication ledger"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_ledger_size gauge: %w", err)
	}

	m.emailsIngestedTotal, err = meter.Int64Counter(
		"assistant_emails_ingested_total",
		metric.WithDescription("Total number of emails admitted into a cycle"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_emails_ingested_total counter: %w", err)
	}

	m.emailsSkippedTotal, err = meter.Int64Counter(
		"assistant_emails_skipped_total",
		metric.WithDescription("Total number of search results not admitted, by reason"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_emails_skipped_total counter: %w", err)
	}

	m.emailsClassifiedTotal, err = meter.Int64Counter(
		"assistant_emails_classified_total",
		metric.WithDescription("Total number of classified emails by result"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_emails_classified_total counter: %w", err)
	}

	m.draftsTotal, err = meter.Int64Counter(
		"assistant_drafts_total",
		metric.WithDescription("Total number of reply drafts requested by status"),
		metric.WithUnit("{draft}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_drafts_total counter: %w", err)
	}

	m.draftDuration, err = meter.Float64Histogram(
		"assistant_draft_duration_seconds",
		metric.WithDescription("Drafting service latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_draft_duration_seconds histogram: %w", err)
	}

	m.repliesTotal, err = meter.Int64Counter(
		"assistant_replies_total",
		metric.WithDescription("Total number of replies submitted by status"),
		metric.WithUnit("{reply}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_replies_total counter: %w", err)
	}

	m.apiOperationsTotal, err = meter.Int64Counter(
		"external_api_operations_total",
		metric.WithDescription("Total number of Gmail and Ollama operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create external_api_operations_total counter: %w", err)
	}

	m.apiOperationDuration, err = meter.Float64Histogram(
		"external_api_operation_duration_seconds",
		metric.WithDescription("Gmail and Ollama operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create external_api_operation_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordCycle records a completed cycle with its outcome and the time spent
// outside the Waiting state.
func (m *Metrics) RecordCycle(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.cyclesTotal == nil || m.cycleDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))
	m.cyclesTotal.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLedgerSize records the current size of the deduplication ledger.
func (m *Metrics) RecordLedgerSize(ctx context.Context, size int) {
	if m == nil || m.ledgerSize == nil {
		return
	}
	m.ledgerSize.Record(ctx, int64(size))
}

// RecordIngested records emails admitted into a cycle.
func (m *Metrics) RecordIngested(ctx context.Context, count int) {
	if m == nil || m.emailsIngestedTotal == nil || count == 0 {
		return
	}
	m.emailsIngestedTotal.Add(ctx, int64(count))
}

// RecordSkipped records a search result that was not admitted.
// Reason should be one of the Skip* constants.
func (m *Metrics) RecordSkipped(ctx context.Context, reason string) {
	if m == nil || m.emailsSkippedTotal == nil {
		return
	}
	m.emailsSkippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordClassified records a classification result.
// Result should be one of the Class* constants.
func (m *Metrics) RecordClassified(ctx context.Context, result string) {
	if m == nil || m.emailsClassifiedTotal == nil {
		return
	}
	m.emailsClassifiedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordDraft records a drafting attempt with status and latency.
func (m *Metrics) RecordDraft(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.draftsTotal == nil || m.draftDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.draftsTotal.Add(ctx, 1, attrs)
	m.draftDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordReply records a reply submission. The sender domain is only
// attached when detailed labels are enabled.
func (m *Metrics) RecordReply(ctx context.Context, status, sender string) {
	if m == nil || m.repliesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && sender != "" {
		attrs = append(attrs, attribute.String(attrDomain, ExtractUserDomain(sender)))
	}

	m.repliesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAPIOperation records an external API operation with service,
// operation, status, and duration.
//
// Parameters:
//   - service: ServiceGmail or ServiceOllama
//   - operation: Operation type (search, send, generate, refresh)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.apiOperationsTotal == nil || m.apiOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.apiOperationsTotal.Add(ctx, 1, attrs)
	m.apiOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// StatusFor maps an error to StatusSuccess or StatusError.
func StatusFor(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
