package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the inboxreply module.
const TracerName = "github.com/teemow/inboxreply"

// Span attribute keys for operations.
const (
	// SpanAttrStage is the pipeline stage (ingest, classify, draft, send).
	SpanAttrStage = "assistant.stage"

	// SpanAttrCycleID correlates spans of one poll cycle.
	SpanAttrCycleID = "assistant.cycle_id"

	// SpanAttrService is the external service name attribute.
	SpanAttrService = "external.service"

	// SpanAttrOperation is the operation type attribute.
	SpanAttrOperation = "external.operation"

	// SpanAttrEmailID is the Gmail message id.
	SpanAttrEmailID = "gmail.message_id"

	// SpanAttrThreadID is the Gmail thread id.
	SpanAttrThreadID = "gmail.thread_id"

	// SpanAttrSenderDomain is the sender's domain (never the full address).
	SpanAttrSenderDomain = "gmail.sender_domain"

	// SpanAttrModel is the drafting model name.
	SpanAttrModel = "ollama.model"

	// SpanAttrCount is the number of items handled by a stage.
	SpanAttrCount = "assistant.count"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithCycle adds the cycle id attribute.
func (b *SpanAttributeBuilder) WithCycle(cycleID string) *SpanAttributeBuilder {
	if cycleID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrCycleID, cycleID))
	}
	return b
}

// WithEmail adds message and thread id attributes.
func (b *SpanAttributeBuilder) WithEmail(emailID, threadID string) *SpanAttributeBuilder {
	if emailID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrEmailID, emailID))
	}
	if threadID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrThreadID, threadID))
	}
	return b
}

// WithSender adds the sender domain attribute.
func (b *SpanAttributeBuilder) WithSender(sender string) *SpanAttributeBuilder {
	if sender != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrSenderDomain, ExtractUserDomain(sender)))
	}
	return b
}

// WithModel adds the drafting model attribute.
func (b *SpanAttributeBuilder) WithModel(model string) *SpanAttributeBuilder {
	if model != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrModel, model))
	}
	return b
}

// WithCount adds an item count attribute.
func (b *SpanAttributeBuilder) WithCount(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrCount, n))
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartStageSpan starts a span for one pipeline stage of a cycle.
func StartStageSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrStage, stage))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "assistant."+stage,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for a call to an external service
// (Gmail or Ollama). Includes service and operation attributes.
func StartClientSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, service+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		SetSpanError(span, err)
	} else {
		SetSpanSuccess(span)
	}
	span.End()
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context.
// Returns empty string if no valid span is present.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
