package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ReplyEvent captures one attempt to answer an email, for audit logging.
//
// # Privacy Considerations
//
// Recipient contains PII. Unless the audit logger is configured with
// IncludePII, only the recipient's domain is written.
type ReplyEvent struct {
	EmailID   string
	ThreadID  string
	Recipient string
	Subject   string

	// Set when the reply was drafted but not sent.
	DryRun bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewReplyEvent creates a new ReplyEvent with timing started.
// Call Complete when the send finishes.
func NewReplyEvent(emailID, threadID, recipient, subject string) *ReplyEvent {
	return &ReplyEvent{
		EmailID:   emailID,
		ThreadID:  threadID,
		Recipient: recipient,
		Subject:   subject,
		StartTime: time.Now(),
	}
}

// WithSpanContext extracts trace context from the current span.
func (e *ReplyEvent) WithSpanContext(ctx context.Context) *ReplyEvent {
	e.TraceID = GetTraceID(ctx)
	e.SpanID = GetSpanID(ctx)
	return e
}

// Complete marks the event as completed and calculates duration.
func (e *ReplyEvent) Complete(err error) *ReplyEvent {
	e.Duration = time.Since(e.StartTime)
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Status returns "success" or "error" based on the Success field.
func (e *ReplyEvent) Status() string {
	if e.Success {
		return StatusSuccess
	}
	return StatusError
}

func (e *ReplyEvent) attrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("email_id", e.EmailID),
		slog.String("thread_id", e.ThreadID),
		slog.String("subject", e.Subject),
		slog.Duration("duration", e.Duration),
		slog.Bool("success", e.Success),
	}
	if includePII {
		attrs = append(attrs, slog.String("recipient", e.Recipient))
	} else {
		attrs = append(attrs, slog.String("recipient_domain", ExtractUserDomain(e.Recipient)))
	}
	if e.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.SpanID != "" && includePII {
		attrs = append(attrs, slog.String("span_id", e.SpanID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per reply attempt.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogReply logs a completed reply attempt. A nil AuditLogger is a no-op.
func (al *AuditLogger) LogReply(ctx context.Context, e *ReplyEvent) {
	if al == nil || !al.enabled || e == nil {
		return
	}

	attrs := e.attrs(al.includePII)
	if e.Success {
		al.logger.LogAttrs(ctx, slog.LevelInfo, "reply_sent", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "reply_failed", attrs...)
	}
}
