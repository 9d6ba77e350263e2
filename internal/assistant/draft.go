package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/teemow/inboxreply/internal/instrumentation"
	"github.com/teemow/inboxreply/internal/logging"
)

// DefaultReplySubject is the subject of every reply.
const DefaultReplySubject = "Re: Your email"

var errEmptyDraft = errors.New("drafted reply is empty")

// DraftResult counts what happened to the emails handed to a Coordinator.
type DraftResult struct {
	// Drafts maps email id to the drafted reply.
	Drafts map[string]string

	Sent   int
	Failed int
}

// Coordinator drafts and sends one reply per action-required email.
type Coordinator struct {
	drafter Drafter
	sender  Sender
	prompt  *Prompt
	subject string
	dryRun  bool

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  logging.Logger
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Prompt  *Prompt
	Subject string

	// DryRun only marks audit records; the caller supplies a sender that
	// doesn't reach the mailbox.
	DryRun bool

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  logging.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(drafter Drafter, sender Sender, opts CoordinatorOptions) *Coordinator {
	if opts.Prompt == nil {
		opts.Prompt = NewPrompt(DefaultPersona, "")
	}
	if opts.Subject == "" {
		opts.Subject = DefaultReplySubject
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	return &Coordinator{
		drafter: drafter,
		sender:  sender,
		prompt:  opts.Prompt,
		subject: opts.Subject,
		dryRun:  opts.DryRun,
		metrics: opts.Metrics,
		audit:   opts.Audit,
		logger:  opts.Logger,
	}
}

// Process drafts and sends a reply for each email, sequentially and in
// order. A failed draft or send is logged and the next email is handled.
func (c *Coordinator) Process(ctx context.Context, emails []EmailRecord) DraftResult {
	return c.process(ctx, emails, c.logger)
}

func (c *Coordinator) process(ctx context.Context, emails []EmailRecord, logger logging.Logger) DraftResult {
	res := DraftResult{Drafts: make(map[string]string, len(emails))}

	for _, e := range emails {
		draft, err := c.reply(ctx, e, logger)
		if draft != "" {
			res.Drafts[e.ID] = draft
		}
		if err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res
}

// reply drafts and sends one reply. A non-empty draft is returned even
// when the send fails.
func (c *Coordinator) reply(ctx context.Context, e EmailRecord, logger logging.Logger) (draft string, err error) {
	ctx, span := instrumentation.StartSpan(ctx, "assistant.reply",
		instrumentation.NewSpanAttributeBuilder().WithEmail(e.ID, e.ThreadID).WithSender(e.Sender).Build()...)
	defer func() { instrumentation.EndSpan(span, err) }()

	elog := logging.With(logger, logging.EmailID(e.ID), logging.ThreadID(e.ThreadID))

	draft, err = c.draft(ctx, e)
	if err != nil {
		elog.Warn("failed to draft reply", logging.Err(err))
		return "", err
	}
	instrumentation.AddSpanEvent(span, "drafted")

	if err := c.send(ctx, e, draft); err != nil {
		elog.Warn("failed to send reply", logging.Sender(e.Sender), logging.Err(err))
		return draft, err
	}
	elog.Info("reply sent", logging.Sender(e.Sender))
	return draft, nil
}

func (c *Coordinator) draft(ctx context.Context, e EmailRecord) (draft string, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordDraft(ctx, instrumentation.StatusFor(err), time.Since(start))
	}()

	prompt, err := c.prompt.Render(e)
	if err != nil {
		return "", err
	}
	draft, err = c.drafter.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(draft) == "" {
		return "", errEmptyDraft
	}
	return draft, nil
}

func (c *Coordinator) send(ctx context.Context, e EmailRecord, draft string) error {
	ev := instrumentation.NewReplyEvent(e.ID, e.ThreadID, e.Sender, c.subject).WithSpanContext(ctx)
	ev.DryRun = c.dryRun

	err := c.sender.Send(ctx, e.Sender, c.subject, draft)

	c.audit.LogReply(ctx, ev.Complete(err))
	c.metrics.RecordReply(ctx, instrumentation.StatusFor(err), e.Sender)
	return err
}
