package assistant

import (
	"context"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	igmail "github.com/teemow/inboxreply/internal/gmail"
	"github.com/teemow/inboxreply/internal/instrumentation"
	"github.com/teemow/inboxreply/internal/ledger"
	"github.com/teemow/inboxreply/internal/logging"
)

// Batch is the outcome of one ingestion pass.
type Batch struct {
	Emails []EmailRecord

	// Fetched is the number of raw search results.
	Fetched int

	// Degraded is set when the search failed; Emails is then empty.
	Degraded bool
}

// Ingester turns unread search results into the cycle's pending emails.
type Ingester struct {
	mailbox Searcher
	ledger  ledger.Ledger
	self    string
	metrics *instrumentation.Metrics
	logger  logging.Logger
}

// NewIngester creates an Ingester. self is the operator's address; mail
// whose sender contains it is never admitted.
func NewIngester(mailbox Searcher, l ledger.Ledger, self string, metrics *instrumentation.Metrics, logger logging.Logger) *Ingester {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Ingester{
		mailbox: mailbox,
		ledger:  l,
		self:    strings.ToLower(strings.TrimSpace(self)),
		metrics: metrics,
		logger:  logger,
	}
}

// Ingest searches the mailbox and admits every result that is new, is the
// first of its thread in this batch, and was not sent by the operator.
// Every extracted id is marked seen, admitted or not. A search failure is
// logged and yields an empty, degraded batch with the ledger untouched.
func (in *Ingester) Ingest(ctx context.Context) Batch {
	return in.ingest(ctx, in.logger)
}

func (in *Ingester) ingest(ctx context.Context, logger logging.Logger) Batch {
	raw, err := in.mailbox.SearchUnread(ctx)
	if err != nil {
		logger.Warn("mailbox search failed, skipping cycle", logging.Err(err))
		return Batch{Degraded: true}
	}

	batch := Batch{Fetched: len(raw)}
	threads := make(map[string]struct{})
	ids := make([]string, 0, len(raw))
	seenNow := make(map[string]struct{}, len(raw))

	for i, m := range raw {
		rec, ok := Extract(m)
		if !ok {
			logger.Warn("skipping malformed search result", "index", i)
			in.metrics.RecordSkipped(ctx, instrumentation.SkipMalformed)
			continue
		}
		ids = append(ids, rec.ID)

		if _, dup := seenNow[rec.ID]; dup || in.ledger.Seen(rec.ID) {
			in.metrics.RecordSkipped(ctx, instrumentation.SkipSeen)
			continue
		}
		seenNow[rec.ID] = struct{}{}

		if _, dup := threads[rec.ThreadID]; dup {
			logger.Debug("skipping second email of thread", logging.EmailID(rec.ID), logging.ThreadID(rec.ThreadID))
			in.metrics.RecordSkipped(ctx, instrumentation.SkipThread)
			continue
		}
		if in.isSelf(rec.Sender) {
			logger.Debug("skipping self-sent email", logging.EmailID(rec.ID))
			in.metrics.RecordSkipped(ctx, instrumentation.SkipSelf)
			continue
		}

		threads[rec.ThreadID] = struct{}{}
		batch.Emails = append(batch.Emails, rec)
	}

	in.ledger.MarkSeen(ids...)
	in.metrics.RecordIngested(ctx, len(batch.Emails))
	return batch
}

func (in *Ingester) isSelf(sender string) bool {
	return in.self != "" && strings.Contains(strings.ToLower(sender), in.self)
}

// Extract normalizes a raw search result. It reports false for a nil
// message or one without an id or thread id. A missing From header or
// snippet yields an empty field.
func Extract(m *gmail.Message) (EmailRecord, bool) {
	if m == nil || m.Id == "" || m.ThreadId == "" {
		return EmailRecord{}, false
	}
	return EmailRecord{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Sender:   igmail.HeaderValue(m, "From"),
		Snippet:  m.Snippet,
	}, true
}
