package gmail

import (
	"context"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxreply/internal/logging"
)

// Searcher is the read half of the mailbox.
type Searcher interface {
	SearchUnread(ctx context.Context) ([]*gmail.Message, error)
}

// DryRun searches the real mailbox but only logs replies.
type DryRun struct {
	Searcher
	logger logging.Logger
}

// NewDryRun wraps s so that Send never reaches Gmail.
func NewDryRun(s Searcher, logger logging.Logger) *DryRun {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &DryRun{Searcher: s, logger: logger}
}

// Send logs the reply that would have been sent.
func (d *DryRun) Send(_ context.Context, to, subject, body string) error {
	d.logger.Info("dry run: reply not sent",
		logging.Sender(to),
		"subject", subject,
		"body", body,
	)
	return nil
}
