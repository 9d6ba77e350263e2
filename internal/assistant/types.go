package assistant

import (
	"context"

	gmail "google.golang.org/api/gmail/v1"
)

// EmailRecord is the normalized view of one unread message.
type EmailRecord struct {
	ID       string
	ThreadID string
	Sender   string
	Snippet  string
}

// CycleState is re-derived every cycle; only the ledger outlives it.
type CycleState struct {
	// Pending holds the emails admitted by ingestion, in search order.
	Pending []EmailRecord

	// ActionRequired maps email id to the drafted reply for every email
	// that passed both filters and was drafted.
	ActionRequired map[string]string
}

// Searcher lists unread messages in metadata format.
type Searcher interface {
	SearchUnread(ctx context.Context) ([]*gmail.Message, error)
}

// Sender submits a plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Mailbox is the part of the mail provider the assistant uses.
type Mailbox interface {
	Searcher
	Sender
}

// Drafter turns a prompt into reply text.
type Drafter interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
