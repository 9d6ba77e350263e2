package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxreply/internal/instrumentation"
	"github.com/teemow/inboxreply/internal/logging"
)

const (
	user = "me"

	// DefaultQuery selects the messages the assistant looks at.
	DefaultQuery = "is:unread"

	// DefaultMaxResults caps one search page.
	DefaultMaxResults = 25
)

// Options configures a Client.
type Options struct {
	Query      string
	MaxResults int64
	Metrics    *instrumentation.Metrics
	Logger     logging.Logger
}

// Client wraps the Gmail Users service with the two calls the assistant
// needs: an unread search and a plain-text send.
type Client struct {
	svc        *gmail.UsersService
	query      string
	maxResults int64
	metrics    *instrumentation.Metrics
	logger     logging.Logger
}

// NewClient creates a Gmail client. Authentication comes from the given
// client options, usually option.WithHTTPClient with an OAuth client.
func NewClient(ctx context.Context, opts Options, clientOpts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}

	return &Client{
		svc:        svc.Users,
		query:      opts.Query,
		maxResults: opts.MaxResults,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}, nil
}

// NewClientWithHTTP is a shorthand for NewClient with an authenticated
// HTTP client.
func NewClientWithHTTP(ctx context.Context, httpClient *http.Client, opts Options) (*Client, error) {
	return NewClient(ctx, opts, option.WithHTTPClient(httpClient))
}

// SearchUnread lists the messages matching the configured query and
// fetches each one in metadata format with the From header and snippet.
// A message that disappears between list and get is skipped; it will be
// picked up again by the next search if it is still unread.
func (c *Client) SearchUnread(ctx context.Context) (msgs []*gmail.Message, err error) {
	start := time.Now()
	ctx, span := instrumentation.StartClientSpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSearch)
	defer func() {
		c.metrics.RecordAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationSearch,
			instrumentation.StatusFor(err), time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	res, err := c.svc.Messages.List(user).Q(c.query).MaxResults(c.maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs = make([]*gmail.Message, 0, len(res.Messages))
	for _, ref := range res.Messages {
		if ref == nil || ref.Id == "" {
			continue
		}
		m, err := c.svc.Messages.Get(user, ref.Id).
			Format("metadata").
			MetadataHeaders("From").
			Context(ctx).
			Do()
		if err != nil {
			c.logger.Warn("failed to fetch message metadata", logging.EmailID(ref.Id), logging.Err(err))
			continue
		}
		msgs = append(msgs, m)
	}

	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithCount(len(msgs)).Build()...)
	return msgs, nil
}

// Send submits a plain-text message to a single recipient.
func (c *Client) Send(ctx context.Context, to, subject, body string) (err error) {
	start := time.Now()
	ctx, span := instrumentation.StartClientSpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend)
	defer func() {
		c.metrics.RecordAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend,
			instrumentation.StatusFor(err), time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	raw, err := BuildMessage(to, subject, body)
	if err != nil {
		return err
	}

	sent, err := c.svc.Messages.Send(user, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Debug("message sent",
		logging.Operation(instrumentation.OperationSend),
		logging.Status(logging.StatusSuccess),
		logging.Domain(Address(to)),
		logging.EmailID(sent.Id),
		logging.ThreadID(sent.ThreadId))
	return nil
}

// BuildMessage renders an RFC 2822 plain-text message and returns it
// base64url encoded, as expected by Messages.Send.
func BuildMessage(to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("recipient is required")
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return "", fmt.Errorf("header values must not contain line breaks")
	}

	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

// encodeRFC2047 encodes a string for use in email headers according to RFC 2047.
// Plain ASCII is returned unchanged.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.QEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
