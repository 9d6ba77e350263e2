package gmail

import (
	"net/mail"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// HeaderValue extracts a header value from a Gmail message.
// Header names are matched case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, mph := range m.Payload.Headers {
		if mph != nil && strings.EqualFold(mph.Name, header) {
			return mph.Value
		}
	}
	return ""
}

// Address returns the bare address of a From-style header value, or the
// trimmed input if it can't be parsed.
func Address(from string) string {
	a, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return a.Address
}
