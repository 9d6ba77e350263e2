package google

import gmail "google.golang.org/api/gmail/v1"

// Scopes are the Google OAuth scopes requested by the auth command.
// gmail.modify covers searching unread mail and sending replies.
var Scopes = []string{
	gmail.GmailModifyScope,
}
