// Package google provides OAuth2 authentication and token management for
// the Gmail API.
//
// The token is obtained once through the installed-app flow (the auth
// command), stored as JSON by a TokenStore, and refreshed transparently
// by the token source handed to the Gmail client.
package google
