package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = fmt.Errorf("no Google OAuth token found; run the auth command first")

// Authenticator runs the installed-app OAuth flow and hands out token
// sources for the Gmail client.
type Authenticator struct {
	config *oauth2.Config
	store  TokenStore
}

// NewAuthenticator reads the OAuth client from credentialsFile (the JSON
// downloaded from the Google Cloud console) and uses store for the token.
func NewAuthenticator(credentialsFile string, store TokenStore) (*Authenticator, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	conf, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return &Authenticator{config: conf, store: store}, nil
}

// HasToken checks if a token has been stored.
func (a *Authenticator) HasToken() bool {
	_, err := a.store.Load()
	return err == nil
}

// AuthURL returns the OAuth URL for user authorization. Offline access is
// requested so the stored token carries a refresh token.
func (a *Authenticator) AuthURL() string {
	return a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and saves them.
// The code may also be the full redirect URL copied from the browser.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	code = ExtractAuthCode(code)
	if code == "" {
		return fmt.Errorf("authorization code is empty")
	}

	t, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := a.store.Save(t); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// TokenSource returns a token source for the stored token. Refreshed
// tokens are written back to the store.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	t, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	return newPersistingTokenSource(a.config.TokenSource(ctx, t), a.store, t), nil
}

// HTTPClient returns an HTTP client configured with OAuth2 authentication.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   &http.Transport{ForceAttemptHTTP2: false},
		},
	}, nil
}

// ExtractAuthCode accepts either a bare authorization code or the redirect
// URL the browser landed on, and returns the code.
func ExtractAuthCode(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "code=") {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	return u.Query().Get("code")
}

// DefaultTokenFile returns the default location of the stored token.
func DefaultTokenFile() string {
	return filepath.Join(userCacheDir(), "inboxreply", "google.token")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return homeDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
