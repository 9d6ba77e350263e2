package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxreply/internal/logging"
)

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(*oauth2.Token) error
}

// FileTokenStore stores the token as JSON on disk.
type FileTokenStore struct {
	Path string
}

// NewFileTokenStore creates a file-based token store. An empty path means
// DefaultTokenFile.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = DefaultTokenFile()
	}
	return &FileTokenStore{Path: path}
}

// Load reads the token. It returns ErrNoToken if the file doesn't exist.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	t := &oauth2.Token{}
	if err := json.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.Path, err)
	}
	if t.RefreshToken == "" && t.AccessToken == "" {
		return nil, fmt.Errorf("invalid token file %s: no access or refresh token", s.Path)
	}
	return t, nil
}

// Save writes the token with owner-only permissions.
func (s *FileTokenStore) Save(t *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, b, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// persistingTokenSource saves the token whenever the underlying source
// hands out a new access token.
type persistingTokenSource struct {
	src    oauth2.TokenSource
	store  TokenStore
	logger logging.Logger

	mu   sync.Mutex
	last string
}

func newPersistingTokenSource(src oauth2.TokenSource, store TokenStore, initial *oauth2.Token) *persistingTokenSource {
	ts := &persistingTokenSource{
		src:    src,
		store:  store,
		logger: logging.DefaultLogger().With(logging.KeyComponent, "google"),
	}
	if initial != nil {
		ts.last = initial.AccessToken
	}
	return ts
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("cached token is invalid: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != s.last {
		s.last = t.AccessToken
		if err := s.store.Save(t); err != nil {
			// The refreshed token is still usable for this run.
			s.logger.Warn("failed to persist refreshed token", logging.Err(err))
		} else {
			s.logger.Debug("persisted refreshed token", "token", logging.SanitizeToken(t.AccessToken))
		}
	}
	return t, nil
}
