package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxreply/internal/assistant"
	"github.com/teemow/inboxreply/internal/drafting"
	"github.com/teemow/inboxreply/internal/gmail"
	"github.com/teemow/inboxreply/internal/server"
)

func valid() Config {
	c := Default()
	c.Address = "me@example.com"
	return c
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"newsletter", "promo"}, c.BulkMarkers)
	assert.Equal(t, []string{"linkedin", "kaggle", "course", "new openings"}, c.ActionMarkers)
	assert.Equal(t, 30*time.Second, c.Interval)
	assert.Equal(t, "is:unread", c.Query)
	assert.Equal(t, "Re: Your email", c.ReplySubject)
	assert.Equal(t, "llama3.2", c.Model)
	assert.Equal(t, LedgerMemory, c.LedgerBackend)
	assert.True(t, c.MetricsEnabled)
	assert.Equal(t, server.DefaultControlAddr, c.ControlAddr)
	assert.Equal(t, server.DefaultMetricsAddr, c.MetricsAddr)
	assert.Equal(t, int64(gmail.DefaultMaxResults), c.MaxResults)
	assert.Equal(t, drafting.DefaultHost, c.OllamaHost)

	c.BulkMarkers[0] = "changed"
	assert.Equal(t, "newsletter", assistant.DefaultBulkMarkers[0], "defaults must not alias")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GMAIL_ADDRESS", " me@example.com ")
	t.Setenv("BULK_MARKERS", "digest, ,noreply")
	t.Setenv("POLL_INTERVAL", "45")
	t.Setenv("GMAIL_MAX_RESULTS", "10")
	t.Setenv("LEDGER_BACKEND", "sqlite")
	t.Setenv("CONTROL_ADDR", "")
	t.Setenv("DRY_RUN", "true")

	c := Default()
	require.NoError(t, c.ApplyEnv(nil))

	assert.Equal(t, "me@example.com", c.Address)
	assert.Equal(t, []string{"digest", "noreply"}, c.BulkMarkers)
	assert.Equal(t, 45*time.Second, c.Interval)
	assert.Equal(t, int64(10), c.MaxResults)
	assert.Equal(t, LedgerSQLite, c.LedgerBackend)
	assert.Empty(t, c.ControlAddr, "an empty CONTROL_ADDR disables the control server")
	assert.True(t, c.DryRun)
}

func TestApplyEnv_FlagWins(t *testing.T) {
	t.Setenv("GMAIL_ADDRESS", "env@example.com")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("OLLAMA_MODEL", "mistral")

	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--address", "flag@example.com", "--interval", "10s"}))
	require.NoError(t, c.ApplyEnv(fs))

	assert.Equal(t, "flag@example.com", c.Address)
	assert.Equal(t, 10*time.Second, c.Interval)
	assert.Equal(t, "mistral", c.Model, "unset flags still take the environment")
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("GMAIL_MAX_RESULTS", "many")
	t.Setenv("DRY_RUN", "maybe")

	c := Default()
	err := c.ApplyEnv(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
	assert.Contains(t, err.Error(), "GMAIL_MAX_RESULTS")
	assert.Contains(t, err.Error(), "DRY_RUN")
	assert.Equal(t, 30*time.Second, c.Interval, "invalid values leave the default")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadDotEnv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.False(t, loaded)

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("INBOXREPLY_TEST_VAR=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("INBOXREPLY_TEST_VAR") })

	loaded, err = LoadDotEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("INBOXREPLY_TEST_VAR"))
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("INBOXREPLY_TEST_VAR", "from-env")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("INBOXREPLY_TEST_VAR=from-file\n"), 0o600))

	_, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", os.Getenv("INBOXREPLY_TEST_VAR"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing address", func(c *Config) { c.Address = "" }, "operator address is required"},
		{"address without at", func(c *Config) { c.Address = "me" }, "is not an email address"},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, "interval must be positive"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval must be positive"},
		{"max results", func(c *Config) { c.MaxResults = 0 }, "max results"},
		{"multi-line subject", func(c *Config) { c.ReplySubject = "Re:\r\nBcc: x" }, "single line"},
		{"unknown ledger", func(c *Config) { c.LedgerBackend = "redis" }, "unknown ledger backend"},
		{"sqlite without path", func(c *Config) { c.LedgerBackend = LedgerSQLite; c.LedgerPath = "" }, "ledger path is required"},
		{"bad control addr", func(c *Config) { c.ControlAddr = "8090" }, "invalid control address"},
		{"control disabled", func(c *Config) { c.ControlAddr = "" }, ""},
		{"ollama host and port", func(c *Config) { c.OllamaHost = "127.0.0.1:11434" }, ""},
		{"ollama bind all", func(c *Config) { c.OllamaHost = "0.0.0.0" }, ""},
		{"ollama name and port", func(c *Config) { c.OllamaHost = "localhost:11434" }, ""},
		{"ollama from environment", func(c *Config) { c.OllamaHost = "" }, ""},
		{"ollama bad scheme", func(c *Config) { c.OllamaHost = "ftp://localhost" }, "invalid Ollama host"},
		{"metrics addr ignored when disabled", func(c *Config) { c.MetricsEnabled = false; c.MetricsAddr = "x" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"operator address", "interval must be positive", "max results", "reply subject", "credentials", "model", "ledger backend"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single value", "linkedin", []string{"linkedin"}},
		{"spaces around comma", "linkedin, new openings", []string{"linkedin", "new openings"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
		{"consecutive commas", "a,,b", []string{"a", "b"}},
		{"only commas and spaces", ",  , , ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseCommaSeparatedList(tt.input))
		})
	}
}
