package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/teemow/inboxreply/internal/assistant"
	"github.com/teemow/inboxreply/internal/drafting"
	"github.com/teemow/inboxreply/internal/gmail"
	"github.com/teemow/inboxreply/internal/server"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
)

// DefaultCredentialsFile is the client secrets file downloaded from the
// Google Cloud console.
const DefaultCredentialsFile = "credentials.json"

// Config holds the settings of the run command.
type Config struct {
	// Address is the operator's own Gmail address. Mail from it is never
	// answered.
	Address string

	BulkMarkers   []string
	ActionMarkers []string

	// Interval is the pause between two cycles and must be positive.
	Interval     time.Duration
	Query        string
	MaxResults   int64
	ReplySubject string

	CredentialsFile string
	// TokenFile is empty for the per-user cache location.
	TokenFile string

	Model string
	// OllamaHost accepts OLLAMA_HOST forms such as "127.0.0.1:11434";
	// empty defers to the ollama environment.
	OllamaHost string

	LedgerBackend string
	LedgerPath    string

	// ControlAddr is the listen address of the control server; empty
	// disables it.
	ControlAddr string

	MetricsEnabled bool
	MetricsAddr    string

	DryRun bool
}

// Default returns the configuration used when neither a flag nor an
// environment variable is set.
func Default() Config {
	return Config{
		BulkMarkers:     append([]string(nil), assistant.DefaultBulkMarkers...),
		ActionMarkers:   append([]string(nil), assistant.DefaultActionMarkers...),
		Interval:        assistant.DefaultInterval,
		Query:           gmail.DefaultQuery,
		MaxResults:      gmail.DefaultMaxResults,
		ReplySubject:    assistant.DefaultReplySubject,
		CredentialsFile: DefaultCredentialsFile,
		Model:           drafting.DefaultModel,
		OllamaHost:      drafting.DefaultHost,
		LedgerBackend:   LedgerMemory,
		LedgerPath:      defaultLedgerPath(),
		ControlAddr:     server.DefaultControlAddr,
		MetricsEnabled:  true,
		MetricsAddr:     server.DefaultMetricsAddr,
	}
}

func defaultLedgerPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "inboxreply", "ledger.db")
}

// RegisterFlags binds the flags of the run command to c. The current
// values of c become the flag defaults.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Address, "address", c.Address, "Your Gmail address; mail from it is never answered. Can also use GMAIL_ADDRESS env var.")
	fs.StringSliceVar(&c.BulkMarkers, "bulk-markers", c.BulkMarkers, "Sender substrings that mark bulk mail. Can also use BULK_MARKERS env var.")
	fs.StringSliceVar(&c.ActionMarkers, "action-markers", c.ActionMarkers, "Sender or snippet substrings that require a reply. Can also use ACTION_MARKERS env var.")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "Delay between two mailbox checks. Can also use POLL_INTERVAL env var.")
	fs.StringVar(&c.Query, "query", c.Query, "Gmail search query. Can also use GMAIL_QUERY env var.")
	fs.Int64Var(&c.MaxResults, "max-results", c.MaxResults, "Maximum messages fetched per check. Can also use GMAIL_MAX_RESULTS env var.")
	fs.StringVar(&c.ReplySubject, "reply-subject", c.ReplySubject, "Subject of every reply. Can also use REPLY_SUBJECT env var.")
	fs.StringVar(&c.CredentialsFile, "credentials", c.CredentialsFile, "Google OAuth client secrets file. Can also use GOOGLE_CREDENTIALS_FILE env var.")
	fs.StringVar(&c.TokenFile, "token-file", c.TokenFile, "Where the Google token is stored (default: user cache dir). Can also use GOOGLE_TOKEN_FILE env var.")
	fs.StringVar(&c.Model, "model", c.Model, "Ollama model used to draft replies. Can also use OLLAMA_MODEL env var.")
	fs.StringVar(&c.OllamaHost, "ollama-host", c.OllamaHost, "Ollama server, e.g. http://localhost:11434 or 127.0.0.1:11434. Can also use OLLAMA_HOST env var.")
	fs.StringVar(&c.LedgerBackend, "ledger", c.LedgerBackend, "Seen-id ledger backend: memory or sqlite. Can also use LEDGER_BACKEND env var.")
	fs.StringVar(&c.LedgerPath, "ledger-path", c.LedgerPath, "SQLite ledger file. Can also use LEDGER_PATH env var.")
	fs.StringVar(&c.ControlAddr, "control-addr", c.ControlAddr, "Control server address, empty to disable. Can also use CONTROL_ADDR env var.")
	fs.BoolVar(&c.MetricsEnabled, "metrics-enabled", c.MetricsEnabled, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun, "Draft replies and log them instead of sending. Can also use DRY_RUN env var.")
}

// LoadDotEnv loads environment variables from path if the file exists.
// Variables already set in the environment win.
func LoadDotEnv(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return true, nil
}

// ApplyEnv fills every setting whose flag was not set explicitly from its
// environment variable. fs may be nil, in which case every variable
// applies.
func (c *Config) ApplyEnv(fs *pflag.FlagSet) error {
	changed := func(name string) bool {
		return fs != nil && fs.Changed(name)
	}
	var errs []error

	str := func(flag, env string, dst *string) {
		if changed(flag) {
			return
		}
		if v, ok := os.LookupEnv(env); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(flag, env string, dst *[]string) {
		if changed(flag) {
			return
		}
		if v, ok := os.LookupEnv(env); ok {
			*dst = parseCommaSeparatedList(v)
		}
	}
	boolean := func(flag, env string, dst *bool) {
		if changed(flag) {
			return
		}
		if v := os.Getenv(env); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", env, v, err))
				return
			}
			*dst = b
		}
	}

	str("address", "GMAIL_ADDRESS", &c.Address)
	list("bulk-markers", "BULK_MARKERS", &c.BulkMarkers)
	list("action-markers", "ACTION_MARKERS", &c.ActionMarkers)
	str("query", "GMAIL_QUERY", &c.Query)
	str("reply-subject", "REPLY_SUBJECT", &c.ReplySubject)
	str("credentials", "GOOGLE_CREDENTIALS_FILE", &c.CredentialsFile)
	str("token-file", "GOOGLE_TOKEN_FILE", &c.TokenFile)
	str("model", "OLLAMA_MODEL", &c.Model)
	str("ollama-host", "OLLAMA_HOST", &c.OllamaHost)
	str("ledger", "LEDGER_BACKEND", &c.LedgerBackend)
	str("ledger-path", "LEDGER_PATH", &c.LedgerPath)
	str("control-addr", "CONTROL_ADDR", &c.ControlAddr)
	str("metrics-addr", "METRICS_ADDR", &c.MetricsAddr)
	boolean("metrics-enabled", "METRICS_ENABLED", &c.MetricsEnabled)
	boolean("dry-run", "DRY_RUN", &c.DryRun)

	if !changed("interval") {
		if v := os.Getenv("POLL_INTERVAL"); v != "" {
			d, err := parseInterval(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err))
			} else {
				c.Interval = d
			}
		}
	}
	if !changed("max-results") {
		if v := os.Getenv("GMAIL_MAX_RESULTS"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid GMAIL_MAX_RESULTS %q: %w", v, err))
			} else {
				c.MaxResults = n
			}
		}
	}

	return errors.Join(errs...)
}

// parseInterval accepts a Go duration or a bare number of seconds.
func parseInterval(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	addr := strings.TrimSpace(c.Address)
	switch {
	case addr == "":
		errs = append(errs, errors.New("operator address is required (--address or GMAIL_ADDRESS)"))
	case !strings.Contains(addr, "@"):
		errs = append(errs, fmt.Errorf("operator address %q is not an email address", addr))
	}

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.MaxResults <= 0 || c.MaxResults > 500 {
		errs = append(errs, fmt.Errorf("max results must be between 1 and 500, got %d", c.MaxResults))
	}
	if strings.TrimSpace(c.ReplySubject) == "" {
		errs = append(errs, errors.New("reply subject must not be empty"))
	}
	if strings.ContainsAny(c.ReplySubject, "\r\n") {
		errs = append(errs, errors.New("reply subject must be a single line"))
	}
	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("credentials file is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if _, err := drafting.ParseHost(c.OllamaHost); err != nil {
		errs = append(errs, err)
	}

	switch c.LedgerBackend {
	case LedgerMemory:
	case LedgerSQLite:
		if c.LedgerPath == "" {
			errs = append(errs, errors.New("ledger path is required for the sqlite ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q (supported: %s, %s)", c.LedgerBackend, LedgerMemory, LedgerSQLite))
	}

	if c.ControlAddr != "" {
		if _, _, err := net.SplitHostPort(c.ControlAddr); err != nil {
			errs = append(errs, fmt.Errorf("invalid control address %q: %w", c.ControlAddr, err))
		}
	}
	if c.MetricsEnabled {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("invalid metrics address %q: %w", c.MetricsAddr, err))
		}
	}

	return errors.Join(errs...)
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
