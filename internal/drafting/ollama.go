package drafting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/sony/gobreaker"

	"github.com/teemow/inboxreply/internal/instrumentation"
	"github.com/teemow/inboxreply/internal/logging"
)

const (
	// DefaultModel is the model pulled by the setup instructions.
	DefaultModel = "llama3.2"

	// DefaultHost is where a local Ollama listens.
	DefaultHost = "http://localhost:11434"

	defaultPort = "11434"
)

// ErrEmptyDraft is returned when the model answers with nothing but
// whitespace.
var ErrEmptyDraft = errors.New("drafting service returned an empty response")

// Options configures an OllamaDrafter.
type Options struct {
	Host    string
	Model   string
	Metrics *instrumentation.Metrics
	Logger  logging.Logger

	// HTTPClient is used for requests to Ollama; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// OllamaDrafter generates reply drafts with the Ollama generate API.
type OllamaDrafter struct {
	client  *api.Client
	model   string
	cb      *gobreaker.CircuitBreaker
	metrics *instrumentation.Metrics
	logger  logging.Logger
}

// NewOllamaDrafter creates a drafter for the given host and model. An
// empty host resolves OLLAMA_HOST the way the ollama CLI does.
func NewOllamaDrafter(opts Options) (*OllamaDrafter, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	base, err := ParseHost(opts.Host)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	cbSettings := gobreaker.Settings{
		Name:        "ollama",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// An empty answer means Ollama is up.
			return err == nil || errors.Is(err, ErrEmptyDraft)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &OllamaDrafter{
		client:  api.NewClient(base, opts.HTTPClient),
		model:   opts.Model,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// ParseHost turns an OLLAMA_HOST style value into the server URL. The
// scheme defaults to http and the port to 11434 (80 or 443 when the
// scheme is given), so "localhost", "0.0.0.0:11434" and
// "https://ollama.example.com" are all accepted.
func ParseHost(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return envconfig.Host(), nil
	}

	port := defaultPort
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		port = "80"
	case scheme == "https":
		port = "443"
	default:
		return nil, fmt.Errorf("invalid Ollama host %q: unsupported scheme %q", raw, scheme)
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		host, p = "127.0.0.1", port
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if n, err := strconv.Atoi(p); err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("invalid Ollama host %q: bad port %q", raw, p)
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, p),
		Path:   path,
	}, nil
}

// Model returns the model name used for drafts.
func (d *OllamaDrafter) Model() string {
	return d.model
}

// Generate sends prompt to the model and returns the trimmed response.
func (d *OllamaDrafter) Generate(ctx context.Context, prompt string) (draft string, err error) {
	start := time.Now()
	ctx, span := instrumentation.StartClientSpan(ctx, instrumentation.ServiceOllama, instrumentation.OperationGenerate,
		instrumentation.NewSpanAttributeBuilder().WithModel(d.model).Build()...)
	defer func() {
		d.metrics.RecordAPIOperation(ctx, instrumentation.ServiceOllama, instrumentation.OperationGenerate,
			instrumentation.StatusFor(err), time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	out, err := d.cb.Execute(func() (interface{}, error) {
		return d.generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("drafting service unavailable: %w", err)
		}
		return "", err
	}
	return out.(string), nil
}

func (d *OllamaDrafter) generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  d.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var sb strings.Builder
	err := d.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}

	draft := strings.TrimSpace(sb.String())
	if draft == "" {
		return "", ErrEmptyDraft
	}
	return draft, nil
}
