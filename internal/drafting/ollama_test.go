package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ollama/ollama/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxreply/internal/logging"
)

func newOllama(t *testing.T, handler func(req map[string]any) (int, string)) (*OllamaDrafter, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	d, err := NewOllamaDrafter(Options{Host: srv.URL, Model: "llama3.2", Logger: logging.Discard(), HTTPClient: srv.Client()})
	require.NoError(t, err)
	return d, &calls
}

func TestOllamaDrafter_Generate(t *testing.T) {
	var got map[string]any
	d, _ := newOllama(t, func(req map[string]any) (int, string) {
		got = req
		return http.StatusOK, `{"model":"llama3.2","response":"  Thanks for reaching out!  ","done":true}`
	})

	draft, err := d.Generate(context.Background(), "write a reply")
	require.NoError(t, err)
	assert.Equal(t, "Thanks for reaching out!", draft)

	assert.Equal(t, "llama3.2", got["model"])
	assert.Equal(t, "write a reply", got["prompt"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "llama3.2", d.Model())
}

func TestOllamaDrafter_EmptyResponse(t *testing.T) {
	d, _ := newOllama(t, func(map[string]any) (int, string) {
		return http.StatusOK, `{"model":"llama3.2","response":" \n\t ","done":true}`
	})

	_, err := d.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestOllamaDrafter_ServerError(t *testing.T) {
	d, _ := newOllama(t, func(map[string]any) (int, string) {
		return http.StatusNotFound, `{"error":"model \"llama3.2\" not found, try pulling it first"}`
	})

	_, err := d.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaDrafter_BreakerOpens(t *testing.T) {
	d, calls := newOllama(t, func(map[string]any) (int, string) {
		return http.StatusInternalServerError, `{"error":"boom"}`
	})

	for i := 0; i < 3; i++ {
		_, err := d.Generate(context.Background(), "p")
		require.Error(t, err)
	}
	before := calls.Load()

	_, err := d.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafting service unavailable")
	assert.Equal(t, before, calls.Load(), "open breaker must not reach the server")
}

func TestOllamaDrafter_EmptyDraftDoesNotTripBreaker(t *testing.T) {
	d, calls := newOllama(t, func(map[string]any) (int, string) {
		return http.StatusOK, `{"response":"","done":true}`
	})

	for i := 0; i < 5; i++ {
		_, err := d.Generate(context.Background(), "p")
		assert.True(t, errors.Is(err, ErrEmptyDraft))
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestParseHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"full url", "http://localhost:11434", "http://localhost:11434"},
		{"host and port", "127.0.0.1:11434", "http://127.0.0.1:11434"},
		{"bind all", "0.0.0.0", "http://0.0.0.0:11434"},
		{"name and port", "localhost:11434", "http://localhost:11434"},
		{"bare name", "ollama", "http://ollama:11434"},
		{"port only", ":11500", "http://127.0.0.1:11500"},
		{"ipv6", "[::1]:11434", "http://[::1]:11434"},
		{"https default port", "https://ollama.example.com", "https://ollama.example.com:443"},
		{"http default port", "http://ollama.example.com", "http://ollama.example.com:80"},
		{"path prefix", "https://gw.example.com:8443/ollama", "https://gw.example.com:8443/ollama"},
		{"surrounding space", "  localhost:11434 ", "http://localhost:11434"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseHost(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestParseHost_MatchesOllamaEnvironment(t *testing.T) {
	for _, host := range []string{"127.0.0.1:11434", "0.0.0.0", "localhost:11434", "https://ollama.example.com"} {
		t.Run(host, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", host)
			u, err := ParseHost(host)
			require.NoError(t, err)
			assert.Equal(t, envconfig.Host().String(), u.String())
		})
	}
}

func TestParseHost_EmptyUsesEnvironment(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11500")
	u, err := ParseHost("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:11500", u.String())
}

func TestParseHost_Invalid(t *testing.T) {
	for _, host := range []string{"ftp://ollama:21", "localhost:http", "localhost:70000"} {
		_, err := ParseHost(host)
		assert.Error(t, err, host)
	}
}

func TestNewOllamaDrafter_Hosts(t *testing.T) {
	for _, host := range []string{"127.0.0.1:11434", "0.0.0.0", "localhost:11434", DefaultHost} {
		_, err := NewOllamaDrafter(Options{Host: host, Logger: logging.Discard()})
		assert.NoError(t, err, host)
	}

	_, err := NewOllamaDrafter(Options{Host: "ftp://localhost"})
	assert.Error(t, err)

	t.Setenv("OLLAMA_HOST", "")
	d, err := NewOllamaDrafter(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, d.Model())
}
