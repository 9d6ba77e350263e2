package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxreply/internal/assistant"
	"github.com/teemow/inboxreply/internal/logging"
)

type fakeStatus struct {
	status assistant.Status
}

func (f *fakeStatus) Status() assistant.Status { return f.status }

type fakeStop struct {
	mu      sync.Mutex
	sources []string
}

func (f *fakeStop) Request(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
}

func (f *fakeStop) Requested() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources) > 0
}

func newControl(t *testing.T) (*ControlServer, *fakeStatus, *fakeStop) {
	t.Helper()
	st := &fakeStatus{status: assistant.Status{
		State:      assistant.StateWaiting,
		Cycles:     3,
		LedgerSize: 7,
		Interval:   30 * time.Second,
		LastCycle:  &assistant.CycleSummary{ID: "c-3", Outcome: "drafted", Sent: 1},
	}}
	stop := &fakeStop{}
	s, err := NewControlServer(ControlServerConfig{
		Version: "1.2.3",
		Status:  st,
		Stop:    stop,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	return s, st, stop
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestNewControlServer_Validation(t *testing.T) {
	_, err := NewControlServer(ControlServerConfig{Stop: &fakeStop{}})
	assert.ErrorContains(t, err, "status source is required")

	_, err = NewControlServer(ControlServerConfig{Status: &fakeStatus{}})
	assert.ErrorContains(t, err, "stopper is required")

}

func TestControlServer_ListenServeShutdown(t *testing.T) {
	st := &fakeStatus{}
	s, err := NewControlServer(ControlServerConfig{
		Addr:   "127.0.0.1:0",
		Status: st,
		Stop:   &fakeStop{},
		Logger: logging.Discard(),
	})
	require.NoError(t, err)

	ln, err := s.Listen()
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func TestControlServer_StatusTool(t *testing.T) {
	s, _, _ := newControl(t)

	res, err := s.handleStatus(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got assistant.Status
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, assistant.StateWaiting, got.State)
	assert.Equal(t, 3, got.Cycles)
	assert.Equal(t, 7, got.LedgerSize)
	require.NotNil(t, got.LastCycle)
	assert.Equal(t, "c-3", got.LastCycle.ID)
}

func TestControlServer_StopTool(t *testing.T) {
	s, _, stop := newControl(t)

	res, err := s.handleStop(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Stop requested")

	res, err = s.handleStop(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "already requested")

	assert.Equal(t, []string{StopSource}, stop.sources)
}

func TestControlServer_ToolsRegistered(t *testing.T) {
	s, _, _ := newControl(t)

	tools := s.MCPServer().ListTools()
	assert.Contains(t, tools, ToolStatus)
	assert.Contains(t, tools, ToolStop)
}

func TestControlServer_ReadinessFollowsStop(t *testing.T) {
	s, _, stop := newControl(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	stop.Request("test")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, healthStatusNotReady, resp.Status)
	assert.Equal(t, healthStatusStopping, resp.Checks["stop"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "liveness is unaffected by a stop")
}

func TestControlServer_DetailedHealthShowsState(t *testing.T) {
	s, _, _ := newControl(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.Equal(t, string(assistant.StateWaiting), resp.State)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealthChecker_SetReady(t *testing.T) {
	h := NewHealthChecker(nil)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
