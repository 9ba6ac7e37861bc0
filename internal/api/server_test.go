package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/ledger"
	"github.com/cat-wiki/docwatcher/internal/metrics"
	"github.com/cat-wiki/docwatcher/internal/scrape"
)

type fakeProgress struct {
	p scrape.Progress
}

func (f *fakeProgress) Snapshot() scrape.Progress { return f.p }

func serve(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, zap.NewNop())
	rec := serve(t, s, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerReadyz(t *testing.T) {
	t.Parallel()

	progress := &fakeProgress{}
	s := NewServer(progress, nil, nil, zap.NewNop())

	rec := serve(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	progress.p = scrape.Progress{RunID: "run-1", Running: true}
	rec = serve(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","run_id":"run-1","running":true}`, rec.Body.String())
}

func TestServerRequestIDPassthrough(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveAttempt("https://example.com/terms", metrics.ResultOK)
	s := NewServer(nil, nil, m, zap.NewNop())

	serve(t, s, http.MethodGet, "/healthz")
	rec := serve(t, s, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `docwatcher_attempts_total{result="ok",site="example.com"} 1`)
	assert.Contains(t, body, `docwatcher_http_requests_total{code="200",method="GET"}`)
}

func TestServerMetricsDisabled(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, zap.NewNop())
	rec := serve(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, zap.NewNop())
	s.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := serve(t, s, http.MethodGet, "/boom")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServerProgressRoutes(t *testing.T) {
	t.Parallel()

	progress := &fakeProgress{p: scrape.Progress{RunID: "run-7", Total: 2, Completed: 1, Succeeded: 1}}
	outcomes := ledger.NewMemory()
	require.NoError(t, outcomes.Record(context.Background(), ledger.Outcome{
		RunID: "run-7", URL: "https://a.com/terms", State: ledger.StateDone, Attempts: 1,
	}))
	s := NewServer(progress, outcomes, nil, zap.NewNop())

	rec := serve(t, s, http.MethodGet, "/v1/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Progress scrape.Progress `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-7", body.Progress.RunID)
	assert.Equal(t, 1, body.Progress.Completed)

	rec = serve(t, s, http.MethodGet, "/v1/outcomes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://a.com/terms")
}

func TestServerServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(nil, nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // polling until the server is up
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeListenError(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, zap.NewNop())
	err := s.Serve(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "listen not-an-address"))
}
