package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/landlord/internal/actor"
	"github.com/cartridge/landlord/internal/health"
	"github.com/cartridge/landlord/internal/metrics"
	"github.com/cartridge/landlord/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *actor.RunContext, *storage.MemoryStore) {
	t.Helper()
	rc := actor.NewRunContext(2, time.Date(2024, 10, 19, 15, 30, 0, 0, time.UTC))
	store := storage.NewMemoryStore()
	logger := zerolog.New(io.Discard)
	return NewServer(rc, store, nil, metrics.NewCollector(logger), logger), rc, store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	res := get(t, s.Routes(), "/healthz")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get("X-Correlation-ID"))
}

type fixedHealth health.State

func (f fixedHealth) State() health.State { return health.State(f) }

func TestHealthReflectsMonitor(t *testing.T) {
	rc := actor.NewRunContext(1, time.Now())
	logger := zerolog.New(io.Discard)

	res := get(t, NewServer(rc, nil, fixedHealth(health.StateHealthy), nil, logger).Routes(), "/healthz")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"healthy"`)

	res = get(t, NewServer(rc, nil, fixedHealth(health.StateStalled), nil, logger).Routes(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	res = get(t, NewServer(rc, nil, nil, nil, logger).Routes(), "/api/v1/checkpoints")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, "[]", res.Body.String())
}

func TestRunSnapshot(t *testing.T) {
	s, rc, _ := newTestServer(t)
	rc.Record(true)
	rc.Record(false)
	rc.Report(time.Date(2024, 10, 19, 15, 31, 0, 0, time.UTC))

	res := get(t, s.Routes(), "/api/v1/run")
	require.Equal(t, http.StatusOK, res.Code)

	var status actor.Status
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &status))
	assert.Equal(t, rc.ID(), status.RunID)
	assert.Equal(t, "1019_1530", status.Tag)
	assert.Equal(t, 2, status.Episodes)
	assert.Equal(t, 1, status.Wins)
	assert.Equal(t, 1, status.BestRecentWins)
}

func TestCheckpoints(t *testing.T) {
	s, _, store := newTestServer(t)
	h := s.Routes()
	require.NoError(t, store.Save(context.Background(), storage.Checkpoint{Tag: "1019_1530", Episode: 100, Wins: 42, Data: make([]byte, 16)}))

	res := get(t, h, "/api/v1/checkpoints")
	require.Equal(t, http.StatusOK, res.Code)
	var list []storage.Checkpoint
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "1019_1530_100_42.bin", list[0].Name)

	res = get(t, h, "/api/v1/checkpoints/1019_1530_100_42.bin")
	require.Equal(t, http.StatusOK, res.Code)
	var one map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &one))
	assert.Equal(t, float64(16), one["bytes"])
	assert.Equal(t, float64(42), one["wins"])

	res = get(t, h, "/api/v1/checkpoints/1019_1530_1_1.bin")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
