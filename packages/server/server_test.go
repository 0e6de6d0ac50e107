package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/pagewatch/packages/export/metrics"
	"github.com/abdul-hamid-achik/pagewatch/packages/store"
	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *metrics.Collector) {
	t.Helper()

	s, err := store.Open("memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	c := metrics.NewCollector()
	return New("127.0.0.1:0", s, c, zerolog.Nop()), s, c
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Router(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status        string `json:"status"`
		SchemaVersion uint   `json:"schemaVersion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, uint(2), body.SchemaVersion)
}

type downStore struct{ RunStore }

func (downStore) Ping(context.Context) error { return errors.New("database is gone") }

func TestHealth_StoreDown(t *testing.T) {
	srv := New(":0", downStore{}, metrics.NewCollector(), zerolog.Nop())

	rec := get(t, srv.Router(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is gone")
}

type dirtyStore struct{ RunStore }

func (dirtyStore) Ping(context.Context) error { return nil }
func (dirtyStore) SchemaVersion() (uint, error) {
	return 2, errors.New("schema version 2 is dirty")
}

func TestHealth_DirtySchema(t *testing.T) {
	srv := New(":0", dirtyStore{}, metrics.NewCollector(), zerolog.Nop())

	rec := get(t, srv.Router(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dirty")
}

func TestMetrics(t *testing.T) {
	srv, _, c := newTestServer(t)
	c.Observe(&watcher.JobResult{Job: "ip", Duration: 5 * time.Millisecond, StartedAt: time.Now()})

	rec := get(t, srv.Router(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pagewatch_runs_total 1")
}

func TestListJobs(t *testing.T) {
	srv, _, c := newTestServer(t)
	c.Observe(&watcher.JobResult{
		Job:      "ip",
		URL:      "https://example.com",
		Values:   map[string]string{"value": "1.1.1.1"},
		Changed:  true,
		Duration: 1500 * time.Microsecond,
	})

	rec := get(t, srv.Router(), "/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var jobs []jobState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "ip", jobs[0].Job)
	assert.True(t, jobs[0].Changed)
	assert.Equal(t, "1.1.1.1", jobs[0].Values["value"])
	assert.InDelta(t, 1.5, jobs[0].Duration, 0.001)
}

func TestJobValuesAndRuns(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.SetValues(ctx, "ip", map[string]string{"value": "1.1.1.1"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordRun(ctx, &store.Run{
			Job:       "ip",
			StartedAt: time.Unix(int64(1000+i), 0),
			Duration:  time.Second,
		}))
	}

	rec := get(t, srv.Router(), "/jobs/ip/values")
	require.Equal(t, http.StatusOK, rec.Code)
	var values map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &values))
	assert.Equal(t, map[string]string{"value": "1.1.1.1"}, values)

	rec = get(t, srv.Router(), "/jobs/ip/values/value")
	require.Equal(t, http.StatusOK, rec.Code)
	var one map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, map[string]string{"item": "value", "value": "1.1.1.1"}, one)

	rec = get(t, srv.Router(), "/jobs/ip/values/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ip/missing")

	rec = get(t, srv.Router(), "/jobs/ip/runs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1002), runs[0].StartedAt.Unix())
	assert.Equal(t, float64(1000), runs[0].Duration)

	rec = get(t, srv.Router(), "/jobs/ip/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "limit"))
}

func TestNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Router(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	srv, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
