package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/territory-cli/internal/model"
)

func sampleSummary() model.RunSummary {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.RunSummary{
		RunID:          "run-1",
		StartedAt:      start,
		FinishedAt:     start.Add(3 * time.Second),
		ZipsConsidered: 10,
		Active:         4,
		Prospective:    5,
		Unassigned:     1,
		ZipMasterRows:  12,
		ActivityRows:   30,
		ZeroCountPairs: 2,
		Rejected: map[string]map[string]int{
			model.SourceZipMaster:   {"malformed-zip": 2},
			model.SourceRepActivity: {"unknown-zip": 3},
		},
	}
}

func TestRecordRun(t *testing.T) {
	m := New()
	sum := sampleSummary()
	m.RecordRun(sum)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.assignments.WithLabelValues("active")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.assignments.WithLabelValues("prospective")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("unassigned")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.inputRows.WithLabelValues(model.SourceZipMaster)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rejectedRows.WithLabelValues(model.SourceRepActivity, "unknown-zip")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.zeroCountPairs))
	assert.Equal(t, float64(sum.FinishedAt.Unix()), testutil.ToFloat64(m.lastRunTimestamp))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestRecordRun_ResetsRejections(t *testing.T) {
	m := New()
	m.RecordRun(sampleSummary())

	sum := sampleSummary()
	sum.Rejected = nil
	m.RecordRun(sum)

	assert.Equal(t, 0, testutil.CollectAndCount(m.rejectedRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("success")))
}

func TestRecordRunFailure(t *testing.T) {
	m := New()
	m.RecordRunFailure()
	m.RecordRunFailure()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failure")))
}

func TestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/assignments/{zip}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/assignments/02134", "/assignments/73301", "/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/assignments/{zip}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/health", "GET", "200")))
}

func TestHandler(t *testing.T) {
	m := New(WithRuntimeCollectors())
	m.RecordRun(sampleSummary())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `territory_assignments{status="active"} 4`)
	assert.Contains(t, body, "go_goroutines")
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordRun(sampleSummary())

	path := filepath.Join(t.TempDir(), "territory.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `territory_runs_total{result="success"} 1`))
}

func TestWriteTextfile_BadDir(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics: write textfile")
}
