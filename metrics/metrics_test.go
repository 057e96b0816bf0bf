package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAnalysis(t *testing.T) {
	m, err := New("ppcalc", "")
	require.NoError(t, err)

	m.ObserveAnalysis(20*time.Millisecond, 1000, 10, 4)
	m.Analyses.WithLabelValues(ResultInvalidInput).Inc()

	require.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues(ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues(ResultInvalidInput)))
	require.Equal(t, 1, testutil.CollectAndCount(m.AnalysisDuration))
}

func TestHandler(t *testing.T) {
	m, err := New("ppcalc", "")
	require.NoError(t, err)
	m.Generated.Inc()

	// a second instance must not clash with the first
	_, err = New("ppcalc", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "ppcalc_generated_traces_total 1")
	require.Contains(t, string(body), "go_goroutines")
}
