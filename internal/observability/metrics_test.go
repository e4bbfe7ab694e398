package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	AskDuration.WithLabelValues("test").Observe(0.2)
	GeneratorErrorsTotal.WithLabelValues("test").Inc()
	DocumentsIngestedTotal.WithLabelValues("indexed").Inc()
	ChunksIngestedTotal.Add(3)
	IndexChunks.Set(3)
	RequestsTotal.WithLabelValues("test", "GET", "2xx").Inc()
	RequestDuration.WithLabelValues("test").Observe(0.1)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"docqa_http_requests_total",
		"docqa_http_request_duration_seconds",
		"docqa_ask_duration_seconds",
		"docqa_generator_errors_total",
		"docqa_documents_ingested_total",
		"docqa_chunks_ingested_total",
		"docqa_index_chunks",
	} {
		assert.True(t, found[name], name)
	}
}

func TestInstrumentRecordsStatusClass(t *testing.T) {
	h := Instrument("/teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("/teapot", "POST", "4xx"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/teapot", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("/teapot", "POST", "4xx")))
}

func TestInstrumentDefaultStatus(t *testing.T) {
	h := Instrument("/ok", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("/ok", "GET", "2xx")))
}
