package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthinsight/internal/config"
	"healthinsight/internal/insight"
)

func newBackend(t *testing.T, text string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			calls.Add(1)
			body, _ := json.Marshal(map[string]any{"response": text, "done": true})
			_, _ = w.Write(body)
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestApp(t *testing.T, baseURL string, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Providers[0].BaseURL = baseURL
	cfg.Probe.Enabled = false
	cfg.HTTP.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInsightEndpoint(t *testing.T) {
	srv, calls := newBackend(t, "🩺 **CLINICAL SUMMARY**\nCycle length is stable at 28 days.\n")
	h := newTestApp(t, srv.URL, nil).Handler()

	rec := do(t, h, http.MethodPost, "/v1/insights", `{"domain":"cycle","prompt":"summarize"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res insight.TypedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, insight.ProvenanceReal, res.Provenance)
	assert.Equal(t, "local", res.Provider)
	summary, ok := res.Field("clinical_summary")
	assert.True(t, ok)
	assert.Equal(t, "Cycle length is stable at 28 days.", summary)
	assert.Equal(t, int64(1), calls.Load())
}

func TestInsightEndpointRejectsBadInput(t *testing.T) {
	srv, calls := newBackend(t, "unused")
	h := newTestApp(t, srv.URL, nil).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/insights", `{"domain":"cycle"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/insights", `not json`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/insights", "").Code)
	assert.Equal(t, int64(0), calls.Load())
}

func TestQuotaResetEndpoint(t *testing.T) {
	srv, _ := newBackend(t, "**KEY INSIGHTS**\nSleep has been steady for two weeks.\n")
	h := newTestApp(t, srv.URL, func(c *config.Config) { c.Pipeline.DailyLimit = 1 }).Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/insights", `{"domain":"sleep","prompt":"a"}`).Code)
	rec := do(t, h, http.MethodPost, "/v1/insights", `{"domain":"sleep","prompt":"b"}`)
	var denied insight.TypedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &denied))
	assert.Equal(t, insight.ReasonQuotaDenied, denied.FallbackReason)

	rec = do(t, h, http.MethodPost, "/v1/quota/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st statusResponse
	require.NoError(t, json.Unmarshal(do(t, h, http.MethodGet, "/v1/status", "").Body.Bytes(), &st))
	assert.Equal(t, 0, st.Quota.DailyCount)
	assert.Equal(t, 1, st.Quota.DailyLimit)
	assert.Equal(t, int64(1), st.Outcomes.Real)
	assert.Equal(t, int64(1), st.Outcomes.Fallbacks["quota_denied"])
	require.Len(t, st.Providers, 1)
	assert.True(t, st.Providers[0].Configured)
}

func TestStatusReportsAuditedFallbacks(t *testing.T) {
	srv, _ := newBackend(t, "unused")

	h := newTestApp(t, srv.URL, nil).Handler()
	rec := do(t, h, http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "recent_fallbacks", "no audit store configured")

	dsn := os.Getenv("HI_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("HI_TEST_DB_DSN not set")
	}
	a := newTestApp(t, srv.URL, func(c *config.Config) {
		c.Pipeline.DailyLimit = 0
		c.Database.DSN = dsn
	})
	h = a.Handler()
	do(t, h, http.MethodPost, "/v1/insights", `{"domain":"sleep","prompt":"denied"}`)

	var st statusResponse
	require.NoError(t, json.Unmarshal(do(t, h, http.MethodGet, "/v1/status", "").Body.Bytes(), &st))
	assert.GreaterOrEqual(t, st.RecentFallbacks["quota_denied"], int64(1))
	assert.Contains(t, do(t, h, http.MethodGet, "/debug", "").Body.String(), "quota_denied")
}

func TestCacheClearEndpoint(t *testing.T) {
	srv, calls := newBackend(t, "**KEY INSIGHTS**\nMood is brighter on active days.\n")
	h := newTestApp(t, srv.URL, nil).Handler()

	body := `{"domain":"mood","prompt":"same"}`
	do(t, h, http.MethodPost, "/v1/insights", body)
	do(t, h, http.MethodPost, "/v1/insights", body)
	assert.Equal(t, int64(1), calls.Load())

	rec := do(t, h, http.MethodPost, "/v1/cache/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":0`)

	do(t, h, http.MethodPost, "/v1/insights", body)
	assert.Equal(t, int64(2), calls.Load())
}

func TestProbeEndpoint(t *testing.T) {
	srv, _ := newBackend(t, "unused")
	h := newTestApp(t, srv.URL, nil).Handler()

	rec := do(t, h, http.MethodPost, "/v1/providers/probe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestRateLimitedAPI(t *testing.T) {
	srv, _ := newBackend(t, "unused")
	h := newTestApp(t, srv.URL, func(c *config.Config) {
		c.HTTP.RateLimit = 0.001
		c.HTTP.RateBurst = 1
	}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/status", "").Code)
	rec := do(t, h, http.MethodGet, "/v1/status", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code, "health checks are not limited")
}

func TestDebugAndReadiness(t *testing.T) {
	srv, _ := newBackend(t, "unused")
	h := newTestApp(t, srv.URL, nil).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
	rec := do(t, h, http.MethodGet, "/debug", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Providers")
	assert.Contains(t, rec.Body.String(), "local")
}

func TestUnreachableProviderStillAnswers(t *testing.T) {
	h := newTestApp(t, "http://127.0.0.1:1", nil).Handler()
	rec := do(t, h, http.MethodPost, "/v1/insights", `{"domain":"medication","prompt":"p","facts":{"medication":"ibuprofen","entry_count":"4"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res insight.TypedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, insight.ProvenanceFallback, res.Provenance)
	assert.Equal(t, insight.ReasonProvidersExhausted, res.FallbackReason)
	assert.Contains(t, res.Insight, "ibuprofen")
}
