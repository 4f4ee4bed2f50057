package app

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"healthinsight/internal/gateway"
	"healthinsight/internal/insight"
	"healthinsight/internal/observability"
)

var validate = validator.New()

type insightRequest struct {
	Domain string            `json:"domain" validate:"omitempty,max=64"`
	Prompt string            `json:"prompt" validate:"required,max=32768"`
	Facts  map[string]string `json:"facts"`
}

type statusResponse struct {
	insight.Status
	Outcomes observability.Counts `json:"outcomes"`
	// RecentFallbacks counts audited fallback runs per reason over the last
	// day. Absent without an audit store.
	RecentFallbacks map[string]int64 `json:"recent_fallbacks,omitempty"`
}

const recentWindow = 24 * time.Hour

func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.HandleFunc("GET /debug", a.handleDebug)

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/status", a.handleStatus)
	api.HandleFunc("POST /v1/quota/reset", a.handleResetQuota)
	api.HandleFunc("POST /v1/cache/clear", a.handleClearCache)
	api.HandleFunc("POST /v1/providers/probe", a.handleProbe)
	api.HandleFunc("POST /v1/insights", a.handleInsight)
	mux.Handle("/v1/", newRateLimiter(a.Config.HTTP.RateLimit, a.Config.HTTP.RateBurst).Middleware(api))
	return mux
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.Audit != nil {
		if err := a.Audit.Ping(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (a *App) status(ctx context.Context) statusResponse {
	st := statusResponse{Status: a.Pipeline.Status(), Outcomes: a.Outcomes.Counts()}
	if a.Audit != nil {
		counts, err := a.Audit.FallbackCounts(ctx, time.Now().Add(-recentWindow))
		if err != nil {
			a.Logger.Warn("audit fallback counts failed", zap.Error(err))
		} else {
			st.RecentFallbacks = counts
		}
	}
	return st
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.status(r.Context()))
}

func (a *App) handleResetQuota(w http.ResponseWriter, r *http.Request) {
	a.Pipeline.ResetQuota()
	writeJSON(w, http.StatusOK, a.Pipeline.Status().Quota)
}

func (a *App) handleClearCache(w http.ResponseWriter, r *http.Request) {
	a.Pipeline.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, a.Pipeline.Status().Cache)
}

func (a *App) handleProbe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]gateway.Descriptor{
		"providers": a.Gateway.ProbeAll(r.Context(), a.Config.Probe.Timeout),
	})
}

func (a *App) handleInsight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result := a.Pipeline.RunPipeline(r.Context(), insight.ParseDomain(req.Domain), req.Prompt, req.Facts)
	writeJSON(w, http.StatusOK, result)
}

func (a *App) handleDebug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := a.status(ctx)

	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, "<html><body><h1>Health Insight Debug</h1>")
	_, _ = fmt.Fprintf(w, "<h2>Quota</h2><p>Today: %d / %d &middot; This minute: %d / %d</p>",
		st.Quota.DailyCount, st.Quota.DailyLimit, st.Quota.MinuteCount, st.Quota.MinuteLimit)
	_, _ = fmt.Fprintf(w, "<h2>Cache</h2><p>Entries: %d &middot; In flight: %d &middot; Hits: %d &middot; Misses: %d &middot; Coalesced: %d</p>",
		st.Cache.Entries, st.Cache.Pending, st.Cache.Hits, st.Cache.Misses, st.Cache.Coalesced)
	_, _ = fmt.Fprintf(w, "<h2>Providers</h2><ul>")
	for _, p := range st.Providers {
		_, _ = fmt.Fprintf(w, "<li>%s (%s, %s) configured=%t healthy=%t %s</li>",
			html.EscapeString(p.Name), html.EscapeString(p.Kind), html.EscapeString(p.Model),
			p.Configured, p.Healthy, html.EscapeString(p.LastError))
	}
	_, _ = fmt.Fprintf(w, "</ul>")
	_, _ = fmt.Fprintf(w, "<h2>Outcomes</h2><p>Real: %d &middot; Consecutive fallbacks: %d</p><ul>", st.Outcomes.Real, st.Outcomes.Consecutive)
	for reason, n := range st.Outcomes.Fallbacks {
		_, _ = fmt.Fprintf(w, "<li>%s: %d</li>", html.EscapeString(reason), n)
	}
	_, _ = fmt.Fprintf(w, "</ul>")
	if a.Audit != nil {
		runs, err := a.Audit.ListRecent(ctx, 20)
		if err != nil {
			a.Logger.Warn("debug page audit query failed", zap.Error(err))
		}
		_, _ = fmt.Fprintf(w, "<h2>Fallbacks (last 24h)</h2><ul>")
		for reason, n := range st.RecentFallbacks {
			_, _ = fmt.Fprintf(w, "<li>%s: %d</li>", html.EscapeString(reason), n)
		}
		_, _ = fmt.Fprintf(w, "</ul>")
		_, _ = fmt.Fprintf(w, "<h2>Recent runs</h2><ul>")
		for _, run := range runs {
			_, _ = fmt.Fprintf(w, "<li>%s %s %s %s %s</li>",
				run.CreatedAt.Format(time.RFC3339), html.EscapeString(run.Domain), html.EscapeString(run.Provenance),
				html.EscapeString(run.FallbackReason), run.Duration)
		}
		_, _ = fmt.Fprintf(w, "</ul>")
	}
	_, _ = fmt.Fprintf(w, "<h2>Quick actions</h2>")
	_, _ = fmt.Fprintf(w, "<ul><li><a href=\"/healthz\">Check health</a></li><li><a href=\"/v1/status\">Status JSON</a></li></ul>")
	_, _ = fmt.Fprintf(w, "</body></html>")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
