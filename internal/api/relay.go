package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/kalambet/crowtreasure/internal/metrics"
)

const maxRequestBodySize = 1 << 20 // 1MB

const chatCompletionsPath = "/v1/chat/completions"

// unmatchedEndpoint labels requests no route matched, keeping the label set
// bounded whatever paths clients send.
const unmatchedEndpoint = "unmatched"

const aliveMessage = "deepseek relay is alive. Send a POST with JSON body to use it."

// RelayConfig configures the relay handler.
type RelayConfig struct {
	// UpstreamBaseURL is the OpenAI-compatible base, e.g. https://api.deepseek.com/v1.
	UpstreamBaseURL string
	// APIKey is consulted on every request so a key set after startup is picked up.
	APIKey     func() string
	HTTPClient *http.Client
	Metrics    metrics.Recorder
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// AccessToken, when set, must be presented as a bearer token on the
	// chat completions route.
	AccessToken string
}

// NewRelayHandler returns the relay: it forwards chat completion bodies to the
// upstream with the server-held key and hands back the upstream status and
// body unchanged.
func NewRelayHandler(cfg RelayConfig) http.Handler {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	if cfg.APIKey == nil {
		cfg.APIKey = func() string { return "" }
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(cfg.Metrics))

	r.Get("/health", handleHealth)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AccessToken))
		relay := handleRelay(cfg)
		r.Get(chatCompletionsPath, relay)
		r.Post(chatCompletionsPath, relay)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleRelay(cfg RelayConfig) http.HandlerFunc {
	upstream := strings.TrimRight(cfg.UpstreamBaseURL, "/") + "/chat/completions"

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			relayError(w, http.StatusBadRequest, "reading request body: %v", err)
			return
		}

		if len(bytes.TrimSpace(body)) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": aliveMessage})
			return
		}

		key := cfg.APIKey()
		if key == "" {
			relayError(w, http.StatusInternalServerError, "Missing DEEPSEEK_API_KEY")
			return
		}

		if !json.Valid(body) {
			relayError(w, http.StatusBadRequest, "request body is not valid JSON")
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, upstream, bytes.NewReader(body))
		if err != nil {
			relayError(w, http.StatusInternalServerError, "creating upstream request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+key)

		start := time.Now()
		resp, err := cfg.HTTPClient.Do(req)
		if err != nil {
			cfg.Metrics.ObserveUpstreamDuration(0, time.Since(start))
			log.Error().Err(err).Str("upstream", upstream).Msg("upstream request failed")
			relayError(w, http.StatusBadGateway, "upstream error: %v", err)
			return
		}
		defer resp.Body.Close()

		out, err := io.ReadAll(resp.Body)
		cfg.Metrics.ObserveUpstreamDuration(resp.StatusCode, time.Since(start))
		if err != nil {
			relayError(w, http.StatusBadGateway, "reading upstream response: %v", err)
			return
		}

		if resp.StatusCode >= 400 {
			log.Warn().Int("status", resp.StatusCode).Msg("upstream returned error status")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		w.Write(out)
	}
}

// requestMetrics counts requests and their duration per route pattern.
func requestMetrics(rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			endpoint := unmatchedEndpoint
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					endpoint = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.IncRequestsTotal(endpoint, status)
			rec.ObserveRequestDuration(endpoint, time.Since(start))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func relayError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
