package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/collision-fault-assistant/internal/adapters/http/api"
	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
	"github.com/kirillkom/collision-fault-assistant/internal/observability/metrics"
)

const (
	serviceName      = "api"
	maxJSONBodyBytes = 1 << 20
	multipartMemory  = 32 << 20
)

type Options struct {
	APIKey           string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
}

type Router struct {
	svc       ports.EvaluationService
	reader    ports.AnalysisReader
	metrics   *metrics.HTTPServerMetrics
	validator *bodyValidator
	opts      Options
}

func NewRouter(
	ctx context.Context,
	svc ports.EvaluationService,
	reader ports.AnalysisReader,
	httpMetrics *metrics.HTTPServerMetrics,
	opts Options,
) (*Router, error) {
	validator, err := newBodyValidator(ctx)
	if err != nil {
		return nil, err
	}
	return &Router{
		svc:       svc,
		reader:    reader,
		metrics:   httpMetrics,
		validator: validator,
		opts:      opts,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}

	r.Get("/healthz", rt.healthz)
	r.Get("/openapi.yaml", rt.openAPIDocument)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rt.trafficControl, bearerAuthMiddleware(rt.opts.APIKey))

		r.Post("/v1/analyses/init", rt.initAnalysis)
		r.Post("/v1/analyses/re-evaluate", rt.reEvaluate)
		r.Get("/v1/analyses/{analysis_id}", rt.getAnalysis)
		r.Get("/v1/analyses/{analysis_id}/queries", rt.listQueries)
		r.Post("/v1/videos/submit", rt.submitVideo)
		r.Get("/v1/videos/{video_id}", rt.getVideo)
		r.Post("/v1/queries/followup", rt.askFollowup)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func (rt *Router) trafficControl(next http.Handler) http.Handler {
	gated := backpressureGate(next, rt.opts.MaxInFlight, rt.opts.BackpressureWait, rt.rejected("backpressure"))
	return rateLimitMiddleware(gated, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.rejected("rate_limit"))
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.Spec)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	rt.recordOperation(operation, status)
	if status >= http.StatusInternalServerError {
		slog.Error("http_operation_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (rt *Router) recordOperation(operation string, status int) {
	if rt.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case status >= http.StatusInternalServerError:
		outcome = "server_error"
	case status >= http.StatusBadRequest:
		outcome = "client_error"
	}
	rt.metrics.RecordOperation(serviceName, operation, outcome)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("http_response_encode_failed", "error", err)
	}
}
