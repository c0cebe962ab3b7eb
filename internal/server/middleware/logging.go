package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"storyloom/backend/internal/telemetry"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
}

// RequestLogger logs each request and emits an http_request telemetry event after it completes.
// Emission is best-effort. emitter may be nil. Paths in skip are neither logged nor emitted.
func RequestLogger(logger *zap.Logger, emitter telemetry.EventEmitter, skip map[string]bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if skip[r.URL.Path] {
				return
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			ip := GetClientIP(r.Context())
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", elapsed),
				zap.String("client_ip", ip),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
			meta, _ := json.Marshal(httpRequestMetadata{
				Method:     r.Method,
				Route:      route,
				StatusCode: status,
				DurationMs: elapsed.Milliseconds(),
			})
			telemetry.EmitAsync(emitter, logger, &telemetry.Event{
				EventType: "http_request",
				Source:    "http_middleware",
				IP:        ip,
				Metadata:  meta,
				CreatedAt: time.Now().UTC(),
			})
		})
	}
}
