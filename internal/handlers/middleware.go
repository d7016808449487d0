package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the id RequestLogger assigned to the request.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// requestIDOf reuses the middleware id, minting one for handlers served
// without RequestLogger.
func requestIDOf(r *http.Request) string {
	if id, ok := RequestIDFromContext(r.Context()); ok {
		return id
	}
	return uuid.New().String()
}

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

		logger.WithRequestID(log, requestID).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// NewRouter mounts every api route.
func NewRouter(health, ingest, turns, players, events http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.Handle("/v1/events", ingest)
	mux.Handle("/v1/turns", turns)
	mux.Handle("/v1/players/{id}", players)
	mux.Handle("/v1/players/{id}/events", events)
	return mux
}
