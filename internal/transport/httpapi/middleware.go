package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/infrastructure/metrics"
)

const (
	headerRequestID = "X-Request-Id"
	headerOperator  = "X-Operator"
)

// requestContext installs the logger and a request id on the request context.
// A client supplied X-Request-Id is kept.
func requestContext(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(headerRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(headerRequestID, id)

			ctx := logging.WithLogger(r.Context(), logger)
			ctx = logging.WithComponent(ctx, "httpapi")
			ctx = logging.WithRequest(ctx, id, operatorFrom(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// observe logs one line per request and feeds the HTTP collectors.
func observe(rec *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(started)

			logging.Info(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("duration", elapsed),
			)
			if rec != nil {
				rec.ObserveHTTP(r.Method, route, status, elapsed)
			}
		})
	}
}

func operatorFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(headerOperator))
}
