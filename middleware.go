package reroute

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem. It wraps the mounted route handler, outside the
// engine's behavior chain.
type Middleware func(next http.Handler) http.Handler

// Recovery returns middleware that recovers from panics outside the engine
// (the engine already recovers handler panics itself) and responds with a
// 500 problem detail.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", GetRequestID(r),
					)
					w.Header().Set("Content-Type", "application/problem+json")
					w.WriteHeader(http.StatusInternalServerError)
					//nolint:errcheck // nothing to do about a failed response write
					json.NewEncoder(w).Encode(&ProblemDetail{
						Title:  http.StatusText(http.StatusInternalServerError),
						Status: http.StatusInternalServerError,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
