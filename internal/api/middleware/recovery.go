package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/metrics"
)

// Recovery turns a handler panic into a 500 envelope. Nothing about the
// panic value reaches the client; the stack and tenant go to the log.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			attrs := []any{
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			}
			if tags, ok := r.Context().Value(logTagsKey).(*logTags); ok && tags.principal != "" {
				attrs = append(attrs, "tenant_id", tags.tenantID)
			}
			slog.Error("handler panic", attrs...)
			metrics.PanicsRecovered.WithLabelValues(routePattern(r)).Inc()

			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
