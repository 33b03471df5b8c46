package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/xela07ax/pocketsiem/internal/threatapi"
)

// TracingMiddleware инициализирует Trace-ID для каждого запроса.
// Клиент backend пробросит его дальше в X-Trace-ID.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := threatapi.ContextWithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
