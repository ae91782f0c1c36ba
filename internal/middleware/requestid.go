package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"kakrola/internal/logs"
)

// RequestID берёт X-Request-Id из запроса или генерирует новый
// и прокидывает его в контекст (см. logs.WithRequest).
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := logs.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(r *http.Request) string {
	return logs.RequestID(r.Context())
}
