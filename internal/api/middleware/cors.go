package middleware

import (
	"net/http"
)

// defaultOrigins разрешены всегда: локальная консоль и dev сервер
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// CORS - middleware для настройки Cross-Origin Resource Sharing
//
// Разрешенные origins: localhost:5173 и список ALLOWED_ORIGINS из конфигурации.
// Запросы без Origin (curl, tradectl) проходят без CORS заголовков.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(defaultOrigins)+len(origins))
	for _, o := range defaultOrigins {
		allowed[o] = true
	}
	for _, o := range origins {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
