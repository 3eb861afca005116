package middleware

import (
	"net/http"
	"runtime/debug"

	"tradeconsole/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Логирует панику со stack trace и отвечает 500. Текст паники клиенту не отдается.
func Recovery(logger *utils.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = utils.L()
	}
	logger = logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in handler",
						utils.RequestID(RequestIDFrom(r.Context())),
						utils.Path(r.URL.Path),
						utils.Any("panic", rec),
						utils.String("stack", string(debug.Stack())),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
