package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tradeconsole/pkg/utils"
)

type requestIDKey struct{}

// RequestIDFrom возвращает ID запроса консоли из контекста
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseWriter запоминает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack нужен для WebSocket upgrade
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Logging - middleware для логирования HTTP запросов консоли
//
// Присваивает запросу ID (X-Request-ID из заголовка или новый UUID), кладет его
// в контекст и пишет одну запись на запрос: метод, путь, статус, время, размер.
// Тело запроса не логируется: в нем пароли и ключи API.
func Logging(logger *utils.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = utils.L()
	}
	logger = logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			logger.Info("request",
				utils.RequestID(requestID),
				utils.Method(r.Method),
				utils.Path(r.URL.Path),
				utils.StatusCode(wrapped.statusCode),
				utils.Latency(float64(time.Since(start).Microseconds())/1000),
				utils.Int64("bytes", wrapped.written),
				utils.String("client_ip", r.RemoteAddr),
			)
		})
	}
}
