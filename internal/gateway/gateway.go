// Package gateway отправляет запросы к удаленному сервису от имени сессии.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tradeconsole/internal/metrics"
	"tradeconsole/pkg/utils"
)

// Заголовки, которые выставляет gateway
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// TokenSource - источник текущего токена (реализуется session.Session)
type TokenSource interface {
	CurrentToken() (string, bool)
}

// Gateway - обертка над HTTP клиентом, подставляющая Bearer токен
//
// Не повторяет запросы, не обновляет токен и по умолчанию не реагирует на 401/403.
type Gateway struct {
	client         *http.Client
	tokens         TokenSource
	logger         *utils.Logger
	onAuthRejected func(status int)
}

// Option настраивает Gateway
type Option func(*Gateway)

// WithHTTPClient заменяет HTTP клиент (тесты, кастомный транспорт)
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.client = c
	}
}

// WithAuthRejectedHook вызывает hook, когда сервис отвечает 401/403 на запрос с токеном
func WithAuthRejectedHook(hook func(status int)) Option {
	return func(g *Gateway) {
		g.onAuthRejected = hook
	}
}

// New создает gateway с транспортом по tc
func New(tc TransportConfig, tokens TokenSource, logger *utils.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = utils.L()
	}
	g := &Gateway{
		tokens: tokens,
		logger: logger.WithComponent("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = NewHTTPClient(tc)
	}
	return g
}

// Send отправляет запрос; при наличии токена добавляет Authorization: Bearer.
//
// Исходный запрос не изменяется. Ответ возвращается как есть, включая 4xx/5xx.
func (g *Gateway) Send(req *http.Request) (*http.Response, error) {
	op := OperationFrom(req.Context())
	if op == "" {
		op = req.URL.Path
	}

	out := req.Clone(req.Context())
	token, authenticated := g.tokens.CurrentToken()
	if authenticated {
		out.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
	requestID := out.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		out.Header.Set(HeaderRequestID, requestID)
	}

	log := g.logger.With(utils.Operation(op), utils.RequestID(requestID), utils.Method(out.Method))

	start := time.Now()
	resp, err := g.client.Do(out)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		metrics.RecordGatewayRequest(op, 0, latency)
		log.Warn("request failed", utils.Latency(latency), utils.Err(err))
		return nil, err
	}

	metrics.RecordGatewayRequest(op, resp.StatusCode, latency)
	log.Debug("request completed",
		utils.StatusCode(resp.StatusCode),
		utils.Latency(latency),
		utils.Bool("authenticated", authenticated),
	)

	if authenticated && isAuthRejection(resp.StatusCode) && g.onAuthRejected != nil {
		log.Warn("token rejected by remote service", utils.StatusCode(resp.StatusCode))
		g.onAuthRejected(resp.StatusCode)
	}

	return resp, nil
}

// Close закрывает idle соединения
func (g *Gateway) Close() {
	g.client.CloseIdleConnections()
}

func isAuthRejection(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

type operationKey struct{}

// WithOperation помечает контекст именем операции для логов и метрик
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom возвращает имя операции из контекста
func OperationFrom(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}
