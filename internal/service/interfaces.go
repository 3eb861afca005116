package service

import (
	"context"

	"tradeconsole/internal/models"
	"tradeconsole/internal/querycache"
)

// SessionStoreInterface определяет интерфейс сессии (session.Session)
type SessionStoreInterface interface {
	SetToken(token string) error
	Clear() error
	CurrentToken() (string, bool)
}

// AuthRemoteInterface - операции аутентификации удаленного сервиса
type AuthRemoteInterface interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	Register(ctx context.Context, username, email, password string) (*models.RegisterResponse, error)
}

// AccountRemoteInterface - операции чтения данных аккаунта
type AccountRemoteInterface interface {
	KeyInfo(ctx context.Context) (models.Payload, error)
	Balances(ctx context.Context, accountType string) (models.Payload, error)
	OpenOrders(ctx context.Context, symbol, category string) ([]models.Order, error)
}

// QueryCacheInterface определяет интерфейс кэша запросов (querycache.Cache)
type QueryCacheInterface interface {
	Fetch(ctx context.Context, key string, fetch querycache.FetchFunc) querycache.Result
	Peek(key string) querycache.Result
	Clear()
}

// FlowCloser - размонтирование экрана онбординга (onboarding.Controller)
type FlowCloser interface {
	Close()
}
