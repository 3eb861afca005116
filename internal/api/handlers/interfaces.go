package handlers

import (
	"context"

	"tradeconsole/internal/models"
	"tradeconsole/internal/onboarding"
	"tradeconsole/internal/service"
)

// AuthServiceInterface определяет интерфейс сервиса аутентификации
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Logout() error
	Register(ctx context.Context, username, email, password string) error
	IsAuthenticated() bool
}

// OnboardingFlowInterface определяет интерфейс контроллера онбординга
type OnboardingFlowInterface interface {
	Mount(lifetime context.Context) bool
	Close()
	State() onboarding.State
	Refresh(ctx context.Context) (onboarding.State, error)
	Test(ctx context.Context, apiKey, apiSecret string) (onboarding.State, error)
	Save(ctx context.Context, apiKey, apiSecret string) (onboarding.State, error)
}

// DashboardServiceInterface определяет интерфейс сервиса дашборда
type DashboardServiceInterface interface {
	Load(ctx context.Context, q models.DashboardQuery) (*models.DashboardView, error)
	Status(q models.DashboardQuery) (*models.DashboardView, error)
}

// SessionNotifier рассылает изменения сессии открытым вкладкам (websocket.Hub)
type SessionNotifier interface {
	BroadcastSession(authenticated bool, redirect string)
}
