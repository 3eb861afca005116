// Package app собирает клиентский стек: хранилище, сессию, gateway, клиент
// сервиса, контроллер онбординга и сервисы. Используется консолью и tradectl.
package app

import (
	"context"
	"fmt"
	"sync"

	"tradeconsole/internal/config"
	"tradeconsole/internal/gateway"
	"tradeconsole/internal/onboarding"
	"tradeconsole/internal/querycache"
	"tradeconsole/internal/remote"
	"tradeconsole/internal/service"
	"tradeconsole/internal/session"
	"tradeconsole/internal/storage"
	"tradeconsole/pkg/utils"
)

// App - собранные зависимости клиента
type App struct {
	Config     *config.Config
	Storage    storage.Storage
	Session    *session.Session
	Gateway    *gateway.Gateway
	Remote     *remote.Client
	Onboarding *onboarding.Controller
	Cache      *querycache.Cache
	Auth       *service.AuthService
	Dashboard  *service.DashboardService

	logger    *utils.Logger
	closeOnce sync.Once

	mu        sync.Mutex
	onExpired []func()
}

// Option настраивает App
type Option func(*options)

type options struct {
	gatewayOpts []gateway.Option
}

// WithGatewayOptions передает опции в gateway (тесты: свой HTTP клиент)
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *options) {
		o.gatewayOpts = append(o.gatewayOpts, opts...)
	}
}

// Build открывает хранилище, восстанавливает сессию и собирает сервисы
func Build(cfg *config.Config, logger *utils.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = utils.L()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{
		Config:  cfg,
		Storage: store,
		logger:  logger.WithComponent("app"),
	}

	a.Session = session.New(store, logger)
	a.Session.LoadFromStorage()

	gatewayOpts := o.gatewayOpts
	if cfg.Session.AutoLogoutOnAuthRejection {
		gatewayOpts = append(gatewayOpts, gateway.WithAuthRejectedHook(a.expireSession))
	}

	a.Gateway = gateway.New(gateway.TransportConfigFrom(cfg.Remote), a.Session, logger, gatewayOpts...)
	a.Remote = remote.NewClient(cfg.Remote.BaseURL, a.Gateway, logger)
	a.Onboarding = onboarding.New(a.Remote, logger)
	a.Cache = querycache.New(cfg.Cache.TTL)
	a.Auth = service.NewAuthService(a.Remote, a.Session, a.Cache, a.Onboarding, logger)
	a.Dashboard = service.NewDashboardService(a.Remote, a.Cache, logger)

	return a, nil
}

// OnSessionExpired добавляет обработчик автоматического выхода (AUTO_LOGOUT_ON_AUTH_REJECTION)
func (a *App) OnSessionExpired(fn func()) {
	a.mu.Lock()
	a.onExpired = append(a.onExpired, fn)
	a.mu.Unlock()
}

// ProbeRemote однократно проверяет доступность сервиса и пишет результат в лог
func (a *App) ProbeRemote(ctx context.Context) error {
	health, err := a.Remote.Health(ctx)
	if err != nil {
		a.logger.Warn("remote service is not reachable",
			utils.String("base_url", a.Remote.BaseURL()),
			utils.Err(err),
		)
		return err
	}
	a.logger.Info("remote service is reachable",
		utils.String("base_url", a.Remote.BaseURL()),
		utils.String("status", health.Status),
	)
	return nil
}

// Close закрывает контроллер, соединения и хранилище
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.Onboarding.Close()
		a.Gateway.Close()
		err = a.Storage.Close()
	})
	return err
}

func (a *App) expireSession(status int) {
	a.Auth.ExpireSession(status)

	a.mu.Lock()
	hooks := append([]func(){}, a.onExpired...)
	a.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
