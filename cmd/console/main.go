package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeconsole/internal/api"
	"tradeconsole/internal/app"
	"tradeconsole/internal/config"
	"tradeconsole/internal/service"
	"tradeconsole/internal/websocket"
	"tradeconsole/pkg/utils"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		utils.Error("failed to load config", utils.Err(err))
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer func() { _ = logger.Sync() }()

	if cfg.Storage.Driver == config.StorageDriverPostgres {
		logger.Info("using postgres storage", utils.String("dsn", cfg.Database.DSNWithoutPassword()))
	}

	// Клиентский стек
	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build client", utils.Err(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close client", utils.Err(err))
		}
	}()

	lifetime, stop := context.WithCancel(context.Background())
	defer stop()

	// WebSocket hub: снимки онбординга и изменения сессии
	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	states, unsubscribe := a.Onboarding.Subscribe()
	defer unsubscribe()
	go hub.Relay(lifetime, states)

	a.OnSessionExpired(func() {
		hub.BroadcastSession(false, service.PathAfterLogout)
	})

	probeCtx, cancelProbe := context.WithTimeout(lifetime, 5*time.Second)
	_ = a.ProbeRemote(probeCtx)
	cancelProbe()

	router := api.SetupRoutes(&api.Dependencies{
		Auth:           a.Auth,
		Dashboard:      a.Dashboard,
		Onboarding:     a.Onboarding,
		Session:        a.Session,
		Hub:            hub,
		AllowedOrigins: cfg.Console.AllowedOrigins,
		Logger:         logger,
		Lifetime:       lifetime,
	})

	server := &http.Server{
		Addr:         cfg.Console.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("console listening",
			utils.String("addr", server.Addr),
			utils.String("remote", cfg.Remote.BaseURL),
			utils.Bool("authenticated", a.Session.IsAuthenticated()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("console server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down console")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("console forced to shutdown", utils.Err(err))
	}

	logger.Info("console exited")
}
