package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeconsole/internal/config"
	"tradeconsole/internal/stubserver"
	"tradeconsole/pkg/utils"
)

func main() {
	cfg, err := config.LoadStub()
	if err != nil {
		utils.Error("failed to load stub config", utils.Err(err))
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer func() { _ = logger.Sync() }()

	stub, err := stubserver.New(stubserver.Config{
		ValidKeys:          cfg.ValidKeys,
		BcryptCost:         cfg.BcryptCost,
		EncryptionKey:      cfg.EncryptionKey,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		LoginBurst:         cfg.LoginBurst,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create stub service", utils.Err(err))
	}

	if cfg.SeedUser != "" {
		if _, err := stub.AddUser(cfg.SeedUser, "", cfg.SeedPass); err != nil {
			logger.Fatal("failed to seed user", utils.Err(err))
		}
		logger.Info("seeded user", utils.String("username", cfg.SeedUser))
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      stub.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("stub remote service listening",
			utils.String("addr", server.Addr),
			utils.Int("valid_keys", len(cfg.ValidKeys)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("stub server failed", utils.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("stub server forced to shutdown", utils.Err(err))
	}
	logger.Info("stub server exited")
}
