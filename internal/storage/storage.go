// Package storage - долговременное хранилище клиента.
//
// Клиент хранит ровно один ключ (токен сессии), но интерфейс не привязан
// к конкретному ключу: бэкенды хранят произвольные строковые пары.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradeconsole/internal/config"
	"tradeconsole/pkg/retry"
	"tradeconsole/pkg/utils"

	_ "github.com/lib/pq"
)

// Ошибки хранилища
var (
	ErrEmptyKey = errors.New("storage key cannot be empty")
	ErrClosed   = errors.New("storage is closed")
)

// Storage - долговременное хранилище строковых значений
//
// Get возвращает found=false без ошибки, если ключа нет.
// Set с пустым значением допустим; для удаления используется Delete.
type Storage interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Open создает хранилище по конфигурации
func Open(cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverFile:
		s, err := NewFileStorage(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageDriverMemory:
		return NewMemoryStorage(), nil
	case config.StorageDriverPostgres:
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		s := NewSQLStorage(db)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// openDatabase создает подключение к базе данных
func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Клиенту хватает пары соединений
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := pingDatabase(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// pingDatabase ждет готовности БД: ping повторяется до cfg.ConnectAttempts раз
// с экспоненциальной паузой. Каждая попытка ограничена 5 секундами.
func pingDatabase(ctx context.Context, db *sql.DB, cfg config.DatabaseConfig) error {
	logger := utils.L().WithComponent("storage")

	err := retry.Do(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, retry.Config{
		Attempts:     cfg.ConnectAttempts,
		InitialDelay: cfg.ConnectDelay,
		JitterFactor: 0.1,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn("database not ready, retrying",
				utils.String("dsn", cfg.DSNWithoutPassword()),
				utils.Int("attempt", attempt),
				utils.Duration("delay", delay),
				utils.Err(err),
			)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
