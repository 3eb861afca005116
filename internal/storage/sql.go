package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLStorage - хранилище в таблице client_storage (PostgreSQL)
type SQLStorage struct {
	db *sql.DB
}

// NewSQLStorage создает хранилище поверх открытого подключения
func NewSQLStorage(db *sql.DB) *SQLStorage {
	return &SQLStorage{db: db}
}

// EnsureSchema создает таблицу, если ее нет
func (s *SQLStorage) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS client_storage (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLStorage) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	query := `SELECT value FROM client_storage WHERE key = $1`

	var value string
	err := s.db.QueryRow(query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLStorage) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	query := `
		INSERT INTO client_storage (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, key, value, time.Now())
	return err
}

func (s *SQLStorage) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	query := `DELETE FROM client_storage WHERE key = $1`

	_, err := s.db.Exec(query, key)
	return err
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
