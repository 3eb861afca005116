// Package session хранит токен доступа клиента.
//
// Session - единственный владелец токена в процессе. Он создается при старте,
// передается в gateway и guard явно и очищается при выходе.
package session

import (
	"fmt"
	"sync"

	"tradeconsole/internal/metrics"
	"tradeconsole/internal/storage"
	"tradeconsole/pkg/utils"
)

// StorageKey - единственный ключ, который клиент сохраняет в хранилище
const StorageKey = "access"

// Session - токен в памяти, зеркалированный в долговременное хранилище
//
// Инвариант: токен в памяти равен последнему значению, успешно записанному в хранилище.
type Session struct {
	mu     sync.RWMutex
	token  string
	store  storage.Storage
	logger *utils.Logger
}

// New создает неаутентифицированную сессию поверх хранилища
func New(store storage.Storage, logger *utils.Logger) *Session {
	if logger == nil {
		logger = utils.L()
	}
	return &Session{
		store:  store,
		logger: logger.WithComponent("session"),
	}
}

// SetToken сохраняет токен: сначала хранилище, затем память.
//
// Пустая строка удаляет ключ. При ошибке хранилища память не меняется,
// и вызывающий может повторить вызов.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := "set"
	var err error
	if token == "" {
		kind = "clear"
		err = s.store.Delete(StorageKey)
	} else {
		err = s.store.Set(StorageKey, token)
	}
	if err != nil {
		metrics.RecordSessionChange("failed")
		s.logger.Warn("failed to persist session token", utils.String("kind", kind), utils.Err(err))
		return fmt.Errorf("persist session token: %w", err)
	}

	s.token = token
	metrics.RecordSessionChange(kind)
	s.logger.Debug("session token updated", utils.String("kind", kind))
	return nil
}

// Clear - выход: удаляет токен из хранилища и памяти
func (s *Session) Clear() error {
	return s.SetToken("")
}

// LoadFromStorage читает токен из хранилища в память.
//
// Никогда не возвращает ошибку: отсутствие ключа - нормальное состояние,
// ошибка чтения логируется, и сессия остается неаутентифицированной.
func (s *Session) LoadFromStorage() {
	token, found, err := s.store.Get(StorageKey)
	if err != nil {
		s.logger.Warn("failed to load session token, starting unauthenticated", utils.Err(err))
		return
	}

	s.mu.Lock()
	if found {
		s.token = token
	} else {
		s.token = ""
	}
	s.mu.Unlock()

	s.logger.Debug("session loaded", utils.Bool("authenticated", found && token != ""))
}

// CurrentToken возвращает токен из памяти; ok=false для неаутентифицированной сессии
func (s *Session) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// IsAuthenticated - есть ли токен в памяти
func (s *Session) IsAuthenticated() bool {
	_, ok := s.CurrentToken()
	return ok
}
