package service

import (
	"context"
	"errors"
	"fmt"

	"tradeconsole/internal/remote"
	"tradeconsole/pkg/utils"
)

// Сообщения и пути экранов
const (
	MsgLoginFailed = "Login failed. Check credentials."

	PathAfterLogin  = "/onboarding"
	PathAfterLogout = "/login"
)

// Ошибки сервиса аутентификации
var (
	ErrLoginFailed    = errors.New("login failed")
	ErrSessionUnsaved = errors.New("could not persist session")
)

// AuthError - отказ в логине. Текст фиксирован и не раскрывает причину.
type AuthError struct {
	cause error
}

func (e *AuthError) Error() string {
	return MsgLoginFailed
}

func (e *AuthError) Is(target error) bool {
	return target == ErrLoginFailed
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// LoginResult - результат успешного логина
type LoginResult struct {
	Redirect string `json:"redirect"`
}

// AuthService предоставляет логин, выход и регистрацию.
//
// Отвечает за:
// - Обмен имени и пароля на токен и сохранение его в сессии
// - Выход: очистку сессии, кэша запросов и экрана онбординга
// - Регистрацию пользователя на сервисе
type AuthService struct {
	remote  AuthRemoteInterface
	session SessionStoreInterface
	cache   QueryCacheInterface
	flow    FlowCloser
	logger  *utils.Logger
}

// NewAuthService создает новый экземпляр AuthService.
//
// cache и flow могут быть nil (CLI не держит экран онбординга).
func NewAuthService(r AuthRemoteInterface, session SessionStoreInterface, cache QueryCacheInterface, flow FlowCloser, logger *utils.Logger) *AuthService {
	if logger == nil {
		logger = utils.L()
	}
	return &AuthService{
		remote:  r,
		session: session,
		cache:   cache,
		flow:    flow,
		logger:  logger.WithComponent("auth"),
	}
}

// Login выполняет вход.
//
// Пустые поля - ValidationError без обращения к сервису. Любой отказ сервиса
// или ошибка транспорта - AuthError; токен при этом не меняется.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	resp, err := s.remote.Login(ctx, username, password)
	if err != nil {
		var ve *remote.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		s.logger.Info("login rejected", utils.StatusCode(remote.StatusOf(err)), utils.Err(err))
		return nil, &AuthError{cause: err}
	}

	// Данные прошлого пользователя не должны пережить смену аккаунта
	s.resetViews()

	if err := s.session.SetToken(resp.Access); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnsaved, err)
	}

	s.logger.Info("logged in")
	return &LoginResult{Redirect: PathAfterLogin}, nil
}

// Logout очищает сессию, кэш и закрывает экран онбординга
func (s *AuthService) Logout() error {
	s.resetViews()

	if err := s.session.Clear(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnsaved, err)
	}

	s.logger.Info("logged out")
	return nil
}

// ExpireSession - выход после отказа сервиса в токене (401/403).
//
// Вызывается из hook gateway, только если включен AUTO_LOGOUT_ON_AUTH_REJECTION.
func (s *AuthService) ExpireSession(status int) {
	s.logger.Warn("remote service rejected the session, logging out", utils.StatusCode(status))
	if err := s.Logout(); err != nil {
		s.logger.Error("failed to clear rejected session", utils.Err(err))
	}
}

// Register создает пользователя на сервисе
func (s *AuthService) Register(ctx context.Context, username, email, password string) error {
	if _, err := s.remote.Register(ctx, username, email, password); err != nil {
		return err
	}
	s.logger.Info("user registered")
	return nil
}

// IsAuthenticated - есть ли токен в сессии
func (s *AuthService) IsAuthenticated() bool {
	_, ok := s.session.CurrentToken()
	return ok
}

func (s *AuthService) resetViews() {
	if s.flow != nil {
		s.flow.Close()
	}
	if s.cache != nil {
		s.cache.Clear()
	}
}
