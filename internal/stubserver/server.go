// Package stubserver - локальная реализация удаленного торгового сервиса.
//
// Хранит пользователей, токены и ключи в памяти. Используется для локального
// запуска консоли (cmd/stubremote) и end-to-end тестов. Формы ответов повторяют
// настоящий сервис, включая 400 {"ok":false,"error":...} при отказе биржи.
package stubserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"tradeconsole/pkg/crypto"
	"tradeconsole/pkg/ratelimit"
	"tradeconsole/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ответы DRF-подобного сервиса
const (
	detailNoCredentials = "Authentication credentials were not provided."
	detailBadToken      = "Given token not valid for any token type"
	detailLoginFailed   = "No active account found with the given credentials"
	errInvalidAPIKey    = "API key is invalid. (ErrCode: 10003)"
	errMissingCreds     = "No testnet API credentials saved for this user"
	detailThrottled     = "Request was throttled. Expected available in %d seconds."
)

// Config - настройки заглушки
type Config struct {
	// ValidKeys - пары apiKey → apiSecret, которые "биржа" принимает
	ValidKeys map[string]string

	// BcryptCost - стоимость bcrypt; в тестах bcrypt.MinCost
	BcryptCost int

	// EncryptionKey - ключ AES-256 для API secret; nil = случайный
	EncryptionKey []byte

	// LoginRatePerMinute и LoginBurst ограничивают попытки входа на имя; 0 = без ограничения
	LoginRatePerMinute int
	LoginBurst         int
}

type user struct {
	id       int64
	username string
	email    string
	hash     string
}

// credential - ключи пользователя; secret хранится только зашифрованным
type credential struct {
	id           int64
	apiKey       string
	apiSecretEnc string
	isTestnet    bool
}

// Server - состояние заглушки
type Server struct {
	cfg      Config
	logger   *utils.Logger
	secrets  *crypto.SecretBox
	throttle *ratelimit.KeyedLimiter

	mu          sync.RWMutex
	users       map[string]*user
	tokens      map[string]string // access token → username
	credentials map[string]*credential
	nextUserID  int64
	nextCredID  int64
}

// New создает пустую заглушку
func New(cfg Config, logger *utils.Logger) (*Server, error) {
	if logger == nil {
		logger = utils.L()
	}
	if cfg.ValidKeys == nil {
		cfg.ValidKeys = map[string]string{}
	}

	key := cfg.EncryptionKey
	if key == nil {
		var err error
		if key, err = crypto.GenerateKey(); err != nil {
			return nil, fmt.Errorf("generate encryption key: %w", err)
		}
	}
	secrets, err := crypto.NewSecretBox(key)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger.WithComponent("stubremote"),
		secrets:     secrets,
		users:       make(map[string]*user),
		tokens:      make(map[string]string),
		credentials: make(map[string]*credential),
		nextUserID:  1,
		nextCredID:  1,
	}
	if cfg.LoginRatePerMinute > 0 {
		s.throttle = ratelimit.NewKeyedLimiter(float64(cfg.LoginRatePerMinute)/60, float64(cfg.LoginBurst))
	}
	return s, nil
}

// Handler возвращает роутер со всеми эндпоинтами сервиса
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/register", s.register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", s.login).Methods(http.MethodPost)

	authed := router.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/api/onboarding/state", s.onboardingState).Methods(http.MethodGet)
	authed.HandleFunc("/api/onboarding/credentials/test", s.testCredentials).Methods(http.MethodPost)
	authed.HandleFunc("/api/onboarding/credentials/save", s.saveCredentials).Methods(http.MethodPost)
	authed.HandleFunc("/api/account/api-key-info", s.keyInfo).Methods(http.MethodGet)
	authed.HandleFunc("/api/wallet/balances", s.balances).Methods(http.MethodGet)
	authed.HandleFunc("/api/orders", s.openOrders).Methods(http.MethodGet)

	return router
}

// AddUser регистрирует пользователя напрямую (начальные данные, тесты)
func (s *Server) AddUser(username, email, password string) (int64, error) {
	hash, err := hashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return 0, errUserExists
	}
	u := &user{id: s.nextUserID, username: username, email: email, hash: hash}
	s.nextUserID++
	s.users[username] = u
	return u.id, nil
}

// RevokeTokens делает все выданные токены недействительными
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]string)
	s.mu.Unlock()
}

// ============ Middleware ============

type usernameKey struct{}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": detailNoCredentials})
			return
		}

		s.mu.RLock()
		username, ok := s.tokens[strings.TrimPrefix(header, "Bearer ")]
		s.mu.RUnlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": detailBadToken})
			return
		}

		next.ServeHTTP(w, withUsername(r, username))
	})
}

// ============ Вспомогательные функции ============

// allowLogin - не исчерпан ли лимит попыток входа для username.
// При отказе возвращает секунды до следующей попытки.
func (s *Server) allowLogin(username string) (bool, int) {
	if s.throttle == nil {
		return true, 0
	}
	ok, wait := s.throttle.Allow(username)
	return ok, int(math.Ceil(wait.Seconds()))
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func readJSON(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func fieldRequired(fields ...string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for _, f := range fields {
		out[f] = []string{"This field may not be blank."}
	}
	return out
}

// maskKey оставляет первые 4 символа ключа
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}
