package models

import "fmt"

// Значения по умолчанию (единственная поддерживаемая биржа, testnet)
const (
	ExchangeBybit = "bybit"

	DefaultAccountType = "UNIFIED"
	DefaultSymbol      = "BTCUSDT"
	DefaultCategory    = "linear"
)

// Допустимые значения параметров дашборда (совпадают с проверками сервиса)
var (
	AccountTypes = []string{"UNIFIED", "SPOT", "CONTRACT"}
	Categories   = []string{"linear", "spot", "inverse"}
)

// ============ Аутентификация ============

// LoginRequest - тело POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse - ответ на логин; refresh сервис тоже выдает, клиент его не хранит
type LoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// RegisterRequest - тело POST /api/auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse - ответ на регистрацию. Сервис отвечает 201 {id, username};
// OK выставляет клиент для любого 2xx
type RegisterResponse struct {
	OK       bool   `json:"ok"`
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

// ============ Онбординг ============

// OnboardingState - ответ GET /api/onboarding/state
type OnboardingState struct {
	HasTestnetCredentials bool `json:"has_testnet_credentials"`
}

// CredentialsRequest - тело запросов проверки и сохранения ключей
//
// Exchange заполняется только при сохранении.
type CredentialsRequest struct {
	Exchange  string `json:"exchange,omitempty"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	IsTestnet bool   `json:"is_testnet"`
}

// String скрывает ключи, чтобы запрос нельзя было случайно залогировать
func (c CredentialsRequest) String() string {
	return fmt.Sprintf("CredentialsRequest{Exchange:%s APIKey:[REDACTED] APISecret:[REDACTED] IsTestnet:%t}",
		c.Exchange, c.IsTestnet)
}

// GoString - то же для %#v
func (c CredentialsRequest) GoString() string {
	return c.String()
}

// CredentialTestResult - результат проверки ключей
type CredentialTestResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CredentialSaveResult - результат сохранения ключей
type CredentialSaveResult struct {
	OK    bool   `json:"ok"`
	ID    int64  `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// ============ Данные аккаунта ============

// Payload - объект, структуру которого определяет биржа
type Payload map[string]interface{}

// Order - одна запись открытого ордера в формате биржи
type Order map[string]interface{}

// HealthStatus - ответ GET /api/health
type HealthStatus struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
}
