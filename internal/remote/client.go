// Package remote - типизированный клиент удаленного сервиса.
//
// Каждая операция - один запрос через gateway. Клиент проверяет только
// непустоту обязательных полей; остальное решает сервис.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"tradeconsole/internal/gateway"
	"tradeconsole/internal/models"
	"tradeconsole/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxResponseBody ограничивает чтение тела ответа
const maxResponseBody = 4 << 20

// Пути удаленного сервиса
const (
	PathLogin           = "/api/auth/login"
	PathRegister        = "/api/auth/register"
	PathOnboardingState = "/api/onboarding/state"
	PathCredentialsTest = "/api/onboarding/credentials/test"
	PathCredentialsSave = "/api/onboarding/credentials/save"
	PathKeyInfo         = "/api/account/api-key-info"
	PathBalances        = "/api/wallet/balances"
	PathOpenOrders      = "/api/orders"
	PathHealth          = "/api/health"
)

// Имена операций для логов и метрик
const (
	OpLogin           = "login"
	OpRegister        = "register"
	OpOnboardingState = "onboarding_state"
	OpTestCredentials = "test_credentials"
	OpSaveCredentials = "save_credentials"
	OpKeyInfo         = "key_info"
	OpBalances        = "balances"
	OpOpenOrders      = "open_orders"
	OpHealth          = "health"
)

// Sender - отправка запроса (реализуется gateway.Gateway)
type Sender interface {
	Send(req *http.Request) (*http.Response, error)
}

// Client - клиент удаленного сервиса
type Client struct {
	baseURL string
	sender  Sender
	logger  *utils.Logger
}

// NewClient создает клиент; baseURL без завершающего слэша
func NewClient(baseURL string, sender Sender, logger *utils.Logger) *Client {
	if logger == nil {
		logger = utils.L()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  sender,
		logger:  logger.WithComponent("remote"),
	}
}

// BaseURL возвращает адрес сервиса
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============ Аутентификация ============

// Login обменивает имя и пароль на токен доступа
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	if err := validateRequired(utils.Required("username", username), utils.Required("password", password)); err != nil {
		return nil, err
	}

	var resp models.LoginResponse
	if err := c.doJSON(ctx, OpLogin, http.MethodPost, PathLogin, nil,
		models.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("login: %w: empty access token", ErrMalformedResponse)
	}
	return &resp, nil
}

// Register создает пользователя. Успех - любой 2xx.
func (c *Client) Register(ctx context.Context, username, email, password string) (*models.RegisterResponse, error) {
	if err := validateRequired(utils.Required("username", username), utils.Required("password", password)); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, OpRegister, http.MethodPost, PathRegister, nil,
		models.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, c.statusError(OpRegister, resp)
	}

	result := models.RegisterResponse{}
	if len(resp.body) > 0 {
		// Тело информативное, на результат не влияет
		c.decodeInformative(OpRegister, resp, &result)
	}
	result.OK = true
	return &result, nil
}

// ============ Онбординг ============

// OnboardingState - есть ли у пользователя сохраненные testnet ключи
func (c *Client) OnboardingState(ctx context.Context) (*models.OnboardingState, error) {
	var resp models.OnboardingState
	if err := c.doJSON(ctx, OpOnboardingState, http.MethodGet, PathOnboardingState, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestCredentials просит сервис проверить ключи на бирже.
//
// Отказ биржи сервис возвращает как 400 {ok:false, error}; это разрешенный
// результат, а не ошибка вызова.
func (c *Client) TestCredentials(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialTestResult, error) {
	if err := validateRequired(utils.Required("apiKey", apiKey), utils.Required("apiSecret", apiSecret)); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, OpTestCredentials, http.MethodPost, PathCredentialsTest, nil,
		models.CredentialsRequest{APIKey: apiKey, APISecret: apiSecret, IsTestnet: isTestnet})
	if err != nil {
		return nil, err
	}

	if resp.ok() || resp.status == http.StatusBadRequest {
		var parsed struct {
			OK    *bool  `json:"ok"`
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.body, &parsed) == nil && parsed.OK != nil {
			return &models.CredentialTestResult{OK: *parsed.OK, Error: parsed.Error}, nil
		}
		if resp.ok() {
			return nil, fmt.Errorf("%s: %w", OpTestCredentials, ErrMalformedResponse)
		}
	}
	return nil, c.statusError(OpTestCredentials, resp)
}

// SaveCredentials сохраняет ключи на сервисе (get-or-create, повтор безопасен)
func (c *Client) SaveCredentials(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialSaveResult, error) {
	if err := validateRequired(utils.Required("apiKey", apiKey), utils.Required("apiSecret", apiSecret)); err != nil {
		return nil, err
	}

	var resp models.CredentialSaveResult
	req := models.CredentialsRequest{
		Exchange:  models.ExchangeBybit,
		APIKey:    apiKey,
		APISecret: apiSecret,
		IsTestnet: isTestnet,
	}
	if err := c.doJSON(ctx, OpSaveCredentials, http.MethodPost, PathCredentialsSave, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ============ Данные аккаунта ============

// KeyInfo - метаданные API ключа в формате биржи
func (c *Client) KeyInfo(ctx context.Context) (models.Payload, error) {
	var resp models.Payload
	if err := c.doJSON(ctx, OpKeyInfo, http.MethodGet, PathKeyInfo, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Balances - балансы кошелька для accountType (по умолчанию UNIFIED)
func (c *Client) Balances(ctx context.Context, accountType string) (models.Payload, error) {
	if accountType == "" {
		accountType = models.DefaultAccountType
	}

	var resp models.Payload
	query := url.Values{"accountType": {accountType}}
	if err := c.doJSON(ctx, OpBalances, http.MethodGet, PathBalances, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// OpenOrders - открытые ордера по символу и категории
func (c *Client) OpenOrders(ctx context.Context, symbol, category string) ([]models.Order, error) {
	if symbol == "" {
		symbol = models.DefaultSymbol
	}
	if category == "" {
		category = models.DefaultCategory
	}

	var raw interface{}
	query := url.Values{"symbol": {symbol}, "category": {category}}
	if err := c.doJSON(ctx, OpOpenOrders, http.MethodGet, PathOpenOrders, query, nil, &raw); err != nil {
		return nil, err
	}
	return extractOrders(raw), nil
}

// Health - проверка доступности сервиса
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	resp, err := c.do(ctx, OpHealth, http.MethodGet, PathHealth, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, c.statusError(OpHealth, resp)
	}

	result := models.HealthStatus{}
	c.decodeInformative(OpHealth, resp, &result)
	result.OK = true
	return &result, nil
}

// ============ Транспорт ============

// response - прочитанный ответ сервиса
type response struct {
	status        int
	body          []byte
	authenticated bool // запрос ушел с Bearer токеном
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// doJSON выполняет запрос и декодирует 2xx ответ в out
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, in, out interface{}) error {
	resp, err := c.do(ctx, op, method, path, query, in)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return c.statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

// do отправляет запрос и читает тело; ошибка транспорта - RemoteError со Status 0
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in interface{}) (response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return response{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(gateway.WithOperation(ctx, op), method, endpoint, reqBody)
	if err != nil {
		return response{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.sender.Send(req)
	if err != nil {
		return response{}, &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return response{}, &RemoteError{Op: op, Err: err}
	}

	return response{
		status:        resp.StatusCode,
		body:          body,
		authenticated: resp.Request != nil && resp.Request.Header.Get(gateway.HeaderAuthorization) != "",
	}, nil
}

// statusError превращает не-2xx ответ в RemoteError (или StaleSessionError для 401/403 с токеном)
func (c *Client) statusError(op string, resp response) error {
	body := resp.body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	re := &RemoteError{Op: op, Status: resp.status, Body: string(body)}

	if resp.authenticated && (resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden) {
		c.logger.Warn("remote service rejected session token", utils.Operation(op), utils.StatusCode(resp.status))
		return &StaleSessionError{Remote: re}
	}

	c.logger.Debug("remote call failed", utils.Operation(op), utils.StatusCode(resp.status))
	return re
}

// decodeInformative разбирает тело, которое не влияет на результат вызова.
// Ошибка разбора только пишется в debug лог.
func (c *Client) decodeInformative(op string, resp response, dst interface{}) {
	if err := json.Unmarshal(resp.body, dst); err != nil {
		c.logger.Debug("ignoring undecodable response body",
			utils.Operation(op),
			utils.StatusCode(resp.status),
			utils.Err(err),
		)
	}
}

// extractOrders достает список ордеров: массив верхнего уровня, data, data.result.list или result.list
func extractOrders(raw interface{}) []models.Order {
	orders := []models.Order{}

	var list []interface{}
	switch v := raw.(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		list = findList(v)
	}

	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			orders = append(orders, models.Order(m))
		}
	}
	return orders
}

func findList(obj map[string]interface{}) []interface{} {
	if data, ok := obj["data"]; ok {
		switch d := data.(type) {
		case []interface{}:
			return d
		case map[string]interface{}:
			if list := findList(d); list != nil {
				return list
			}
		}
	}
	if result, ok := obj["result"].(map[string]interface{}); ok {
		if list, ok := result["list"].([]interface{}); ok {
			return list
		}
	}
	if list, ok := obj["list"].([]interface{}); ok {
		return list
	}
	return nil
}
