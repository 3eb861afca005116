package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tradeconsole/internal/models"
	"tradeconsole/pkg/utils"
)

var errUserExists = errors.New("a user with that username already exists")

func withUsername(r *http.Request, username string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), usernameKey{}, username))
}

func usernameFrom(r *http.Request) string {
	name, _ := r.Context().Value(usernameKey{}).(string)
	return name
}

// GET /api/health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	if name, empty := utils.FirstEmpty(utils.Required("username", req.Username), utils.Required("password", req.Password)); empty {
		writeJSON(w, http.StatusBadRequest, fieldRequired(name))
		return
	}

	id, err := s.AddUser(req.Username, req.Email, req.Password)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("user registered", utils.Int64("user_id", id))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "username": req.Username})
}

// POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}

	if allowed, wait := s.allowLogin(req.Username); !allowed {
		s.logger.Warn("login throttled", utils.Int("retry_after_s", wait))
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": fmt.Sprintf(detailThrottled, wait)})
		return
	}

	s.mu.RLock()
	u, ok := s.users[req.Username]
	s.mu.RUnlock()

	if !ok || verifyPassword(req.Password, u.hash) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": detailLoginFailed})
		return
	}

	access, refresh := newToken(), newToken()
	s.mu.Lock()
	s.tokens[access] = u.username
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.LoginResponse{Access: access, Refresh: refresh})
}

// GET /api/onboarding/state
func (s *Server) onboardingState(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cred, ok := s.credentials[usernameFrom(r)]
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, models.OnboardingState{HasTestnetCredentials: ok && cred.isTestnet})
}

// POST /api/onboarding/credentials/test
func (s *Server) testCredentials(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	key, secret := strings.TrimSpace(req.APIKey), strings.TrimSpace(req.APISecret)
	if name, empty := utils.FirstEmpty(utils.Required("api_key", key), utils.Required("api_secret", secret)); empty {
		writeJSON(w, http.StatusBadRequest, fieldRequired(name))
		return
	}

	if want, ok := s.cfg.ValidKeys[key]; !ok || want != secret {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": errInvalidAPIKey})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"bybit": keyInfoPayload(key),
	})
}

// POST /api/onboarding/credentials/save
//
// Повторное сохранение заменяет ключи пользователя и сохраняет id.
func (s *Server) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	key, secret := strings.TrimSpace(req.APIKey), strings.TrimSpace(req.APISecret)
	if name, empty := utils.FirstEmpty(utils.Required("api_key", key), utils.Required("api_secret", secret)); empty {
		writeJSON(w, http.StatusBadRequest, fieldRequired(name))
		return
	}

	username := usernameFrom(r)
	sealed, err := s.secrets.Seal(secret)
	if err != nil {
		s.logger.Error("failed to encrypt api secret", utils.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
		return
	}

	s.mu.Lock()
	cred, ok := s.credentials[username]
	if !ok {
		cred = &credential{id: s.nextCredID}
		s.nextCredID++
		s.credentials[username] = cred
	}
	cred.apiKey, cred.apiSecretEnc, cred.isTestnet = key, sealed, req.IsTestnet
	id := cred.id
	s.mu.Unlock()

	s.logger.Info("credentials saved", utils.Int64("credential_id", id), utils.Bool("testnet", req.IsTestnet))
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}

// GET /api/account/api-key-info
func (s *Server) keyInfo(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credentialOf(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "info": keyInfoPayload(cred.apiKey)})
}

// GET /api/wallet/balances?accountType=UNIFIED
func (s *Server) balances(w http.ResponseWriter, r *http.Request) {
	accountType := r.URL.Query().Get("accountType")
	if accountType == "" {
		accountType = models.DefaultAccountType
	}
	if !contains(models.AccountTypes, accountType) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "Invalid accountType"})
		return
	}
	if _, ok := s.credentialOf(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"accountType": accountType,
		"data": bybitEnvelope(map[string]interface{}{
			"list": []interface{}{
				map[string]interface{}{
					"accountType": accountType,
					"totalEquity": "10000.00",
					"coin": []interface{}{
						map[string]interface{}{"coin": "USDT", "walletBalance": "10000.00", "equity": "10000.00"},
					},
				},
			},
		}),
	})
}

// GET /api/orders?symbol=BTCUSDT&category=linear
func (s *Server) openOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, category := q.Get("symbol"), q.Get("category")
	if symbol == "" {
		symbol = models.DefaultSymbol
	}
	if category == "" {
		category = models.DefaultCategory
	}
	if !contains(models.Categories, category) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "Invalid category"})
		return
	}
	if _, ok := s.credentialOf(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"category": category,
		"symbol":   symbol,
		"data": bybitEnvelope(map[string]interface{}{
			"category": category,
			"list": []interface{}{
				map[string]interface{}{
					"orderId":     "stub-" + strings.ToLower(symbol) + "-1",
					"symbol":      symbol,
					"side":        "Buy",
					"orderType":   "Limit",
					"price":       "25000",
					"qty":         "0.001",
					"orderStatus": "New",
				},
			},
		}),
	})
}

// credentialOf возвращает ключи пользователя или отвечает 400.
//
// Secret расшифровывается и проверяется "биржей" на каждом запросе, как при
// подписи настоящего запроса к Bybit.
func (s *Server) credentialOf(w http.ResponseWriter, r *http.Request) (*credential, bool) {
	s.mu.RLock()
	cred, ok := s.credentials[usernameFrom(r)]
	var c credential
	if ok {
		c = *cred
	}
	s.mu.RUnlock()

	if !ok || !c.isTestnet {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": errMissingCreds})
		return nil, false
	}

	secret, err := s.secrets.Open(c.apiSecretEnc)
	if err != nil {
		s.logger.Error("failed to decrypt api secret", utils.Int64("credential_id", c.id), utils.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
		return nil, false
	}
	if want, valid := s.cfg.ValidKeys[c.apiKey]; !valid || want != secret {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": errInvalidAPIKey})
		return nil, false
	}
	return &c, true
}

func keyInfoPayload(apiKey string) map[string]interface{} {
	return bybitEnvelope(map[string]interface{}{
		"apiKey":   maskKey(apiKey),
		"readOnly": 1,
		"permissions": map[string]interface{}{
			"ContractTrade": []string{"Order", "Position"},
			"Spot":          []string{"SpotTrade"},
		},
	})
}

func bybitEnvelope(result interface{}) map[string]interface{} {
	return map[string]interface{}{"retCode": 0, "retMsg": "OK", "result": result}
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
