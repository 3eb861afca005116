package middleware

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"tradeconsole/internal/guard"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoginRequiredMessage - ответ защищенного маршрута без сессии
const LoginRequiredMessage = "login required"

// loginRequiredResponse - тело 401; формат совпадает с handlers.ErrorResponse
type loginRequiredResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// RequireSession - middleware защищенных экранов консоли
//
// Решение принимает guard.Check при каждом запросе, поэтому выход из аккаунта
// действует сразу. Без сессии:
// - GET (навигация, WebSocket handshake) - 302 на /login
// - остальные методы - 401 {"ok":false,"error":"login required","redirect":"/login"}
//
// Исходный адрес не запоминается: после логина пользователь попадает на /onboarding.
func RequireSession(tokens guard.TokenReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Check(tokens, r.URL.Path)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				http.Redirect(w, r, decision.Redirect, http.StatusFound)
				return
			}

			body, err := json.Marshal(loginRequiredResponse{Error: LoginRequiredMessage, Redirect: decision.Redirect})
			if err != nil {
				http.Error(w, LoginRequiredMessage, http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write(body)
		})
	}
}
