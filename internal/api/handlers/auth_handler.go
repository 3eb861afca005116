package handlers

import (
	"errors"
	"net/http"

	"tradeconsole/internal/models"
	"tradeconsole/internal/remote"
	"tradeconsole/internal/service"
)

// AuthHandler обслуживает экран логина, выход и регистрацию
//
// Маршруты:
// - GET /login - состояние экрана логина
// - POST /login - вход, при успехе redirect на /onboarding
// - POST /logout - выход, redirect на /login
// - POST /register - регистрация на удаленном сервисе
type AuthHandler struct {
	auth     AuthServiceInterface
	notifier SessionNotifier
}

// NewAuthHandler создает новый AuthHandler; notifier может быть nil
func NewAuthHandler(auth AuthServiceInterface, notifier SessionNotifier) *AuthHandler {
	return &AuthHandler{auth: auth, notifier: notifier}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginView возвращает состояние экрана логина
// GET /login
func (h *AuthHandler) LoginView(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, models.SessionView{Authenticated: h.auth.IsAuthenticated()})
}

// Login выполняет вход
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var ve *remote.ValidationError
		switch {
		case errors.As(err, &ve):
			respondWithError(w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, service.ErrLoginFailed):
			respondWithJSON(w, http.StatusUnauthorized, models.SessionView{Message: service.MsgLoginFailed})
		default:
			respondWithError(w, http.StatusInternalServerError, "Could not save session")
		}
		return
	}

	h.notify(true, result.Redirect)
	respondWithJSON(w, http.StatusOK, models.SessionView{Authenticated: true, Redirect: result.Redirect})
}

// Logout выполняет выход
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Could not clear session")
		return
	}

	h.notify(false, service.PathAfterLogout)
	respondWithJSON(w, http.StatusOK, models.SessionView{Authenticated: false, Redirect: service.PathAfterLogout})
}

// Register создает пользователя
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		respondWithError(w, remoteStatus(err), remoteReason(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":       true,
		"username": req.Username,
	})
}

func (h *AuthHandler) notify(authenticated bool, redirect string) {
	if h.notifier != nil {
		h.notifier.BroadcastSession(authenticated, redirect)
	}
}
