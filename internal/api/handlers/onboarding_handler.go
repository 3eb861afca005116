package handlers

import (
	"context"
	"errors"
	"net/http"

	"tradeconsole/internal/onboarding"
	"tradeconsole/internal/remote"
)

// OnboardingHandler обслуживает экран подключения ключей биржи
//
// GET /onboarding монтирует контроллер (если он не смонтирован) и выполняет
// начальную загрузку. Действия test/save/refresh возвращают новый снимок
// состояния; ошибки вызова сервиса уже отражены в снимке, а не в статусе ответа.
type OnboardingHandler struct {
	flow     OnboardingFlowInterface
	lifetime context.Context
}

// NewOnboardingHandler создает новый OnboardingHandler.
//
// lifetime - контекст процесса консоли; сеанс онбординга живет не дольше него.
func NewOnboardingHandler(flow OnboardingFlowInterface, lifetime context.Context) *OnboardingHandler {
	if lifetime == nil {
		lifetime = context.Background()
	}
	return &OnboardingHandler{flow: flow, lifetime: lifetime}
}

type credentialsRequest struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

// Open открывает экран онбординга
// GET /onboarding
func (h *OnboardingHandler) Open(w http.ResponseWriter, r *http.Request) {
	if h.flow.Mount(h.lifetime) {
		st, err := h.flow.Refresh(r.Context())
		if err != nil {
			h.respondWithFlowError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, st)
		return
	}
	respondWithJSON(w, http.StatusOK, h.flow.State())
}

// Refresh повторяет загрузку состояния
// POST /onboarding/refresh
func (h *OnboardingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	st, err := h.flow.Refresh(r.Context())
	if err != nil {
		h.respondWithFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// Test проверяет ключи без сохранения
// POST /onboarding/test
func (h *OnboardingHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.flow.Test(r.Context(), req.APIKey, req.APISecret)
	if err != nil {
		h.respondWithFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// Save сохраняет ключи на сервисе
// POST /onboarding/save
func (h *OnboardingHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.flow.Save(r.Context(), req.APIKey, req.APISecret)
	if err != nil {
		h.respondWithFlowError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

func (h *OnboardingHandler) respondWithFlowError(w http.ResponseWriter, err error) {
	var ve *remote.ValidationError
	switch {
	case errors.As(err, &ve):
		respondWithError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, onboarding.ErrNotMounted):
		respondWithError(w, http.StatusConflict, "Onboarding is not open")
	case errors.Is(err, onboarding.ErrActionInFlight):
		respondWithError(w, http.StatusConflict, "Another action is in progress")
	case errors.Is(err, onboarding.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, "Action not allowed now")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
