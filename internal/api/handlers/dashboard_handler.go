package handlers

import (
	"errors"
	"net/http"

	"tradeconsole/internal/models"
	"tradeconsole/internal/service"
)

// DashboardHandler обслуживает экран дашборда
//
// Переход на дашборд закрывает экран онбординга.
type DashboardHandler struct {
	dashboard DashboardServiceInterface
	flow      service.FlowCloser
}

// NewDashboardHandler создает новый DashboardHandler; flow может быть nil
func NewDashboardHandler(dashboard DashboardServiceInterface, flow service.FlowCloser) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, flow: flow}
}

// Get загружает ключ API, балансы и открытые ордера
// GET /dashboard?accountType=UNIFIED&symbol=BTCUSDT&category=linear
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.flow != nil {
		h.flow.Close()
	}

	view, err := h.dashboard.Load(r.Context(), queryFrom(r))
	if err != nil {
		h.respondWithQueryError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// Status возвращает закэшированное состояние запросов без загрузки
// GET /dashboard/status
func (h *DashboardHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.dashboard.Status(queryFrom(r))
	if err != nil {
		h.respondWithQueryError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) respondWithQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrInvalidQuery) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func queryFrom(r *http.Request) models.DashboardQuery {
	q := r.URL.Query()
	return models.DashboardQuery{
		AccountType: q.Get("accountType"),
		Symbol:      q.Get("symbol"),
		Category:    q.Get("category"),
	}
}
