package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeconsole/internal/api/handlers"
	"tradeconsole/internal/api/middleware"
	"tradeconsole/internal/guard"
	"tradeconsole/internal/websocket"
	"tradeconsole/pkg/utils"
)

// Dependencies содержит все зависимости для HTTP handlers консоли
type Dependencies struct {
	Auth       handlers.AuthServiceInterface
	Dashboard  handlers.DashboardServiceInterface
	Onboarding handlers.OnboardingFlowInterface
	Session    guard.TokenReader
	Hub        *websocket.Hub

	AllowedOrigins []string
	Logger         *utils.Logger

	// Lifetime - контекст процесса; ограничивает сеанс онбординга
	Lifetime context.Context
}

// SetupRoutes настраивает все HTTP маршруты консоли
//
// Структура маршрутов:
//
//	├── GET  /health - liveness консоли
//	├── GET  /metrics - метрики Prometheus
//	├── GET  /login - экран логина
//	├── POST /login - вход
//	├── POST /logout - выход
//	├── POST /register - регистрация
//	├── GET  / - redirect на /dashboard
//	└── защищенные (RequireSession):
//	    ├── GET  /onboarding - открыть экран онбординга
//	    ├── POST /onboarding/test - проверить ключи
//	    ├── POST /onboarding/save - сохранить ключи
//	    ├── POST /onboarding/refresh - повторить загрузку
//	    ├── GET  /dashboard - дашборд
//	    ├── GET  /dashboard/status - дашборд из кэша
//	    └── GET  /ws/onboarding - WebSocket снимков онбординга
//
// Middleware: Recovery → Logging → CORS; RequireSession только для защищенных.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	authHandler := handlers.NewAuthHandler(deps.Auth, notifierOf(deps.Hub))
	onboardingHandler := handlers.NewOnboardingHandler(deps.Onboarding, deps.Lifetime)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, deps.Onboarding)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/login", authHandler.LoginView).Methods(http.MethodGet)
	router.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	}).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.RequireSession(deps.Session))

	protected.HandleFunc("/onboarding", onboardingHandler.Open).Methods(http.MethodGet)
	protected.HandleFunc("/onboarding/test", onboardingHandler.Test).Methods(http.MethodPost)
	protected.HandleFunc("/onboarding/save", onboardingHandler.Save).Methods(http.MethodPost)
	protected.HandleFunc("/onboarding/refresh", onboardingHandler.Refresh).Methods(http.MethodPost)
	protected.HandleFunc("/dashboard", dashboardHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/dashboard/status", dashboardHandler.Status).Methods(http.MethodGet)

	if deps.Hub != nil {
		upgrader := websocket.NewOriginChecker(deps.AllowedOrigins).Upgrader()
		protected.HandleFunc("/ws/onboarding", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, upgrader, w, r)
		}).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return router
}

// notifierOf избегает typed nil в интерфейсе
func notifierOf(hub *websocket.Hub) handlers.SessionNotifier {
	if hub == nil {
		return nil
	}
	return hub
}
