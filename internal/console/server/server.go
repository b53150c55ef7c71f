package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/approvalbot/internal/console/handler"
	"github.com/xela07ax/approvalbot/internal/infra/auth"
	"go.uber.org/zap"
)

// ConsoleServer — локальный HTTP-сервер бота: health, /metrics
// и read-only админка очереди заявок за RS256 периметром.
type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator

	authHandler     *handler.AuthHandler     // /auth/token
	approvalHandler *handler.ApprovalHandler // /v1/approvals
	metricsHandler  http.Handler             // /metrics (prometheus)
}

// NewConsoleServer инициализирует сервер со всеми зависимостями.
// validator может быть nil — тогда админка не монтируется вовсе
// (ключи не сконфигурированы), остаются health и metrics.
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	approvalH *handler.ApprovalHandler,
	metricsH http.Handler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		authValidator:   validator,
		authHandler:     authH,
		approvalHandler: approvalH,
		metricsHandler:  metricsH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		r.Handle("/metrics", s.metricsHandler)
	})

	if s.authValidator == nil {
		s.logger.Warn("console auth keys not configured, admin API disabled")
		return
	}

	// Логин должен быть доступен без токена
	r.Post("/auth/token", s.authHandler.Login)

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		r.Use(s.logActingUser)

		// Очередь заявок (read-only, решения только из Slack)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Get("/", s.approvalHandler.List)
			r.Get("/{id}", s.approvalHandler.GetDetails)
		})
	})
}

// logActingUser фиксирует в логе, кто именно из операторов дергает админку
func (s *ConsoleServer) logActingUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("admin API access",
			zap.String("user", auth.UserID(r.Context())),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
