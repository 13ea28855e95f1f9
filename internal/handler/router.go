package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       middleware.KeyLimiter
	StatusRecorder    middleware.HTTPStatusRecorder

	// ドメイン
	PresenceService PresenceServiceInterface
	MessageService  MessageServiceInterface
	MarkupGuard     security.MarkupGuard

	// 運用
	HealthChecker  Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Participant → Logging → Recovery → SecurityHeaders → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guard := deps.MarkupGuard
	if guard == nil {
		guard = security.NewMarkupGuard()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewParticipantMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	participantHandler := NewParticipantHandler(deps.PresenceService, guard)
	messageHandler := NewMessageHandler(deps.MessageService)

	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(middleware.NewRateLimitMiddleware(deps.RateLimiter))
		}

		r.Route("/participants", func(r chi.Router) {
			r.Post("/", participantHandler.Join)
			r.Get("/", participantHandler.List)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", messageHandler.Send)
			r.Get("/", messageHandler.List)
		})

		r.Post("/status", participantHandler.Status)
	})

	return r
}
