package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/securenotes/internal/metrics"
	"github.com/hitoshi/securenotes/internal/middleware"
	"github.com/hitoshi/securenotes/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	PrincipalResolver middleware.PrincipalResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// メモ
	NoteService  NoteServiceInterface
	NoteRenderer security.NoteRenderer

	// 管理者
	AdminService AdminServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → Metrics → Timing → SecurityHeaders → CORS → RequestSize
//	→ Session → CSRF → RateLimit(General)
//
// /health, /metrics, /api/csrf-token はセッション解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	csrfConfig := deps.CSRFConfig
	if csrfConfig.Metrics == nil {
		csrfConfig.Metrics = collector
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewTimingMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(chimw.RequestSize(maxRequestBodyBytes))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, collector)
	noteHandler := NewNoteHandler(deps.NoteService, deps.NoteRenderer, collector)
	adminHandler := NewAdminHandler(deps.AdminService, deps.NoteRenderer, collector)

	// --- セッション不要のルート ---

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// --- セッションを解決するルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	// 未認証のリクエストもAnonymousとして通過し、可否はサービス層で判定する。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.PrincipalResolver))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// メモ
		r.Route("/notes", func(r chi.Router) {
			r.Get("/", noteHandler.ListNotes)
			r.Post("/", noteHandler.CreateNote)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", noteHandler.GetNote)
				r.Put("/", noteHandler.UpdateNote)
				r.Post("/", noteHandler.UpdateNote)
				r.Delete("/", noteHandler.DeleteNote)

				// フォーム送信用
				r.Post("/edit", noteHandler.UpdateNote)
				r.Post("/delete", noteHandler.DeleteNote)
			})
		})

		// 管理者
		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", adminHandler.ListUsers)
			r.Get("/notes", adminHandler.ListNotes)
		})
	})

	return r
}
