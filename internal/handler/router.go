package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/burlingtondeals/dealsapi/internal/middleware"
)

// MetricsRecorder はルーターが記録するメトリクス。metrics.Collectorが実装する。
type MetricsRecorder interface {
	middleware.RequestRecorder
	middleware.RateLimitRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// ヘルスチェックとメトリクス（Metrics、MetricsHandlerはnil可）
	HealthChecker  HealthChecker
	Metrics        MetricsRecorder
	MetricsHandler http.Handler

	// 認証
	TokenVerifier middleware.TokenVerifier
	UserFinder    middleware.UserFinder
	AuthService   AuthServiceInterface

	// 公開フォームの送信元IP単位のレート制限
	FormLimiter middleware.KeyLimiter

	DealService       DealServiceInterface
	Feed              FeedConfig
	RestaurantService RestaurantServiceInterface
	UserService       UserServiceInterface
	ContactService    ContactServiceInterface
	NewsletterService NewsletterServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// 認証はルートグループ単位で適用し、管理者ルートはさらにRequireAdminを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	r.NotFound(routeNotFound)
	r.MethodNotAllowed(routeNotFound)

	authn := middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserFinder, logger)
	admin := middleware.RequireAdmin()
	contactLimit := middleware.NewRateLimitMiddleware(deps.FormLimiter, "contact", deps.Metrics, logger)
	newsletterLimit := middleware.NewRateLimitMiddleware(deps.FormLimiter, "newsletter", deps.Metrics, logger)

	authHandler := NewAuthHandler(deps.AuthService, logger)
	dealHandler := NewDealHandler(deps.DealService, deps.Feed, logger)
	restaurantHandler := NewRestaurantHandler(deps.RestaurantService, logger)
	userHandler := NewUserHandler(deps.UserService, logger)
	contactHandler := NewContactHandler(deps.ContactService, deps.NewsletterService, logger)

	// --- 運用エンドポイント ---
	r.Get("/health", HealthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", Banner)

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Get("/verify", authHandler.Verify)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot", authHandler.Forgot)
			r.Post("/reset", authHandler.Reset)
			r.With(authn).Get("/me", authHandler.Me)
		})

		// ディール
		r.Route("/deals", func(r chi.Router) {
			r.Get("/approved", dealHandler.ListApproved)
			r.Get("/feed.rss", dealHandler.Feed)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/", dealHandler.Create)

				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Get("/", dealHandler.ListAll)
					r.Route("/{id}", func(r chi.Router) {
						r.Put("/", dealHandler.Update)
						r.Delete("/", dealHandler.Delete)
						r.Put("/approve", dealHandler.Approve)
						r.Put("/reject", dealHandler.Reject)
						r.Put("/promote", dealHandler.Promote)
						r.Put("/unfeature", dealHandler.Unfeature)
						r.Put("/setPromotionTier", dealHandler.SetPromotionTier)
					})
				})
			})
		})

		// 店舗
		r.Route("/restaurants", func(r chi.Router) {
			r.Get("/", restaurantHandler.List)
			r.Get("/search", restaurantHandler.Search)
			r.Get("/{id}", restaurantHandler.Get)
			r.Post("/", restaurantHandler.Submit)

			r.Group(func(r chi.Router) {
				r.Use(authn, admin)
				r.Put("/{id}/deactivate", restaurantHandler.Deactivate)
				r.Put("/{id}/activate", restaurantHandler.Activate)
			})
		})

		// 管理者向けユーザー管理
		r.Route("/admin/users", func(r chi.Router) {
			r.Use(authn, admin)
			r.Get("/", userHandler.List)
			r.Put("/{id}/role", userHandler.ChangeRole)
			r.Put("/{id}/deactivate", userHandler.ToggleActive)
		})

		// 公開フォーム
		r.With(contactLimit).Post("/contact", contactHandler.Submit)
		r.With(newsletterLimit).Post("/newsletter/subscribe", contactHandler.Subscribe)
	})

	return r
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusNotFound, middleware.ErrorResponseBody{Error: "Route not found"})
}
