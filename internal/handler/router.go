package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/hitoshi/localbite/internal/metrics"
	"github.com/hitoshi/localbite/internal/middleware"
	"github.com/hitoshi/localbite/internal/model"
)

// HealthChecker はデータベース接続の疎通を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	TokenVerifier          middleware.TokenVerifier
	CORSAllowedOrigin      string
	RateLimiter            *middleware.RateLimiter
	AuthRateLimitPerMinute int
	Metrics                metrics.MetricsCollector
	MetricsHandler         http.Handler // nilの場合は/metricsを公開しない
	HealthChecker          HealthChecker

	// 認証・ユーザー
	AuthService AuthServiceInterface
	UserService UserServiceInterface
	Cookie      CookieConfig

	// レシピ・ロケーション
	RecipeService  RecipeServiceInterface
	LocationLister LocationLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → Logging → SecurityHeaders → (Auth | OptionalAuth) → RateLimit
//
// サインアップとサインインはIP単位のレート制限、レシピの書き込み系はユーザー単位のレート制限を受ける。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（プリフライトにも効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookie)
	userHandler := NewUserHandler(deps.UserService, deps.Cookie)
	recipeHandler := NewRecipeHandler(deps.RecipeService)
	locationHandler := NewLocationHandler(deps.LocationLister)

	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.TokenVerifier)

	r.Get("/healthz", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authRateLimit(deps.AuthRateLimitPerMinute))
			r.Post("/signup", authHandler.Signup)
			r.Post("/signin", authHandler.Signin)
		})
		r.Post("/signout", authHandler.Signout)
		r.With(optionalAuth).Get("/profile/{username}", userHandler.Profile)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userHandler.Me)
			r.Patch("/update-profile", userHandler.UpdateProfile)
			r.Patch("/update-profile-pic", userHandler.UpdateProfilePic)
			r.Delete("/delete-profile", userHandler.DeleteProfile)
		})
	})

	r.Route("/api/recipes", func(r chi.Router) {
		r.With(optionalAuth).Get("/", recipeHandler.Feed)
		r.With(optionalAuth).Get("/{id}", recipeHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}
			r.Post("/", recipeHandler.Create)
			r.Patch("/{id}", recipeHandler.Edit)
			r.Delete("/{id}", recipeHandler.Delete)
			r.Patch("/{id}/like", recipeHandler.Like)
			r.Patch("/{id}/dislike", recipeHandler.Unlike)
		})
	})

	r.Route("/api/loc", func(r chi.Router) {
		r.Get("/all", locationHandler.All)
		r.Get("/all/coords", locationHandler.Coords)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "指定されたパスは存在しません。",
			Category: "system",
			Action:   "URLを確認してください。",
		})
	})

	return r
}

// authRateLimit はIPアドレス単位のレート制限ミドルウェアを返す。
// 0以下の場合は制限しない。
func authRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAPIErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
		}),
	)
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
