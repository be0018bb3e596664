// Package app はサブコマンドごとの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/localbite/internal/auth"
	"github.com/hitoshi/localbite/internal/config"
	"github.com/hitoshi/localbite/internal/database"
	"github.com/hitoshi/localbite/internal/geocode"
	"github.com/hitoshi/localbite/internal/handler"
	"github.com/hitoshi/localbite/internal/location"
	"github.com/hitoshi/localbite/internal/logger"
	"github.com/hitoshi/localbite/internal/metrics"
	"github.com/hitoshi/localbite/internal/middleware"
	"github.com/hitoshi/localbite/internal/recipe"
	"github.com/hitoshi/localbite/internal/repository"
	"github.com/hitoshi/localbite/internal/security"
	"github.com/hitoshi/localbite/internal/user"
	"github.com/hitoshi/localbite/internal/worker/reconcile"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandReconcile:
		return runReconcileOnce(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	if pool.MaxIdleConns > pool.MaxOpenConns {
		pool.MaxIdleConns = pool.MaxOpenConns
	}

	db, err := database.Open(cfg.DatabaseURL, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newGeocoder はMapTilerクライアントに再試行・サーキットブレーカー・キャッシュを重ねたGeocoderを構築する。
// REDIS_URLが未設定の場合はキャッシュ層を省く。返り値のcloseは呼び出し側で必ず実行する。
func newGeocoder(cfg *config.Config, guard security.URLGuard, mc metrics.MetricsCollector) (geocode.Geocoder, func(), error) {
	logger := slog.Default()

	client := geocode.NewMapTilerClient(
		guard.NewOutboundClient(cfg.GeocodeTimeout),
		cfg.MapTilerAPIKey, cfg.MapTilerBaseURL, logger, mc,
	)
	var g geocode.Geocoder = client
	g = geocode.NewRetryGeocoder(g, uint(cfg.GeocodeMaxRetries), logger)
	g = geocode.NewBreakerGeocoder(g, geocode.DefaultBreakerSettings(), logger)

	if cfg.RedisURL == "" {
		return g, func() {}, nil
	}

	rdb, err := geocode.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	g = geocode.NewCachedGeocoder(g, geocode.NewRedisCache(rdb), cfg.GeocodeCacheTTL, logger, mc)
	slog.Info("geocode cache enabled", slog.Duration("ttl", cfg.GeocodeCacheTTL))

	return g, func() { rdb.Close() }, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "localbite"),
	)
	mc := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	locationRepo := repository.NewPostgresLocationRepo(db)
	recipeRepo := repository.NewPostgresRecipeRepo(db)
	favRepo := repository.NewPostgresFavRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)

	// 4. セキュリティサービスの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewTextSanitizer()

	// 5. ロケーション解決
	geocoder, closeGeocoder, err := newGeocoder(cfg, urlGuard, mc)
	if err != nil {
		return fmt.Errorf("failed to build geocoder: %w", err)
	}
	defer closeGeocoder()
	resolver := location.NewResolver(locationRepo, geocoder, geocode.ProviderMapTiler, slog.Default(), mc)

	// 6. ドメインサービスの初期化
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	authService := auth.NewService(userRepo, tokens, sanitizer, slog.Default(), auth.DefaultBcryptCost)
	userService := user.NewService(userRepo, locationRepo, recipeRepo, favRepo, resolver, sanitizer, urlGuard, slog.Default())
	recipeService := recipe.NewService(recipeRepo, favRepo, resolver, sanitizer, urlGuard, slog.Default(), mc)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitPerMinute), slog.Default())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:                 slog.Default(),
		TokenVerifier:          tokens,
		CORSAllowedOrigin:      cfg.CORSAllowedOrigin,
		RateLimiter:            rateLimiter,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		Metrics:                mc,
		MetricsHandler:         metrics.Handler(registry),
		HealthChecker:          db,

		AuthService: authService,
		UserService: userService,
		Cookie: handler.CookieConfig{
			Secure: cfg.CookieSecure,
			MaxAge: tokens.TTL(),
		},

		RecipeService:  recipeService,
		LocationLister: locationRepo,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、いいね数の再計算ジョブをRECONCILE_INTERVALごとに実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := reconcile.NewJob(db, slog.Default(), nil)
	job.Start(ctx, cfg.ReconcileInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runReconcileOnce はいいね数の再計算を1回だけ実行する。
// ワーカーを常駐させない環境でcronなどから呼び出す。
func runReconcileOnce(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := reconcile.NewJob(db, slog.Default(), nil).Run(ctx); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://***@" + u.Host + u.Path
}
