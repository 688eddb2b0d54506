package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/menudigital/internal/access"
	"github.com/hitoshi/menudigital/internal/auth"
	"github.com/hitoshi/menudigital/internal/config"
	"github.com/hitoshi/menudigital/internal/database"
	"github.com/hitoshi/menudigital/internal/handler"
	"github.com/hitoshi/menudigital/internal/logger"
	"github.com/hitoshi/menudigital/internal/menu"
	"github.com/hitoshi/menudigital/internal/metrics"
	"github.com/hitoshi/menudigital/internal/middleware"
	"github.com/hitoshi/menudigital/internal/payment"
	"github.com/hitoshi/menudigital/internal/repository"
	"github.com/hitoshi/menudigital/internal/security"
	"github.com/hitoshi/menudigital/internal/subscription"
	"github.com/hitoshi/menudigital/internal/tenant"
	"github.com/hitoshi/menudigital/internal/worker/expiry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .env と環境変数から設定を読み込む
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
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
		slog.String("port", cfg.ServerPort),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildRouter は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 戻り値のcleanupはサーバー停止後に呼び出すこと。
func buildRouter(cfg *config.Config, db *sql.DB) (http.Handler, func(), error) {
	log := slog.Default()

	// 1. メトリクス
	registry, collector := newMetricsRegistry()

	// 2. リポジトリ
	tenantRepo := repository.NewPostgresTenantRepo(db)
	dishRepo := repository.NewPostgresDishRepo(db)

	// 3. 認証
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	// 4. 購読状態機械とアクセス制御ゲート
	machine := subscription.NewMachine(tenantRepo, subscription.MachineConfig{
		TrialPeriod: cfg.TrialPeriod,
		Metrics:     collector,
		Logger:      log,
	})
	gate := access.NewGate(tokens, tenantRepo, machine, access.GateConfig{
		Metrics: collector,
		Logger:  log,
	})

	// 5. ドメインサービス
	sanitizer := security.NewTextSanitizer()
	tenantService := tenant.NewService(tenantRepo, hasher, tokens, machine, sanitizer, tenant.ServiceConfig{
		Logger: log,
	})
	menuService := menu.NewService(dishRepo, tenantRepo, sanitizer, nil)

	// 6. 決済照合
	gateway := payment.NewKkiapayClient(payment.KkiapayConfig{
		BaseURL: cfg.PaymentGatewayURL,
		APIKey:  cfg.PaymentGatewayAPIKey,
		Timeout: cfg.PaymentGatewayTimeout,
	}, log)
	reconciler := payment.NewReconciler(tenantRepo, gateway, machine, payment.ReconcilerConfig{
		Timeout: cfg.PaymentReconcileTimeout,
		Metrics: collector,
		Logger:  log,
	})

	// 7. ルーター
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(
		cfg.RateLimitGeneral, cfg.RateLimitAuth, cfg.RateLimitPayment,
	))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Metrics:           collector,
		Gate:              gate,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService:    tenantService,
		ProfileService: tenantService,

		DishService: menuService,
		MenuService: menuService,

		PaymentReconciler: reconciler,
	})

	return router, limiter.Stop, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	router, cleanup, err := buildRouter(cfg, db)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PaymentReconcileTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// newMetricsRegistry はGo/プロセスのコレクターを登録したレジストリと
// アプリケーションのCollectorを生成する。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, metrics.NewCollector(registry)
}

// buildWorker は期限切れスイープとワーカーのメトリクスハンドラーを構築する。
func buildWorker(cfg *config.Config, db *sql.DB) (*expiry.Sweeper, http.Handler) {
	registry, collector := newMetricsRegistry()

	tenantRepo := repository.NewPostgresTenantRepo(db)
	machine := subscription.NewMachine(tenantRepo, subscription.MachineConfig{
		TrialPeriod: cfg.TrialPeriod,
		Metrics:     collector,
		Logger:      slog.Default(),
	})
	sweeper := expiry.NewSweeper(tenantRepo, machine, expiry.Config{
		BatchSize: cfg.ExpirySweepBatch,
		Logger:    slog.Default(),
	})

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	return sweeper, r
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れスイープをctxがキャンセルされるまで実行する。
// メトリクスはWorkerMetricsPortで公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	sweeper, metricsHandler := buildWorker(cfg, db)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	// スイープをメインgoroutineで実行（ブロッキング）
	sweeper.Start(ctx, cfg.ExpirySweepInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
