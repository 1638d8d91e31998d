// Package app はコマンドライン起動処理と依存関係のワイヤリングを提供する。
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
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/securenotes/internal/auth"
	"github.com/hitoshi/securenotes/internal/config"
	"github.com/hitoshi/securenotes/internal/database"
	"github.com/hitoshi/securenotes/internal/handler"
	"github.com/hitoshi/securenotes/internal/logger"
	"github.com/hitoshi/securenotes/internal/metrics"
	"github.com/hitoshi/securenotes/internal/middleware"
	"github.com/hitoshi/securenotes/internal/note"
	"github.com/hitoshi/securenotes/internal/repository"
	"github.com/hitoshi/securenotes/internal/security"
	"github.com/hitoshi/securenotes/internal/user"
	"github.com/hitoshi/securenotes/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// openDB はDB接続を開く。テストではsqlmockに差し替える。
var openDB = database.Open

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, "info")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// connect はDB接続を開き、疎通を確認する。
func connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// services はserveと管理コマンドが共有するドメインサービス群。
type services struct {
	auth  *auth.Service
	notes *note.Service
	users *user.Service
}

func newServices(db *sql.DB, cfg *config.Config) *services {
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	noteRepo := repository.NewPostgresNoteRepo(db)

	return &services{
		auth: auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
			BcryptCost:    cfg.BcryptCost,
			SessionMaxAge: cfg.SessionMaxAge,
			IdleTimeout:   cfg.SessionIdleTimeout,
			Secret:        []byte(cfg.SessionSecret),
		}),
		notes: note.NewService(noteRepo),
		users: user.NewService(userRepo, noteRepo),
	}
}

// newRegistry はプロセス・Goランタイムのコレクターを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildRouter はHTTPルーターを構築する。
// 戻り値のRateLimiterはシャットダウン時に停止する。
func buildRouter(db *sql.DB, cfg *config.Config, svc *services, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	collector := metrics.NewCollector(reg)

	rateLimiterCfg := middleware.RateLimiterConfigPerMinute(cfg.RateLimitAuth, cfg.RateLimitGeneral)
	rateLimiterCfg.Metrics = collector
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		PrincipalResolver: svc.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			Metrics:      collector,
		},
		Metrics: collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		NoteService:  svc.notes,
		NoteRenderer: security.NewNoteRenderer(),

		AdminService: svc.users,
	}

	return handler.NewRouter(deps), rateLimiter
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	svc := newServices(db, cfg)
	router, rateLimiter := buildRouter(db, cfg, svc, newRegistry())
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return serveUntilDone(ctx, server, "API server")
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションのクリーンアップをcron式に従って実行し、
// /metricsでジョブのメトリクスを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	job := cleanup.NewSessionCleanupJob(db, slog.Default(), collector)
	job.IdleTimeout = cfg.SessionIdleTimeout
	scheduler := cleanup.NewScheduler(job, slog.Default())

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		err := serveUntilDone(ctx, metricsServer, "worker metrics server")
		if err != nil {
			// メトリクスサーバーが起動できない場合はワーカーも停止する
			cancel()
		}
		serverErr <- err
	}()

	slog.Info("worker starting",
		slog.String("schedule", cfg.SessionCleanupSchedule),
		slog.Duration("idle_timeout", cfg.SessionIdleTimeout),
	)

	if err := scheduler.Start(ctx, cfg.SessionCleanupSchedule); err != nil {
		cancel()
		<-serverErr
		return err
	}

	cancel()
	if err := <-serverErr; err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// serveUntilDone はサーバーを起動し、コンテキストのキャンセルでシャットダウンする。
// 起動に失敗した場合はそのエラーを返す。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	listenErr := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckPort はSERVER_PORTを読み取る。healthcheckは設定全体を読み込まない。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報とクエリを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	hasUser := u.User != nil
	u.User = nil
	u.RawQuery = ""

	masked := u.String()
	if hasUser {
		masked = strings.Replace(masked, "://", "://***@", 1)
	}
	return masked
}
