// Package app はlibmanの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/libman/internal/author"
	"github.com/hitoshi/libman/internal/book"
	"github.com/hitoshi/libman/internal/category"
	"github.com/hitoshi/libman/internal/config"
	"github.com/hitoshi/libman/internal/database"
	"github.com/hitoshi/libman/internal/export"
	"github.com/hitoshi/libman/internal/handler"
	"github.com/hitoshi/libman/internal/loan"
	"github.com/hitoshi/libman/internal/logger"
	"github.com/hitoshi/libman/internal/metrics"
	"github.com/hitoshi/libman/internal/middleware"
	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/repository/memory"
	"github.com/hitoshi/libman/internal/security"
	"github.com/hitoshi/libman/internal/user"
	"github.com/hitoshi/libman/internal/worker/overdue"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定されたレベルのJSON構造化ロガーを生成する。
// ロガーはグローバルに設定せず、呼び出し元が各コンポーネントへ渡す。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.Setup(w, cfg.LogLevel), nil
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

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	case CommandExportLoans:
		return runExportLoans(cfg, log, commandArg(args, 0))
	case CommandImportLoans:
		return runImportLoans(cfg, log, commandArg(args, 0))
	case CommandExportBooks:
		return runExportBooks(cfg, log, commandArg(args, 0))
	default:
		return runServe(cfg, log)
	}
}

// openStore は設定されたストレージドライバのStoreを開く。
// 返されるclose関数はStoreの利用終了時に呼び出す。
func openStore(cfg *config.Config, log *slog.Logger) (repository.Store, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return repository.NewPostgresStore(db, log, cfg.TxMaxAttempts), func() { db.Close() }, nil
}

func loanPolicy(cfg *config.Config) loan.Policy {
	return loan.Policy{
		LoanPeriodDays: cfg.LoanPeriodDays,
		MaxActiveLoans: cfg.MaxActiveLoans,
		DailyFineRate:  cfg.DailyFineRate,
		MinimumAge:     cfg.MinimumAge,
	}
}

// newRouter はStoreと設定から全サービスを構築し、ルーターを返す。
func newRouter(cfg *config.Config, log *slog.Logger, store repository.Store, clock model.Clock, reg *prometheus.Registry) http.Handler {
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewTextSanitizer()
	repos := store.Repositories()

	bookService := book.NewService(store, sanitizer, clock, log)
	userService := user.NewService(repos.Users, cfg.MinimumAge, clock, log)
	authorService := author.NewService(repos.Authors, sanitizer, clock, log)
	categoryService := category.NewService(repos.Categories, sanitizer, clock, log)
	loanService := loan.NewService(store, loanPolicy(cfg), clock, collector, log)

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter: middleware.NewRateLimiter(
			middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLoanOps), log),
		Metrics:       collector,
		Gatherer:      reg,
		HealthChecker: store,
		Pages: handler.PageConfig{
			DefaultLimit: cfg.DefaultPageSize,
			MaxLimit:     cfg.MaxPageSize,
		},

		BookService:     handler.NewBookServiceAdapter(bookService),
		UserService:     handler.NewUserServiceAdapter(userService),
		AuthorService:   handler.NewAuthorServiceAdapter(authorService),
		CategoryService: handler.NewCategoryServiceAdapter(categoryService),
		LoanService:     handler.NewLoanServiceAdapter(loanService),
	})
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, log *slog.Logger) error {
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	router := newRouter(cfg, log, store, model.SystemClock(cfg.Location), prometheus.NewRegistry())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
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
	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 延滞集計ジョブを定期実行し、集計結果を/metricsで公開する。
func runWorker(cfg *config.Config, log *slog.Logger) error {
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	scanner := overdue.NewScanner(
		store.Repositories().Loans, cfg.DailyFineRate,
		model.SystemClock(cfg.Location), collector, log,
	)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 延滞集計をメインgoroutineで実行（ブロッキング）
	scanner.Start(ctx, cfg.OverdueScanInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runExportLoans は全貸出をpathのファイルへJSONで書き出す。
func runExportLoans(cfg *config.Config, log *slog.Logger, path string) error {
	if path == "" {
		return errors.New("usage: libman export-loans <file>")
	}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	transfer := export.NewLoanTransfer(store, model.SystemClock(cfg.Location), log)
	if _, err := transfer.Export(context.Background(), f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// runImportLoans はpathのファイルから貸出を取り込む。
func runImportLoans(cfg *config.Config, log *slog.Logger, path string) error {
	if path == "" {
		return errors.New("usage: libman import-loans <file>")
	}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	transfer := export.NewLoanTransfer(store, model.SystemClock(cfg.Location), log)
	_, err = transfer.Import(context.Background(), f)
	return err
}

// runExportBooks は全書籍をpathのファイルへCSVで書き出す。
func runExportBooks(cfg *config.Config, log *slog.Logger, path string) error {
	if path == "" {
		return errors.New("usage: libman export-books <file>")
	}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	exporter := export.NewBookExporter(store, log)
	if _, err := exporter.Export(context.Background(), f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
