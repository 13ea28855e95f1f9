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
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/config"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/database"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/handler"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/logger"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/message"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/metrics"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/presence"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/repository"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/security"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/worker/cleanup"
	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/worker/sweep"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数を読み込み、LOG_LEVELを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINT/SIGTERMでキャンセルされるコンテキストを作り、RunContextに委譲する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はサブコマンドを解析し、対応するモードで起動する。
// ctxがキャンセルされるとサーバーとバックグラウンドジョブを停止して戻る。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5000"
		}
		return runHealthcheck(ctx, port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// chatStore は選択されたストアドライバーのリポジトリと疎通確認をまとめる。
type chatStore struct {
	participants repository.ParticipantRepository
	messages     repository.MessageRepository
	pinger       handler.Pinger
	close        func(ctx context.Context) error
}

// openStore はSTORE_DRIVERに応じてPostgreSQLまたはMongoDBに接続する。
func openStore(ctx context.Context, cfg *config.Config) (*chatStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoTimeout)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureMongoSchema(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to prepare mongo schema: %w", err)
		}
		slog.Info("mongo connection established", slog.String("database", cfg.MongoDatabase))
		return newMongoStore(client, db), nil
	default:
		db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return newPostgresStore(db), nil
	}
}

func newPostgresStore(db *sql.DB) *chatStore {
	return &chatStore{
		participants: repository.NewPostgresParticipantRepo(db),
		messages:     repository.NewPostgresMessageRepo(db),
		pinger:       db,
		close:        func(context.Context) error { return db.Close() },
	}
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *chatStore {
	return &chatStore{
		participants: repository.NewMongoParticipantRepo(client, db),
		messages:     repository.NewMongoMessageRepo(client, db),
		pinger:       database.MongoPinger{Client: client},
		close:        client.Disconnect,
	}
}

// newKeyLimiter はRATE_LIMIT_BACKENDに応じたレート制限の実装と後始末関数を返す。
func newKeyLimiter(ctx context.Context, cfg *config.Config) (middleware.KeyLimiter, func(), error) {
	if cfg.RateLimitBackend == config.RateLimitBackendRedis {
		client, err := database.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		limiter := middleware.NewRedisRateLimiter(client, cfg.RateLimitPerMinute, time.Minute)
		return limiter, func() { closeRedis(client) }, nil
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitPerMinute))
	return limiter, limiter.Stop, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn("failed to close redis client", slog.String("error", err.Error()))
	}
}

func closeStore(store *chatStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.close(ctx); err != nil {
		slog.Warn("failed to close store", slog.String("error", err.Error()))
	}
}

func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

func newSweeper(cfg *config.Config, store *chatStore, engine *presence.Engine, collector *metrics.Collector) *sweep.Sweeper {
	sweeper := sweep.NewSweeper(store.participants, engine, slog.Default(), sweep.Config{
		Interval:       cfg.SweepInterval,
		StaleThreshold: cfg.StaleThreshold,
		MaxConcurrency: cfg.SweepMaxConcurrent,
	})
	sweeper.SetRecorder(collector)
	return sweeper
}

// runServe はAPIサーバーモードで起動する。
// HTTPサーバーとスイーパーを同じerrgroupで動かし、どちらかが失敗するかctxがキャンセルされると
// グレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore(store)

	limiter, stopLimiter, err := newKeyLimiter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up rate limiter: %w", err)
	}
	defer stopLimiter()

	reg, collector := newMetricsRegistry()

	engine := presence.NewEngine(store.participants, collector)
	messageService := message.NewService(store.messages, collector)
	sweeper := newSweeper(cfg, store, engine, collector)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		StatusRecorder:    collector,

		PresenceService: engine,
		MessageService:  messageService,
		MarkupGuard:     security.NewMarkupGuard(),

		HealthChecker:  store.pinger,
		MetricsHandler: metrics.SetupMetricsRoute(reg),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// HTTPを受けずにスイーパーとメッセージ保持期間ジョブのみを動かす。
func runWorker(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore(store)

	_, collector := newMetricsRegistry()
	engine := presence.NewEngine(store.participants, collector)
	sweeper := newSweeper(cfg, store, engine, collector)
	cleanupJob := cleanup.NewCleanupJob(store.messages, slog.Default(), cfg.MessageRetentionDays)

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Duration("stale_threshold", cfg.StaleThreshold),
		slog.Int("retention_days", cfg.MessageRetentionDays),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(func() error {
		cleanupJob.Start(gctx, cfg.CleanupInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// MongoDBはスキーマ（インデックスとカウンター）をserve/worker起動時に用意するため対象外。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		slog.Info("migrations are only needed for postgres; skipping",
			slog.String("store_driver", cfg.StoreDriver),
		)
		return nil
	}

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
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/health", port), nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
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
