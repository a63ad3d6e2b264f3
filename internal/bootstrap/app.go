package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docrag/internal/ai"
	"docrag/internal/app"
	"docrag/internal/cache"
	"docrag/internal/config"
	"docrag/internal/extract"
	"docrag/internal/inbox"
	"docrag/internal/metadata"
	"docrag/internal/model"
	mysqlClient "docrag/internal/platform/mysql"
	rabbitmqClient "docrag/internal/platform/rabbitmq"
	redisClient "docrag/internal/platform/redis"
	sqliteClient "docrag/internal/platform/sqlite"
	"docrag/internal/rag"
	"docrag/internal/repository"
	"docrag/internal/worker"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Auth        *app.AuthService
	Ingest      *app.IngestService
	Search      *app.SearchService
	Collections *app.CollectionService
	Monitor     *app.MonitorService
	Supervisor  *worker.Supervisor
	Health      *worker.HealthChecker
	Metrics     *repository.MetricRepository
	Embedder    rag.Embedder

	listener *worker.BrokerListener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	StartedAt time.Time
}

// New connects the stores and wires the services. Background loops are
// started separately with StartBackground.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg.Database, cfg.MySQLDSN())
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.AutoMigrate(model.AutoMigrateModels()...); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	var (
		searchCache  app.SearchCache
		historyCache app.HistoryCache
	)
	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = redisCli
		searchCache = cache.NewSearchCache(redisCli, time.Duration(cfg.Redis.SearchCacheTTL)*time.Second)
		historyCache = cache.NewHistoryCache(redisCli, time.Duration(cfg.Redis.HistoryCacheTTL)*time.Second)
	}

	var notifier app.JobNotifier
	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
		notifier = rabbitmqClient.NewJobNotifier(mqConn, cfg.RabbitMQ.JobQueue)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	a.Embedder = embedder

	var lookup app.MetadataLookup
	if cfg.Metadata.Enabled {
		lookup = metadata.NewCrossrefClient(metadata.CrossrefOptions{
			BaseURL:       cfg.Metadata.BaseURL,
			Mailto:        cfg.Metadata.Mailto,
			RatePerSecond: cfg.Metadata.RatePerSecond,
			Timeout:       time.Duration(cfg.Metadata.TimeoutSeconds) * time.Second,
			MaxRetries:    cfg.Metadata.MaxRetries,
		})
	}

	var answers app.AnswerGenerator
	if cfg.LLM.Enabled() {
		answers = ai.NewAnswerGenerator(newLLMClient(cfg.LLM), ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		})
	}

	docRepo := repository.NewDocumentRepository(db)
	pageRepo := repository.NewWebpageRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	embRepo := repository.NewEmbeddingRepository(db)
	jobRepo := repository.NewJobRepository(db)
	userRepo := repository.NewUserRepository(db)
	collRepo := repository.NewCollectionRepository(db)
	historyRepo := repository.NewQueryHistoryRepository(db)
	a.Metrics = repository.NewMetricRepository(db)

	extractor := extract.NewExtractor(docRepo, pageRepo, extract.NewPageFetcher(30*time.Second), cfg.Storage.UploadDir)
	pipeline := app.NewPipeline(docRepo, pageRepo, chunkRepo, embRepo, extractor, lookup, embedder, app.PipelineOptions{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
	})

	a.Auth = app.NewAuthService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute, cfg.Auth.AllowRegister)
	a.Ingest = app.NewIngestService(docRepo, pageRepo, jobRepo, chunkRepo, embRepo, collRepo, notifier, searchCache, cfg.Storage.UploadDir)
	a.Search = app.NewSearchService(chunkRepo, embRepo, historyRepo, embedder, searchCache, historyCache, answers)
	a.Collections = app.NewCollectionService(collRepo)
	a.Monitor = app.NewMonitorService(jobRepo, chunkRepo, embRepo, a.Metrics)
	a.Supervisor = worker.NewSupervisor(jobRepo, pipeline, a.Search, worker.SupervisorOptions{
		PollInterval: cfg.Worker.PollInterval(),
		Heartbeat:    cfg.Worker.Heartbeat(),
		StaleAfter:   cfg.Worker.StaleAfter(),
	})
	a.Search.SetWorker(a.Supervisor)
	a.Health = worker.NewHealthChecker(jobRepo, chunkRepo, embRepo, a.Metrics, a.Supervisor, worker.HealthOptions{
		Interval:   cfg.Worker.HealthInterval(),
		Retention:  cfg.Worker.MetricsRetention(),
		StaleAfter: cfg.Worker.StaleAfter(),
	})

	slog.Info("application wired",
		"database", cfg.Database.Driver, "embedder", embedder.Name(),
		"redis", cfg.Redis.Enabled, "rabbitmq", cfg.RabbitMQ.Enabled,
		"metadata", cfg.Metadata.Enabled, "llm", cfg.LLM.Enabled())
	return nil
}

// StartBackground starts the ingestion worker, the health checker and, when
// configured, the broker listener and the inbox watcher.
func (a *App) StartBackground(ctx context.Context) error {
	if a.cancel != nil {
		return nil
	}
	bgCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Supervisor.Start(bgCtx); err != nil {
		return fmt.Errorf("start ingestion worker failed: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Health.Run(bgCtx)
	}()

	if a.MQConn != nil {
		a.listener = worker.NewBrokerListener(a.MQConn, a.Config.RabbitMQ.JobQueue, a.Supervisor)
		if err := a.listener.Start(bgCtx); err != nil {
			return fmt.Errorf("start broker listener failed: %w", err)
		}
	}

	if a.Config.Storage.InboxEnabled && a.Config.Storage.InboxDir != "" {
		watcher := inbox.NewWatcher(a.Config.Storage.InboxDir, a.Ingest, time.Second)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := watcher.Run(bgCtx); err != nil {
				slog.Error("inbox watcher stopped", "error", err)
			}
		}()
	}
	return nil
}

func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Supervisor != nil {
		a.Supervisor.Stop()
	}
	if a.listener != nil {
		a.listener.Close()
	}
	a.wg.Wait()

	var closeErr error
	if a.Redis != nil {
		closeErr = errors.Join(closeErr, a.Redis.Close())
	}
	if a.MQConn != nil {
		closeErr = errors.Join(closeErr, a.MQConn.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			closeErr = errors.Join(closeErr, sqlDB.Close())
		}
	}
	return closeErr
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, mysqlDSN string) (*gorm.DB, error) {
	switch cfg.Driver {
	case "mysql":
		return mysqlClient.New(ctx, mysqlDSN)
	default:
		return sqliteClient.New(ctx, cfg.SQLite)
	}
}

func newEmbedder(cfg *config.Config) (rag.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.LLM.BaseURL == "" || cfg.LLM.APIKey == "" {
			return nil, errors.New("openai embedding provider needs llm base_url and api_key")
		}
		return ai.NewRemoteEmbedder(newLLMClient(cfg.LLM), ai.EmbeddingConfig{
			BaseURL:   cfg.LLM.BaseURL,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
		}), nil
	default:
		embedder, err := rag.NewHashEmbedder(cfg.Embedding.Dimension, cfg.Embedding.BigramBuckets)
		if err != nil {
			return nil, fmt.Errorf("build hash embedder failed: %w", err)
		}
		return embedder, nil
	}
}

func newLLMClient(cfg config.LLMConfig) *ai.OpenAICompatibleClient {
	return ai.NewOpenAICompatibleClient(ai.ClientOptions{
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
	})
}
