package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/techmannih/helper-sub007/internal/config"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/domain/response"
	"github.com/techmannih/helper-sub007/internal/domain/retrieval"
	"github.com/techmannih/helper-sub007/internal/domain/retry"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database"
	"github.com/techmannih/helper-sub007/internal/infrastructure/embedding"
	"github.com/techmannih/helper-sub007/internal/infrastructure/llmprovider"
	"github.com/techmannih/helper-sub007/internal/infrastructure/logger"
	"github.com/techmannih/helper-sub007/internal/infrastructure/observability"
	"github.com/techmannih/helper-sub007/internal/infrastructure/queue"
	"github.com/techmannih/helper-sub007/internal/infrastructure/realtime"
	conversationrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/conversation"
	embeddingcacherepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/embeddingcache"
	escalationrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/escalation"
	fanoutrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/fanout"
	knowledgerepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/knowledge"
	toolrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/tool"
	"github.com/techmannih/helper-sub007/internal/infrastructure/toolclient"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver/handlers"
	"github.com/techmannih/helper-sub007/internal/worker"
)

// Application bundles the long-running pieces of the engine.
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

// NewApplication constructs the application.
func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

// Start runs the HTTP server until the context is cancelled.
func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	conversationRepository := conversationrepo.NewRepository(db)
	messageRepository := conversationrepo.NewMessageRepository(db)
	escalationRepository := escalationrepo.NewRepository(db)
	knowledgeRepository := knowledgerepo.NewRepository(db)
	toolRegistry := toolrepo.NewRepository(db)
	fanoutRepository := fanoutrepo.NewRepository(db)
	cacheStore := embeddingcacherepo.NewRepository(db)

	llmClient := llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.ModelTimeout)
	embeddingClient := embedding.NewClient(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.ModelTimeout)
	embeddingCache, err := embedding.NewCache(cacheStore, cfg.EmbeddingModel, cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize embedding cache")
	}
	embedder := embedding.NewGenerator(embeddingClient, embeddingCache)

	assembler := retrieval.NewAssembler(
		embedder,
		knowledgeRepository,
		conversationRepository,
		retrieval.Config{
			SimilarityThreshold: cfg.SimilarityThreshold,
			MaxMatches:          cfg.MaxContextMatches,
			TokenBudget:         cfg.PromptTokenBudget,
		},
		log,
	)

	detector := escalation.NewDetector(escalationRepository, conversationRepository, log)
	fanoutService := fanout.NewService(
		fanoutRepository,
		messageRepository,
		fanout.Config{SummaryMessageThreshold: cfg.SummaryMessageThreshold},
		log,
	)
	toolExecutor := toolclient.NewClient(cfg.ToolTimeout, toolclient.DefaultCircuitBreakerConfig(), log)

	responseService := response.NewService(
		conversationRepository,
		messageRepository,
		toolRegistry,
		toolExecutor,
		detector,
		assembler,
		fanoutService,
		llmClient,
		response.Config{
			Model:             cfg.ChatModel,
			MaxToolIterations: cfg.MaxToolIterations,
			RetryPolicy:       retry.DefaultPolicy(),
		},
		log,
	)

	publisher := realtime.NewPublisher(cfg.RealtimeURL, cfg.RealtimeToken, log)
	jobQueue := queue.NewPostgresQueue(db, log)
	jobExecutor := worker.NewJobExecutor(
		conversationRepository,
		messageRepository,
		llmClient,
		embedder,
		publisher,
		cfg.ChatModel,
		log,
	)
	workerPool := worker.NewPool(
		jobQueue,
		jobExecutor,
		worker.Config{
			WorkerCount: cfg.WorkerCount,
			JobTimeout:  cfg.JobTimeout,
		},
		log,
	)

	if err := workerPool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start worker pool")
	}
	defer workerPool.Stop()

	handlerProvider := handlers.NewProvider(
		conversationRepository,
		messageRepository,
		responseService,
		detector,
		fanoutService,
		log,
	)
	httpServer := httpserver.New(cfg, log, handlerProvider)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
