//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/techmannih/helper-sub007/internal/config"
	"github.com/techmannih/helper-sub007/internal/domain/conversation"
	"github.com/techmannih/helper-sub007/internal/domain/escalation"
	"github.com/techmannih/helper-sub007/internal/domain/fanout"
	"github.com/techmannih/helper-sub007/internal/domain/llm"
	responseDomain "github.com/techmannih/helper-sub007/internal/domain/response"
	"github.com/techmannih/helper-sub007/internal/domain/retrieval"
	"github.com/techmannih/helper-sub007/internal/domain/retry"
	"github.com/techmannih/helper-sub007/internal/domain/tool"
	"github.com/techmannih/helper-sub007/internal/infrastructure/database"
	"github.com/techmannih/helper-sub007/internal/infrastructure/embedding"
	"github.com/techmannih/helper-sub007/internal/infrastructure/llmprovider"
	"github.com/techmannih/helper-sub007/internal/infrastructure/logger"
	conversationrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/conversation"
	embeddingcacherepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/embeddingcache"
	escalationrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/escalation"
	fanoutrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/fanout"
	knowledgerepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/knowledge"
	toolrepo "github.com/techmannih/helper-sub007/internal/infrastructure/repository/tool"
	"github.com/techmannih/helper-sub007/internal/infrastructure/toolclient"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver"
	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver/handlers"
)

var engineSet = wire.NewSet(
	conversationrepo.NewRepository,
	wire.Bind(new(conversation.Repository), new(*conversationrepo.Repository)),
	wire.Bind(new(retrieval.ConversationSearcher), new(*conversationrepo.Repository)),
	conversationrepo.NewMessageRepository,
	wire.Bind(new(conversation.MessageRepository), new(*conversationrepo.MessageRepository)),
	escalationrepo.NewRepository,
	wire.Bind(new(escalation.EventRepository), new(*escalationrepo.Repository)),
	knowledgerepo.NewRepository,
	toolrepo.NewRepository,
	wire.Bind(new(tool.Registry), new(*toolrepo.Repository)),
	fanoutrepo.NewRepository,
	wire.Bind(new(fanout.JobRepository), new(*fanoutrepo.Repository)),
	embeddingcacherepo.NewRepository,
	wire.Bind(new(embedding.Store), new(*embeddingcacherepo.Repository)),
	newLLMProvider,
	wire.Bind(new(llm.Provider), new(*llmprovider.Client)),
	newEmbeddingClient,
	newEmbeddingCache,
	embedding.NewGenerator,
	wire.Bind(new(retrieval.Embedder), new(*embedding.Generator)),
	newAssembler,
	wire.Bind(new(responseDomain.ContextAssembler), new(*retrieval.Assembler)),
	escalation.NewDetector,
	wire.Bind(new(responseDomain.Escalator), new(*escalation.Detector)),
	newFanoutService,
	wire.Bind(new(responseDomain.FanoutService), new(*fanout.Service)),
	newToolClient,
	wire.Bind(new(tool.Executor), new(*toolclient.Client)),
	newResponseService,
	wire.Bind(new(responseDomain.Service), new(*responseDomain.ServiceImpl)),
	handlers.NewProvider,
)

// BuildApplication demonstrates how to assemble the engine with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		engineSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newLLMProvider(cfg *config.Config) *llmprovider.Client {
	return llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.ModelTimeout)
}

func newEmbeddingClient(cfg *config.Config) *embedding.Client {
	return embedding.NewClient(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.ModelTimeout)
}

func newEmbeddingCache(cfg *config.Config, store embedding.Store, log zerolog.Logger) (*embedding.Cache, error) {
	return embedding.NewCache(store, cfg.EmbeddingModel, cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL, log)
}

func newAssembler(
	cfg *config.Config,
	embedder retrieval.Embedder,
	knowledgeRepo *knowledgerepo.Repository,
	conversations retrieval.ConversationSearcher,
	log zerolog.Logger,
) *retrieval.Assembler {
	return retrieval.NewAssembler(
		embedder,
		knowledgeRepo,
		conversations,
		retrieval.Config{
			SimilarityThreshold: cfg.SimilarityThreshold,
			MaxMatches:          cfg.MaxContextMatches,
			TokenBudget:         cfg.PromptTokenBudget,
		},
		log,
	)
}

func newFanoutService(
	cfg *config.Config,
	jobs fanout.JobRepository,
	messages conversation.MessageRepository,
	log zerolog.Logger,
) *fanout.Service {
	return fanout.NewService(jobs, messages, fanout.Config{SummaryMessageThreshold: cfg.SummaryMessageThreshold}, log)
}

func newToolClient(cfg *config.Config, log zerolog.Logger) *toolclient.Client {
	return toolclient.NewClient(cfg.ToolTimeout, toolclient.DefaultCircuitBreakerConfig(), log)
}

func newResponseService(
	cfg *config.Config,
	conversations conversation.Repository,
	messages conversation.MessageRepository,
	registry tool.Registry,
	executor tool.Executor,
	escalator responseDomain.Escalator,
	assembler responseDomain.ContextAssembler,
	fanoutService responseDomain.FanoutService,
	provider llm.Provider,
	log zerolog.Logger,
) *responseDomain.ServiceImpl {
	return responseDomain.NewService(
		conversations,
		messages,
		registry,
		executor,
		escalator,
		assembler,
		fanoutService,
		provider,
		responseDomain.Config{
			Model:             cfg.ChatModel,
			MaxToolIterations: cfg.MaxToolIterations,
			RetryPolicy:       retry.DefaultPolicy(),
		},
		log,
	)
}
