package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/joho/godotenv"
	"github.com/sandevgo/eqchat/internal/broker"
	"github.com/sandevgo/eqchat/internal/broker/kafka"
	"github.com/sandevgo/eqchat/internal/config"
	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/internal/index/chromem"
	"github.com/sandevgo/eqchat/internal/providers/embed"
	"github.com/sandevgo/eqchat/internal/providers/identity"
	"github.com/sandevgo/eqchat/internal/providers/llm"
	"github.com/sandevgo/eqchat/internal/providers/search"
	"github.com/sandevgo/eqchat/internal/service/agent"
	"github.com/sandevgo/eqchat/internal/service/memory"
	"github.com/sandevgo/eqchat/internal/storage/sqlite"
	"github.com/sandevgo/eqchat/internal/transport/httpapi"
	"github.com/sandevgo/eqchat/internal/worker/extract"
	"github.com/sandevgo/eqchat/internal/worker/ingest"
	"github.com/sandevgo/eqchat/pkg/log"
	"github.com/sandevgo/eqchat/pkg/srv"
)

// NewServeServices wires the full API process: storage, providers, the
// pipeline and the HTTP transport.
func NewServeServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	initEnv(ctx)

	appCfg := config.NewAppConfig(ctx)
	kafkaCfg := config.NewKafkaConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)
	embedCfg := config.NewEmbeddingConfig(ctx)
	searchCfg := config.NewSearchConfig(ctx)
	identityCfg := config.NewIdentityConfig(ctx)

	db, err := sqlite.NewDB(ctx, appCfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	conversations := sqlite.NewConversationRepo(db)
	facts := sqlite.NewFactRepo(db)
	toolLogs := sqlite.NewToolLogRepo(db)

	generator := llm.NewProvider(llm.Config{
		BaseURL: llmCfg.BaseURL,
		APIKey:  llmCfg.APIKey,
		Model:   llmCfg.Model,
	})
	embedder := embed.NewProvider(embed.Config{
		BaseURL: embedCfg.BaseURL,
		APIKey:  embedCfg.APIKey,
		Model:   embedCfg.Model,
	})

	var index core.VectorIndex
	if appCfg.EnableVector {
		idx, err := chromem.New(appCfg.VectorPersistPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize vector index")
		}
		index = idx
	}

	mem := memory.NewService(facts, embedder, generator, index)

	var searcher core.Searcher
	if searchCfg.APIKey != "" {
		searcher = search.NewClient(search.Config{
			BaseURL: searchCfg.BaseURL,
			APIKey:  searchCfg.APIKey,
		})
	}

	var identityProvider core.IdentityProvider
	if identityCfg.BaseURL != "" {
		identityProvider = identity.NewClient(identity.Config{BaseURL: identityCfg.BaseURL})
	}

	// The extraction branch is fixed at build time: with an event channel
	// facts are distilled out of process, otherwise inline.
	var producer broker.Producer
	var dispatcher agent.ExtractDispatcher
	if kafkaCfg.Enabled {
		p := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:    kafkaCfg.Brokers,
			Confirmed:  kafkaCfg.Confirmed,
			AckTimeout: kafkaCfg.AckTimeout,
		}, logger)
		services = append(services, srv.NewCleanup(p.Close))
		producer = p
		dispatcher = agent.NewAsyncDispatcher(p)
	} else {
		dispatcher = agent.NewSyncDispatcher(mem)
	}

	pipeline := agent.NewPipeline(agent.PipelineConfig{
		Store:        conversations,
		Memory:       mem,
		Searcher:     searcher,
		ToolLogs:     toolLogs,
		Dispatcher:   dispatcher,
		Generator:    generator,
		PromptBudget: appCfg.PromptTokenBudget,
	})

	ag := agent.NewAgent(conversations, pipeline, identityProvider)

	server := httpapi.NewServer(appCfg.HTTPAddr, ag, conversations, mem, toolLogs, producer)
	services = append(services, server)

	return services
}

// NewIngestWorkerServices wires the message.created consumer process.
func NewIngestWorkerServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	initEnv(ctx)

	appCfg := config.NewAppConfig(ctx)
	kafkaCfg := config.NewKafkaConfig(ctx)

	db, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     kafkaCfg.Brokers,
		GroupID:     kafkaCfg.IngestGroupID,
		Topic:       core.TopicChatMessages,
		PollTimeout: kafkaCfg.PollTimeout,
	})

	worker := ingest.NewWorker(consumer, sqlite.NewConversationRepo(db))
	services = append(services, worker)

	return services
}

// NewExtractWorkerServices wires the ltm-extract consumer process.
func NewExtractWorkerServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	initEnv(ctx)

	appCfg := config.NewAppConfig(ctx)
	kafkaCfg := config.NewKafkaConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)
	embedCfg := config.NewEmbeddingConfig(ctx)

	db, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	generator := llm.NewProvider(llm.Config{
		BaseURL: llmCfg.BaseURL,
		APIKey:  llmCfg.APIKey,
		Model:   llmCfg.Model,
	})
	embedder := embed.NewProvider(embed.Config{
		BaseURL: embedCfg.BaseURL,
		APIKey:  embedCfg.APIKey,
		Model:   embedCfg.Model,
	})

	var index core.VectorIndex
	if appCfg.EnableVector {
		idx, err := chromem.New(appCfg.VectorPersistPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize vector index")
		}
		index = idx
	}

	mem := memory.NewService(sqlite.NewFactRepo(db), embedder, generator, index)

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     kafkaCfg.Brokers,
		GroupID:     kafkaCfg.ExtractGroupID,
		Topic:       core.TopicExtract,
		PollTimeout: kafkaCfg.PollTimeout,
	})

	worker := extract.NewWorker(consumer, mem)
	services = append(services, worker)

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	return sqlite.NewDB(ctx, cfg.DBPath)
}

func initEnv(ctx context.Context) {
	logger := log.FromCtx(ctx)

	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env file")
		return
	}
	logger.Debug().Msg("loaded .env file")
}
