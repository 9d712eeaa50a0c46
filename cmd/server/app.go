package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/listings"
	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/repository"
	"marrfa-assistant/internal/service"
)

// app holds the wired components shared by the server and CLI commands
type app struct {
	repo      *repository.PostgresRepository
	openai    *service.OpenAIClient
	knowledge *service.KnowledgeStore
	router    *service.Router
	redis     *redis.Client
	usage     *repository.UsageLimiter
}

// buildApp wires every component from configuration. Queries are logged to
// PostgreSQL when it is enabled and logQueries is set.
func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics, logQueries bool) (*app, error) {
	a := &app{}

	repo, err := openRepository(cfg)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	if repo != nil {
		log.Info("connected to postgresql")
	}

	a.openai = service.NewOpenAIClient(&cfg.OpenAI, log)
	if a.openai.IsEnabled() {
		log.Info("openai client initialized",
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel),
			zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		)
	} else {
		log.Warn("openai is disabled, classification uses rules and company answers are extractive")
	}

	var loader service.ChunkLoader
	switch cfg.Knowledge.Source {
	case "postgres":
		if repo == nil {
			a.Close()
			return nil, fmt.Errorf("KNOWLEDGE_SOURCE=postgres requires PG_ENABLED")
		}
		loader = repo
	case "file":
		loader = service.FileChunkLoader{Path: cfg.Knowledge.File}
	}
	a.knowledge = service.NewKnowledgeStore(loader, cfg.Knowledge.Source, log)

	gazetteer := service.DefaultGazetteer()
	classifier := service.NewIntentClassifier(a.openai, service.DefaultIntentRules(gazetteer), cfg.Router.ClassifierTimeout, log, m)
	parser := service.NewFilterParser(gazetteer)
	search := service.NewPropertySearchCoordinator(listings.NewClient(&cfg.Listings, log), cfg.Listings, log, m)
	retrieval := service.NewRetrievalEngine(a.knowledge, a.openai, cfg.Knowledge, cfg.Router, log, m)

	var queryLog service.QueryLogger
	if repo != nil && logQueries {
		queryLog = repo
	}
	a.router = service.NewRouter(classifier, parser, search, retrieval, queryLog, cfg.Router, log, m)

	if cfg.Usage.Enabled {
		a.redis = repository.NewRedisClient(cfg.Redis)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// the limiter fails open, so a missing redis only disables limits
			log.Warn("redis unreachable, usage limits will not apply", zap.Error(err))
		}
		a.usage = repository.NewUsageLimiter(a.redis, cfg.Usage.AnonymousLimit, cfg.Usage.Window)
		log.Info("anonymous usage limit enabled",
			zap.Int("limit", cfg.Usage.AnonymousLimit),
			zap.Duration("window", cfg.Usage.Window),
		)
	}

	return a, nil
}

// Close releases database and redis connections
func (a *app) Close() {
	if a.repo != nil {
		_ = a.repo.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
