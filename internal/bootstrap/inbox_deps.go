package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"inbox_server/adapter/out/cache"
	"inbox_server/adapter/out/llm"
	"inbox_server/adapter/out/memory"
	"inbox_server/adapter/out/mongodb"
	"inbox_server/adapter/out/provider"
	"inbox_server/config"
	"inbox_server/core/port/out"
	"inbox_server/core/service/classify"
	"inbox_server/core/service/extract"
	"inbox_server/core/service/fetch"
	"inbox_server/core/service/ingest"
	"inbox_server/core/service/reconcile"
	"inbox_server/infra/database"
	pkgcache "inbox_server/pkg/cache"
	"inbox_server/pkg/logger"
	"inbox_server/pkg/metrics"
)

type Dependencies struct {
	Config  *config.Config
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Stores
	MailRepo      out.MailRepository
	TombstoneRepo out.TombstoneRepository
	SessionRepo   out.SessionRepository

	// External services
	GmailProvider *provider.GmailProvider
	LLMClassifier *llm.Classifier

	// Services
	Extractor   *extract.Extractor
	Fetcher     *fetch.Fetcher
	Classifier  *classify.Adapter
	Reconciler  *reconcile.Reconciler
	MailService *ingest.Service
	Timings     *metrics.Stages
}

// NewDependencies wires stores, providers and services from cfg. Without
// MONGODB_URL the stores live in memory; without REDIS_URL the classification
// cache does.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Timings: metrics.NewStages(metrics.DefaultWindow)}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// MongoDB
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})

		db := client.Database(cfg.MongoDBName)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.MongoDB = client
		deps.MailRepo = mongodb.NewMailAdapter(db)
		deps.TombstoneRepo = mongodb.NewTombstoneAdapter(db)
		deps.SessionRepo = mongodb.NewSessionAdapter(db)
		logger.Info("MongoDB connected: database=%s", cfg.MongoDBName)
	} else {
		deps.MailRepo = memory.NewMailStore()
		deps.TombstoneRepo = memory.NewTombstoneStore()
		deps.SessionRepo = memory.NewSessionStore()
		logger.Warn("MONGODB_URL not set, using in-memory stores")
	}

	// Redis
	var classificationCache out.ClassificationCache
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		deps.Redis = client
		classificationCache = cache.NewRedisClassificationCache(pkgcache.NewRedisCache(client))
		logger.Info("Redis connected")
	} else {
		classificationCache = cache.NewMemoryClassificationCache(cache.DefaultMaxItems)
	}

	// Gmail
	gmail, err := provider.NewGmailProvider(ctx, provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		TokenFile:    cfg.GoogleTokenFile,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.GmailProvider = gmail

	// OpenAI
	deps.LLMClassifier = llm.NewClassifier(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})
	cached := classify.NewCachedClassifier(deps.LLMClassifier, classificationCache, cfg.ClassifyCacheTTL)

	// Pipeline
	deps.Extractor = extract.NewExtractor(extract.WithMaxDepth(cfg.MimeMaxDepth))
	deps.Fetcher = fetch.NewFetcher(gmail, deps.Extractor,
		fetch.WithMaxResults(cfg.SyncMaxResults),
		fetch.WithConcurrency(cfg.SyncFetchConcurrency),
	)
	deps.Classifier = classify.NewAdapter(cached, classify.WithMaxChars(cfg.ClassifyMaxChars))
	deps.Reconciler = reconcile.NewReconciler(deps.MailRepo, deps.TombstoneRepo)
	deps.MailService = ingest.NewService(
		deps.Fetcher,
		deps.Classifier,
		deps.Reconciler,
		deps.MailRepo,
		deps.SessionRepo,
		gmail,
		ingest.WithClassifyErrorPolicy(classifyPolicy(cfg.IngestOnClassifyError)),
		ingest.WithTimings(deps.Timings),
	)

	return deps, cleanup, nil
}

func classifyPolicy(s string) ingest.ClassifyErrorPolicy {
	if s == config.ClassifyErrorAbort {
		return ingest.AbortOnClassifyError
	}
	return ingest.SkipOnClassifyError
}
