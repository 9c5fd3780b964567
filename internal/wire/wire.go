// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"

	"compligen-api/internal/application/evidence"
	"compligen-api/internal/application/generation"
	"compligen-api/internal/application/validation"
	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/collector"
	"compligen-api/internal/infrastructure/embedding"
	"compligen-api/internal/infrastructure/llm"
	"compligen-api/internal/infrastructure/messaging"
	"compligen-api/internal/infrastructure/persistence/milvus"
	"compligen-api/internal/infrastructure/persistence/postgres"
	"compligen-api/internal/infrastructure/persistence/redis"
	"compligen-api/internal/infrastructure/websearch"
	"compligen-api/internal/interfaces/http/handler"
	"compligen-api/internal/interfaces/http/router"
	"compligen-api/pkg/logger"
)

// App 聚合 API 服务的全部运行时依赖
type App struct {
	Router *router.Router

	PgClient     *postgres.Client
	RedisClient  *redis.Client
	MilvusClient *milvus.Client

	cleanups []func()
}

// Close 按创建的逆序释放资源
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// InitializeApp 初始化整个应用（带路由器）。
// Milvus 与 Embedding 不可达时不阻塞启动，向量检索阶段
// 会失败并回退到关键词检索。
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}
	app.PgClient = pgClient
	app.cleanups = append(app.cleanups, func() { _ = pgClient.Close() })

	if err := postgres.Migrate(pgClient.DB()); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}
	app.RedisClient = redisClient
	app.cleanups = append(app.cleanups, func() { _ = redisClient.Close() })

	cache := redis.NewCache(redisClient)
	producer := newProducer(redisClient, cfg)

	draftRepo := postgres.NewDraftRepository(pgClient)
	auditRepo := postgres.NewAuditRepository(pgClient)
	docRepo := postgres.NewDocumentRepository(pgClient)

	index := newIndexSearcher(ctx, cfg, app)

	verifier := evidence.NewVerifier(&cfg.Verifier, cache)
	collectorClient := collector.NewClient(&cfg.Collector)
	webClient := websearch.NewClient(&cfg.WebSearch)
	resolver := evidence.NewResolver(
		&cfg.Retrieval,
		index,
		docRepo,
		verifier,
		collectorClient,
		webClient,
		producer,
	)

	factory := llm.NewEinoFactory(cfg)
	attempter := generation.NewAttempter(factory, &cfg.Generation)
	rewriter := generation.NewRewriter(factory, &cfg.Generation)
	swarm := validation.NewSwarm(factory, &cfg.Validation)

	orchestrator := generation.NewOrchestrator(
		cfg,
		factory,
		resolver,
		attempter,
		rewriter,
		swarm,
		draftRepo,
		auditRepo,
		producer,
	)

	checks := map[string]handler.HealthChecker{
		"postgres": pgClient,
		"redis":    redisClient,
	}
	if app.MilvusClient != nil {
		checks["milvus"] = app.MilvusClient
	}

	app.Router = router.New(cfg, &router.Handlers{
		Generation: handler.NewGenerationHandler(orchestrator),
		Draft:      handler.NewDraftHandler(draftRepo, auditRepo),
		Health:     handler.NewHealthHandler(checks),
	}, redisClient.Redis())

	return app, nil
}

// Worker 聚合采集消费者进程的依赖
type Worker struct {
	Consumer  *messaging.Consumer
	Collector *collector.Client
	Documents *postgres.DocumentRepository
	Index     *IndexWriter

	cleanups []func()
}

// Close 按创建的逆序释放资源
func (w *Worker) Close() {
	for i := len(w.cleanups) - 1; i >= 0; i-- {
		w.cleanups[i]()
	}
}

// IndexWriter 可选的向量索引写入端（Milvus 不可用时为 nil 字段）
type IndexWriter struct {
	Embedder *embedding.Service
	Repo     *milvus.Repository
}

// InitializeWorker 初始化采集消费者进程
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, error) {
	w := &Worker{}

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}
	w.cleanups = append(w.cleanups, func() { _ = pgClient.Close() })

	if err := postgres.Migrate(pgClient.DB()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}
	w.cleanups = append(w.cleanups, func() { _ = redisClient.Close() })

	stream := cfg.Messaging.RedisStream
	w.Consumer = messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  stream.BlockTimeout,
		ClaimInterval: stream.ClaimInterval,
		RetryLimit:    stream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    stream.RetryBackoff.Initial,
			Max:        stream.RetryBackoff.Max,
			Multiplier: stream.RetryBackoff.Multiplier,
		},
	})
	w.Collector = collector.NewClient(&cfg.Collector)
	w.Documents = postgres.NewDocumentRepository(pgClient)

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, collected documents will not be indexed", "error", err.Error())
		return w, nil
	}
	w.cleanups = append(w.cleanups, func() { _ = milvusClient.Close() })

	repo := milvus.NewRepository(milvusClient)
	if err := repo.EnsureEvidenceCollection(ctx); err != nil {
		logger.Warn(ctx, "milvus collection not ready, collected documents will not be indexed", "error", err.Error())
		return w, nil
	}

	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, collected documents will not be indexed", "error", err.Error())
		return w, nil
	}
	w.Index = &IndexWriter{
		Embedder: embedding.NewService(embedder),
		Repo:     repo,
	}
	return w, nil
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func newProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// newIndexSearcher 构建向量检索端。Milvus 或 Embedding 任一不可用时
// 返回禁用实现，检索链走关键词回退。
func newIndexSearcher(ctx context.Context, cfg *config.Config, app *App) evidence.IndexSearcher {
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector retrieval disabled", "error", err.Error())
		return disabledIndexSearcher{}
	}
	app.MilvusClient = milvusClient
	app.cleanups = append(app.cleanups, func() { _ = milvusClient.Close() })

	repo := milvus.NewRepository(milvusClient)
	if err := repo.EnsureEvidenceCollection(ctx); err != nil {
		logger.Warn(ctx, "milvus collection not ready, vector retrieval disabled", "error", err.Error())
		return disabledIndexSearcher{}
	}

	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector retrieval disabled", "error", err.Error())
		return disabledIndexSearcher{}
	}
	return evidence.NewMilvusIndexSearcher(embedding.NewService(embedder), repo)
}

type disabledIndexSearcher struct{}

func (disabledIndexSearcher) Search(context.Context, string, string, int) ([]*entity.EvidenceChunk, error) {
	return nil, fmt.Errorf("vector index disabled")
}
