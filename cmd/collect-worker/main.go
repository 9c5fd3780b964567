// Package main 文档采集消费者入口（collect-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/collector"
	"compligen-api/internal/infrastructure/messaging"
	milvusrepo "compligen-api/internal/infrastructure/persistence/milvus"
	"compligen-api/internal/wire"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
	"compligen-api/pkg/tracer"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// jobTimeout 单个采集任务的处理上限
const jobTimeout = 90 * time.Second

// chunkTextLimit 写入向量库的文本上限，对齐 schema 的 varchar 限制
const chunkTextLimit = 60000

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "collect-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	w, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer w.Close()

	w.Consumer.Handle(func(msgCtx context.Context, job *messaging.CollectJobMessage) error {
		return handleCollectJob(msgCtx, w, job)
	})

	if err := w.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go w.Consumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("collect-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("collect-worker shutting down")
	w.Consumer.Stop()
}

// handleCollectJob 执行一次关键词采集：采集 → 落库 → 可选写入向量索引。
// 采集服务未配置时任务直接完成，不进重试队列。
func handleCollectJob(ctx context.Context, w *wire.Worker, job *messaging.CollectJobMessage) error {
	log := logger.FromContext(ctx)

	if !w.Collector.Enabled() {
		log.Warn("collector service not configured, dropping collect job", "job_id", job.JobID)
		metrics.CollectJobsTotal.WithLabelValues("background", "skipped").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	resp, err := w.Collector.Collect(ctx, &collector.CollectRequest{
		Keyword:           job.Keyword,
		ReturnDocuments:   true,
		WaitForCompletion: true,
		MaxDocuments:      job.MaxDocuments,
	})
	if err != nil {
		metrics.CollectJobsTotal.WithLabelValues("background", "error").Inc()
		return fmt.Errorf("collect failed for keyword %q: %w", job.Keyword, err)
	}

	docs := make([]*entity.Document, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		if strings.TrimSpace(d.URL) == "" || strings.TrimSpace(d.Content) == "" {
			continue
		}
		doc := &entity.Document{
			ID:      uuid.NewString(),
			Title:   d.Title,
			URL:     d.URL,
			Content: d.Content,
			Source:  d.Source,
			Scope:   entity.ScopePublic,
		}
		if ts := parsePublishedAt(d.PublishedAt); !ts.IsZero() {
			doc.PublishedAt = &ts
		}
		docs = append(docs, doc)
	}

	stored, err := w.Documents.UpsertBatch(ctx, docs)
	if err != nil {
		metrics.CollectJobsTotal.WithLabelValues("background", "error").Inc()
		return err
	}

	indexed := 0
	if w.Index != nil {
		indexed = indexDocuments(ctx, w, docs)
	}

	metrics.CollectJobsTotal.WithLabelValues("background", "ok").Inc()
	log.Info("collect job completed",
		"job_id", job.JobID,
		"keyword", job.Keyword,
		"collected", len(resp.Documents),
		"stored", stored,
		"indexed", indexed,
	)
	return nil
}

// indexDocuments 将采集文档向量化后写入证据索引。
// 单篇失败只记日志，不影响已落库的文档。
func indexDocuments(ctx context.Context, w *wire.Worker, docs []*entity.Document) int {
	chunks := make([]*milvusrepo.EvidenceChunk, 0, len(docs))
	for _, doc := range docs {
		text := doc.Content
		if len(text) > chunkTextLimit {
			text = text[:chunkTextLimit]
		}
		vector, err := w.Index.Embedder.EmbedQuery(ctx, text)
		if err != nil {
			logger.Warn(ctx, "failed to embed document, skipping index", "url", doc.URL, "error", err.Error())
			continue
		}
		chunk := &milvusrepo.EvidenceChunk{
			ID:          doc.ID,
			Vector:      vector,
			Scope:       string(entity.ScopePublic),
			Title:       doc.Title,
			URL:         doc.URL,
			Source:      doc.Source,
			TextContent: text,
		}
		if doc.PublishedAt != nil {
			chunk.PublishedAt = doc.PublishedAt.Unix()
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return 0
	}
	if err := w.Index.Repo.InsertChunks(ctx, chunks); err != nil {
		logger.Warn(ctx, "failed to index collected documents", "error", err.Error())
		return 0
	}
	return len(chunks)
}

// parsePublishedAt 解析采集服务返回的发布时间，支持 RFC3339 与日期两种格式
func parsePublishedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
