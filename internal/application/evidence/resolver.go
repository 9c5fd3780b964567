package evidence

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/domain/repository"
	"compligen-api/internal/infrastructure/collector"
	"compligen-api/internal/infrastructure/messaging"
	"compligen-api/internal/infrastructure/websearch"
	"compligen-api/pkg/errors"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
	"compligen-api/pkg/retry"
)

// CollectorClient 同步二次采集端口
type CollectorClient interface {
	Enabled() bool
	Collect(ctx context.Context, req *collector.CollectRequest) (*collector.CollectResponse, error)
}

// WebSearcher 互联网兜底搜索端口
type WebSearcher interface {
	Enabled() bool
	Search(ctx context.Context, query string) ([]*websearch.Result, error)
	FetchContent(ctx context.Context, pageURL string) string
}

// CollectJobPublisher 后台采集任务发布端口
type CollectJobPublisher interface {
	PublishCollectJob(ctx context.Context, job *messaging.CollectJobMessage) (string, error)
}

// Resolver 证据检索解析器：按模式驱动回退链，产出统一的 EvidenceSet
type Resolver struct {
	cfg       *config.RetrievalConfig
	index     IndexSearcher
	docs      repository.DocumentRepository
	verifier  *Verifier
	collector CollectorClient
	web       WebSearcher
	publisher CollectJobPublisher
}

// NewResolver 创建检索解析器。collector/web/publisher 均可为 nil，
// 对应的回退阶段会被跳过。
func NewResolver(
	cfg *config.RetrievalConfig,
	index IndexSearcher,
	docs repository.DocumentRepository,
	verifier *Verifier,
	collectorClient CollectorClient,
	web WebSearcher,
	publisher CollectJobPublisher,
) *Resolver {
	return &Resolver{
		cfg:       cfg,
		index:     index,
		docs:      docs,
		verifier:  verifier,
		collector: collectorClient,
		web:       web,
		publisher: publisher,
	}
}

// Resolve 执行完整的证据回退链。
// private 模式绝不回退到公共互联网：引用为空时整个请求以 no_sources 拒绝。
func (r *Resolver) Resolve(ctx context.Context, req *entity.GenerationRequest) (*entity.EvidenceSet, error) {
	ctx, span := tracer.Start(ctx, "evidence.Resolve",
		trace.WithAttributes(attribute.String("mode", string(req.Mode))))
	defer span.End()

	keyword := strings.TrimSpace(req.PrimaryKeyword)
	if keyword == "" {
		keyword = strings.TrimSpace(req.Topic)
	}

	var set *entity.EvidenceSet
	var err error
	switch req.Mode {
	case entity.ModePrivate:
		set, err = r.resolvePrivate(ctx, req, keyword)
	default:
		set, err = r.resolvePublic(ctx, req, keyword)
	}
	if err != nil {
		return nil, err
	}

	r.truncateContext(set)

	span.SetAttributes(
		attribute.Int("citations", len(set.Citations)),
		attribute.Bool("internet_fallback", set.InternetFallbackUsed),
	)
	metrics.RetrievalCitations.WithLabelValues(string(req.Mode)).Observe(float64(len(set.Citations)))
	return set, nil
}

// resolvePrivate 私有模式：向量检索 → 关键词回退 → 失败即拒绝
func (r *Resolver) resolvePrivate(ctx context.Context, req *entity.GenerationRequest, keyword string) (*entity.EvidenceSet, error) {
	log := logger.FromContext(ctx)
	set := &entity.EvidenceSet{}

	chunks, err := r.queryIndex(ctx, string(entity.ScopePrivate), keyword)
	if err != nil {
		log.Warn("private index query failed, falling back to keyword search", "error", err)
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "vector", "error").Inc()
	} else if len(chunks) > 0 {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "vector", "hit").Inc()
		r.applyChunks(set, chunks)
		if len(set.Citations) == 0 {
			// 私有文档往往没有外部 URL，以通用 SOP 引用占位
			set.Citations = append(set.Citations, entity.Citation{
				Title:  "Internal Standard Operating Procedures",
				Source: "SOP",
			})
		}
	} else {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "vector", "miss").Inc()
	}

	if len(set.Citations) == 0 {
		docs := r.keywordFallback(ctx, req.Mode, entity.ScopePrivate, keyword)
		for _, doc := range docs {
			set.RAGChunks = appendChunk(set.RAGChunks, doc.Content, doc.Title, doc.URL, doc.Source, r.cfg.MaxChunks)
			set.Context = joinContext(set.Context, doc.Content)
		}
		if len(docs) > 0 {
			set.Citations = append(set.Citations, entity.Citation{
				Title:  "Internal Standard Operating Procedures",
				Source: "SOP",
			})
		}
	}

	// 合规硬边界：私有模式无来源即拒绝，不降级生成
	if len(set.Citations) == 0 {
		return nil, errors.ErrNoSources
	}
	return set, nil
}

// resolvePublic general/news 模式：向量检索 → 验证 → 关键词回退 → 二次补采 → 互联网兜底
func (r *Resolver) resolvePublic(ctx context.Context, req *entity.GenerationRequest, keyword string) (*entity.EvidenceSet, error) {
	log := logger.FromContext(ctx)
	set := &entity.EvidenceSet{}

	chunks, err := r.queryIndex(ctx, string(entity.ScopePublic), keyword)
	if err != nil {
		log.Warn("public index query failed, falling back to keyword search", "error", err)
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "vector", "error").Inc()
	} else if len(chunks) > 0 {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "vector", "hit").Inc()
		r.applyChunks(set, chunks)
		r.verifyCitations(ctx, set)
	} else {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "vector", "miss").Inc()
	}

	if len(set.Citations) == 0 {
		docs := r.keywordFallback(ctx, req.Mode, entity.ScopePublic, keyword)
		for _, doc := range docs {
			set.RAGChunks = appendChunk(set.RAGChunks, doc.Content, doc.Title, doc.URL, doc.Source, r.cfg.MaxChunks)
			set.Context = joinContext(set.Context, doc.Content)
			r.addCitation(set, doc.Title, doc.URL, doc.Source)
		}
		r.verifyCitations(ctx, set)
	}

	// general 模式附带少量私有块作为补充上下文（不计入引用）
	if req.Mode == entity.ModeGeneral && r.cfg.SupplementaryPrivateChunks > 0 {
		r.mergeSupplementaryPrivate(ctx, set, keyword)
	}

	minCitations := r.cfg.MinCitationsBeforeBoost
	if minCitations <= 0 {
		minCitations = 3
	}
	if len(set.Citations) < minCitations {
		r.boost(ctx, req, set, keyword)
	}

	if len(set.Citations) == 0 {
		r.internetFallback(ctx, req, set, keyword)
	}

	return set, nil
}

// queryIndex 经重试网关查询向量索引
func (r *Resolver) queryIndex(ctx context.Context, scope, query string) ([]*entity.EvidenceChunk, error) {
	timeout := r.cfg.PublicTimeout
	if scope == string(entity.ScopePrivate) {
		timeout = r.cfg.PrivateTimeout
	}
	topK := r.cfg.TopK
	if topK <= 0 {
		topK = 8
	}

	return retry.Do(ctx, retry.Config{
		MaxAttempts:    r.cfg.Attempts,
		AttemptTimeout: timeout,
	}, func(ctx context.Context) ([]*entity.EvidenceChunk, error) {
		return r.index.Search(ctx, scope, query, topK)
	})
}

// applyChunks 将索引结果写入证据集：上下文、RAG 块与候选引用
func (r *Resolver) applyChunks(set *entity.EvidenceSet, chunks []*entity.EvidenceChunk) {
	for _, chunk := range chunks {
		set.RAGChunks = appendChunk(set.RAGChunks, chunk.Content,
			chunk.Metadata["title"], chunk.Metadata["url"], chunk.Metadata["source"], r.cfg.MaxChunks)
		set.Context = joinContext(set.Context, chunk.Content)
		if url := chunk.Metadata["url"]; url != "" {
			r.addCitation(set, chunk.Metadata["title"], url, chunk.Metadata["source"])
		}
	}
}

// verifyCitations 逐条探测引用 URL，剔除不可达来源。
// 从非空验证到清零时记录警告，帮助定位来源质量问题。
func (r *Resolver) verifyCitations(ctx context.Context, set *entity.EvidenceSet) {
	if len(set.Citations) == 0 {
		return
	}
	had := len(set.Citations)

	verified := set.Citations[:0]
	for _, citation := range set.Citations {
		if citation.URL == "" {
			verified = append(verified, citation)
			continue
		}
		finalURL, ok := r.verifier.Verify(ctx, citation.URL)
		if !ok {
			continue
		}
		citation.URL = finalURL
		verified = append(verified, citation)
	}
	set.Citations = verified

	if had > 0 && len(set.Citations) == 0 {
		set.Warnings = append(set.Warnings, "all retrieved source urls failed verification")
	}
}

// keywordFallback 关键词子串检索回退
func (r *Resolver) keywordFallback(ctx context.Context, mode entity.Mode, scope entity.DocumentScope, keyword string) []*entity.Document {
	limit := r.cfg.MaxChunks
	if limit <= 0 {
		limit = 8
	}
	docs, err := r.docs.SearchKeyword(ctx, scope, keyword, limit)
	if err != nil {
		logger.FromContext(ctx).Warn("keyword fallback search failed", "error", err, "scope", scope)
		metrics.RetrievalTotal.WithLabelValues(string(mode), "keyword", "error").Inc()
		return nil
	}
	if len(docs) > 0 {
		metrics.RetrievalTotal.WithLabelValues(string(mode), "keyword", "hit").Inc()
	} else {
		metrics.RetrievalTotal.WithLabelValues(string(mode), "keyword", "miss").Inc()
	}
	return docs
}

// mergeSupplementaryPrivate 为 general 模式合并私有补充块（仅上下文，不产生引用）
func (r *Resolver) mergeSupplementaryPrivate(ctx context.Context, set *entity.EvidenceSet, keyword string) {
	chunks, err := r.index.Search(ctx, string(entity.ScopePrivate), keyword, r.cfg.SupplementaryPrivateChunks)
	if err != nil {
		logger.FromContext(ctx).Debug("supplementary private retrieval failed", "error", err)
		return
	}
	for _, chunk := range chunks {
		set.Context = joinContext(set.Context, chunk.Content)
	}
}

// boost 引用不足时触发二次补采：
// 后台任务发布为 fire-and-forget，同步补采失败不阻断主链路。
func (r *Resolver) boost(ctx context.Context, req *entity.GenerationRequest, set *entity.EvidenceSet, keyword string) {
	log := logger.FromContext(ctx)

	r.publishCollectJob(ctx, req, keyword)

	if r.collector == nil || !r.collector.Enabled() {
		return
	}

	resp, err := r.collector.Collect(ctx, &collector.CollectRequest{
		Keyword:           keyword,
		ReturnDocuments:   true,
		WaitForCompletion: true,
	})
	if err != nil {
		log.Warn("secondary document collection failed", "error", err)
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "boost", "error").Inc()
		metrics.CollectJobsTotal.WithLabelValues("boost", "error").Inc()
		return
	}
	metrics.CollectJobsTotal.WithLabelValues("boost", "ok").Inc()

	candidates := make([]*candidateDocument, 0, len(resp.Documents)+len(set.Citations))
	seen := make(map[string]bool)
	for _, citation := range set.Citations {
		key := dedupeKey(citation.URL)
		if key != "" {
			seen[key] = true
		}
		candidates = append(candidates, &candidateDocument{
			Title:  citation.Title,
			URL:    citation.URL,
			Source: citation.Source,
		})
	}
	for _, doc := range resp.Documents {
		key := dedupeKey(doc.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, &candidateDocument{
			Title:   doc.Title,
			URL:     doc.URL,
			Source:  doc.Source,
			Content: doc.Content,
		})
	}

	ranked := rankCandidates(keyword, candidates, 5)

	set.Citations = set.Citations[:0]
	for _, c := range ranked {
		if c.Content != "" {
			set.Context = joinContext(set.Context, c.Content)
			set.RAGChunks = appendChunk(set.RAGChunks, c.Content, c.Title, c.URL, c.Source, r.cfg.MaxChunks)
		}
		r.addCitation(set, c.Title, c.URL, c.Source)
	}
	r.verifyCitations(ctx, set)

	if len(set.Citations) > 0 {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "boost", "hit").Inc()
	} else {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "boost", "miss").Inc()
	}
}

// publishCollectJob 发布后台采集任务，失败只记日志
func (r *Resolver) publishCollectJob(ctx context.Context, req *entity.GenerationRequest, keyword string) {
	if r.publisher == nil {
		return
	}
	jobID := collectJobID(keyword)
	_, err := r.publisher.PublishCollectJob(ctx, &messaging.CollectJobMessage{
		JobID:   jobID,
		UserID:  req.UserID,
		Keyword: keyword,
		Scope:   string(entity.ScopePublic),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("failed to publish collect job", "error", err, "job_id", jobID)
		metrics.CollectJobsTotal.WithLabelValues("background", "error").Inc()
		return
	}
	metrics.CollectJobsTotal.WithLabelValues("background", "ok").Inc()
}

// internetFallback 最后的公共网页搜索兜底。
// 兜底内容在上下文截断时优先保留，并强制输出来源披露。
func (r *Resolver) internetFallback(ctx context.Context, req *entity.GenerationRequest, set *entity.EvidenceSet, keyword string) {
	if r.web == nil || !r.web.Enabled() {
		return
	}
	log := logger.FromContext(ctx)

	results, err := r.web.Search(ctx, keyword)
	if err != nil {
		log.Warn("internet fallback search failed", "error", err)
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "internet", "error").Inc()
		return
	}

	var fallbackContext string
	for _, result := range results {
		finalURL, ok := r.verifier.Verify(ctx, result.URL)
		if !ok {
			continue
		}
		content := r.web.FetchContent(ctx, finalURL)
		if content == "" {
			content = result.Snippet
		}
		if content != "" {
			fallbackContext = joinContext(fallbackContext, content)
			set.RAGChunks = appendChunk(set.RAGChunks, content, result.Title, finalURL, "web", r.cfg.MaxChunks)
		}
		r.addCitation(set, result.Title, finalURL, "web")
	}

	if len(set.Citations) == 0 {
		metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "internet", "miss").Inc()
		return
	}

	set.InternetFallbackUsed = true
	// 兜底内容置前，截断时优先保留
	set.Context = joinContext(fallbackContext, set.Context)
	set.Warnings = append(set.Warnings, "sources gathered via internet fallback outside the approved domain set")
	metrics.RetrievalTotal.WithLabelValues(string(req.Mode), "internet", "hit").Inc()
	metrics.InternetFallbackTotal.WithLabelValues(string(req.Mode)).Inc()
}

// addCitation 按规范化 URL 去重追加引用
func (r *Resolver) addCitation(set *entity.EvidenceSet, title, url, source string) {
	maxCitations := r.cfg.MaxCitations
	if maxCitations <= 0 {
		maxCitations = 10
	}
	if len(set.Citations) >= maxCitations {
		return
	}
	key := dedupeKey(url)
	for _, existing := range set.Citations {
		if key != "" && dedupeKey(existing.URL) == key {
			return
		}
	}
	set.Citations = append(set.Citations, entity.Citation{
		Title:  strings.TrimSpace(title),
		URL:    strings.TrimSpace(url),
		Source: strings.TrimSpace(source),
	})
}

// truncateContext 上下文截断到配置上限。
// 截断点回退到 rune 边界，避免切出非法 UTF-8 喂给提示词。
func (r *Resolver) truncateContext(set *entity.EvidenceSet) {
	maxChars := r.cfg.MaxContextChars
	if maxChars <= 0 {
		maxChars = 8000
	}
	if len(set.Context) <= maxChars {
		return
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(set.Context[cut]) {
		cut--
	}
	set.Context = set.Context[:cut]
}

func appendChunk(chunks []entity.EvidenceChunk, content, title, url, source string, maxChunks int) []entity.EvidenceChunk {
	if maxChunks <= 0 {
		maxChunks = 8
	}
	if content == "" || len(chunks) >= maxChunks {
		return chunks
	}
	return append(chunks, entity.EvidenceChunk{
		Content: content,
		Metadata: map[string]string{
			"title":  title,
			"url":    url,
			"source": source,
		},
	})
}

func joinContext(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}

// dedupeKey 引用去重键：规范化 URL 的小写形式
func dedupeKey(url string) string {
	normalized := NormalizeURL(url)
	if normalized == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(normalized, "/"))
}

// collectJobID 同一关键词的后台采集任务共享 ID，便于幂等处理
func collectJobID(keyword string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(keyword))))
	return fmt.Sprintf("collect-%s", hex.EncodeToString(sum[:8]))
}
