package generation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/application/evidence"
	"compligen-api/internal/application/validation"
	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/domain/repository"
	"compligen-api/internal/infrastructure/llm"
	"compligen-api/internal/infrastructure/messaging"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
)

// AuditLogPublisher 生成事件审计流发布端口
type AuditLogPublisher interface {
	PublishAuditLog(ctx context.Context, log *messaging.AuditLogMessage) (string, error)
}

// Orchestrator 串联检索、生成、改写、校验与裁决的完整流水线。
// 单请求内无共享可变状态，所有中间对象仅存活一个请求周期。
type Orchestrator struct {
	cfg      *config.Config
	factory  *llm.EinoFactory
	resolver *evidence.Resolver
	composer *Composer
	attempt  *Attempter
	rewriter *Rewriter
	swarm    *validation.Swarm
	drafts   repository.DraftRepository
	audits   repository.AuditRepository
	auditlog AuditLogPublisher
}

// NewOrchestrator 创建编排器。auditlog 可为 nil，此时不发布审计事件。
func NewOrchestrator(
	cfg *config.Config,
	factory *llm.EinoFactory,
	resolver *evidence.Resolver,
	attempter *Attempter,
	rewriter *Rewriter,
	swarm *validation.Swarm,
	drafts repository.DraftRepository,
	audits repository.AuditRepository,
	auditlog AuditLogPublisher,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		factory:  factory,
		resolver: resolver,
		composer: NewComposer(),
		attempt:  attempter,
		rewriter: rewriter,
		swarm:    swarm,
		drafts:   drafts,
		audits:   audits,
		auditlog: auditlog,
	}
}

// Run 处理一次生成请求。
// 凭证缺失在任何外部调用前快速失败；私有模式零来源直接拒绝。
func (o *Orchestrator) Run(ctx context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error) {
	start := time.Now()
	budget := o.cfg.Generation.Budget
	if budget <= 0 {
		budget = 85 * time.Second
	}
	deadline := start.Add(budget)

	ctx, span := tracer.Start(ctx, "generation.Run",
		trace.WithAttributes(
			attribute.String("mode", string(req.Mode)),
			attribute.String("content_type", string(req.ContentType)),
		))
	defer span.End()

	log := logger.FromContext(ctx)

	if err := o.factory.CheckCredentials(); err != nil {
		metrics.GenerationTotal.WithLabelValues(string(req.Mode), "config_error").Inc()
		return nil, err
	}

	o.clampWordCount(req)

	// 1. 证据回退链
	evidenceSet, err := o.resolver.Resolve(ctx, req)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues(string(req.Mode), "no_sources").Inc()
		return nil, err
	}

	// 2. 提示词组装，3. 多候选生成
	prompts := o.composer.Compose(req, evidenceSet)
	attemptResult, err := o.attempt.Generate(ctx, req, prompts)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues(string(req.Mode), "generation_failed").Inc()
		return nil, err
	}

	body := applyCanonicalSources(attemptResult.Body, evidenceSet.Citations, evidenceSet.InternetFallbackUsed)

	// 4. 可选改写；改写后重新整编来源段
	humanized := false
	if o.rewriter.ShouldRewrite(req, time.Until(deadline)) {
		body, humanized = o.rewriter.Rewrite(ctx, req, body, deadline)
		body = applyCanonicalSources(body, evidenceSet.Citations, evidenceSet.InternetFallbackUsed)
	}

	// 5. 校验蜂群 + 信任分
	trustScore, agentResults, validationSkipped := o.swarm.Run(ctx, req, evidenceSet, body, deadline)

	// 6. 裁决
	decision := validation.Decide(trustScore, o.cfg.Validation.TrustThreshold, agentResults)

	result := &entity.GenerationResult{
		ID:               uuid.NewString(),
		Citations:        evidenceSet.Citations,
		TrustScore:       trustScore,
		Warnings:         evidenceSet.Warnings,
		Blocked:          decision.Blocked,
		Status:           decision.Status,
		Humanized:        humanized,
		InternetFallback: evidenceSet.InternetFallbackUsed,
		CreatedAt:        time.Now().UTC(),
		RunMetrics: entity.RunMetrics{
			ElapsedMs:        time.Since(start).Milliseconds(),
			ModelUsed:        attemptResult.Model,
			GenerateAttempts: attemptResult.Attempts,
			PromptTokens:     attemptResult.PromptTokens,
			CompletionTokens: attemptResult.CompletionTokens,
			CostUSD:          attemptResult.CostUSD,
			ValidationRan:    !validationSkipped,
		},
	}
	result.ValidationResults = make(map[string]*entity.AgentResult, len(agentResults))
	for kind, agentResult := range agentResults {
		result.ValidationResults[string(kind)] = agentResult
	}

	// 拦截时正文只进 review_body，终端用户见不到未校验内容
	if decision.Blocked {
		result.ReviewBody = body
		metrics.GenerationBlocked.WithLabelValues(string(req.Mode)).Inc()
	} else {
		result.Body = body
	}

	// 7. 落库尽力而为：失败只损失可观测性，不影响返回结果
	o.persist(ctx, req, result, body, agentResults)

	metrics.GenerationTotal.WithLabelValues(string(req.Mode), "ok").Inc()
	metrics.GenerationDuration.WithLabelValues(string(req.Mode)).Observe(time.Since(start).Seconds())
	metrics.TrustScore.WithLabelValues(string(req.Mode)).Observe(float64(trustScore))

	log.Info("generation completed",
		"draft_id", result.ID,
		"trust_score", trustScore,
		"blocked", decision.Blocked,
		"status", decision.Status,
		"elapsed_ms", result.RunMetrics.ElapsedMs,
	)
	span.SetAttributes(
		attribute.Int("trust_score", trustScore),
		attribute.Bool("blocked", decision.Blocked),
	)
	return result, nil
}

// persist 草稿与审计行落库，各自独立限时
func (o *Orchestrator) persist(
	ctx context.Context,
	req *entity.GenerationRequest,
	result *entity.GenerationResult,
	fullBody string,
	agentResults map[entity.AgentKind]*entity.AgentResult,
) {
	log := logger.FromContext(ctx)

	timeout := o.cfg.Generation.PersistTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	citationsJSON, _ := json.Marshal(result.Citations)
	draft := &entity.Draft{
		ID:               result.ID,
		UserID:           req.UserID,
		Topic:            req.Topic,
		Mode:             req.Mode,
		ContentType:      req.ContentType,
		Body:             fullBody,
		CitationsJSON:    string(citationsJSON),
		TrustScore:       result.TrustScore,
		Status:           result.Status,
		RequiresReview:   result.Status == entity.ResultStatusReview,
		Humanized:        result.Humanized,
		InternetFallback: result.InternetFallback,
		ModelUsed:        result.RunMetrics.ModelUsed,
		PromptTokens:     result.RunMetrics.PromptTokens,
		CompletionTokens: result.RunMetrics.CompletionTokens,
		CostUSD:          result.RunMetrics.CostUSD,
		CreatedAt:        result.CreatedAt,
	}

	draftCtx, cancel := context.WithTimeout(ctx, timeout)
	if err := o.drafts.Create(draftCtx, draft); err != nil {
		log.Error("failed to persist draft", "error", err, "draft_id", draft.ID)
	}
	cancel()

	o.publishAuditEvent(ctx, req, result, timeout)

	audits := make([]*entity.ValidationAudit, 0, len(entity.AgentKinds))
	for _, kind := range entity.AgentKinds {
		agentResult := agentResults[kind]
		if agentResult == nil {
			continue
		}
		issuesJSON, _ := json.Marshal(agentResult.Issues)
		audits = append(audits, &entity.ValidationAudit{
			ID:         uuid.NewString(),
			DraftID:    draft.ID,
			Agent:      kind,
			Status:     agentResult.Status,
			IssuesJSON: string(issuesJSON),
			Confidence: agentResult.Confidence,
			Applicable: agentResult.Applicable,
			CreatedAt:  result.CreatedAt,
		})
	}
	if len(audits) == 0 {
		return
	}

	auditCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := o.audits.CreateBatch(auditCtx, audits); err != nil {
		log.Error("failed to persist validation audits", "error", err, "draft_id", draft.ID)
	}
}

// publishAuditEvent 将生成裁决写入审计流，供外部归档链路消费
func (o *Orchestrator) publishAuditEvent(
	ctx context.Context,
	req *entity.GenerationRequest,
	result *entity.GenerationResult,
	timeout time.Duration,
) {
	if o.auditlog == nil {
		return
	}

	event := &messaging.AuditLogMessage{
		UserID:       req.UserID,
		Action:       "content_generated",
		ResourceType: "draft",
		ResourceID:   result.ID,
		RequestID:    result.ID,
		Metadata: map[string]interface{}{
			"mode":           string(req.Mode),
			"content_type":   string(req.ContentType),
			"trust_score":    result.TrustScore,
			"status":         string(result.Status),
			"blocked":        result.Blocked,
			"validation_ran": result.RunMetrics.ValidationRan,
		},
	}

	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := o.auditlog.PublishAuditLog(pubCtx, event); err != nil {
		logger.FromContext(ctx).Warn("failed to publish audit event", "error", err, "draft_id", result.ID)
	}
}

// clampWordCount 目标字数夹取到配置范围
func (o *Orchestrator) clampWordCount(req *entity.GenerationRequest) {
	min := o.cfg.Generation.MinWordCount
	if min <= 0 {
		min = 50
	}
	max := o.cfg.Generation.MaxWordCount
	if max <= 0 {
		max = 2000
	}
	if req.TargetWordCount < min {
		req.TargetWordCount = min
	}
	if req.TargetWordCount > max {
		req.TargetWordCount = max
	}
}
