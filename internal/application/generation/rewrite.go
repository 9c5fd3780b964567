package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/llm"
	einoobs "compligen-api/internal/observability/eino"
	"compligen-api/pkg/logger"
)

const rewriteSystemPrompt = `You are an expert editor performing a humanization rewrite.

Rules:
- Preserve the Markdown heading structure exactly: same headings, same order.
- Preserve every bracketed citation marker like [1] exactly where it appears.
- Preserve the "Sources" section and any "Content Source Notice" section verbatim.
- Do not add, remove, or reorder facts; only rephrase sentences to sound natural and human-written.
- Return the full rewritten document, nothing else.`

const rewriteStrongAddendum = `
This is a second, stronger pass: vary sentence length aggressively, replace formulaic transitions, and remove any remaining boilerplate phrasing, while keeping every rule above.`

// Rewriter 可选的人性化改写环节。
// 任一道工序失败都不致命，保留改写前的草稿继续流水线。
type Rewriter struct {
	factory *llm.EinoFactory
	cfg     *config.GenerationConfig
}

// NewRewriter 创建改写器
func NewRewriter(factory *llm.EinoFactory, cfg *config.GenerationConfig) *Rewriter {
	return &Rewriter{factory: factory, cfg: cfg}
}

// ShouldRewrite 改写门控：需配置改写模型、级别非 off、
// 非纯元数据内容类型，且剩余预算足够一次改写。
func (r *Rewriter) ShouldRewrite(req *entity.GenerationRequest, remaining time.Duration) bool {
	if r.factory.RewriteProvider() == "" {
		return false
	}
	if req.HumanizeLevel == entity.HumanizeOff || req.HumanizeLevel == "" {
		return false
	}
	if req.ContentType.MetadataOnly() {
		return false
	}
	return remaining > r.minBudget()
}

// Rewrite 执行改写。standard 一道；strong 且预算允许时再加一道。
// 返回改写后正文与是否实际发生改写。
func (r *Rewriter) Rewrite(ctx context.Context, req *entity.GenerationRequest, body string, deadline time.Time) (string, bool) {
	ctx, span := tracer.Start(ctx, "generation.Rewrite",
		trace.WithAttributes(attribute.String("level", string(req.HumanizeLevel))))
	defer span.End()

	log := logger.FromContext(ctx)
	humanized := false

	rewritten, err := r.runPass(ctx, body, rewriteSystemPrompt)
	if err != nil {
		log.Warn("humanization rewrite failed, keeping original draft", "error", err)
		return body, false
	}
	body = rewritten
	humanized = true

	if req.HumanizeLevel == entity.HumanizeStrong && time.Until(deadline) > r.minBudget() {
		rewritten, err = r.runPass(ctx, body, rewriteSystemPrompt+rewriteStrongAddendum)
		if err != nil {
			log.Warn("strong rewrite pass failed, keeping standard rewrite", "error", err)
		} else {
			body = rewritten
		}
	}

	span.SetAttributes(attribute.Bool("humanized", humanized))
	return body, humanized
}

func (r *Rewriter) runPass(ctx context.Context, body, system string) (string, error) {
	chatModel, err := r.factory.Get(ctx, r.factory.RewriteProvider())
	if err != nil {
		return "", err
	}

	timeout := r.cfg.RewriteTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx = einoobs.WithCall(ctx, "rewrite", r.factory.RewriteProvider())
	passCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outMsg, err := chatModel.Generate(passCtx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(body),
	})
	if err != nil {
		return "", err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return "", fmt.Errorf("empty rewrite output")
	}
	return strings.TrimSpace(outMsg.Content), nil
}

func (r *Rewriter) minBudget() time.Duration {
	if r.cfg.RewriteMinBudget > 0 {
		return r.cfg.RewriteMinBudget
	}
	return 20 * time.Second
}
