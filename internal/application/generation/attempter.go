package generation

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	einoobs "compligen-api/internal/observability/eino"
	"compligen-api/pkg/errors"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
)

var tracer = otel.Tracer("generation")

// ModelSource 候选模型供给端口，由 LLM 工厂实现
type ModelSource interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
	ModelName(name string) string
	Candidates() []string
	Cost(name string, promptTokens, completionTokens int) float64
}

// AttemptResult 单次成功生成的产出
type AttemptResult struct {
	Body             string
	Provider         string
	Model            string
	Attempts         int
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Attempter 按序尝试候选模型，取第一个非空输出。
// 候选严格串行执行，避免并行浪费调用成本。
type Attempter struct {
	models ModelSource
	cfg    *config.GenerationConfig
}

// NewAttempter 创建生成尝试器
func NewAttempter(models ModelSource, cfg *config.GenerationConfig) *Attempter {
	return &Attempter{models: models, cfg: cfg}
}

// Generate 依序驱动候选模型。全部失败时返回 generation_failed 并携带末次错误；
// 整体预算先行耗尽则返回 upstream_timeout。
func (a *Attempter) Generate(ctx context.Context, req *entity.GenerationRequest, prompts *PromptPair) (*AttemptResult, error) {
	ctx, span := tracer.Start(ctx, "generation.Attempt",
		trace.WithAttributes(attribute.String("mode", string(req.Mode))))
	defer span.End()

	candidates := a.models.Candidates()
	if len(candidates) == 0 {
		return nil, errors.ErrGenerationFailed.WithDetail("no llm providers configured")
	}
	maxCandidates := a.cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 3
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	timeout := a.attemptTimeout(req)
	msgs := []*schema.Message{
		schema.SystemMessage(prompts.System),
		schema.UserMessage(prompts.User),
	}

	log := logger.FromContext(ctx)
	var lastErr error
	attempts := 0
	for _, provider := range candidates {
		if ctx.Err() != nil {
			break
		}

		attempts++
		result, err := a.attemptOne(ctx, provider, msgs, timeout)
		if err != nil {
			lastErr = err
			log.Warn("generation attempt failed",
				"provider", provider,
				"attempt", attempts,
				"error", err,
			)
			continue
		}
		result.Attempts = attempts
		span.SetAttributes(
			attribute.String("provider", provider),
			attribute.Int("attempts", attempts),
		)
		return result, nil
	}

	if ctx.Err() != nil {
		return nil, errors.ErrUpstreamTimeout.WithError(ctx.Err())
	}
	if lastErr != nil {
		return nil, errors.ErrGenerationFailed.WithDetail(lastErr.Error()).WithError(lastErr)
	}
	return nil, errors.ErrGenerationFailed
}

// attemptOne 单候选一次调用，带独立超时
func (a *Attempter) attemptOne(ctx context.Context, provider string, msgs []*schema.Message, timeout time.Duration) (*AttemptResult, error) {
	chatModel, err := a.models.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	ctx = einoobs.WithCall(ctx, "generate", provider)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	modelName := a.models.ModelName(provider)
	start := time.Now()
	outMsg, err := chatModel.Generate(attemptCtx, msgs)
	metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("generation timed out after %s: %w", timeout, err)
		}
		return nil, err
	}
	if outMsg == nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "empty").Inc()
		return nil, fmt.Errorf("empty llm response")
	}

	result := &AttemptResult{
		Body:     strings.TrimSpace(outMsg.Content),
		Provider: provider,
		Model:    modelName,
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		result.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
		result.CostUSD = a.models.Cost(provider, result.PromptTokens, result.CompletionTokens)
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(result.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(result.CompletionTokens))
	}

	if result.Body == "" {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "empty").Inc()
		return nil, fmt.Errorf("empty generation output")
	}

	metrics.LLMCallTotal.WithLabelValues(provider, modelName, "ok").Inc()
	return result, nil
}

// attemptTimeout 长文与非新闻模式使用更宽的单次超时
func (a *Attempter) attemptTimeout(req *entity.GenerationRequest) time.Duration {
	timeout := a.cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	longForm := a.cfg.LongFormAttemptTimeout
	if longForm <= 0 {
		longForm = 45 * time.Second
	}

	if req.Mode != entity.ModeNews || req.TargetWordCount >= 1200 {
		return longForm
	}
	return timeout
}
