package validation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/llm"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
)

// Swarm 校验蜂群：四个评分 Agent 并发执行后汇合
type Swarm struct {
	factory *llm.EinoFactory
	cfg     *config.ValidationConfig
}

// NewSwarm 创建校验蜂群
func NewSwarm(factory *llm.EinoFactory, cfg *config.ValidationConfig) *Swarm {
	return &Swarm{factory: factory, cfg: cfg}
}

// Run 并发执行全部 Agent 并计算信任分。
// deadline 为整个请求的墙钟预算：已超预算时整体跳过，
// 信任分强制为 0 且四个 Agent 全部判失败，绝不暴露未校验内容。
// 第三个返回值标记本次校验是否被跳过，调用方据此记录 validation_ran。
func (s *Swarm) Run(
	ctx context.Context,
	req *entity.GenerationRequest,
	ev *entity.EvidenceSet,
	body string,
	deadline time.Time,
) (int, map[entity.AgentKind]*entity.AgentResult, bool) {
	ctx, span := tracer.Start(ctx, "validation.Swarm")
	defer span.End()

	if !time.Now().Before(deadline) {
		logger.FromContext(ctx).Warn("validation skipped: request budget exhausted")
		metrics.ValidationSkippedTotal.Inc()
		span.SetAttributes(attribute.Bool("skipped", true))
		return 0, skippedResults(), true
	}

	results := make(map[entity.AgentKind]*entity.AgentResult, len(entity.AgentKinds))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range entity.AgentKinds {
		spec := agentSpecs[kind]
		g.Go(func() error {
			result := runAgent(gctx, s.factory, s.cfg, spec, req, ev, body)
			mu.Lock()
			results[spec.kind] = result
			mu.Unlock()
			return nil
		})
	}
	// Agent 错误已在内部转为 fail，errgroup 仅用于汇合
	_ = g.Wait()

	score := ComputeTrustScore(results)
	span.SetAttributes(attribute.Int("trust_score", score))
	return score, results, false
}

// skippedResults 预算耗尽时的保守结论：全部失败
func skippedResults() map[entity.AgentKind]*entity.AgentResult {
	results := make(map[entity.AgentKind]*entity.AgentResult, len(entity.AgentKinds))
	for _, kind := range entity.AgentKinds {
		results[kind] = &entity.AgentResult{
			Status:     entity.AgentStatusFail,
			Issues:     []string{"validation_skipped: request budget exhausted"},
			Confidence: 0,
			Applicable: true,
		}
	}
	return results
}
