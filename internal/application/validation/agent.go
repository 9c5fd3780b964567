// Package validation 实现校验蜂群：四个并发的单职责评分 Agent 与信任分决策
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/llm"
	einoobs "compligen-api/internal/observability/eino"
	"compligen-api/pkg/logger"
	"compligen-api/pkg/metrics"
)

var tracer = otel.Tracer("validation")

// agentSpec 评分 Agent 参数化定义。四个 Agent 结构完全相同，
// 仅系统提示词与适用条件不同。
type agentSpec struct {
	kind entity.AgentKind
	// applicable 为 false 时 Agent 自动通过且不计入惩罚
	applicable   func(req *entity.GenerationRequest, ev *entity.EvidenceSet) bool
	systemPrompt func(cfg *config.ValidationConfig, req *entity.GenerationRequest, ev *entity.EvidenceSet) string
}

func alwaysApplicable(*entity.GenerationRequest, *entity.EvidenceSet) bool { return true }

var agentSpecs = map[entity.AgentKind]agentSpec{
	entity.AgentCitation: {
		kind:       entity.AgentCitation,
		applicable: alwaysApplicable,
		systemPrompt: func(cfg *config.ValidationConfig, req *entity.GenerationRequest, ev *entity.EvidenceSet) string {
			var sb strings.Builder
			sb.WriteString(`You are a citation auditor. Check that every citation in the source list is actually referenced in the draft via its bracketed marker, and that no marker points outside the list.`)
			if !ev.InternetFallbackUsed && req.Mode != entity.ModePrivate && len(cfg.AllowedDomains) > 0 {
				sb.WriteString("\nAdditionally check that every citation URL belongs to one of the allowed domains: ")
				sb.WriteString(strings.Join(cfg.AllowedDomains, ", "))
				sb.WriteString(".")
			}
			sb.WriteString("\n")
			sb.WriteString(agentOutputContract)
			return sb.String()
		},
	},
	entity.AgentRecency: {
		kind: entity.AgentRecency,
		// 时效性只对新闻模式或互联网兜底内容有意义
		applicable: func(req *entity.GenerationRequest, ev *entity.EvidenceSet) bool {
			return req.Mode == entity.ModeNews || ev.InternetFallbackUsed
		},
		systemPrompt: func(cfg *config.ValidationConfig, req *entity.GenerationRequest, ev *entity.EvidenceSet) string {
			days := cfg.RecencyDays
			if days <= 0 {
				days = 30
			}
			return fmt.Sprintf(`You are a recency auditor. Using any publication dates present in the evidence metadata, check whether the sources are fresh enough for news content: flag any source older than %d days, and flag the draft if it presents stale information as current.
%s`, days, agentOutputContract)
		},
	},
	entity.AgentFactCheck: {
		kind:       entity.AgentFactCheck,
		applicable: alwaysApplicable,
		systemPrompt: func(cfg *config.ValidationConfig, req *entity.GenerationRequest, ev *entity.EvidenceSet) string {
			return `You are a fact-check auditor. Verify that every material claim in the draft is directly supported by the provided evidence chunks. Evidence outside the provided chunks must not be used to justify a claim. Flag unsupported numbers, dates, quotes, and attributions.
` + agentOutputContract
		},
	},
	entity.AgentTone: {
		kind:       entity.AgentTone,
		applicable: alwaysApplicable,
		systemPrompt: func(cfg *config.ValidationConfig, req *entity.GenerationRequest, ev *entity.EvidenceSet) string {
			return `You are a tone auditor for compliance-sensitive content. Flag prohibited promotional language (superlatives, guarantees, calls to action pressuring purchase) and any medical or therapeutic claims stated as fact.
` + agentOutputContract
		},
	},
}

const agentOutputContract = `Respond with ONLY a JSON object of this exact shape:
{"status": "pass" or "fail", "issues": ["..."], "confidence": 0.0 to 1.0}`

// agentResponse 模型返回的固定 JSON 形状
type agentResponse struct {
	Status     string   `json:"status"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// runAgent 执行单个评分 Agent。调用出错或超时一律判 fail 并附上
// 合成问题标签，绝不静默忽略。
func runAgent(
	ctx context.Context,
	factory *llm.EinoFactory,
	cfg *config.ValidationConfig,
	spec agentSpec,
	req *entity.GenerationRequest,
	ev *entity.EvidenceSet,
	body string,
) *entity.AgentResult {
	ctx, span := tracer.Start(ctx, "validation.runAgent",
		trace.WithAttributes(attribute.String("agent", string(spec.kind))))
	defer span.End()

	if !spec.applicable(req, ev) {
		metrics.ValidationAgentTotal.WithLabelValues(string(spec.kind), "skipped").Inc()
		return &entity.AgentResult{
			Status:     entity.AgentStatusPass,
			Issues:     []string{"skipped: not applicable for this mode"},
			Confidence: 1,
			Applicable: false,
		}
	}

	result, err := invokeAgent(ctx, factory, cfg, spec, req, ev, body)
	if err != nil {
		span.RecordError(err)
		logger.FromContext(ctx).Warn("validation agent failed",
			"agent", spec.kind,
			"error", err,
		)
		metrics.ValidationAgentTotal.WithLabelValues(string(spec.kind), "error").Inc()
		return &entity.AgentResult{
			Status:     entity.AgentStatusFail,
			Issues:     []string{fmt.Sprintf("agent_error: %s", spec.kind)},
			Confidence: 0,
			Applicable: true,
		}
	}

	metrics.ValidationAgentTotal.WithLabelValues(string(spec.kind), string(result.Status)).Inc()
	span.SetAttributes(attribute.String("status", string(result.Status)))
	return result
}

func invokeAgent(
	ctx context.Context,
	factory *llm.EinoFactory,
	cfg *config.ValidationConfig,
	spec agentSpec,
	req *entity.GenerationRequest,
	ev *entity.EvidenceSet,
	body string,
) (*entity.AgentResult, error) {
	ctx = einoobs.WithCall(ctx, "validate", cfg.Provider)

	chatModel, err := factory.Get(ctx, cfg.Provider)
	if err != nil {
		return nil, err
	}

	timeout := cfg.AgentTimeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	agentCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outMsg, err := chatModel.Generate(agentCtx, []*schema.Message{
		schema.SystemMessage(spec.systemPrompt(cfg, req, ev)),
		schema.UserMessage(buildAgentUserPrompt(ev, body)),
	})
	if err != nil {
		return nil, err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, fmt.Errorf("empty agent response")
	}

	var resp agentResponse
	if err := json.Unmarshal([]byte(extractJSONObject(outMsg.Content)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse agent response: %w", err)
	}

	status := entity.AgentStatusFail
	if strings.EqualFold(strings.TrimSpace(resp.Status), string(entity.AgentStatusPass)) {
		status = entity.AgentStatusPass
	}
	if resp.Confidence < 0 {
		resp.Confidence = 0
	}
	if resp.Confidence > 1 {
		resp.Confidence = 1
	}
	if len(resp.Issues) > entity.MaxAgentIssues {
		resp.Issues = resp.Issues[:entity.MaxAgentIssues]
	}

	return &entity.AgentResult{
		Status:     status,
		Issues:     resp.Issues,
		Confidence: resp.Confidence,
		Applicable: true,
	}, nil
}

// buildAgentUserPrompt 打包草稿、引用列表与证据块
func buildAgentUserPrompt(ev *entity.EvidenceSet, body string) string {
	var sb strings.Builder

	sb.WriteString("Draft:\n---\n")
	sb.WriteString(body)
	sb.WriteString("\n---\n")

	if len(ev.Citations) > 0 {
		sb.WriteString("\nSource list:\n")
		for i, citation := range ev.Citations {
			fmt.Fprintf(&sb, "[%d] %s %s\n", i+1, citation.Title, citation.URL)
		}
	}

	if len(ev.RAGChunks) > 0 {
		sb.WriteString("\nEvidence chunks:\n")
		for i, chunk := range ev.RAGChunks {
			fmt.Fprintf(&sb, "--- chunk %d", i+1)
			if published := chunk.Metadata["published_at"]; published != "" {
				fmt.Fprintf(&sb, " (published_at: %s)", published)
			}
			sb.WriteString(" ---\n")
			sb.WriteString(chunk.Content)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
