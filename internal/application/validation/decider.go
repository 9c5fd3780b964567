package validation

import (
	"compligen-api/internal/domain/entity"
)

// Decision 工作流裁决
type Decision struct {
	Blocked        bool
	RequiresReview bool
	Status         entity.ResultStatus
}

// Decide 信任分裁决：分数低于阈值即拦截；
// 拦截或任一 Agent 失败均需人工复核。
// 对相同的 (trustScore, agent statuses) 输入恒定产出相同结论。
func Decide(trustScore, threshold int, results map[entity.AgentKind]*entity.AgentResult) Decision {
	if threshold <= 0 {
		threshold = 80
	}

	blocked := trustScore < threshold
	requiresReview := blocked
	for _, result := range results {
		if result.Failed() {
			requiresReview = true
			break
		}
	}

	status := entity.ResultStatusDraft
	if requiresReview {
		status = entity.ResultStatusReview
	}

	return Decision{
		Blocked:        blocked,
		RequiresReview: requiresReview,
		Status:         status,
	}
}
