package validation

import (
	"compligen-api/internal/domain/entity"
)

// penaltyWeights 固定惩罚权重表。信任分必须是四个 Agent 状态的
// 确定函数，权重不可配置。
var penaltyWeights = map[entity.AgentKind]int{
	entity.AgentCitation:  25,
	entity.AgentRecency:   20,
	entity.AgentFactCheck: 40,
	entity.AgentTone:      15,
}

// ComputeTrustScore 计算信任分：clamp(100 − Σ 适用惩罚, 0, 100)。
// 不适用的 Agent（如非新闻模式的 recency）不计入惩罚。
func ComputeTrustScore(results map[entity.AgentKind]*entity.AgentResult) int {
	score := 100
	for kind, weight := range penaltyWeights {
		result, ok := results[kind]
		if !ok || result == nil {
			// 缺失结果按失败处理，保守扣分
			score -= weight
			continue
		}
		if !result.Applicable {
			continue
		}
		if result.Failed() {
			score -= weight
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
