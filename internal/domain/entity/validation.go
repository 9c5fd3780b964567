package entity

// AgentKind 校验 Agent 类型
type AgentKind string

const (
	AgentCitation  AgentKind = "citation"
	AgentRecency   AgentKind = "recency"
	AgentFactCheck AgentKind = "fact_check"
	AgentTone      AgentKind = "tone"
)

// AgentKinds 固定的四个校验 Agent，顺序即审计顺序
var AgentKinds = []AgentKind{AgentCitation, AgentRecency, AgentFactCheck, AgentTone}

// AgentStatus 校验结果状态
type AgentStatus string

const (
	AgentStatusPass AgentStatus = "pass"
	AgentStatusFail AgentStatus = "fail"
)

// MaxAgentIssues 单个 Agent 保留的问题数上限
const MaxAgentIssues = 25

// AgentResult 单个校验 Agent 的结论
type AgentResult struct {
	Status     AgentStatus `json:"status"`
	Issues     []string    `json:"issues"`
	Confidence float64     `json:"confidence"`
	// Applicable 为 false 时该 Agent 不计入信任分惩罚
	Applicable bool `json:"applicable"`
}

// Failed 是否判定失败
func (r *AgentResult) Failed() bool {
	return r == nil || r.Status == AgentStatusFail
}
