package entity

import "time"

// Draft 草稿持久化记录。
// 完整正文无论是否拦截都落库，供审计与人工复核。
type Draft struct {
	ID               string       `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID           string       `json:"user_id" gorm:"type:varchar(64);index"`
	Topic            string       `json:"topic" gorm:"type:varchar(512)"`
	Mode             Mode         `json:"mode" gorm:"type:varchar(16)"`
	ContentType      ContentType  `json:"content_type" gorm:"type:varchar(32)"`
	Body             string       `json:"body" gorm:"type:text"`
	CitationsJSON    string       `json:"citations_json" gorm:"type:text"`
	TrustScore       int          `json:"trust_score"`
	Status           ResultStatus `json:"status" gorm:"type:varchar(16);index"`
	RequiresReview   bool         `json:"requires_review"`
	Humanized        bool         `json:"humanized"`
	InternetFallback bool         `json:"internet_fallback"`
	ModelUsed        string       `json:"model_used" gorm:"type:varchar(128)"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	CostUSD          float64      `json:"cost_usd"`
	CreatedAt        time.Time    `json:"created_at"`
	PublishedAt      *time.Time   `json:"published_at"`
}

// TableName GORM 表名
func (Draft) TableName() string {
	return "drafts"
}

// ValidationAudit 单个校验 Agent 的审计记录
type ValidationAudit struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DraftID    string      `json:"draft_id" gorm:"type:varchar(64);index"`
	Agent      AgentKind   `json:"agent" gorm:"type:varchar(32)"`
	Status     AgentStatus `json:"status" gorm:"type:varchar(8)"`
	IssuesJSON string      `json:"issues_json" gorm:"type:text"`
	Confidence float64     `json:"confidence"`
	Applicable bool        `json:"applicable"`
	CreatedAt  time.Time   `json:"created_at"`
}

// TableName GORM 表名
func (ValidationAudit) TableName() string {
	return "validation_audits"
}
