// Package entity 提供领域模型定义
package entity

import "time"

// Mode 生成模式
type Mode string

const (
	ModeNews    Mode = "news"
	ModePrivate Mode = "private"
	ModeGeneral Mode = "general"
)

// Valid 检查模式合法性
func (m Mode) Valid() bool {
	switch m {
	case ModeNews, ModePrivate, ModeGeneral:
		return true
	}
	return false
}

// ContentType 内容模板类型
type ContentType string

const (
	ContentTypeArticleLong     ContentType = "article_long"
	ContentTypeArticleShort    ContentType = "article_short"
	ContentTypeWeb2Post        ContentType = "web2_post"
	ContentTypePressRelease    ContentType = "press_release"
	ContentTypeWebpageRevision ContentType = "webpage_revision"
	ContentTypeMetaTags        ContentType = "meta_tags"
	ContentTypeWebpageSummary  ContentType = "webpage_summary"
)

// Valid 检查内容类型合法性
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeArticleLong, ContentTypeArticleShort, ContentTypeWeb2Post,
		ContentTypePressRelease, ContentTypeWebpageRevision, ContentTypeMetaTags,
		ContentTypeWebpageSummary:
		return true
	}
	return false
}

// MetadataOnly 仅输出元信息的类型不参与改写
func (t ContentType) MetadataOnly() bool {
	return t == ContentTypeMetaTags
}

// HumanizeLevel 人性化改写级别
type HumanizeLevel string

const (
	HumanizeOff      HumanizeLevel = "off"
	HumanizeStandard HumanizeLevel = "standard"
	HumanizeStrong   HumanizeLevel = "strong"
)

// Valid 检查改写级别合法性
func (l HumanizeLevel) Valid() bool {
	switch l {
	case HumanizeOff, HumanizeStandard, HumanizeStrong:
		return true
	}
	return false
}

// GenerationRequest 生成请求，创建后不可变
type GenerationRequest struct {
	Topic            string        `json:"topic"`
	PrimaryKeyword   string        `json:"primary_keyword"`
	SecondaryKeyword string        `json:"secondary_keyword"`
	Mode             Mode          `json:"mode"`
	ContentType      ContentType   `json:"content_type"`
	TargetWordCount  int           `json:"target_word_count"`
	ExistingBody     string        `json:"existing_body"`
	HumanizeLevel    HumanizeLevel `json:"humanize_level"`
	UserID           string        `json:"user_id"`
}

// ResultStatus 生成结果状态
type ResultStatus string

const (
	ResultStatusDraft  ResultStatus = "draft"
	ResultStatusReview ResultStatus = "review"
)

// RunMetrics 单次请求的运行指标
type RunMetrics struct {
	ElapsedMs        int64   `json:"elapsed_ms"`
	ModelUsed        string  `json:"model_used"`
	GenerateAttempts int     `json:"generate_attempts"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	ValidationRan    bool    `json:"validation_ran"`
}

// GenerationResult 生成结果
type GenerationResult struct {
	ID                string                  `json:"id"`
	Body              string                  `json:"body"`
	ReviewBody        string                  `json:"review_body,omitempty"`
	Citations         []Citation              `json:"citations"`
	TrustScore        int                     `json:"trust_score"`
	ValidationResults map[string]*AgentResult `json:"validation_results"`
	Warnings          []string                `json:"warnings"`
	Blocked           bool                    `json:"blocked"`
	Status            ResultStatus            `json:"status"`
	Humanized         bool                    `json:"humanized"`
	InternetFallback  bool                    `json:"internet_fallback_used"`
	RunMetrics        RunMetrics              `json:"run_metrics"`
	CreatedAt         time.Time               `json:"created_at"`
}
