package dto

import (
	"fmt"
	"strings"

	"compligen-api/internal/domain/entity"
)

// GenerateRequest 内容生成请求
type GenerateRequest struct {
	Topic            string `json:"topic" binding:"required"`
	PrimaryKeyword   string `json:"primary_keyword"`
	SecondaryKeyword string `json:"secondary_keyword"`
	Mode             string `json:"mode" binding:"required"`
	ContentType      string `json:"content_type" binding:"required"`
	TargetWordCount  int    `json:"target_word_count"`
	ExistingBody     string `json:"existing_body"`
	HumanizeLevel    string `json:"humanize_level"`
}

// ToEntity 校验并转换为领域请求
func (r *GenerateRequest) ToEntity(userID string) (*entity.GenerationRequest, error) {
	mode := entity.Mode(strings.TrimSpace(r.Mode))
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid mode: %s", r.Mode)
	}

	contentType := entity.ContentType(strings.TrimSpace(r.ContentType))
	if !contentType.Valid() {
		return nil, fmt.Errorf("invalid content_type: %s", r.ContentType)
	}

	level := entity.HumanizeLevel(strings.TrimSpace(r.HumanizeLevel))
	if level == "" {
		level = entity.HumanizeOff
	}
	if !level.Valid() {
		return nil, fmt.Errorf("invalid humanize_level: %s", r.HumanizeLevel)
	}

	return &entity.GenerationRequest{
		Topic:            strings.TrimSpace(r.Topic),
		PrimaryKeyword:   strings.TrimSpace(r.PrimaryKeyword),
		SecondaryKeyword: strings.TrimSpace(r.SecondaryKeyword),
		Mode:             mode,
		ContentType:      contentType,
		TargetWordCount:  r.TargetWordCount,
		ExistingBody:     r.ExistingBody,
		HumanizeLevel:    level,
		UserID:           userID,
	}, nil
}

// GenerateResponse 内容生成响应
type GenerateResponse struct {
	ID                string                          `json:"id"`
	Body              string                          `json:"body"`
	ReviewBody        string                          `json:"review_body,omitempty"`
	Citations         []entity.Citation               `json:"citations"`
	TrustScore        int                             `json:"trust_score"`
	ValidationResults map[string]*entity.AgentResult  `json:"validation_results"`
	Warnings          []string                        `json:"warnings,omitempty"`
	Blocked           bool                            `json:"blocked"`
	Status            entity.ResultStatus             `json:"status"`
	Humanized         bool                            `json:"humanized"`
	InternetFallback  bool                            `json:"internet_fallback_used"`
	RunMetrics        entity.RunMetrics               `json:"run_metrics"`
}

// FromGenerationResult 由领域结果转换
func FromGenerationResult(result *entity.GenerationResult) *GenerateResponse {
	return &GenerateResponse{
		ID:                result.ID,
		Body:              result.Body,
		ReviewBody:        result.ReviewBody,
		Citations:         result.Citations,
		TrustScore:        result.TrustScore,
		ValidationResults: result.ValidationResults,
		Warnings:          result.Warnings,
		Blocked:           result.Blocked,
		Status:            result.Status,
		Humanized:         result.Humanized,
		InternetFallback:  result.InternetFallback,
		RunMetrics:        result.RunMetrics,
	}
}

// DraftResponse 草稿查询响应
type DraftResponse struct {
	ID               string              `json:"id"`
	Topic            string              `json:"topic"`
	Mode             entity.Mode         `json:"mode"`
	ContentType      entity.ContentType  `json:"content_type"`
	Body             string              `json:"body"`
	TrustScore       int                 `json:"trust_score"`
	Status           entity.ResultStatus `json:"status"`
	RequiresReview   bool                `json:"requires_review"`
	Humanized        bool                `json:"humanized"`
	InternetFallback bool                `json:"internet_fallback"`
	Audits           []*AuditEntry       `json:"audits,omitempty"`
}

// AuditEntry 校验审计条目
type AuditEntry struct {
	Agent      entity.AgentKind   `json:"agent"`
	Status     entity.AgentStatus `json:"status"`
	Issues     string             `json:"issues"`
	Confidence float64            `json:"confidence"`
	Applicable bool               `json:"applicable"`
}
