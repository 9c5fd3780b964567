package handler

import (
	"github.com/gin-gonic/gin"

	"compligen-api/internal/domain/repository"
	"compligen-api/internal/interfaces/http/dto"
	"compligen-api/pkg/logger"
)

// DraftHandler 草稿与审计查询接口
type DraftHandler struct {
	drafts repository.DraftRepository
	audits repository.AuditRepository
}

// NewDraftHandler 创建草稿处理器
func NewDraftHandler(drafts repository.DraftRepository, audits repository.AuditRepository) *DraftHandler {
	return &DraftHandler{drafts: drafts, audits: audits}
}

// Get 按 ID 查询草稿及其校验审计记录
func (h *DraftHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		dto.BadRequest(c, "draft id is required")
		return
	}

	ctx := c.Request.Context()
	draft, err := h.drafts.GetByID(ctx, id)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if draft == nil {
		dto.NotFound(c, "draft not found")
		return
	}

	resp := &dto.DraftResponse{
		ID:               draft.ID,
		Topic:            draft.Topic,
		Mode:             draft.Mode,
		ContentType:      draft.ContentType,
		Body:             draft.Body,
		TrustScore:       draft.TrustScore,
		Status:           draft.Status,
		RequiresReview:   draft.RequiresReview,
		Humanized:        draft.Humanized,
		InternetFallback: draft.InternetFallback,
	}

	audits, err := h.audits.ListByDraft(ctx, id)
	if err != nil {
		// 审计查询失败不阻断草稿返回
		logger.FromContext(ctx).Warn("failed to load validation audits", "error", err, "draft_id", id)
	}
	for _, audit := range audits {
		resp.Audits = append(resp.Audits, &dto.AuditEntry{
			Agent:      audit.Agent,
			Status:     audit.Status,
			Issues:     audit.IssuesJSON,
			Confidence: audit.Confidence,
			Applicable: audit.Applicable,
		})
	}

	dto.Success(c, resp)
}
