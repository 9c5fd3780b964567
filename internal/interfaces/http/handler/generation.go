// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"compligen-api/internal/application/generation"
	"compligen-api/internal/interfaces/http/dto"
	"compligen-api/pkg/logger"
)

// GenerationHandler 内容生成接口
type GenerationHandler struct {
	orchestrator *generation.Orchestrator
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(orchestrator *generation.Orchestrator) *GenerationHandler {
	return &GenerationHandler{orchestrator: orchestrator}
}

// Generate 同步生成接口。
// 被拦截的结果仍返回 200，正文在 review_body 中，blocked=true。
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	userID := c.GetString("user_id")
	input, err := req.ToEntity(userID)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if userID != "" {
		ctx = logger.WithContext(ctx, logger.UserIDKey, userID)
	}

	result, err := h.orchestrator.Run(ctx, input)
	if err != nil {
		logger.FromContext(ctx).Warn("generation request failed", "error", err)
		dto.Fail(c, err)
		return
	}

	dto.Success(c, dto.FromGenerationResult(result))
}
