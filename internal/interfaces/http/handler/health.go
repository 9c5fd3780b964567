package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker 依赖健康检查端口
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查接口
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness 存活探针
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness 就绪探针：逐个检查后端依赖
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	details := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			details[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		details[name] = "ok"
	}

	c.JSON(status, gin.H{
		"status":  statusText(status),
		"details": details,
	})
}

func statusText(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
