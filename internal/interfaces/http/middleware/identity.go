package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDHeader 调用方标识头
const UserIDHeader = "X-User-ID"

// Identity 将调用方标识写入请求上下文。
// 该服务不做鉴权，标识仅用于限流键与审计归属。
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
