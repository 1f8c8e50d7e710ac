package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

// MustGetOperatorID 从 Gin 上下文中安全提取 operator_id。
// JWT 中间件未注入时写入 401 响应并返回 false，调用方应直接 return。
func MustGetOperatorID(c *gin.Context) (string, bool) {
	v, exists := c.Get("operator_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
