package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-campus/backend/pkg/response"
	"smart-campus/backend/pkg/validate"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
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

// bindJSON 绑定请求体；失败时写入 400（超出大小限制为 413）并返回 false
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

// bindQuery 绑定查询参数
func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	if fields := validate.FieldErrors(err); fields != nil {
		response.ErrorWithData(c, http.StatusBadRequest, 10001, validate.Summary(err), fields)
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "请求参数格式错误", err.Error())
}
