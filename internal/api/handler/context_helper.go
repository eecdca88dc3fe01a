package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"conduzauto/backend/internal/api/middleware"
	"conduzauto/backend/pkg/jwt"
	"conduzauto/backend/pkg/response"
)

// MustGetIdentity 从 Gin 上下文中取出 JWTAuth 注入的身份。
// 未注入时写入 401 响应并返回 false，调用方应直接 return。
func MustGetIdentity(c *gin.Context) (*jwt.Identity, bool) {
	v, exists := c.Get(middleware.IdentityKey)
	if !exists {
		response.Unauthorized(c, 11001, "未认证")
		return nil, false
	}
	identity, ok := v.(*jwt.Identity)
	if !ok || identity == nil || identity.SubjectID == "" {
		response.Unauthorized(c, 11001, "未认证")
		return nil, false
	}
	return identity, true
}

// MustGetSubjectID 当前调用方的主体 ID，所有受保护 Handler 只通过它识别调用方
func MustGetSubjectID(c *gin.Context) (string, bool) {
	identity, ok := MustGetIdentity(c)
	if !ok {
		return "", false
	}
	return identity.SubjectID, true
}

// bindJSON 绑定并校验请求体；失败时写入 400 / 413
// allowEmpty=true 时空请求体视为使用默认值
func bindJSON(c *gin.Context, obj interface{}, allowEmpty bool) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, response.KindPayloadTooLarge, "请求体过大")
		return false
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, response.KindInvalidRequest, "参数校验失败", err.Error())
	return false
}
