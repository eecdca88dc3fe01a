package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"conduzauto/backend/pkg/jwt"
	"conduzauto/backend/pkg/redis"
	"conduzauto/backend/pkg/response"
)

// IdentityKey 校验通过后 *jwt.Identity 在 gin.Context 中的键
const IdentityKey = "identity"

// JWTAuth 凭证校验中间件
// 从 Authorization: Bearer <token> 中提取 Token，交给 Validator 校验，
// 再检查 Redis 注销名单。所有受保护路由共用这一个入口。
// rdb 为 nil 或 Redis 出错时跳过注销名单检查（降级放行并记录告警）
func JWTAuth(validator jwt.Validator, rdb *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, 11002, "认证头格式无效")
			c.Abort()
			return
		}

		identity, err := validator.Verify(token)
		if err != nil {
			code, msg := tokenErrorCode(err)
			response.Unauthorized(c, code, msg)
			c.Abort()
			return
		}

		if rdb != nil {
			revoked, err := rdb.IsBlacklisted(c.Request.Context(), identity.TokenID)
			if err != nil {
				logger.Warn("检查 Token 注销名单失败，降级放行",
					zap.String("subject_id", identity.SubjectID),
					zap.Error(err),
				)
			} else if revoked {
				response.Unauthorized(c, 11005, "Token 已注销")
				c.Abort()
				return
			}
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// bearerToken 缺少头时返回 ("", true)，交由 Validator 报告 ErrTokenMissing
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", true
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func tokenErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenMissing):
		return 11001, "缺少认证 Token"
	case errors.Is(err, jwt.ErrTokenExpired):
		return 11003, "Token 已过期"
	case errors.Is(err, jwt.ErrTokenSignature):
		return 11004, "Token 签名无效"
	default:
		return 11002, "Token 格式无效"
	}
}
