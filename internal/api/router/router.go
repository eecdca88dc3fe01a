package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"conduzauto/backend/config"
	"conduzauto/backend/internal/api/handler"
	"conduzauto/backend/internal/api/middleware"
	"conduzauto/backend/pkg/jwt"
	"conduzauto/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// validator 是所有受保护路由唯一的凭证校验入口；rdb 可为 nil
func Setup(cfg *config.Config, h *handler.Handler, validator jwt.Validator, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查（兼容旧前端的 /api/health） ──
	r.GET("/health", health)
	r.GET("/api/health", health)

	auth := middleware.JWTAuth(validator, rdb, logger)
	limit := middleware.RateLimit(&cfg.RateLimit, rdb, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", health)

		// 认证模块
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/instructors/register", limit, h.Auth.RegisterInstructor)
			authGroup.POST("/instructors/login", limit, h.Auth.LoginInstructor)
			authGroup.POST("/students/register", limit, h.Auth.RegisterStudent)
			authGroup.POST("/students/login", limit, h.Auth.LoginStudent)
			authGroup.POST("/logout", auth, h.Auth.Logout)
			authGroup.DELETE("/instructors/me", auth, h.Auth.DeleteInstructor)
			authGroup.DELETE("/students/me", auth, h.Auth.DeleteStudent)
		}

		// 邀请模块
		invitations := v1.Group("/invitations")
		{
			invitations.POST("", auth, h.Invitation.Issue)
			invitations.GET("/mine", auth, h.Invitation.ListMine)
			invitations.GET("/mine/export", auth, h.Export.ExportInvitations)
			invitations.GET("/mine/calendar", auth, h.Export.Calendar)
			invitations.GET("/:slug/:code", limit, h.Invitation.Validate)
			invitations.POST("/:slug/:code/redeem", limit, auth, h.Invitation.Redeem)
			invitations.POST("/:slug/revoke", auth, h.Invitation.Revoke)
		}

		// 讲师学员关联
		links := v1.Group("/links")
		links.Use(auth)
		{
			links.GET("", h.Link.List)
			links.POST("/:subjectId", h.Link.Link)
			links.DELETE("/:subjectId", h.Link.Unlink)
		}
	}

	return r
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
