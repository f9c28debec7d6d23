package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/api/handler"
	"smart-campus/backend/internal/api/middleware"
	"smart-campus/backend/internal/model"
	"smart-campus/backend/pkg/jwt"
	"smart-campus/backend/pkg/redis"
)

// maxBodyBytes 排课落地请求可能携带整个学期的方案
const maxBodyBytes = 2 << 20

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", h.Health.Check)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		adminOnly := middleware.RoleAuth(model.RoleAdmin)
		solveLimit := middleware.RateLimit(rdb, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window, logger)

		// 排课模块
		timetables := v1.Group("/timetables")
		{
			timetables.POST("/generate", adminOnly, solveLimit, h.Timetable.Generate)
			timetables.POST("/apply", adminOnly, h.Timetable.Apply)
			timetables.POST("/check", adminOnly, h.Timetable.Check)
			timetables.GET("/me", h.Timetable.GetMine)
			timetables.GET("/me/calendar.ics", h.Timetable.MyCalendar)
			timetables.GET("/users/:id", adminOnly, h.Timetable.GetUser)
		}

		// 导出模块
		export := v1.Group("/export")
		{
			export.GET("/timetable", adminOnly, h.Export.ExportTimetable)
		}
	}

	return r
}
