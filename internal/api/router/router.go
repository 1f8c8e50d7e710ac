package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/config"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/api/handler"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/api/middleware"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/jwt"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// metricsHandler 为 nil 时不暴露 /metrics；rdb 为 nil 时限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, metricsHandler http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	admin := middleware.RoleAuth(jwt.RoleAdmin)
	regenLimit := middleware.RateLimit(rdb, cfg.Scheduler.RateLimit, cfg.Scheduler.RateLimitWindow)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 赛季与名册
		seasons := v1.Group("/seasons")
		{
			seasons.GET("", h.Roster.ListSeasons)
			seasons.POST("", admin, h.Roster.CreateSeason)
			seasons.GET("/:id/participants", h.Roster.ListParticipants)
			seasons.POST("/:id/participants", admin, h.Roster.CreateParticipant)
			seasons.GET("/:id/weeks", h.Roster.ListWeeks)
			seasons.POST("/:id/weeks", admin, h.Roster.CreateWeek)
			seasons.GET("/:id/pairings", h.Pairing.List)
			seasons.DELETE("/:id/pairings", admin, h.Pairing.Reset)
		}

		// 赛周：出勤、排组、重排、备份、导出
		weeks := v1.Group("/weeks/:id")
		{
			weeks.GET("", h.Roster.GetWeek)
			weeks.GET("/availability", h.Roster.GetAvailability)
			weeks.PUT("/availability", admin, h.Roster.SetAvailability)

			weeks.GET("/schedule", h.Schedule.GetSchedule)
			weeks.POST("/schedule/validate", h.Schedule.Validate)
			weeks.PUT("/schedule/foursomes/:foursome_id", admin, h.Schedule.UpdateFoursome)
			weeks.POST("/schedule/finalize", admin, h.Schedule.Finalize)
			weeks.POST("/schedule/scope-check", admin, h.Schedule.CheckScope)

			weeks.GET("/regeneration", h.Regeneration.GetStatus)
			weeks.POST("/regeneration", admin, regenLimit, h.Regeneration.Regenerate)
			weeks.POST("/regeneration/lock", admin, regenLimit, h.Regeneration.Lock)
			weeks.DELETE("/regeneration/lock", admin, h.Regeneration.Unlock)
			weeks.GET("/regeneration/logs", h.Regeneration.ListLogs)

			weeks.GET("/backups", admin, h.Backup.List)
			weeks.GET("/backups/:backup_id/validate", admin, h.Backup.Validate)
			weeks.POST("/backups/:backup_id/restore", admin, h.Backup.Restore)

			weeks.GET("/export", h.Export.ExportWeek)
		}

		v1.POST("/schedules/generate", admin, h.Schedule.Generate)
		v1.POST("/regeneration/sweep", admin, h.Regeneration.Sweep)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
		}
	}

	return r
}
