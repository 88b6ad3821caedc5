package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"timer-tracker/internal/protocol"
	"timer-tracker/internal/service"
	"timer-tracker/internal/storage"
)

// PushEndpoint serves the websocket push channel.
type PushEndpoint interface {
	ServeWS(c *gin.Context)
}

// RateLimit configures the per-client limiter on the credential endpoints. RPS <= 0 disables it.
type RateLimit struct {
	RPS       float64
	Burst     int
	CacheSize int
	TTL       time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	sessions service.SessionService
	timers   service.TimerService
	push     PushEndpoint
	limit    RateLimit
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, sessions service.SessionService, timers service.TimerService, push PushEndpoint, limit RateLimit, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:    users,
		sessions: sessions,
		timers:   timers,
		push:     push,
		limit:    limit,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger), h.sessionMiddleware())

	auth := router.Group("/")
	if h.limit.RPS > 0 {
		auth.Use(rateLimitPerIP(h.limit))
	}
	{
		auth.POST("/signup", h.signup)
		auth.POST("/login", h.login)
	}
	router.POST("/logout", h.logout)

	api := router.Group("/api", requireUser())
	{
		api.GET("/user", h.currentUser)
		api.GET("/timers", h.listTimers)
		api.POST("/timers", h.createTimer)
		api.POST("/timers/:id/stop", h.stopTimer)
		api.DELETE("/timers/:id", h.deleteTimer)
		api.POST("/timers/export", h.exportTimers)
		api.GET("/timers/exports", h.listExports)
	}

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	if h.push != nil {
		router.GET("/ws", h.push.ServeWS)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+sessionHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func objectToResponse(obj storage.ObjectInfo) protocol.ExportObject {
	resp := protocol.ExportObject{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
