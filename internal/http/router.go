package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconfig "github.com/lumivoice/voice-gateway/internal/config"
	"github.com/lumivoice/voice-gateway/internal/conversation"
	"github.com/lumivoice/voice-gateway/internal/ws"
)

// NewRouter builds the gin router: health probe, the client websocket
// endpoint, and a small read-only REST surface over stored
// conversations and profiles.
func NewRouter(cfg appconfig.Config, wsHandler *ws.Handler, store *conversation.Store, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": wsHandler.SessionCount()})
	})

	router.GET("/client-ws", func(c *gin.Context) {
		wsHandler.Handle(c.Writer, c.Request)
	})

	router.GET("/profiles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"profiles": appconfig.ScanProfiles(cfg.ProfilesDir)})
	})

	router.GET("/clients/:client_id/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversations": store.List(c.Param("client_id"))})
	})

	router.GET("/clients/:client_id/conversations/:conversation_id", func(c *gin.Context) {
		turns, err := store.Get(c.Param("client_id"), c.Param("conversation_id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"turns": turns})
	})

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
