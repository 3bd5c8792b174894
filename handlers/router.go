package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	logx "chat-assistant/logger"
	"chat-assistant/metrics"
	"chat-assistant/web"
)

// NewRouter wires middleware, the chat API, metrics and the browser client.
func NewRouter(chat *ChatHandler, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORS())

	chat.Register(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Browser client
	router.StaticFS("/ui", web.FS())
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/ui/")
	})

	return router
}

// CORS allows every origin, method and header
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request. Bodies are never logged: they
// carry the caller's API key.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logx.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
