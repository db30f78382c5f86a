package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-deck/app/cfg"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	api := r.Group("/api")

	// Reads are public
	api.GET("/feed", handler.GetFeed)
	api.GET("/subscriptions", handler.ListSubscriptions)
	api.GET("/items", handler.GetItems)
	api.GET("/export/:view", handler.ExportView)
	api.GET("/ai/config", handler.GetAIConfig)
	api.GET("/tasks/:id", handler.GetTask)

	// Everything that changes state or spends model time
	write := api.Group("")
	if apiAccessKey != "" {
		write.Use(authMiddleware(apiAccessKey))
		slog.Info("Write endpoints require authentication")
	} else {
		slog.Warn("Write endpoints are unauthenticated (API_ACCESS_KEY not set)")
	}
	{
		write.POST("/subscriptions", handler.AddSubscription)
		write.DELETE("/subscriptions", handler.RemoveSubscription)
		write.POST("/refresh", handler.Refresh)

		write.POST("/items/favorite", handler.ToggleFavorite)
		write.POST("/items/read-later", handler.ToggleReadLater)
		write.POST("/items/read", handler.MarkAsRead)
		write.PUT("/items/tags", handler.SetTags)

		write.POST("/ai/tag", handler.GenerateTags)
		write.POST("/ai/summary", handler.Summarize)
		write.POST("/ai/config", handler.PostAIConfig)
		write.PUT("/ai/model", handler.SetModel)
		write.POST("/ai/analyze", handler.Analyze)
		write.POST("/ai/report", handler.Report)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "RSS Deck",
			"version":     cfg.GetVersion(),
			"description": "Personal RSS aggregator with annotations and local AI tagging",
			"endpoints": map[string]string{
				"health":        "/health",
				"stats":         "/stats",
				"feed_proxy":    "/api/feed?url=<feed url>",
				"subscriptions": "/api/subscriptions",
				"items":         "/api/items?view=<all|favorites|readLater>&tag=<tag>",
				"export":        "/api/export/<view>",
				"ai":            "/api/ai/config",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
