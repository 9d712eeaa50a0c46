package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marrfa-assistant/internal/logger"
	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/service"
)

// Router is the query router as seen by the HTTP layer
type Router interface {
	QueryRouter
	QueryInspector
}

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators of the HTTP surface. Nil optional fields
// disable what they back.
type Deps struct {
	Router         Router
	Knowledge      KnowledgeSnapshot
	Chunks         ChunkWriter
	Embedder       service.BatchEmbedder
	EmbeddingDims  int
	Feedback       FeedbackLogger
	Usage          UsageChecker
	HealthChecks   map[string]HealthCheck
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins string
	PerPage        int
	Build          BuildInfo
}

// NewEngine builds the gin engine with every route and middleware
func NewEngine(d Deps) *gin.Engine {
	log := logger.OrNop(d.Logger)

	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), accessLog(log), d.Metrics.Middleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(d.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		checks := gin.H{}
		for name, check := range d.HealthChecks {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    "marrfa-assistant",
			"version":    d.Build.Version,
			"build_time": d.Build.BuildTime,
			"git_commit": d.Build.GitCommit,
			"checks":     checks,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Build)
	})

	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	chat := NewChatHandler(d.Router, log)
	debug := NewDebugHandler(d.Router, d.PerPage)
	feedback := NewFeedbackHandler(d.Feedback)

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if d.Usage == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{UsageLimitMiddleware(d.Usage, log, d.Metrics), h}
	}

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Chat endpoints
		apiV1.POST("/chat", limited(chat.Chat)...)
		apiV1.POST("/chat/stream", limited(chat.ChatStream)...)

		// Debug endpoints
		apiV1.GET("/debug/intent", debug.Intent)
		apiV1.GET("/debug/filters", debug.Filters)

		// Knowledge endpoints
		if d.Knowledge != nil {
			knowledge := NewKnowledgeHandler(d.Knowledge, d.Chunks, d.Embedder, d.EmbeddingDims, log)
			apiV1.GET("/knowledge", knowledge.Stats)
			apiV1.POST("/knowledge/reload", knowledge.Reload)
			apiV1.POST("/knowledge/chunks", knowledge.Upsert)
		}

		// Feedback endpoint
		apiV1.POST("/feedback", feedback.Submit)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})

	return router
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// accessLog writes one line per request
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("request_id", RequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
