package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eion/accounts/internal/health"
	"github.com/eion/accounts/internal/metrics"
	"github.com/eion/accounts/internal/users"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RouterConfig holds the collaborators the router wires together
type RouterConfig struct {
	Users          users.UserManager
	Health         *health.Manager
	Logger         *zap.Logger
	MaxRequestSize int64 // bytes, 0 disables the limit
}

// NewRouter builds the gin engine serving the accounts API
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Any origin may call the API
	router.Use(cors.Default())
	router.Use(requestID())
	router.Use(requestLogger(logger))
	// Recovery runs inside metrics so recovered panics are recorded as 5xx
	router.Use(metrics.Middleware())
	router.Use(gin.Recovery())
	if cfg.MaxRequestSize > 0 {
		router.Use(limitBody(cfg.MaxRequestSize))
	}

	if cfg.Health != nil {
		router.GET("/health", healthHandler(cfg.Health))
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	NewHandler(cfg.Users, logger).RegisterRoutes(router)

	return router
}

// requestID tags each request with an id, reusing the caller's when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()))
	}
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func healthHandler(manager *health.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := manager.RuntimeHealthCheck(c.Request.Context())

		services := gin.H{}
		for name, err := range results {
			if err != nil {
				services[name] = err.Error()
			} else {
				services[name] = "healthy"
			}
		}

		status, code := "healthy", http.StatusOK
		if !manager.Healthy(results) {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"services":  services,
		})
	}
}
