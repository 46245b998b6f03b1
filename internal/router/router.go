package router

import (
	"net/http"

	"ims/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RouteRegistrar is implemented by every API handler.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// Options configures the engine.
type Options struct {
	CORSOrigins []string
	// Realtime serves GET /ws when set.
	Realtime gin.HandlerFunc
	Logger   *zap.Logger
}

// New wires the Gin engine with middlewares, infrastructure routes and the
// API handlers mounted under /api.
func New(opts Options, handlers ...RouteRegistrar) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = opts.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	// Swagger route
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	if opts.Realtime != nil {
		r.GET("/ws", opts.Realtime)
	}

	api := r.Group("/api")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	logger.Info("router initialized", zap.Int("handlers", len(handlers)))
	return r
}
