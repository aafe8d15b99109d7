// Package server assembles the gin engine.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/handlers"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/metrics"
	"github.com/The24thDS/karen-backend/internal/middleware"
)

type RouterConfig struct {
	Log               *logger.Logger
	AllowedOrigins    []string
	Metrics           *metrics.Metrics
	Gatherer          prometheus.Gatherer
	AuthMiddleware    *middleware.AuthMiddleware
	AuthHandler       *handlers.AuthHandler
	ModelHandler      *handlers.ModelHandler
	CollectionHandler *handlers.CollectionHandler
	TagHandler        *handlers.TagHandler
	HealthHandler     *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
		}))
	}

	// Public
	router.GET("/healthz", cfg.HealthHandler.HealthCheck)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorEnvelope{Error: handlers.APIError{Message: "route not found", Code: apierr.CodeNotFound}})
	})

	auth := router.Group("/auth")
	auth.POST("/register", cfg.AuthHandler.Register)
	auth.POST("/login", cfg.AuthHandler.Login)

	router.GET("/tags", cfg.TagHandler.List)

	requireAuth := cfg.AuthMiddleware.RequireAuth()
	optionalAuth := cfg.AuthMiddleware.OptionalAuth()

	// Models
	models := router.Group("/models")
	models.GET("", cfg.ModelHandler.List)
	models.GET("/search", cfg.ModelHandler.Search)
	models.GET("/user/:username", cfg.ModelHandler.ListForUser)
	models.GET("/:slug", cfg.ModelHandler.Get)
	models.GET("/:slug/author", cfg.ModelHandler.Author)
	models.GET("/:slug/rating", cfg.ModelHandler.Rating)
	models.GET("/:slug/recommendations", cfg.ModelHandler.Recommendations)
	models.GET("/:slug/graph", cfg.ModelHandler.Graph)
	models.GET("/:slug/collections", optionalAuth, cfg.CollectionHandler.ListForModel)
	models.POST("/:slug/views", cfg.ModelHandler.IncrementViews)

	protectedModels := models.Group("", requireAuth)
	protectedModels.POST("", cfg.ModelHandler.Create)
	protectedModels.PUT("/:slug", cfg.ModelHandler.Update)
	protectedModels.DELETE("/:slug", cfg.ModelHandler.Delete)
	protectedModels.POST("/:slug/vote", cfg.ModelHandler.Vote)
	protectedModels.GET("/:slug/vote", cfg.ModelHandler.VoteStatus)

	router.DELETE("/assets/:type/:slug/:name", requireAuth, cfg.ModelHandler.RemoveAsset)

	// Collections
	collections := router.Group("/collections")
	collections.GET("", cfg.CollectionHandler.List)
	collections.GET("/user/:username", optionalAuth, cfg.CollectionHandler.ListForUser)
	collections.GET("/:slug", optionalAuth, cfg.CollectionHandler.Get)
	collections.GET("/:slug/models", optionalAuth, cfg.CollectionHandler.GetWithModels)

	protectedCollections := collections.Group("", requireAuth)
	protectedCollections.POST("", cfg.CollectionHandler.Store)
	protectedCollections.PUT("/:slug", cfg.CollectionHandler.Update)
	protectedCollections.DELETE("/:slug", cfg.CollectionHandler.Delete)
	protectedCollections.POST("/:slug/models/:model", cfg.CollectionHandler.AddModel)
	protectedCollections.DELETE("/:slug/models/:model", cfg.CollectionHandler.RemoveModel)

	return router
}
