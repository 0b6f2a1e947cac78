package handler

import (
	"github.com/SwarupAusarkar/QuickPath/internal/middleware"
	"github.com/SwarupAusarkar/QuickPath/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	rateLimiter *middleware.RateLimiter,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if logger != nil {
		router.Use(func(c *gin.Context) {
			logger.Info("Request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.Next()
		})
	}

	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware())
	}

	linkHandler := NewLinkHandler(linkService, logger)

	// Shorten and redirect live at the root per the public contract.
	router.POST("/shorten", linkHandler.Shorten)
	router.GET("/:code", linkHandler.Redirect)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)
		v1.GET("/links", linkHandler.ListLinks)
		v1.GET("/links/:code", linkHandler.GetLink)
	}

	return router
}
