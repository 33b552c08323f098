package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/social-feed/social-feed/internal/middleware"
	"github.com/social-feed/social-feed/pkg/logger"
)

// RouteRegistrar is implemented by every handler group mounted under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc)
}

type RouterOptions struct {
	Auth               gin.HandlerFunc
	MaxMultipartMemory int64
	// ImagesDir is served under StaticImagesPath when set.
	ImagesDir string
}

func NewRouter(log *logger.Logger, opts RouterOptions, groups ...RouteRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS())

	if opts.MaxMultipartMemory > 0 {
		router.MaxMultipartMemory = opts.MaxMultipartMemory
	}
	if opts.ImagesDir != "" {
		router.Static(StaticImagesPath, opts.ImagesDir)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := router.Group("/api/v1")
	for _, g := range groups {
		g.RegisterRoutes(api, opts.Auth)
	}

	router.NoRoute(func(c *gin.Context) {
		abortWithDetail(c, http.StatusNotFound, ErrorDetail{
			Loc:  []string{"path"},
			Msg:  "Not Found",
			Type: "not_found",
		})
	})
	return router
}
