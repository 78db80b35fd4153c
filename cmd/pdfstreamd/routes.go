package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/gin-gonic/gin"

	"github.com/iiifstream/pdfstream/internal/middleware"
	"github.com/iiifstream/pdfstream/internal/platform/config"
	"github.com/iiifstream/pdfstream/internal/platform/logger"
	"github.com/iiifstream/pdfstream/internal/platform/metrics"
)

// serverDeps bundles the process-wide collaborators every handler needs,
// built once in main and threaded through RegisterRoutes.
type serverDeps struct {
	cfg config.Config
	log *logger.Logger
	rec metrics.Recorder
}

// RegisterRoutes wires the HTTP surface onto router: the conversion API,
// a health check, and a localhost-only pprof group.
func RegisterRoutes(router *gin.Engine, deps serverDeps) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.CORSMiddleware())
	v1.Use(middleware.GoogleAuthMiddleware())
	{
		v1.OPTIONS("/*path", func(c *gin.Context) {})
		v1.POST("/convert", deps.handleConvert)
		v1.POST("/estimate", deps.handleEstimate)
	}

	pprofGroup := router.Group("/debug/pprof")
	pprofGroup.Use(func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP != "127.0.0.1" && clientIP != "::1" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "pprof is only accessible from localhost"})
			return
		}
		c.Next()
	})
	{
		pprofGroup.GET("/", gin.WrapF(http.HandlerFunc(pprof.Index)))
		pprofGroup.GET("/cmdline", gin.WrapF(http.HandlerFunc(pprof.Cmdline)))
		pprofGroup.GET("/profile", gin.WrapF(http.HandlerFunc(pprof.Profile)))
		pprofGroup.GET("/symbol", gin.WrapF(http.HandlerFunc(pprof.Symbol)))
		pprofGroup.POST("/symbol", gin.WrapF(http.HandlerFunc(pprof.Symbol)))
		pprofGroup.GET("/trace", gin.WrapF(http.HandlerFunc(pprof.Trace)))
		pprofGroup.GET("/heap", gin.WrapF(http.HandlerFunc(pprof.Index)))
		pprofGroup.GET("/goroutine", gin.WrapF(http.HandlerFunc(pprof.Index)))
		pprofGroup.GET("/allocs", gin.WrapF(http.HandlerFunc(pprof.Index)))
		pprofGroup.GET("/block", gin.WrapF(http.HandlerFunc(pprof.Index)))
		pprofGroup.GET("/mutex", gin.WrapF(http.HandlerFunc(pprof.Index)))
	}
}
