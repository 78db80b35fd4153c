package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iiifstream/pdfstream/internal/platform/config"
	"github.com/iiifstream/pdfstream/internal/platform/logger"
	"github.com/iiifstream/pdfstream/internal/platform/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("pdfstreamd: loading config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("pdfstreamd: building logger: %v", err)
	}
	defer lg.Sync()

	rec := metrics.LoggingRecorder{Log: lg}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Lightweight custom recovery: only captures a stack trace on an actual
	// panic, rather than gin.Recovery()'s per-request defer overhead.
	router.Use(func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				lg.Error("panic recovered", "error", r, "path", c.Request.URL.Path)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	})
	if gin.Mode() == gin.DebugMode {
		router.Use(gin.Logger())
	}

	// Concurrency control matched to CPU count: image decoding and PDF
	// object serialization are CPU-bound, so more in-flight requests than
	// cores just adds context-switch overhead without raising throughput.
	maxConcurrent := runtime.NumCPU()
	sem := make(chan struct{}, maxConcurrent)
	router.Use(func(c *gin.Context) {
		sem <- struct{}{}
		defer func() { <-sem }()
		c.Next()
	})

	RegisterRoutes(router, serverDeps{
		cfg: cfg,
		log: lg,
		rec: rec,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // conversions can run far longer than a fixed write deadline
	}

	go func() {
		lg.Info("pdfstreamd listening", "addr", cfg.ListenAddr, "max_concurrent", maxConcurrent)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("graceful shutdown failed", "error", err)
	}
}
