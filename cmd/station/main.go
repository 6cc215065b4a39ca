package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gatelog/internal/cache"
	"gatelog/internal/config"
	"gatelog/internal/export"
	"gatelog/internal/logging"
	"gatelog/internal/metrics"
	"gatelog/internal/relay"
	"gatelog/internal/replication"
	"gatelog/internal/roster"
	"gatelog/internal/session"
	"gatelog/internal/summary"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env, cfg.StationName)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("station failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	store, err := cache.Open(cfg.CachePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// If a room code arrived via environment it wins over the persisted one.
	if cfg.RoomCode != "" {
		if err := store.SaveRoom(ctx, cfg.RoomCode); err != nil {
			logger.Warn("persist configured room code", zap.Error(err))
		}
	}

	paths := buildRelayPaths(cfg, logger)
	defer func() {
		for _, p := range paths {
			p.Close()
		}
	}()

	engine := replication.New(paths, cfg.RelayTimeout, logger, m)
	engine.Start(ctx)

	students := roster.NewStore()
	ctrl := session.New(cfg.LateThreshold, students, store, engine, logger, m)
	ctrl.Start(ctx, cfg.ClockInterval)

	summarizer := summary.New(cfg.SummaryURL, cfg.SummaryTimeout, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.GET("/healthz", func(c *gin.Context) {
		st := ctrl.Status()
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"room":            st.Room,
			"replicating":     st.Replicating,
			"reachable_paths": st.ReachablePaths,
			"clock":           ctrl.Clock(),
		})
	})

	r.POST("/v1/scans", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev := ctrl.HandleScan(req.Text, time.Now())
		c.JSON(http.StatusOK, gin.H{"event": ev})
	})

	r.GET("/v1/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"events": ctrl.Events()})
	})

	r.DELETE("/v1/events", func(c *gin.Context) {
		ctrl.Clear(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	})

	r.GET("/v1/stats/hourly", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"counts": ctrl.HourlyCounts()})
	})

	r.GET("/v1/last-scan", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"last_scan": ctrl.LastScan()})
	})

	r.PUT("/v1/room", func(c *gin.Context) {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st := ctrl.SetRoom(c.Request.Context(), req.Code)
		c.JSON(http.StatusOK, st)
	})

	r.POST("/v1/roster/import", func(c *gin.Context) {
		rows, err := rosterRows(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		count := ctrl.ImportRoster(c.Request.Context(), roster.ParseRows(rows))
		c.JSON(http.StatusOK, gin.H{"imported": count})
	})

	r.GET("/v1/export", func(c *gin.Context) {
		data, err := export.Workbook(ctrl.Events())
		if err != nil {
			logger.Error("export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})

	r.GET("/v1/summary", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"summary": summarizer.Summarize(c.Request.Context(), ctrl.Events())})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("station listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	return nil
}

// buildRelayPaths creates one path per configured endpoint. Stations with no
// endpoints run standalone; a subset being down at startup is fine.
func buildRelayPaths(cfg config.App, logger *zap.Logger) []relay.Path {
	var paths []relay.Path
	for _, addr := range cfg.RedisRelays {
		paths = append(paths, relay.NewRedisPath(addr, logger))
	}
	for _, broker := range cfg.MQTTRelays {
		clientID := cfg.StationName + "-" + uuid.NewString()
		paths = append(paths, relay.NewMQTTPath(broker, clientID, cfg.RelayTimeout, logger))
	}
	return paths
}

// rosterRows accepts either a multipart workbook upload or a JSON rows body.
func rosterRows(c *gin.Context) ([][]string, error) {
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		return export.ReadRows(file)
	}
	var body struct {
		Rows [][]string `json:"rows" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	return body.Rows, nil
}
