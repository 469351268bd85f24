package main

import (
	"context"
	"fmt"
	"log"
	"os"

	apirest "github.com/feralbyte/killwatch/api/rest"
	"github.com/feralbyte/killwatch/api/sse"
	"github.com/feralbyte/killwatch/audit"
	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/config"
	dbadapter "github.com/feralbyte/killwatch/db"
	"github.com/feralbyte/killwatch/feed/cascade"
	"github.com/feralbyte/killwatch/feed/poller"
	mw "github.com/feralbyte/killwatch/middleware"
	"github.com/feralbyte/killwatch/model"
	"github.com/feralbyte/killwatch/notify"
	"github.com/feralbyte/killwatch/remote"
	"github.com/feralbyte/killwatch/scheduler"
	"github.com/feralbyte/killwatch/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints and streaming are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.New(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	st := store.New(db, logger)
	remoteClient := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Feed.FilesDir, cfg.Remote.Timeout, logger)
	notifySvc := notify.NewService(pubsub, c, cfg.Feed.RecentLimit, logger)
	policy := cascade.New(st, remoteClient, notifySvc, auditSvc, c, logger)
	feedPoller := poller.New(st, remoteClient, policy, notifySvc, c, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("poll-logs", cfg.Feed.PollInterval, true, func() {
		feedPoller.Tick(context.Background())
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.RequestID(), mw.RequestLog(logger, "/api/stream"), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	serverH := apirest.NewServerHandler(st, remoteClient, feedPoller, c, logger)
	banH := apirest.NewBanHandler(st, policy, logger)
	playerH := apirest.NewPlayerHandler(st, c, logger)
	notifH := apirest.NewNotificationHandler(notifySvc, logger)
	adminH := apirest.NewAdminHandler(st, feedPoller, sched, logger)
	sseH := sse.NewHandler(pubsub, cfg.Server.AdminKey, logger)

	api := r.Group("/api")
	{
		api.GET("/servers", serverH.List)
		api.GET("/players/:name", playerH.Stats)
		api.GET("/leaderboard/kills", playerH.TopKills)
		api.GET("/leaderboard/deaths", playerH.TopDeaths)
		api.GET("/activity", playerH.Activity)
		api.GET("/notifications", notifH.Recent)
		api.GET("/stream", sseH.Stream)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.POST("/servers", serverH.Register)
		adminG.DELETE("/servers/:id", serverH.Remove)
		adminG.GET("/bans", banH.List)
		adminG.POST("/bans", banH.Ban)
		adminG.DELETE("/bans/:id", banH.Unban)
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/tick", adminH.TriggerTick)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
