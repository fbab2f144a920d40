package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ytpulse/config"
	"ytpulse/core"
	"ytpulse/core/alerts"
	"ytpulse/core/analytics"
	"ytpulse/core/ingest"
	"ytpulse/core/youtube"
	"ytpulse/models"
)

func main() {
	configPath := flag.String("config", "ytpulse.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}

	log, rotator, err := setupLogger(cfg)
	if err != nil {
		logrus.Fatal("Failed to set up logging: ", err)
	}
	defer rotator.Close()

	gin.SetMode(gin.ReleaseMode)

	db, err := initDatabase(cfg.DBPath, log)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}

	// Outbound side: key pool, gateway, Data API client.
	pool, err := core.NewKeyPool(cfg.YouTube.APIKeys, log)
	if err != nil {
		log.Fatal("Failed to create key pool: ", err)
	}
	gateway := core.NewGateway(pool, cfg.Quota.ShortCooldown.Std(), cfg.Quota.DailyCooldown.Std(), log)
	ytClient := youtube.NewClient(gateway, core.NewHTTPClient(), cfg.YouTube.RequestsPerSec, cfg.YouTube.Burst, log)

	// Services.
	broker := core.NewEventBroker()
	calc := analytics.NewCalculator(db)
	ingestion := ingest.NewService(db, ytClient, log)
	alertSvc := alerts.NewService(db, calc, broker, log)

	// Background jobs: data refresh, alert sweep, and the quota-epoch reset
	// that re-arms the key pool.
	scheduler := core.NewScheduler(log)
	scheduler.Add("channel_refresh", cfg.Jobs.RefreshInterval.Std(), ingestion.RefreshAllChannels)
	scheduler.Add("alert_sweep", cfg.Jobs.AlertInterval.Std(), func(ctx context.Context) error {
		return alertSvc.CheckAll()
	})
	scheduler.Add("quota_reset", cfg.Quota.ResetInterval.Std(), func(ctx context.Context) error {
		pool.ResetAll()
		return nil
	})
	scheduler.Start()
	defer scheduler.Stop()

	app := &App{
		db:        db,
		pool:      pool,
		ingestion: ingestion,
		calc:      calc,
		alerts:    alertSvc,
		broker:    broker,
		logger:    log,
	}

	engine := gin.New()
	engine.Use(gin.RecoveryWithWriter(log.Writer()))
	engine.Use(corsMiddleware())
	engine.Use(requestLoggerMiddleware(log))
	engine.Use(rateLimitMiddleware(NewIPRateLimiter(rate.Limit(cfg.HTTP.RateLimitPerSec), cfg.HTTP.RateLimitBurst), log))

	setupRoutes(engine, app)

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: engine,
	}

	go func() {
		log.Infof("Starting ytpulse on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}

// setupLogger configures logrus with JSON output teed to stdout and a
// size-capped rotating file.
func setupLogger(cfg *config.Config) (*logrus.Logger, *core.LogRotator, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	rotator, err := core.NewLogRotator(cfg.Log.File, cfg.Log.MaxSizeMB)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))

	return log, rotator, nil
}

// initDatabase opens sqlite and migrates the schema. SQL statements are
// only logged on error.
func initDatabase(path string, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database initialized successfully")
	return db, nil
}
