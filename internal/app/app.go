// Package app wires the modules together and owns the HTTP router.
package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/printforge/server/internal/module/mailer"
	"github.com/printforge/server/internal/module/order"
	"github.com/printforge/server/internal/module/payment"
	"github.com/printforge/server/internal/module/postpay"
	sharedcache "github.com/printforge/server/internal/shared/cache"
	"github.com/printforge/server/internal/shared/config"
	"github.com/printforge/server/internal/shared/database"
	"github.com/printforge/server/internal/shared/logger"
	"github.com/printforge/server/internal/shared/metrics"
	"github.com/printforge/server/internal/shared/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App represents the application.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   redis.UniversalClient
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Modules
	paymentHandler *payment.Handler
	webhookHandler *payment.WebhookHandler
	worker         *postpay.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config:  cfg,
		logger:  log,
		metrics: metrics.New("printforge"),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	// Redis is optional; the status cache degrades to database reads.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.New(&cfg.Redis)
		if err != nil {
			log.Warn("redis connection failed, status cache disabled", zap.Error(err))
		} else {
			app.redis = redisClient
		}
	}

	app.router = app.setupRouter()
	app.initModules()
	app.registerRoutes()

	return app, nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Static("/static", a.config.Storage.StaticDir)

	return r
}

// initModules initializes all application modules.
func (a *App) initModules() {
	orderRepo := order.NewRepository(a.db)
	paymentRepo := payment.NewRepository(a.db)

	statusCache := payment.NewStatusCache(a.redis, a.logger)

	paymentService := payment.NewService(
		a.config.TwoCheckout,
		a.config.Server.BaseURL,
		orderRepo,
		paymentRepo,
		statusCache,
		a.logger,
	)
	a.paymentHandler = payment.NewHandler(paymentService, a.logger)

	a.webhookHandler = payment.NewWebhookHandler(
		a.config.TwoCheckout,
		payment.NewStore(a.db),
		statusCache,
		a.metrics,
		a.logger,
	)

	sender := mailer.New(a.config.Mailer, a.metrics, a.logger)
	previews := postpay.NewPreviewStore(a.config.Storage.StaticDir, a.logger)
	a.worker = postpay.NewWorker(
		postpay.NewStore(a.db),
		previews,
		sender,
		a.config.Worker.BatchSize,
		a.metrics,
		a.logger,
	)
}

// registerRoutes registers routes for all modules.
func (a *App) registerRoutes() {
	api := a.router.Group("/api")
	a.paymentHandler.RegisterRoutes(api)

	// Provider-facing endpoints live at the root; their paths are configured
	// in the merchant dashboard.
	a.webhookHandler.RegisterRoutes(a.router)
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Worker returns the post-payment worker.
func (a *App) Worker() *postpay.Worker {
	return a.worker
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.redis != nil {
		_ = sharedcache.Close(a.redis)
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}
}
