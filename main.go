package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/config"
	"github.com/kendall-kelly/cafe-orders-api/controllers"
	"github.com/kendall-kelly/cafe-orders-api/metrics"
	"github.com/kendall-kelly/cafe-orders-api/middleware"
	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// application holds the wired services shared by the router and main
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	metrics   *metrics.Metrics
	hub       *services.Hub
	catalog   *services.CatalogService
	orders    *services.OrderService
	analytics *services.AnalyticsService
	closers   []func() error
}

// newApplication wires the services. Kafka, Redis and S3 are only used when configured.
func newApplication(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*application, error) {
	app := &application{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}

	hubOpts := []services.HubOption{services.WithMetrics(app.metrics)}
	if len(cfg.KafkaBrokers) > 0 {
		sink := services.NewKafkaSink(services.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger), logger)
		hubOpts = append(hubOpts, services.WithSink(sink))
		app.closers = append(app.closers, sink.Close)
		logger.Info("Mirroring order events to Kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}
	app.hub = services.NewHub(logger, cfg.EventBufferSize, hubOpts...)

	var images *services.MenuImageService
	if cfg.AWSS3Bucket != "" {
		storage, err := services.NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		images = services.NewMenuImageService(storage)
	}
	app.catalog = services.NewCatalogService(db, images, logger)

	var resolver services.Catalog = app.catalog
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cached := services.NewCachedCatalog(app.catalog, client, cfg.CatalogCacheTTL, logger)
		app.catalog.OnChange(cached.Invalidate)
		resolver = cached
		app.closers = append(app.closers, client.Close)
		logger.Info("Caching catalog lookups in Redis", zap.String("addr", cfg.RedisAddr))
	}

	app.orders = services.NewOrderService(db, resolver, app.hub, logger, app.metrics)
	app.analytics = services.NewAnalyticsService(db, app.catalog, logger)
	return app, nil
}

// close releases the optional backends
func (app *application) close() {
	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			app.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
}

// setupRouter registers every route. auth authenticates the protected group.
func setupRouter(app *application, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(app.logger),
		middleware.RequestMetrics(app.metrics),
		cors.New(cors.Config{
			AllowOrigins:     app.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	menu := controllers.NewMenuController(app.catalog, app.logger)
	orders := controllers.NewOrderController(app.orders, app.logger)
	analytics := controllers.NewAnalyticsController(app.analytics, app.logger)
	events := controllers.NewEventsController(app.hub, app.logger, 0)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus(app.db))
		v1.GET("/metrics", gin.WrapH(app.metrics.Handler()))

		v1.GET("/menu", menu.ListMenu)
		v1.GET("/menu/:id", menu.GetMenuItem)

		protected := v1.Group("")
		protected.Use(auth, middleware.RequirePrincipal())
		{
			protected.POST("/menu", menu.CreateMenuItem)
			protected.PUT("/menu/:id", menu.UpdateMenuItem)
			protected.DELETE("/menu/:id", menu.DeleteMenuItem)
			protected.POST("/menu/:id/image", menu.UploadMenuItemImage)

			protected.POST("/orders", orders.CreateOrder)
			protected.GET("/orders", orders.ListOrders)
			protected.GET("/orders/mine", orders.ListMyOrders)
			protected.GET("/orders/:id", orders.GetOrder)
			protected.PATCH("/orders/:id/status", orders.UpdateOrderStatus)

			protected.GET("/events", events.Stream)
			protected.GET("/analytics/dashboard", analytics.Dashboard)
		}
	}

	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Cafe Orders API server...", zap.String("env", cfg.GoEnv))

	if err := config.ConnectDatabase(cfg); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedCatalog {
		seeded, err := services.SeedCatalog(ctx, db, logger)
		if err != nil {
			logger.Fatal("Failed to seed catalog", zap.Error(err))
		}
		logger.Info("Catalog seed finished", zap.Int("items", seeded))
	}

	app, err := newApplication(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer app.close()

	auth, err := middleware.EnsureValidToken(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up authentication", zap.Error(err))
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go app.hub.Run(hubCtx)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(app, auth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Closing the hub ends the open event streams so Shutdown does not wait on them
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cafe Orders API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the underlying SQL database to check connection
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		// Ping the database to verify connection
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.WithContext(c.Request.Context()).Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
