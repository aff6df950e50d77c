package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/analytics"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/jobs"
	"storefront/internal/pricing"
	"storefront/internal/realtime"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint, cfg.Observ.TracingEnabled)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	var publisher service.Publisher = broker.NopPublisher{}
	var producer *broker.Producer
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges)
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		logger.Warn("Kafka disabled; change events are dropped and live updates are off")
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer jobClient.Close()

	rates := pricing.NewRates(cfg.Business.TaxRate, cfg.Business.CouponDiscountPercent)
	dashboardCache := analytics.NewCache(redisClient.GetClient(), cfg.Business.DashboardCacheTTL)

	cartService := service.NewCartService(db, db, publisher, rates)
	services := api.Services{
		Catalog:  service.NewCatalogService(db, db, publisher),
		Cart:     cartService,
		Wishlist: service.NewWishlistService(db, db, cartService, publisher),
		Orders: service.NewOrderService(db, redisClient, publisher, service.OrderConfig{
			Rates:          rates,
			LockTTL:        cfg.Business.CheckoutLockTTL,
			IdempotencyTTL: cfg.Business.IdempotencyTTL,
		}),
		Reviews:   service.NewReviewService(db, db, publisher),
		Queries:   service.NewQueryService(db, db, jobClient, publisher),
		Profiles:  service.NewProfileService(db, redisClient, cfg.Auth.AllowAdminSignup),
		Dashboard: service.NewDashboardService(db, dashboardCache, time.UTC),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var changeFeed *worker.ChangeFeedWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, cfg.Kafka.ConsumerGroup)
		changeFeed = worker.NewChangeFeedWorker(consumer, db, db, dashboardCache, redisClient)
		go func() {
			if err := changeFeed.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change feed worker error", zap.Error(err))
			}
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Config{
		Services: services,
		Hub:      realtime.NewHub(redisClient, cfg.Business.StreamCoalesceWindow),
		Verifier: auth.NewTokenVerifier(cfg.Auth.JWTSecret),
		Resolver: auth.NewRoleResolver(db, redisClient, cfg.Auth.RoleCacheTTL),
		Readiness: []api.ReadinessCheck{
			{Name: "database", Check: db.Ping},
			{Name: "redis", Check: redisClient.Ping},
		},
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		Production:         cfg.IsProduction(),
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if changeFeed != nil {
		if err := changeFeed.Stop(); err != nil {
			logger.Warn("Error stopping change feed worker", zap.Error(err))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("Error closing Kafka producer", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
