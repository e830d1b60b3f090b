package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hanifmhd/erp-allocation-service/config"
	allocGWPkg "github.com/hanifmhd/erp-allocation-service/internal/allocation/gateway"
	allocH "github.com/hanifmhd/erp-allocation-service/internal/allocation/handler"
	allocListenerPkg "github.com/hanifmhd/erp-allocation-service/internal/allocation/listener"
	allocRepoPkg "github.com/hanifmhd/erp-allocation-service/internal/allocation/repository"
	"github.com/hanifmhd/erp-allocation-service/internal/allocation/session"
	allocUCPkg "github.com/hanifmhd/erp-allocation-service/internal/allocation/usecase"
	"github.com/hanifmhd/erp-allocation-service/pkg/broker"
	"github.com/hanifmhd/erp-allocation-service/pkg/cache"
	"github.com/hanifmhd/erp-allocation-service/pkg/database/postgres"
	"github.com/hanifmhd/erp-allocation-service/pkg/logger"
	"github.com/hanifmhd/erp-allocation-service/pkg/search"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database (read replica of the ERP schema)
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka Consumer
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// 6. Initialize Elasticsearch (optional; history search degrades without it)
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch (history search disabled)", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 7. Session store + janitor
	store := session.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.StartJanitor(ctx,
		time.Duration(cfg.Session.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
	)

	// 8. Wire the allocation feature
	allocRepo := allocRepoPkg.NewPGRepository(db)
	commitSink := allocGWPkg.NewOrderServiceGateway(&cfg.OrderService, appLogger)
	allocUC := allocUCPkg.NewAllocationUseCase(allocRepo, commitSink, store, redisClient, esClient, appLogger)

	stockListener := allocListenerPkg.NewStockListener(kafkaConsumer, allocUC, appLogger)
	go stockListener.Start(ctx)

	allocHandler := allocH.NewAllocationHandler(allocUC, appLogger)

	// 9. Start HTTP server
	app := fiber.New(fiber.Config{
		AppName:               "erp-allocation-service",
		DisableStartupMessage: true,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	allocHandler.RegisterRoutes(app)

	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	appLogger.Info("Starting HTTP server", zap.String("port", port))

	go func() {
		if err := app.Listen(port); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("shutdown error", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
