package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"campus-marketplace/internal/api"
	"campus-marketplace/internal/config"
	"campus-marketplace/internal/consumer"
	"campus-marketplace/internal/events"
	"campus-marketplace/internal/service"
	"campus-marketplace/migrations"
)

const shutdownTimeout = 15 * time.Second

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "campus-marketplace").Logger()

func connectDB(cfg *config.Config) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", cfg.DSN())
		if err == nil {
			err = db.Ping()
			if err == nil {
				logger.Info().Msgf("Connected to DB %s", cfg.DBName)
				return db, nil
			}
			_ = db.Close()
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to DB %s (%s:%s)", i+1, cfg.DBName, cfg.DBHost, cfg.DBPort)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", cfg.DBName, cfg.DBHost, cfg.DBPort, err)
}

func rateLimiter() echo.MiddlewareFunc {
	deny := func(c echo.Context, _ string, _ error) error {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded", "kind": "RateLimited"})
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(10),
				Burst:     30,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return deny(c, "", err)
		},
		DenyHandler: deny,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := connectDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database unavailable")
	}
	if err := migrations.AutoMigrate(db, 3); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	publisher := events.NewKafkaPublisher(kafkaWriter)

	stores := service.NewSQLStores(db)
	txRunner := service.NewSQLTxRunner(db)
	catalogService := service.NewCatalogService(stores.Products, rdb, cfg.ProductTTL)
	cartService := service.NewCartService(stores, txRunner)
	checkoutService := service.NewCheckoutService(txRunner, rdb, publisher, catalogService)
	orderService := service.NewOrderService(stores.Orders, publisher)

	orderConsumer := consumer.NewConsumer(
		config.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID),
		catalogService,
		cfg.RestockOnCancel,
	)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	go orderConsumer.Run(consumerCtx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(rateLimiter())

	api.Register(e, api.Handlers{
		Products: api.NewProductHandler(catalogService),
		Carts:    api.NewCartHandler(cartService, checkoutService),
		Orders:   api.NewOrderHandler(orderService),
	}, cfg.JWTSecret)

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server stopped")
		}
	}()

	// operations run concurrently, so the ordered teardown lives in one of them
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"campus-marketplace": func(ctx context.Context) error {
				logger.Info().Msg("Graceful shutdown initiated...")
				httpErr := e.Shutdown(ctx)
				stopConsumer()
				return errors.Join(
					httpErr,
					orderConsumer.Close(),
					kafkaWriter.Close(),
					rdb.Close(),
					db.Close(),
				)
			},
		},
	)

	exitCode := <-wait
	logger.Info().Msgf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
