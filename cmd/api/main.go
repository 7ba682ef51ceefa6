package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/medicura/medicura-backend/api/routes"
	"github.com/medicura/medicura-backend/internal/appointments"
	"github.com/medicura/medicura-backend/internal/auth"
	"github.com/medicura/medicura-backend/internal/cart"
	"github.com/medicura/medicura-backend/internal/checkout"
	"github.com/medicura/medicura-backend/internal/doctors"
	"github.com/medicura/medicura-backend/internal/inventory"
	"github.com/medicura/medicura-backend/internal/orders"
	"github.com/medicura/medicura-backend/internal/payments"
	"github.com/medicura/medicura-backend/internal/users"
	"github.com/medicura/medicura-backend/pkg/config"
	"github.com/medicura/medicura-backend/pkg/db"
	"github.com/medicura/medicura-backend/pkg/gateway/sslcommerz"
	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/metrics"
	"github.com/medicura/medicura-backend/pkg/migrate"
	"github.com/medicura/medicura-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	gatewayClient, err := sslcommerz.NewClient(cfg.Gateway, pipelineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	doctorsRepo := doctors.NewRepository(gormDB)
	inventoryRepo := inventory.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	appointmentsRepo := appointments.NewRepository(gormDB)

	authService := auth.NewService(usersRepo, cfg.JWT, logg)
	cartService := cart.NewService(cartRepo, inventoryRepo, logg)
	checkoutService := checkout.NewService(dbClient, cartRepo, ordersRepo, inventoryRepo, pipelineMetrics, logg)
	ordersService := orders.NewService(ordersRepo, logg)
	appointmentsService := appointments.NewService(appointmentsRepo, doctorsRepo, logg)
	callbackGuard := payments.NewIdempotencyGuard(redisClient, cfg.Gateway.CallbackTTL, logg)
	paymentsService := payments.NewService(
		dbClient,
		paymentsRepo,
		appointmentsRepo,
		doctorsRepo,
		ordersRepo,
		usersRepo,
		gatewayClient,
		callbackGuard,
		pipelineMetrics,
		logg,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DBPinger:     dbClient,
			RedisPinger:  redisClient,
			Registry:     registry,
			Auth:         authService,
			Cart:         cartService,
			Checkout:     checkoutService,
			Orders:       ordersService,
			Payments:     paymentsService,
			Appointments: appointmentsService,
			Doctors:      doctorsRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
