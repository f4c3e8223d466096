package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"shop-service/internal/model"
	"shop-service/internal/router"
	"shop-service/internal/service"
	"shop-service/pkg/cache"
	"shop-service/pkg/config"
	"shop-service/pkg/database"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting shop-service", appConfig.LogConfig()...)

	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.MigrateModels(model.AllModels()...); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap the superuser that manages the catalog
	authService := service.NewAuthService(database.GetDB(), jwtutil.NewJWTUtil(&appConfig.JWT), log.Named("auth"))
	if err := authService.EnsureSuperuser(ctx, appConfig.Admin.Username, appConfig.Admin.Password); err != nil {
		log.Fatal("Failed to create superuser", zap.Error(err))
	}

	redisClient := cache.NewRedisClient(ctx, &appConfig.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	e := router.New(router.Deps{
		Config: appConfig,
		DB:     database.GetDB(),
		Redis:  redisClient,
		Log:    log,
	})

	port := appConfig.Server.Port
	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
