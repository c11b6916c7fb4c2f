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

	"github.com/SherClockHolmes/webpush-go"

	"palay-drying-backend/config"
	"palay-drying-backend/internal/api"
	"palay-drying-backend/internal/db"
	"palay-drying-backend/internal/notification"
	"palay-drying-backend/internal/predict"
	"palay-drying-backend/internal/remote"
	"palay-drying-backend/internal/sensor"
	"palay-drying-backend/internal/store"
	appsync "palay-drying-backend/internal/sync"
)

func main() {
	logger := log.New(os.Stdout, "dryerd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	remoteClient := remote.NewClient(&cfg.Remote)
	predictClient := predict.NewClient(&cfg.Predict)
	sensorReader := sensor.NewHTTPReader(&cfg.Sensor)
	engine := appsync.NewEngine(appStore, remoteClient, appsync.StrategyFromName(cfg.Sync.Strategy))
	logger.Printf("sync engine ready (strategy: %s)", cfg.Sync.Strategy)

	handler := api.NewHandler(appStore, remoteClient, engine, predictClient, sensorReader, cfg.Session.TTL)

	// Reminder workers, if push is configured.
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("push is enabled but VAPID keys are not configured")
		}
		webpushOptions := webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
		pool.Start(ctx)
		go pool.RunDueCheck(ctx, 12*time.Hour)
		handler.SetNotifier(pool)
		logger.Printf("notification worker pool started (size %d)", cfg.WorkerPool.Size)
	}

	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
