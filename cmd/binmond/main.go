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

	"smart-bin-backend/config"
	"smart-bin-backend/internal/api"
	"smart-bin-backend/internal/bootstrap"
	"smart-bin-backend/internal/fleet"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "smartbin ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if !cfg.Push.Enabled() {
		logger.Println("VAPID keys not configured; browser push alerts are disabled")
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore, gormDB, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to initialize %s store: %v", cfg.Database.Driver, err)
	}
	logger.Printf("%s store initialized", cfg.Database.Driver)

	slogger := bootstrap.NewLogger()
	notifier, err := bootstrap.BuildNotifier(ctx, cfg, gormDB, slogger)
	if err != nil {
		logger.Fatalf("failed to initialize notifier: %v", err)
	}

	sinks, closeSinks := bootstrap.BuildSinks(ctx, cfg)
	defer closeSinks()
	logger.Printf("%d reading sinks enabled", len(sinks))

	ingestSvc := bootstrap.NewIngestService(appStore, notifier, sinks, cfg, slogger)

	// Fleet gauges refresh in the background
	monitor := fleet.NewMonitor(appStore, cfg.Fleet.OfflineAfter)
	stopMonitor, err := monitor.Start(ctx, cfg.Fleet.SweepSchedule)
	if err != nil {
		logger.Fatalf("failed to start fleet monitor: %v", err)
	}

	// Initialize router
	handler := api.NewHandler(appStore, ingestSvc, bootstrap.WebpushOptions(cfg.Push), gormDB, cfg.Fleet.OfflineAfter)
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	stopMonitor()
	cancel()

	logger.Println("Server gracefully stopped")
}
