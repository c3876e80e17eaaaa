package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/croplabs/farmd/internal/bootstrap"
	"github.com/croplabs/farmd/internal/concurrency"
	"github.com/croplabs/farmd/internal/config"
	"github.com/croplabs/farmd/internal/database"
	"github.com/croplabs/farmd/internal/farm"
	"github.com/croplabs/farmd/internal/handler"
	"github.com/croplabs/farmd/internal/server"
	"github.com/croplabs/farmd/internal/settlement"
	"github.com/croplabs/farmd/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration failed: %v", err)
	}

	logFile, err := bootstrap.SetupLogger(cfg)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer logFile.Close()

	handler.InitValidator()

	dbPool, err := database.NewPool(cfg.GetDBConnString(), cfg.DBMaxConns, cfg.DBMaxConnIdleTime, cfg.DBMaxConnLifetime)
	if err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	eventBus, publisher, err := bootstrap.InitializeEventSystem(cfg)
	if err != nil {
		slog.Error("Event system initialization failed", "error", err)
		os.Exit(1)
	}

	repos := bootstrap.InitializeRepositories(dbPool)

	ctx := context.Background()
	farmRow, err := bootstrap.SyncFarmConfig(ctx, cfg, repos.Farm)
	if err != nil {
		slog.Error("Farm config sync failed", "error", err)
		os.Exit(1)
	}

	clients := bootstrap.BuildRegistryClients(cfg, farmRow)
	locks := concurrency.NewLockManager()
	pool := worker.NewPool(cfg.SettlementWorkers, cfg.SettlementQueueSize)

	engine := settlement.NewEngine(repos.Farm, repos.Settlement, clients, pool, publisher, locks)
	if err := engine.Start(ctx); err != nil {
		slog.Error("Settlement engine start failed", "error", err)
		os.Exit(1)
	}

	farmSvc := farm.NewService(repos.Farm, repos.Settlement, engine, locks, publisher, farmRow.ID)

	if err := bootstrap.RegisterEventHandlers(bootstrap.EventHandlerDependencies{
		EventBus: eventBus,
		Config:   cfg,
	}); err != nil {
		slog.Error("Event handler registration failed", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg.Port, cfg.APIKey, nil, dbPool, farmSvc)

	// Run the server until a termination signal arrives
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	case sig := <-quit:
		slog.Info("Signal received, shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	bootstrap.GracefulShutdown(shutdownCtx, bootstrap.ShutdownComponents{
		Server:             srv,
		Engine:             engine,
		ResilientPublisher: publisher,
	})
}
