package bootstrap

import (
	"context"
	"log/slog"

	"github.com/croplabs/farmd/internal/event"
	"github.com/croplabs/farmd/internal/server"
	"github.com/croplabs/farmd/internal/settlement"
)

// ShutdownComponents holds all components that need graceful shutdown.
type ShutdownComponents struct {
	Server             *server.Server
	Engine             *settlement.Engine
	ResilientPublisher *event.ResilientPublisher
}

// GracefulShutdown performs graceful shutdown of all application components.
// It shuts down in the correct order:
// 1. HTTP server (stop accepting new requests)
// 2. Settlement engine (drain in-flight legs; pending legs are re-dispatched on restart)
// 3. Event publisher (flush pending events so terminal signals are not lost)
//
// Errors during shutdown are logged but do not stop the shutdown sequence.
func GracefulShutdown(ctx context.Context, components ShutdownComponents) {
	slog.Info(LogMsgShuttingDownServer)

	// Shutdown server first (stop accepting new requests)
	if err := components.Server.Stop(ctx); err != nil {
		slog.Error(LogMsgServerForcedShutdown, "error", err)
	}

	if components.Engine != nil {
		slog.Info(LogMsgShuttingDownEngine)
		components.Engine.Stop()
	}

	// Shutdown resilient publisher last to flush pending events
	slog.Info(LogMsgShuttingDownEventPublisher)
	if err := components.ResilientPublisher.Shutdown(ctx); err != nil {
		slog.Error(LogMsgResilientPublisherFailed, "error", err)
	}

	slog.Info(LogMsgServerStopped)
}
