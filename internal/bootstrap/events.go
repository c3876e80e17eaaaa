package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/croplabs/farmd/internal/config"
	"github.com/croplabs/farmd/internal/event"
)

// InitializeEventSystem creates and configures the event bus and resilient
// publisher. It creates the dead-letter directory and wires the dead-letter
// writer into the publisher so an event that exhausts its retries is still
// recorded somewhere an operator can find it.
// Returns the event bus, resilient publisher, and any error encountered.
func InitializeEventSystem(cfg *config.Config) (event.Bus, *event.ResilientPublisher, error) {
	// Initialize Event Bus
	eventBus := event.NewMemoryBus()

	// Ensure dead-letter directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DeadLetterPath), DirPermission); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", LogMsgFailedCreateDeadLetterDir, err)
	}

	deadLetter, err := event.NewDeadLetterWriter(cfg.DeadLetterPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", LogMsgFailedCreateDeadLetter, err)
	}

	// Initialize Resilient Publisher with retry logic
	resilientPublisher := event.NewResilientPublisher(eventBus, event.ResilientConfig{
		DeadLetter: deadLetter,
	})

	slog.Info(LogMsgEventSystemInitialized, "deadletter_path", cfg.DeadLetterPath)

	return eventBus, resilientPublisher, nil
}
