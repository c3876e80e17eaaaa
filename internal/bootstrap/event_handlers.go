package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/croplabs/farmd/internal/config"
	"github.com/croplabs/farmd/internal/event"
	"github.com/croplabs/farmd/internal/notify"
)

// EventHandlerDependencies holds the dependencies needed for event handler registration.
type EventHandlerDependencies struct {
	EventBus event.Bus
	Config   *config.Config
}

// RegisterEventHandlers sets up all event subscribers. Currently that is the
// Discord alert notifier for settlement failures and stranded compensations,
// enabled only when a bot token and channel are configured.
func RegisterEventHandlers(deps EventHandlerDependencies) error {
	if !deps.Config.AlertsEnabled() {
		slog.Info(LogMsgAlertsDisabled)
		return nil
	}

	notifier, err := notify.NewDiscordNotifier(deps.Config.DiscordToken, deps.Config.DiscordAlertChannelID)
	if err != nil {
		return fmt.Errorf("failed to create alert notifier: %w", err)
	}
	notifier.Subscribe(deps.EventBus)
	slog.Info(LogMsgAlertNotifierInit, "channel_id", deps.Config.DiscordAlertChannelID)

	return nil
}
