package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croplabs/farmd/internal/event"
)

func TestDiscordNotifier_NoChannelConfigured(t *testing.T) {
	// Without a channel id the notifier consumes events without REST calls
	n, err := NewDiscordNotifier("test-token", "")
	require.NoError(t, err)

	bus := event.NewMemoryBus()
	n.Subscribe(bus)

	err = bus.Publish(context.Background(), event.NewSettlementEvent(
		event.SettlementFailed, "s-1", "alice", "harvest", 2, 1))
	assert.NoError(t, err)

	err = bus.Publish(context.Background(), event.NewCompensationStrandedEvent(
		event.CompensationStrandedPayloadV1{
			SettlementID: "s-1",
			Account:      "alice",
			LegKind:      "reward-credit",
			Amount:       "250",
			Error:        "connection refused",
		}))
	assert.NoError(t, err)
}

func TestDiscordNotifier_IgnoresForeignPayload(t *testing.T) {
	n, err := NewDiscordNotifier("test-token", "123")
	require.NoError(t, err)

	// A payload of the wrong shape is dropped, not sent
	err = n.handleSettlementFailed(context.Background(), event.Event{
		Type:    event.SettlementFailed,
		Payload: "not a settlement payload",
	})
	assert.NoError(t, err)
}
