// Package notify pushes operator alerts to Discord for the settlement
// failures that need a human: a failed settlement leaves recovered funds in
// the vault, a stranded compensation leaves reserved value recorded only in
// the dead letter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/croplabs/farmd/internal/event"
)

const (
	colorFailed   = 0xE67E22 // Orange
	colorStranded = 0xE74C3C // Red

	footerText = "Settlement Engine"
)

// Log messages
const (
	LogMsgAlertSent   = "Alert sent"
	LogMsgAlertFailed = "Failed to send alert"
)

// DiscordNotifier forwards settlement failure events to an alert channel
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	printer   *message.Printer
}

// NewDiscordNotifier creates a notifier. The session is only used for REST
// calls, no gateway connection is opened.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &DiscordNotifier{
		session:   s,
		channelID: channelID,
		printer:   message.NewPrinter(language.English),
	}, nil
}

// Subscribe registers the notifier on the settlement failure events
func (n *DiscordNotifier) Subscribe(bus event.Bus) {
	bus.Subscribe(event.SettlementFailed, n.handleSettlementFailed)
	bus.Subscribe(event.CompensationStranded, n.handleCompensationStranded)
}

func (n *DiscordNotifier) handleSettlementFailed(_ context.Context, e event.Event) error {
	payload, ok := e.Payload.(event.SettlementPayloadV1)
	if !ok {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title: "Settlement failed",
		Description: n.printer.Sprintf(
			"Settlement `%s` (%s) for **%s** finished with %d of %d legs failed. Compensated value sits in the vault's recovered balance.",
			payload.SettlementID, payload.Kind, payload.Account, payload.LegsFailed, payload.LegsTotal),
		Color: colorFailed,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Account", Value: payload.Account, Inline: true},
			{Name: "Kind", Value: payload.Kind, Inline: true},
			{Name: "Failed legs", Value: n.printer.Sprintf("%d / %d", payload.LegsFailed, payload.LegsTotal), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerText},
	}

	return n.send(embed, e.Type)
}

func (n *DiscordNotifier) handleCompensationStranded(_ context.Context, e event.Event) error {
	payload, ok := e.Payload.(event.CompensationStrandedPayloadV1)
	if !ok {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title: "Compensation stranded - manual intervention required",
		Description: n.printer.Sprintf(
			"Leg `%s` of settlement `%s` for **%s** failed and its compensation could not be written back. The reserved value exists only in the dead letter.",
			payload.LegKind, payload.SettlementID, payload.Account),
		Color: colorStranded,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Account", Value: payload.Account, Inline: true},
			{Name: "Leg", Value: payload.LegKind, Inline: true},
			{Name: "Error", Value: payload.Error, Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerText},
	}

	if payload.Amount != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Amount", Value: payload.Amount, Inline: true,
		})
	}
	if payload.ItemID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Item", Value: payload.ItemID, Inline: true,
		})
	}

	return n.send(embed, e.Type)
}

func (n *DiscordNotifier) send(embed *discordgo.MessageEmbed, eventType event.Type) error {
	if n.channelID == "" {
		return nil
	}

	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		slog.Error(LogMsgAlertFailed, "error", err, "event_type", eventType)
		return err
	}

	slog.Info(LogMsgAlertSent, "event_type", eventType)
	return nil
}
