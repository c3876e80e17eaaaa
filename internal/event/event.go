package event

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Type represents the type of an event
type Type string

// Event represents a generic event in the system
type Event struct {
	Version string      `json:"version"` // Event schema version (e.g., "1.0")
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`
}

// Settlement lifecycle event types
const (
	SettlementDispatched Type = "settlement.dispatched"
	SettlementCompleted  Type = "settlement.completed"
	SettlementFailed     Type = "settlement.failed"
	SettlementLegFailed  Type = "settlement.leg_failed"
	CompensationStranded Type = "settlement.compensation_stranded"

	FarmFinalized Type = "farm.finalized"
	FarmPaused    Type = "farm.paused"
	FarmResumed   Type = "farm.resumed"
	VaultClosed   Type = "vault.closed"
)

// SettlementPayloadV1 is the typed payload for settlement terminal events
type SettlementPayloadV1 struct {
	SettlementID string `json:"settlement_id"`
	Account      string `json:"account"`
	Kind         string `json:"kind"`
	LegsTotal    int    `json:"legs_total"`
	LegsFailed   int    `json:"legs_failed"`
	Timestamp    int64  `json:"timestamp"`
}

// LegFailedPayloadV1 is the typed payload for per-leg failure events
type LegFailedPayloadV1 struct {
	SettlementID string `json:"settlement_id"`
	Account      string `json:"account"`
	LegKind      string `json:"leg_kind"`
	Token        string `json:"token,omitempty"`
	Collection   string `json:"collection,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Error        string `json:"error"`
	Timestamp    int64  `json:"timestamp"`
}

// CompensationStrandedPayloadV1 is the typed payload for the worst case: a
// leg failed AND writing its compensation back to the ledger failed. The
// reserved amount is only recorded in the dead letter until an operator
// intervenes.
type CompensationStrandedPayloadV1 struct {
	SettlementID string `json:"settlement_id"`
	Account      string `json:"account"`
	LegKind      string `json:"leg_kind"`
	Amount       string `json:"amount,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	Error        string `json:"error"`
	Timestamp    int64  `json:"timestamp"`
}

// FarmLifecyclePayloadV1 is the typed payload for farm lifecycle events
type FarmLifecyclePayloadV1 struct {
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewSettlementEvent creates a terminal settlement event of the given type
func NewSettlementEvent(eventType Type, settlementID, account, kind string, legsTotal, legsFailed int) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: SettlementPayloadV1{
			SettlementID: settlementID,
			Account:      account,
			Kind:         kind,
			LegsTotal:    legsTotal,
			LegsFailed:   legsFailed,
			Timestamp:    time.Now().Unix(),
		},
	}
}

// NewLegFailedEvent creates a per-leg failure event
func NewLegFailedEvent(payload LegFailedPayloadV1) Event {
	payload.Timestamp = time.Now().Unix()
	return Event{Version: EventSchemaVersion, Type: SettlementLegFailed, Payload: payload}
}

// NewCompensationStrandedEvent creates a stranded-compensation event
func NewCompensationStrandedEvent(payload CompensationStrandedPayloadV1) Event {
	payload.Timestamp = time.Now().Unix()
	return Event{Version: EventSchemaVersion, Type: CompensationStranded, Payload: payload}
}

// NewFarmLifecycleEvent creates a farm lifecycle event
func NewFarmLifecycleEvent(eventType Type, detail string) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: FarmLifecyclePayloadV1{Detail: detail, Timestamp: time.Now().Unix()},
	}
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler)
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]Handler),
	}
}

// Publish publishes an event to all subscribers synchronously. Handlers that
// need to be decoupled from the publisher should do their own queueing.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers, ok := b.handlers[event.Type]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf(LogMsgHandlerErrorFormat, len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
