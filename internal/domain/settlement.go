package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// SettlementStatus is the terminal signal of a logical payout operation.
// A settlement is Pending until every dispatched leg has reconciled; it is
// Failed if any leg failed, even though compensation already restored the
// ledger, because the caller cannot otherwise distinguish "fully paid" from
// "fully rolled back".
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementSucceeded SettlementStatus = "succeeded"
	SettlementFailed    SettlementStatus = "failed"
)

// SettlementKind names the user operation that produced the settlement.
type SettlementKind string

const (
	SettlementHarvest   SettlementKind = "harvest"
	SettlementUnstake   SettlementKind = "unstake"
	SettlementClose     SettlementKind = "close"
	SettlementRecovered SettlementKind = "recovered"
)

// LegKind names one independent remote operation within a settlement.
type LegKind string

const (
	// LegRewardCredit credits farmed reward tokens to the account.
	LegRewardCredit LegKind = "reward-credit"
	// LegStakeReturn debit-transfers staked fungible tokens back.
	LegStakeReturn LegKind = "stake-return"
	// LegItemReturn transfers one staked item back.
	LegItemReturn LegKind = "item-return"
	// LegBoostReturn transfers the boost item back.
	LegBoostReturn LegKind = "boost-return"
	// LegRecoveredCredit retries a previously failed reward credit.
	LegRecoveredCredit LegKind = "recovered-credit"
)

// LegStatus tracks one leg through dispatch and reconciliation.
type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegSucceeded LegStatus = "succeeded"
	LegFailed    LegStatus = "failed"
)

// Settlement is the journal row for one logical payout: the counting join
// over its legs. Finalization runs when LegsResolved reaches LegsTotal,
// never as a continuation of a single leg.
type Settlement struct {
	ID           uuid.UUID
	FarmID       int64
	Account      string
	Kind         SettlementKind
	LegsTotal    int
	LegsResolved int
	LegsFailed   int
	Status       SettlementStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Resolved reports whether every leg has reconciled.
func (s *Settlement) Resolved() bool {
	return s.LegsResolved >= s.LegsTotal
}

// NewSettlementView builds the caller-facing projection of a journal row.
func NewSettlementView(s *Settlement, legs []SettlementLeg) *SettlementView {
	view := &SettlementView{
		ID:           s.ID.String(),
		Account:      s.Account,
		Kind:         string(s.Kind),
		Status:       string(s.Status),
		LegsTotal:    s.LegsTotal,
		LegsResolved: s.LegsResolved,
		LegsFailed:   s.LegsFailed,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	for _, leg := range legs {
		lv := LegView{
			Index:      leg.Index,
			Kind:       string(leg.Kind),
			Token:      leg.Token,
			Collection: leg.Collection,
			ItemID:     leg.ItemID,
			Status:     string(leg.Status),
			Error:      leg.Error,
		}
		if leg.Amount != nil {
			lv.Amount = leg.Amount.Dec()
		}
		view.Legs = append(view.Legs, lv)
	}
	return view
}

// SettlementLeg is one reserved quantity in flight to a remote registry.
// Exactly one of Amount (token legs) or Collection/ItemID (item legs) is
// meaningful, per Kind. Units is set on reward legs of single-reward-token
// farms: compensation then restores AccruedUnits exactly instead of routing
// the token amount to Recovered.
type SettlementLeg struct {
	SettlementID uuid.UUID
	Index        int
	Kind         LegKind
	Token        string
	Collection   string
	ItemID       string
	Amount       *uint256.Int
	Units        *uint256.Int
	Status       LegStatus
	Error        string
}

// IdempotencyKey identifies this leg's remote operation across dispatches.
// Legs execute at least once; a re-dispatched leg carries the same key so the
// registry can deduplicate the second delivery.
func (l *SettlementLeg) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", l.SettlementID, l.Index)
}
