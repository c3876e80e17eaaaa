package domain

import "time"

// Service response types. Amounts are Scale-denominated decimal strings:
// they routinely exceed what fits in a float64 or int64.

// StakeResult reports the vault state after a stake. Stake has no remote
// legs - the deposit was custodied by the registry before the call.
type StakeResult struct {
	Account string `json:"account"`
	Weight  string `json:"weight"`
	Message string `json:"message,omitempty"`
}

// SettlementRef points the caller at the terminal success/failure signal for
// the asynchronous part of an operation. Empty when no legs were dispatched.
type SettlementRef struct {
	SettlementID string `json:"settlement_id,omitempty"`
	Legs         int    `json:"legs,omitempty"`
}

// UnstakeResult reports the stake returned and what remains.
type UnstakeResult struct {
	Account         string        `json:"account"`
	ReturnedAmount  string        `json:"returned_amount,omitempty"`
	ReturnedItems   []ItemRef     `json:"returned_items,omitempty"`
	RemainingWeight string        `json:"remaining_weight"`
	Settlement      SettlementRef `json:"settlement"`
}

// HarvestResult reports the reward units reserved for payout and the
// per-token amounts in flight.
type HarvestResult struct {
	Account      string            `json:"account"`
	Units        string            `json:"units"`
	FarmedTokens map[string]string `json:"farmed_tokens,omitempty"`
	Settlement   SettlementRef     `json:"settlement"`
	Message      string            `json:"message,omitempty"`
}

// CloseResult reports everything reserved by a close: accrued reward plus
// all staked value. The vault is removed only after every leg succeeds.
type CloseResult struct {
	Account        string            `json:"account"`
	Units          string            `json:"units"`
	FarmedTokens   map[string]string `json:"farmed_tokens,omitempty"`
	ReturnedAmount string            `json:"returned_amount,omitempty"`
	ReturnedItems  []ItemRef         `json:"returned_items,omitempty"`
	Settlement     SettlementRef     `json:"settlement"`
}

// WithdrawRecoveredResult reports a retried credit of a previously failed
// transfer.
type WithdrawRecoveredResult struct {
	Account    string        `json:"account"`
	Token      string        `json:"token"`
	Amount     string        `json:"amount"`
	Settlement SettlementRef `json:"settlement"`
}

// AccountStatus is the read-only projection of a vault after a fresh accrual
// that is never written back.
type AccountStatus struct {
	Account        string              `json:"account"`
	Weight         string              `json:"weight"`
	AccruedUnits   string              `json:"accrued_units"`
	FarmedTokens   map[string]string   `json:"farmed_tokens"`
	StakedItems    map[string][]string `json:"staked_items,omitempty"`
	BoostItem      string              `json:"boost_item,omitempty"`
	Recovered      map[string]string   `json:"recovered,omitempty"`
	Round          uint64              `json:"round"`
	RoundTimestamp time.Time           `json:"round_timestamp"`
}

// FarmStatus is the read-only projection of the farm aggregate.
type FarmStatus struct {
	Mode               string            `json:"mode"`
	TotalRewardSupply  string            `json:"total_reward_supply"`
	RewardPerRound     string            `json:"reward_per_round"`
	RoundsTotal        uint64            `json:"rounds_total"`
	Round              uint64            `json:"round"`
	FarmingStart       time.Time         `json:"farming_start"`
	FarmingEnd         time.Time         `json:"farming_end"`
	TotalWeight        string            `json:"total_weight"`
	SetupFinalized     bool              `json:"setup_finalized"`
	Paused             bool              `json:"paused"`
	Deposited          map[string]string `json:"deposited"`
	Harvested          map[string]string `json:"harvested"`
	AccountsRegistered int64             `json:"accounts_registered"`
}

// SettlementView is the caller-facing journal row.
type SettlementView struct {
	ID           string    `json:"id"`
	Account      string    `json:"account"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	LegsTotal    int       `json:"legs_total"`
	LegsResolved int       `json:"legs_resolved"`
	LegsFailed   int       `json:"legs_failed"`
	Legs         []LegView `json:"legs,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LegView is the caller-facing view of one settlement leg.
type LegView struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Token      string `json:"token,omitempty"`
	Collection string `json:"collection,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}
