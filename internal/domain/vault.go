package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// ItemRef identifies one staked item as collection + item id. The boost item
// is stored in its "collection@item" string form, matching the wire format of
// the NFT registries.
type ItemRef struct {
	Collection string `json:"collection"`
	ItemID     string `json:"item_id"`
}

// BoostItemDelimiter joins collection and item id in a boost item reference.
const BoostItemDelimiter = "@"

// Vault is the per-account ledger record: effective stake weight, the
// account's accumulator checkpoint and the reward units earned but not yet
// settled. AccruedUnits is the authoritative "owed" quantity - settlement
// zeroes it before dispatching any remote call and restores it only through
// compensation.
type Vault struct {
	Account string

	// Weight is the effective stake at Scale precision. Fungible mode:
	// the staked amount. NFT mode: sum of collection_rate * item_count,
	// plus the boost multiplier when a boost item is held.
	Weight *uint256.Int

	// Checkpoint is Farm.RewardPerWeight as of this vault's last accrual.
	Checkpoint *uint256.Int

	// AccruedUnits is reward earned since registration, not yet settled.
	AccruedUnits *uint256.Int

	// StakedItems maps collection id to the ordered set of staked item ids.
	// NFT mode only.
	StakedItems map[string][]string

	// BoostItem is the optional single "collection@item" boost reference.
	BoostItem string

	// Recovered holds, per reward token symbol, credits whose remote
	// transfer failed and was compensated. Withdrawable on request without
	// translating any further accrued units.
	Recovered map[string]*uint256.Int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewVault returns an empty vault checkpointed at the farm's current
// accumulator value, so it accrues nothing for rounds before it existed.
func NewVault(account string, checkpoint *uint256.Int) *Vault {
	return &Vault{
		Account:      account,
		Weight:       uint256.NewInt(0),
		Checkpoint:   cloneU256(checkpoint),
		AccruedUnits: uint256.NewInt(0),
		StakedItems:  map[string][]string{},
		Recovered:    map[string]*uint256.Int{},
	}
}

// ItemCount returns the number of staked items across all collections.
func (v *Vault) ItemCount() int {
	n := 0
	for _, ids := range v.StakedItems {
		n += len(ids)
	}
	return n
}

// IsEmpty reports whether nothing is left to settle or return: the vault can
// be removed from storage.
func (v *Vault) IsEmpty() bool {
	if !v.Weight.IsZero() || !v.AccruedUnits.IsZero() {
		return false
	}
	if v.ItemCount() > 0 || v.BoostItem != "" {
		return false
	}
	for _, amount := range v.Recovered {
		if !amount.IsZero() {
			return false
		}
	}
	return true
}

// RecoveredAmount returns the recovered balance for a token symbol, zero when
// none is tracked.
func (v *Vault) RecoveredAmount(symbol string) *uint256.Int {
	if amount, ok := v.Recovered[symbol]; ok {
		return amount
	}
	return uint256.NewInt(0)
}

// AddRecovered credits a compensated amount for later withdrawal.
func (v *Vault) AddRecovered(symbol string, amount *uint256.Int) {
	if v.Recovered == nil {
		v.Recovered = map[string]*uint256.Int{}
	}
	current, ok := v.Recovered[symbol]
	if !ok {
		current = uint256.NewInt(0)
	}
	v.Recovered[symbol] = new(uint256.Int).Add(current, amount)
}

// Clone returns a deep copy for read-only projections.
func (v *Vault) Clone() *Vault {
	cp := *v
	cp.Weight = cloneU256(v.Weight)
	cp.Checkpoint = cloneU256(v.Checkpoint)
	cp.AccruedUnits = cloneU256(v.AccruedUnits)
	cp.StakedItems = make(map[string][]string, len(v.StakedItems))
	for collection, ids := range v.StakedItems {
		cp.StakedItems[collection] = append([]string(nil), ids...)
	}
	cp.Recovered = make(map[string]*uint256.Int, len(v.Recovered))
	for symbol, amount := range v.Recovered {
		cp.Recovered[symbol] = cloneU256(amount)
	}
	return &cp
}
