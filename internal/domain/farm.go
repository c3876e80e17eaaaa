package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// FarmMode selects which kind of deposit the farm accepts as stake.
type FarmMode string

const (
	// FarmModeFungible farms accept amounts of a single fungible token.
	FarmModeFungible FarmMode = "fungible"
	// FarmModeNFT farms accept items from one or more whitelisted collections.
	FarmModeNFT FarmMode = "nft"
)

// RewardToken is one token of the farm's (possibly multi-token) reward supply.
// Rate translates accrued reward units into token base units at Scale
// precision: amount = units * Rate / Scale.
type RewardToken struct {
	Symbol    string
	Rate      *uint256.Int
	Deposited *uint256.Int
	Harvested *uint256.Int
}

// StakeCollection is an accepted NFT collection and the weight each staked
// item contributes (Scale-denominated).
type StakeCollection struct {
	Collection string
	Rate       *uint256.Int
}

// BoostCollection is a collection whose items grant a weight boost when
// deposited as a vault's single boost item. BoostBPS is in basis points.
type BoostCollection struct {
	Collection string
	BoostBPS   uint64
}

// Farm is the process-wide aggregate of one deployed farming instance:
// the emission schedule, the reward-per-weight accumulator and the stake
// configuration. It is loaded and mutated inside repository transactions,
// never held as a process global.
type Farm struct {
	ID   int64
	Mode FarmMode

	// Emission schedule. RewardPerRound = TotalRewardSupply / RoundsTotal,
	// computed once at creation; any division remainder is never emitted.
	TotalRewardSupply *uint256.Int
	RoundsTotal       uint64
	RoundDuration     time.Duration
	RewardPerRound    *uint256.Int

	// Farming window. Immutable once SetupFinalized.
	FarmingStart time.Time
	FarmingEnd   time.Time

	// Accumulator state. RewardPerWeight is the cumulative, Scale-scaled sum
	// of reward_per_round/total_weight over elapsed rounds and is
	// monotonically non-decreasing. Rounds with zero weight advance
	// LastCheckpointRound without moving RewardPerWeight: their emission is
	// permanently forfeited.
	TotalWeight         *uint256.Int
	RewardPerWeight     *uint256.Int
	LastCheckpointRound uint64

	// Lifecycle.
	SetupFinalized bool
	Paused         bool

	RewardTokens []RewardToken

	// Fungible mode only: the staked token symbol.
	StakeToken string

	// NFT mode only.
	Collections      []StakeCollection
	BoostCollections []BoostCollection

	AccountsRegistered int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RewardTokenIndex returns the position of symbol in RewardTokens, or -1.
func (f *Farm) RewardTokenIndex(symbol string) int {
	for i := range f.RewardTokens {
		if f.RewardTokens[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

// CollectionRate returns the stake rate for a collection, or nil if the
// collection is not accepted.
func (f *Farm) CollectionRate(collection string) *uint256.Int {
	for i := range f.Collections {
		if f.Collections[i].Collection == collection {
			return f.Collections[i].Rate
		}
	}
	return nil
}

// BoostRateBPS returns the boost rate for a boost collection and whether the
// collection is whitelisted for boosting.
func (f *Farm) BoostRateBPS(collection string) (uint64, bool) {
	for i := range f.BoostCollections {
		if f.BoostCollections[i].Collection == collection {
			return f.BoostCollections[i].BoostBPS, true
		}
	}
	return 0, false
}

// Clone returns a deep copy. Used by read-only projections so a fresh accrual
// can run without touching persisted state.
func (f *Farm) Clone() *Farm {
	cp := *f
	cp.TotalRewardSupply = cloneU256(f.TotalRewardSupply)
	cp.RewardPerRound = cloneU256(f.RewardPerRound)
	cp.TotalWeight = cloneU256(f.TotalWeight)
	cp.RewardPerWeight = cloneU256(f.RewardPerWeight)
	cp.RewardTokens = make([]RewardToken, len(f.RewardTokens))
	for i, t := range f.RewardTokens {
		cp.RewardTokens[i] = RewardToken{
			Symbol:    t.Symbol,
			Rate:      cloneU256(t.Rate),
			Deposited: cloneU256(t.Deposited),
			Harvested: cloneU256(t.Harvested),
		}
	}
	cp.Collections = make([]StakeCollection, len(f.Collections))
	for i, c := range f.Collections {
		cp.Collections[i] = StakeCollection{Collection: c.Collection, Rate: cloneU256(c.Rate)}
	}
	cp.BoostCollections = append([]BoostCollection(nil), f.BoostCollections...)
	return &cp
}

func cloneU256(x *uint256.Int) *uint256.Int {
	if x == nil {
		return uint256.NewInt(0)
	}
	return x.Clone()
}
