// Package accrual implements the round-based reward accumulator: a fixed
// total reward supply is emitted over discrete rounds and divided among
// stakers in proportion to weight, with O(1) work per account update.
//
// All proportional math is fixed-point on 256-bit integers at Scale (1e24)
// precision. Division truncates toward zero, biased against the staker; the
// loss is bounded by one unit per round per account and is accepted.
package accrual

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/croplabs/farmd/internal/domain"
)

// Scale is the fixed-point denominator for weights, rates and the
// reward-per-weight accumulator.
var Scale = uint256.MustFromDecimal("1000000000000000000000000") // 1e24

// BasisPoints is the denominator for boost rates.
const BasisPoints = 10_000

// RoundIndex returns the round number at t, clamped to the farming window.
// Before FarmingStart it is 0; at FarmingStart it is still 0 (round 0 is in
// progress); one full RoundDuration later it is 1, and so on. At or past
// FarmingEnd the window is closed out: if the window length is not a whole
// multiple of RoundDuration the final partial round is forced to completion,
// matching the emission schedule's fixed round count.
func RoundIndex(farm *domain.Farm, t time.Time) uint64 {
	if t.Before(farm.FarmingStart) {
		return 0
	}
	adjust := uint64(0)
	if !t.Before(farm.FarmingEnd) {
		t = farm.FarmingEnd
		if farm.FarmingEnd.Sub(farm.FarmingStart)%farm.RoundDuration != 0 {
			adjust = 1
		}
	}
	r := uint64(t.Sub(farm.FarmingStart)/farm.RoundDuration) + adjust
	if r > farm.RoundsTotal {
		r = farm.RoundsTotal
	}
	return r
}

// computeCheckpoint returns the accumulator value at round without mutating
// the farm. Rounds elapsed with zero total weight contribute nothing: their
// emission is forfeited, not rolled forward.
func computeCheckpoint(farm *domain.Farm, round uint64) *uint256.Int {
	if round <= farm.LastCheckpointRound || farm.TotalWeight.IsZero() {
		return farm.RewardPerWeight.Clone()
	}
	elapsed := uint256.NewInt(round - farm.LastCheckpointRound)
	delta := new(uint256.Int).Mul(elapsed, farm.RewardPerRound)
	delta.Mul(delta, Scale)
	delta.Div(delta, farm.TotalWeight)
	return new(uint256.Int).Add(farm.RewardPerWeight, delta)
}

// UpdateCheckpoint advances the farm's accumulator to round. The round
// cursor always advances, even when total weight is zero, so forfeited
// rounds are never re-emitted to a later staker.
func UpdateCheckpoint(farm *domain.Farm, round uint64) {
	if round <= farm.LastCheckpointRound {
		return
	}
	farm.RewardPerWeight = computeCheckpoint(farm, round)
	farm.LastCheckpointRound = round
}

// Accrue brings the farm's accumulator and the vault's checkpoint current as
// of now. It must be called before any read or mutation of the vault's
// weight or accrued units. Accrue only ever adds to AccruedUnits, which is
// why it commutes with settlement reservations.
func Accrue(farm *domain.Farm, vault *domain.Vault, now time.Time) {
	round := RoundIndex(farm, now)
	UpdateCheckpoint(farm, round)

	if vault.Checkpoint.Cmp(farm.RewardPerWeight) >= 0 {
		return // nothing new emitted since the vault's last accrual
	}
	delta := new(uint256.Int).Sub(farm.RewardPerWeight, vault.Checkpoint)
	delta.Mul(delta, vault.Weight)
	delta.Div(delta, Scale)
	vault.AccruedUnits = new(uint256.Int).Add(vault.AccruedUnits, delta)
	vault.Checkpoint = farm.RewardPerWeight.Clone()
}

// FarmedTokens translates accrued units into one reward token's base units
// at the token's fixed rate.
func FarmedTokens(units, rate *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Mul(units, rate)
	return out.Div(out, Scale)
}

// RequiredDeposit returns the exact pre-funding a reward token needs before
// setup can be finalized: the whole emission translated at the token's rate.
func RequiredDeposit(farm *domain.Farm, rate *uint256.Int) *uint256.Int {
	total := new(uint256.Int).Mul(uint256.NewInt(farm.RoundsTotal), farm.RewardPerRound)
	return FarmedTokens(total, rate)
}
