package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/holiman/uint256"

	"github.com/croplabs/farmd/internal/domain"
)

// RewardTokenDefinition declares one reward token and its unit conversion rate.
// Amounts are decimal strings in the token's base units.
type RewardTokenDefinition struct {
	Symbol string `json:"symbol" validate:"required"`
	Rate   string `json:"rate" validate:"required,number"`
}

// CollectionDefinition whitelists an NFT collection for staking with the
// weight each staked item contributes.
type CollectionDefinition struct {
	Collection string `json:"collection" validate:"required"`
	Rate       string `json:"rate" validate:"required,number"`
}

// BoostDefinition whitelists a collection whose items grant a weight boost,
// expressed in basis points.
type BoostDefinition struct {
	Collection string `json:"collection" validate:"required"`
	BoostBPS   uint64 `json:"boost_bps" validate:"required,gt=0"`
}

// FarmDefinition is the JSON shape of the farm loaded at startup. The farm is
// created in setup state; it starts emitting only after finalize-setup
// confirms the reward deposits.
type FarmDefinition struct {
	ID                   int64                   `json:"id" validate:"required,gt=0"`
	Mode                 string                  `json:"mode" validate:"required,oneof=fungible nft"`
	TotalRewardSupply    string                  `json:"total_reward_supply" validate:"required,number"`
	RoundsTotal          uint64                  `json:"rounds_total" validate:"required,gt=0"`
	RoundDurationSeconds uint64                  `json:"round_duration_seconds" validate:"required,gt=0"`
	FarmingStart         int64                   `json:"farming_start" validate:"required,gt=0"`
	FarmingEnd           int64                   `json:"farming_end" validate:"required,gtfield=FarmingStart"`
	StakeToken           string                  `json:"stake_token,omitempty" validate:"required_if=Mode fungible"`
	RewardTokens         []RewardTokenDefinition `json:"reward_tokens" validate:"required,min=1,dive"`
	Collections          []CollectionDefinition  `json:"collections,omitempty" validate:"dive"`
	BoostCollections     []BoostDefinition       `json:"boost_collections,omitempty" validate:"dive"`
}

// LoadFarmDefinition reads and validates a farm definition file.
func LoadFarmDefinition(path string) (*FarmDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading farm config %s: %w", path, err)
	}

	var def FarmDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing farm config %s: %w", path, err)
	}

	if err := validator.New().Struct(&def); err != nil {
		return nil, fmt.Errorf("validating farm config %s: %w", path, err)
	}

	return &def, nil
}

// ToFarm converts the definition into a domain farm in setup state.
// The division remainder of supply/rounds is never emitted.
func (d *FarmDefinition) ToFarm() (*domain.Farm, error) {
	supply, err := uint256.FromDecimal(d.TotalRewardSupply)
	if err != nil {
		return nil, fmt.Errorf("total_reward_supply: %w", err)
	}

	rewardPerRound := new(uint256.Int).Div(supply, uint256.NewInt(d.RoundsTotal))

	farm := &domain.Farm{
		ID:                d.ID,
		Mode:              domain.FarmMode(d.Mode),
		TotalRewardSupply: supply,
		RoundsTotal:       d.RoundsTotal,
		RoundDuration:     time.Duration(d.RoundDurationSeconds) * time.Second,
		RewardPerRound:    rewardPerRound,
		FarmingStart:      time.Unix(d.FarmingStart, 0).UTC(),
		FarmingEnd:        time.Unix(d.FarmingEnd, 0).UTC(),
		TotalWeight:       uint256.NewInt(0),
		RewardPerWeight:   uint256.NewInt(0),
		StakeToken:        d.StakeToken,
	}

	for _, t := range d.RewardTokens {
		rate, err := uint256.FromDecimal(t.Rate)
		if err != nil {
			return nil, fmt.Errorf("reward token %s rate: %w", t.Symbol, err)
		}
		farm.RewardTokens = append(farm.RewardTokens, domain.RewardToken{
			Symbol:    t.Symbol,
			Rate:      rate,
			Deposited: uint256.NewInt(0),
			Harvested: uint256.NewInt(0),
		})
	}

	for _, c := range d.Collections {
		rate, err := uint256.FromDecimal(c.Rate)
		if err != nil {
			return nil, fmt.Errorf("collection %s rate: %w", c.Collection, err)
		}
		farm.Collections = append(farm.Collections, domain.StakeCollection{
			Collection: c.Collection,
			Rate:       rate,
		})
	}

	for _, b := range d.BoostCollections {
		farm.BoostCollections = append(farm.BoostCollections, domain.BoostCollection{
			Collection: b.Collection,
			BoostBPS:   b.BoostBPS,
		})
	}

	return farm, nil
}
