package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croplabs/farmd/internal/domain"
)

func writeFarmConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farm.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFarmDefinition(t *testing.T) {
	t.Run("loads a valid fungible farm", func(t *testing.T) {
		path := writeFarmConfig(t, `{
			"id": 1,
			"mode": "fungible",
			"total_reward_supply": "1000000",
			"rounds_total": 100,
			"round_duration_seconds": 60,
			"farming_start": 1700000000,
			"farming_end": 1700006000,
			"stake_token": "SEED",
			"reward_tokens": [{"symbol": "CROP", "rate": "1000000000000000000000000"}]
		}`)

		def, err := LoadFarmDefinition(path)

		require.NoError(t, err)
		assert.Equal(t, int64(1), def.ID)
		assert.Equal(t, "fungible", def.Mode)
		assert.Equal(t, "SEED", def.StakeToken)
		require.Len(t, def.RewardTokens, 1)
		assert.Equal(t, "CROP", def.RewardTokens[0].Symbol)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		path := writeFarmConfig(t, `{
			"id": 1,
			"mode": "liquidity",
			"total_reward_supply": "1000000",
			"rounds_total": 100,
			"round_duration_seconds": 60,
			"farming_start": 1700000000,
			"farming_end": 1700006000,
			"stake_token": "SEED",
			"reward_tokens": [{"symbol": "CROP", "rate": "1"}]
		}`)

		_, err := LoadFarmDefinition(path)

		assert.Error(t, err)
	})

	t.Run("rejects fungible farm without stake token", func(t *testing.T) {
		path := writeFarmConfig(t, `{
			"id": 1,
			"mode": "fungible",
			"total_reward_supply": "1000000",
			"rounds_total": 100,
			"round_duration_seconds": 60,
			"farming_start": 1700000000,
			"farming_end": 1700006000,
			"reward_tokens": [{"symbol": "CROP", "rate": "1"}]
		}`)

		_, err := LoadFarmDefinition(path)

		assert.Error(t, err)
	})

	t.Run("rejects window ending before it starts", func(t *testing.T) {
		path := writeFarmConfig(t, `{
			"id": 1,
			"mode": "fungible",
			"total_reward_supply": "1000000",
			"rounds_total": 100,
			"round_duration_seconds": 60,
			"farming_start": 1700006000,
			"farming_end": 1700000000,
			"stake_token": "SEED",
			"reward_tokens": [{"symbol": "CROP", "rate": "1"}]
		}`)

		_, err := LoadFarmDefinition(path)

		assert.Error(t, err)
	})

	t.Run("fails on missing file", func(t *testing.T) {
		_, err := LoadFarmDefinition(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})
}

func TestFarmDefinition_ToFarm(t *testing.T) {
	t.Run("builds farm in setup state", func(t *testing.T) {
		def := &FarmDefinition{
			ID:                   7,
			Mode:                 "nft",
			TotalRewardSupply:    "1000",
			RoundsTotal:          100,
			RoundDurationSeconds: 60,
			FarmingStart:         1700000000,
			FarmingEnd:           1700006000,
			RewardTokens:         []RewardTokenDefinition{{Symbol: "CROP", Rate: "5"}},
			Collections:          []CollectionDefinition{{Collection: "tractors", Rate: "10"}},
			BoostCollections:     []BoostDefinition{{Collection: "scarecrows", BoostBPS: 250}},
		}

		farm, err := def.ToFarm()

		require.NoError(t, err)
		assert.Equal(t, domain.FarmModeNFT, farm.Mode)
		assert.False(t, farm.SetupFinalized)
		assert.True(t, farm.TotalWeight.IsZero())
		assert.True(t, farm.RewardPerWeight.IsZero())
		assert.Equal(t, uint256.NewInt(10), farm.RewardPerRound)
		assert.Equal(t, 60*time.Second, farm.RoundDuration)
		rate, ok := farm.BoostRateBPS("scarecrows")
		require.True(t, ok)
		assert.Equal(t, uint64(250), rate)
	})

	t.Run("floors reward per round", func(t *testing.T) {
		def := &FarmDefinition{
			ID:                   1,
			Mode:                 "fungible",
			TotalRewardSupply:    "1001",
			RoundsTotal:          100,
			RoundDurationSeconds: 60,
			FarmingStart:         1700000000,
			FarmingEnd:           1700006000,
			StakeToken:           "SEED",
			RewardTokens:         []RewardTokenDefinition{{Symbol: "CROP", Rate: "1"}},
		}

		farm, err := def.ToFarm()

		require.NoError(t, err)
		// 1001 / 100 rounds: the trailing 1 is never emitted.
		assert.Equal(t, uint256.NewInt(10), farm.RewardPerRound)
	})

	t.Run("rejects malformed amounts", func(t *testing.T) {
		def := &FarmDefinition{
			ID:                   1,
			Mode:                 "fungible",
			TotalRewardSupply:    "12x4",
			RoundsTotal:          10,
			RoundDurationSeconds: 60,
			FarmingStart:         1700000000,
			FarmingEnd:           1700006000,
			StakeToken:           "SEED",
			RewardTokens:         []RewardTokenDefinition{{Symbol: "CROP", Rate: "1"}},
		}

		_, err := def.ToFarm()

		assert.Error(t, err)
	})
}
