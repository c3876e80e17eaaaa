package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/repository"
)

// FarmRepository implements the farm repository for PostgreSQL
type FarmRepository struct {
	db *pgxpool.Pool
}

// NewFarmRepository creates a new farm repository
func NewFarmRepository(db *pgxpool.Pool) *FarmRepository {
	return &FarmRepository{db: db}
}

// ---- JSONB row shapes ----

type rewardTokenRow struct {
	Symbol    string `json:"symbol"`
	Rate      string `json:"rate"`
	Deposited string `json:"deposited"`
	Harvested string `json:"harvested"`
}

type collectionRow struct {
	Collection string `json:"collection"`
	Rate       string `json:"rate"`
}

type boostCollectionRow struct {
	Collection string `json:"collection"`
	BoostBPS   uint64 `json:"boost_bps"`
}

const farmColumns = `farm_id, mode, total_reward_supply::text, rounds_total,
		round_duration_seconds, reward_per_round::text, farming_start, farming_end,
		total_weight::text, reward_per_weight::text, last_checkpoint_round,
		setup_finalized, paused, stake_token, reward_tokens, collections,
		boost_collections, accounts_registered, created_at, updated_at`

const vaultColumns = `account, weight::text, checkpoint::text, accrued_units::text,
		staked_items, boost_item, recovered, created_at, updated_at`

// GetFarm retrieves a farm without locking
func (r *FarmRepository) GetFarm(ctx context.Context, farmID int64) (*domain.Farm, error) {
	return getFarm(ctx, r.db, farmID, false)
}

// CreateFarm inserts a farm in setup state, leaving an existing row untouched
func (r *FarmRepository) CreateFarm(ctx context.Context, farm *domain.Farm) (*domain.Farm, error) {
	rewardTokens, collections, boosts, err := marshalFarmConfig(farm)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO farms (
			farm_id, mode, total_reward_supply, rounds_total,
			round_duration_seconds, reward_per_round, farming_start, farming_end,
			total_weight, reward_per_weight, stake_token,
			reward_tokens, collections, boost_collections
		)
		VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, $7, $8, $9::numeric, $10::numeric, $11, $12, $13, $14)
		ON CONFLICT (farm_id) DO NOTHING
	`

	_, err = r.db.Exec(ctx, query,
		farm.ID,
		string(farm.Mode),
		u256Dec(farm.TotalRewardSupply),
		int64(farm.RoundsTotal),
		int64(farm.RoundDuration/time.Second),
		u256Dec(farm.RewardPerRound),
		farm.FarmingStart,
		farm.FarmingEnd,
		u256Dec(farm.TotalWeight),
		u256Dec(farm.RewardPerWeight),
		farm.StakeToken,
		rewardTokens,
		collections,
		boosts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create farm: %w", err)
	}

	return r.GetFarm(ctx, farm.ID)
}

// GetVault retrieves a vault without locking
func (r *FarmRepository) GetVault(ctx context.Context, farmID int64, account string) (*domain.Vault, error) {
	return getVault(ctx, r.db, farmID, account, false)
}

// CountVaults returns the number of registered vaults
func (r *FarmRepository) CountVaults(ctx context.Context, farmID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vaults WHERE farm_id = $1`, farmID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vaults: %w", err)
	}
	return count, nil
}

// BeginTx starts a transaction and returns a FarmTx
func (r *FarmRepository) BeginTx(ctx context.Context) (repository.FarmTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin farm transaction: %w", err)
	}
	return &farmTx{tx: tx}, nil
}

// farmTx implements repository.FarmTx
type farmTx struct {
	tx pgx.Tx
}

// Commit commits the transaction
func (t *farmTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls back the transaction
func (t *farmTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// GetFarmForUpdate retrieves the farm with FOR UPDATE lock
func (t *farmTx) GetFarmForUpdate(ctx context.Context, farmID int64) (*domain.Farm, error) {
	return getFarm(ctx, t.tx, farmID, true)
}

// UpdateFarm persists accumulator, schedule and lifecycle changes
func (t *farmTx) UpdateFarm(ctx context.Context, farm *domain.Farm) error {
	rewardTokens, collections, boosts, err := marshalFarmConfig(farm)
	if err != nil {
		return err
	}

	query := `
		UPDATE farms SET
			total_reward_supply = $2::numeric,
			reward_per_round = $3::numeric,
			farming_start = $4,
			farming_end = $5,
			total_weight = $6::numeric,
			reward_per_weight = $7::numeric,
			last_checkpoint_round = $8,
			setup_finalized = $9,
			paused = $10,
			reward_tokens = $11,
			collections = $12,
			boost_collections = $13,
			accounts_registered = $14,
			updated_at = NOW()
		WHERE farm_id = $1
	`

	tag, err := t.tx.Exec(ctx, query,
		farm.ID,
		u256Dec(farm.TotalRewardSupply),
		u256Dec(farm.RewardPerRound),
		farm.FarmingStart,
		farm.FarmingEnd,
		u256Dec(farm.TotalWeight),
		u256Dec(farm.RewardPerWeight),
		int64(farm.LastCheckpointRound),
		farm.SetupFinalized,
		farm.Paused,
		rewardTokens,
		collections,
		boosts,
		farm.AccountsRegistered,
	)
	if err != nil {
		return fmt.Errorf("failed to update farm: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update farm %d: no such farm", farm.ID)
	}
	return nil
}

// GetVaultForUpdate retrieves a vault with FOR UPDATE lock
func (t *farmTx) GetVaultForUpdate(ctx context.Context, farmID int64, account string) (*domain.Vault, error) {
	return getVault(ctx, t.tx, farmID, account, true)
}

// CreateVault registers a new account in the farm
func (t *farmTx) CreateVault(ctx context.Context, farmID int64, vault *domain.Vault) error {
	stakedItems, recovered, err := marshalVaultHoldings(vault)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO vaults (farm_id, account, weight, checkpoint, accrued_units, staked_items, boost_item, recovered)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
	`

	_, err = t.tx.Exec(ctx, query,
		farmID,
		vault.Account,
		u256Dec(vault.Weight),
		u256Dec(vault.Checkpoint),
		u256Dec(vault.AccruedUnits),
		stakedItems,
		vault.BoostItem,
		recovered,
	)
	if err != nil {
		return fmt.Errorf("failed to create vault: %w", err)
	}
	return nil
}

// UpdateVault persists weight, checkpoint, accrued units and holdings
func (t *farmTx) UpdateVault(ctx context.Context, farmID int64, vault *domain.Vault) error {
	stakedItems, recovered, err := marshalVaultHoldings(vault)
	if err != nil {
		return err
	}

	query := `
		UPDATE vaults SET
			weight = $3::numeric,
			checkpoint = $4::numeric,
			accrued_units = $5::numeric,
			staked_items = $6,
			boost_item = $7,
			recovered = $8,
			updated_at = NOW()
		WHERE farm_id = $1 AND account = $2
	`

	tag, err := t.tx.Exec(ctx, query,
		farmID,
		vault.Account,
		u256Dec(vault.Weight),
		u256Dec(vault.Checkpoint),
		u256Dec(vault.AccruedUnits),
		stakedItems,
		vault.BoostItem,
		recovered,
	)
	if err != nil {
		return fmt.Errorf("failed to update vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVaultNotFound
	}
	return nil
}

// DeleteVault removes a closed vault
func (t *farmTx) DeleteVault(ctx context.Context, farmID int64, account string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM vaults WHERE farm_id = $1 AND account = $2`, farmID, account)
	if err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVaultNotFound
	}
	return nil
}

// CreateSettlement journals a settlement and its reserved legs
func (t *farmTx) CreateSettlement(ctx context.Context, settlement *domain.Settlement, legs []domain.SettlementLeg) error {
	query := `
		INSERT INTO settlements (settlement_id, farm_id, account, kind, legs_total, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.Exec(ctx, query,
		settlement.ID,
		settlement.FarmID,
		settlement.Account,
		string(settlement.Kind),
		settlement.LegsTotal,
		string(domain.SettlementPending),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}

	legQuery := `
		INSERT INTO settlement_legs (settlement_id, leg_index, kind, token, collection, item_id, amount, units, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9)
	`
	for _, leg := range legs {
		var amount, units any
		if leg.Amount != nil {
			amount = leg.Amount.Dec()
		}
		if leg.Units != nil {
			units = leg.Units.Dec()
		}
		_, err := t.tx.Exec(ctx, legQuery,
			settlement.ID,
			leg.Index,
			string(leg.Kind),
			leg.Token,
			leg.Collection,
			leg.ItemID,
			amount,
			units,
			string(domain.LegPending),
		)
		if err != nil {
			return fmt.Errorf("failed to create settlement leg %d: %w", leg.Index, err)
		}
	}
	return nil
}

// ResolveLeg records one leg outcome and advances the counting join. A leg
// that already left pending state does not advance the counters again, so
// re-dispatched work stays idempotent; the returned bool tells the caller
// whether this call was the one that resolved the leg.
func (t *farmTx) ResolveLeg(ctx context.Context, settlementID uuid.UUID, index int, status domain.LegStatus, legError string) (*domain.Settlement, bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE settlement_legs SET status = $3, error = $4
		WHERE settlement_id = $1 AND leg_index = $2 AND status = 'pending'
	`, settlementID, index, string(status), legError)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve settlement leg: %w", err)
	}

	transitioned := tag.RowsAffected() > 0
	if transitioned {
		failedDelta := 0
		if status == domain.LegFailed {
			failedDelta = 1
		}
		_, err = t.tx.Exec(ctx, `
			UPDATE settlements SET
				legs_resolved = legs_resolved + 1,
				legs_failed = legs_failed + $2,
				updated_at = NOW()
			WHERE settlement_id = $1
		`, settlementID, failedDelta)
		if err != nil {
			return nil, false, fmt.Errorf("failed to advance settlement counters: %w", err)
		}
	}

	settlement, err := getSettlement(ctx, t.tx, settlementID)
	if err != nil {
		return nil, false, err
	}
	return settlement, transitioned, nil
}

// SetSettlementStatus records the settlement's terminal status
func (t *farmTx) SetSettlementStatus(ctx context.Context, settlementID uuid.UUID, status domain.SettlementStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE settlements SET status = $2, updated_at = NOW() WHERE settlement_id = $1
	`, settlementID, string(status))
	if err != nil {
		return fmt.Errorf("failed to set settlement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSettlementNotFound
	}
	return nil
}

// ---- Shared row mapping ----

func getFarm(ctx context.Context, db dbConn, farmID int64, forUpdate bool) (*domain.Farm, error) {
	query := `SELECT ` + farmColumns + ` FROM farms WHERE farm_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		farm                 domain.Farm
		mode                 string
		supply               string
		roundsTotal          int64
		roundDurationSeconds int64
		rewardPerRound       string
		totalWeight          string
		rewardPerWeight      string
		lastCheckpointRound  int64
		rewardTokensData     []byte
		collectionsData      []byte
		boostsData           []byte
	)

	err := db.QueryRow(ctx, query, farmID).Scan(
		&farm.ID,
		&mode,
		&supply,
		&roundsTotal,
		&roundDurationSeconds,
		&rewardPerRound,
		&farm.FarmingStart,
		&farm.FarmingEnd,
		&totalWeight,
		&rewardPerWeight,
		&lastCheckpointRound,
		&farm.SetupFinalized,
		&farm.Paused,
		&farm.StakeToken,
		&rewardTokensData,
		&collectionsData,
		&boostsData,
		&farm.AccountsRegistered,
		&farm.CreatedAt,
		&farm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("farm %d not found", farmID)
		}
		return nil, fmt.Errorf("failed to get farm: %w", err)
	}

	farm.Mode = domain.FarmMode(mode)
	farm.RoundsTotal = uint64(roundsTotal)
	farm.RoundDuration = time.Duration(roundDurationSeconds) * time.Second
	farm.LastCheckpointRound = uint64(lastCheckpointRound)

	if farm.TotalRewardSupply, err = decToU256(supply); err != nil {
		return nil, err
	}
	if farm.RewardPerRound, err = decToU256(rewardPerRound); err != nil {
		return nil, err
	}
	if farm.TotalWeight, err = decToU256(totalWeight); err != nil {
		return nil, err
	}
	if farm.RewardPerWeight, err = decToU256(rewardPerWeight); err != nil {
		return nil, err
	}

	if err := unmarshalFarmConfig(&farm, rewardTokensData, collectionsData, boostsData); err != nil {
		return nil, err
	}
	return &farm, nil
}

func getVault(ctx context.Context, db dbConn, farmID int64, account string, forUpdate bool) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE farm_id = $1 AND account = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		vault           domain.Vault
		weight          string
		checkpoint      string
		accruedUnits    string
		stakedItemsData []byte
		recoveredData   []byte
	)

	err := db.QueryRow(ctx, query, farmID, account).Scan(
		&vault.Account,
		&weight,
		&checkpoint,
		&accruedUnits,
		&stakedItemsData,
		&vault.BoostItem,
		&recoveredData,
		&vault.CreatedAt,
		&vault.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVaultNotFound
		}
		return nil, fmt.Errorf("failed to get vault: %w", err)
	}

	if vault.Weight, err = decToU256(weight); err != nil {
		return nil, err
	}
	if vault.Checkpoint, err = decToU256(checkpoint); err != nil {
		return nil, err
	}
	if vault.AccruedUnits, err = decToU256(accruedUnits); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stakedItemsData, &vault.StakedItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staked items: %w", err)
	}
	if vault.Recovered, err = jsonToU256Map(recoveredData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recovered balances: %w", err)
	}
	if vault.StakedItems == nil {
		vault.StakedItems = map[string][]string{}
	}
	return &vault, nil
}

func marshalFarmConfig(farm *domain.Farm) (rewardTokens, collections, boosts []byte, err error) {
	tokenRows := make([]rewardTokenRow, len(farm.RewardTokens))
	for i, tok := range farm.RewardTokens {
		tokenRows[i] = rewardTokenRow{
			Symbol:    tok.Symbol,
			Rate:      u256Dec(tok.Rate),
			Deposited: u256Dec(tok.Deposited),
			Harvested: u256Dec(tok.Harvested),
		}
	}
	if rewardTokens, err = json.Marshal(tokenRows); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal reward tokens: %w", err)
	}

	collectionRows := make([]collectionRow, len(farm.Collections))
	for i, col := range farm.Collections {
		collectionRows[i] = collectionRow{Collection: col.Collection, Rate: u256Dec(col.Rate)}
	}
	if collections, err = json.Marshal(collectionRows); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal collections: %w", err)
	}

	boostRows := make([]boostCollectionRow, len(farm.BoostCollections))
	for i, b := range farm.BoostCollections {
		boostRows[i] = boostCollectionRow{Collection: b.Collection, BoostBPS: b.BoostBPS}
	}
	if boosts, err = json.Marshal(boostRows); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal boost collections: %w", err)
	}
	return rewardTokens, collections, boosts, nil
}

func unmarshalFarmConfig(farm *domain.Farm, rewardTokensData, collectionsData, boostsData []byte) error {
	var tokenRows []rewardTokenRow
	if err := json.Unmarshal(rewardTokensData, &tokenRows); err != nil {
		return fmt.Errorf("failed to unmarshal reward tokens: %w", err)
	}
	farm.RewardTokens = make([]domain.RewardToken, len(tokenRows))
	for i, row := range tokenRows {
		rate, err := decToU256(row.Rate)
		if err != nil {
			return err
		}
		deposited, err := decToU256(row.Deposited)
		if err != nil {
			return err
		}
		harvested, err := decToU256(row.Harvested)
		if err != nil {
			return err
		}
		farm.RewardTokens[i] = domain.RewardToken{
			Symbol:    row.Symbol,
			Rate:      rate,
			Deposited: deposited,
			Harvested: harvested,
		}
	}

	var collectionRows []collectionRow
	if err := json.Unmarshal(collectionsData, &collectionRows); err != nil {
		return fmt.Errorf("failed to unmarshal collections: %w", err)
	}
	farm.Collections = make([]domain.StakeCollection, len(collectionRows))
	for i, row := range collectionRows {
		rate, err := decToU256(row.Rate)
		if err != nil {
			return err
		}
		farm.Collections[i] = domain.StakeCollection{Collection: row.Collection, Rate: rate}
	}

	var boostRows []boostCollectionRow
	if err := json.Unmarshal(boostsData, &boostRows); err != nil {
		return fmt.Errorf("failed to unmarshal boost collections: %w", err)
	}
	farm.BoostCollections = make([]domain.BoostCollection, len(boostRows))
	for i, row := range boostRows {
		farm.BoostCollections[i] = domain.BoostCollection{Collection: row.Collection, BoostBPS: row.BoostBPS}
	}
	return nil
}

func marshalVaultHoldings(vault *domain.Vault) (stakedItems, recovered []byte, err error) {
	items := vault.StakedItems
	if items == nil {
		items = map[string][]string{}
	}
	if stakedItems, err = json.Marshal(items); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal staked items: %w", err)
	}
	if recovered, err = u256MapToJSON(vault.Recovered); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal recovered balances: %w", err)
	}
	return stakedItems, recovered, nil
}
