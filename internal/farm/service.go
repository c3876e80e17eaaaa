// Package farm implements the farm controller: lifecycle management and the
// synchronous half of every account operation. Each operation locks the
// account, brings accrual current inside a repository transaction, mutates
// stake or reserves a payout, journals settlement legs, commits, and only
// then hands the legs to the settlement engine.
package farm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/croplabs/farmd/internal/accrual"
	"github.com/croplabs/farmd/internal/concurrency"
	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/event"
	"github.com/croplabs/farmd/internal/ledger"
	"github.com/croplabs/farmd/internal/logger"
	"github.com/croplabs/farmd/internal/metrics"
	"github.com/croplabs/farmd/internal/repository"
)

// StakeRequest deposits stake into the caller's vault. Fungible farms use
// Amount; NFT farms use Collection/ItemID, with Boost selecting the single
// boost slot instead of the regular stake set.
type StakeRequest struct {
	Account    string
	Amount     string
	Collection string
	ItemID     string
	Boost      bool
}

// UnstakeRequest withdraws stake. Fungible farms use Amount; NFT farms use
// Collection and optionally ItemID (empty means every item of the
// collection), with Boost selecting the boost slot.
type UnstakeRequest struct {
	Account    string
	Amount     string
	Collection string
	ItemID     string
	Boost      bool
}

// Dispatcher hands committed settlement legs to the asynchronous engine and
// answers status polls for recently finalized settlements.
type Dispatcher interface {
	Dispatch(ctx context.Context, settlement *domain.Settlement, legs []domain.SettlementLeg)

	// Outcome returns the cached terminal view of a finalized settlement.
	// A miss means the settlement is still pending, old, or unknown.
	Outcome(id uuid.UUID) (*domain.SettlementView, bool)
}

// Service defines the farm business logic
type Service interface {
	// Stake deposits stake into the caller's vault, registering it on first use
	Stake(ctx context.Context, req StakeRequest) (*domain.StakeResult, error)

	// Unstake withdraws stake and dispatches its return transfer
	Unstake(ctx context.Context, req UnstakeRequest) (*domain.UnstakeResult, error)

	// Harvest reserves all accrued reward and dispatches the credit transfers
	Harvest(ctx context.Context, account string) (*domain.HarvestResult, error)

	// Close reserves everything the vault holds; the vault is deleted only
	// when every leg of the close settlement succeeds
	Close(ctx context.Context, account string) (*domain.CloseResult, error)

	// WithdrawRecovered retries the credit of a previously compensated amount
	WithdrawRecovered(ctx context.Context, account, token string) (*domain.WithdrawRecoveredResult, error)

	// Status projects a vault with a fresh, non-persisted accrual
	Status(ctx context.Context, account string) (*domain.AccountStatus, error)

	// FarmStatus projects the farm aggregate
	FarmStatus(ctx context.Context) (*domain.FarmStatus, error)

	// Settlement returns the journal row for one settlement
	Settlement(ctx context.Context, id uuid.UUID) (*domain.SettlementView, error)

	// Fund records a reward token deposit during setup
	Fund(ctx context.Context, token, amount string) error

	// FinalizeSetup verifies every reward token is funded to exactly the
	// configured emission and opens the farm
	FinalizeSetup(ctx context.Context) error

	// SetActive pauses or resumes staking
	SetActive(ctx context.Context, active bool) error

	// SetWindow moves the farming window; immutable once setup is finalized
	SetWindow(ctx context.Context, start, end time.Time) error
}

type service struct {
	repo    repository.Farm
	journal repository.Settlement
	engine  Dispatcher
	locks   *concurrency.LockManager
	bus     event.Bus
	farmID  int64
	now     func() time.Time
}

// NewService creates a new farm service
func NewService(
	repo repository.Farm,
	journal repository.Settlement,
	engine Dispatcher,
	locks *concurrency.LockManager,
	bus event.Bus,
	farmID int64,
) Service {
	return &service{
		repo:    repo,
		journal: journal,
		engine:  engine,
		locks:   locks,
		bus:     bus,
		farmID:  farmID,
		now:     time.Now,
	}
}

// Stake deposits stake into the caller's vault
func (s *service) Stake(ctx context.Context, req StakeRequest) (*domain.StakeResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgStakeCalled, "account", req.Account, "collection", req.Collection, "boost", req.Boost)

	lock := s.locks.GetLock(req.Account)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOpenForStake(farm); err != nil {
		return nil, err
	}

	now := s.now()
	vault, created, err := s.vaultForUpdate(ctx, tx, farm, req.Account)
	if err != nil {
		return nil, err
	}
	accrual.Accrue(farm, vault, now)

	if farm.Mode == domain.FarmModeFungible {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		if err := ledger.StakeFungible(farm, vault, amount); err != nil {
			return nil, err
		}
	} else if req.Boost {
		if err := ledger.SetBoost(farm, vault, req.Collection, req.ItemID); err != nil {
			return nil, err
		}
	} else {
		if err := ledger.StakeItem(farm, vault, req.Collection, req.ItemID); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, tx, farm, vault, created); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.StakesTotal.WithLabelValues(string(farm.Mode)).Inc()
	if created {
		log.Info(LogMsgVaultRegistered, "account", req.Account)
	}

	return &domain.StakeResult{
		Account: req.Account,
		Weight:  vault.Weight.Dec(),
	}, nil
}

// Unstake withdraws stake and dispatches its return transfer
func (s *service) Unstake(ctx context.Context, req UnstakeRequest) (*domain.UnstakeResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgUnstakeCalled, "account", req.Account, "collection", req.Collection, "boost", req.Boost)

	lock := s.locks.GetLock(req.Account)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return nil, err
	}
	if !farm.SetupFinalized {
		return nil, domain.ErrFarmNotFinalized
	}

	vault, err := tx.GetVaultForUpdate(ctx, s.farmID, req.Account)
	if err != nil {
		return nil, err
	}
	accrual.Accrue(farm, vault, s.now())

	result := &domain.UnstakeResult{Account: req.Account}
	var legs []domain.SettlementLeg

	if farm.Mode == domain.FarmModeFungible {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		if err := ledger.UnstakeFungible(farm, vault, amount); err != nil {
			return nil, err
		}
		result.ReturnedAmount = amount.Dec()
		legs = append(legs, domain.SettlementLeg{
			Kind:   domain.LegStakeReturn,
			Token:  farm.StakeToken,
			Amount: amount,
		})
	} else if req.Boost {
		ref, err := ledger.RemoveBoost(farm, vault)
		if err != nil {
			return nil, err
		}
		result.ReturnedItems = []domain.ItemRef{ref}
		legs = append(legs, domain.SettlementLeg{
			Kind:       domain.LegBoostReturn,
			Collection: ref.Collection,
			ItemID:     ref.ItemID,
		})
	} else {
		removed, err := ledger.UnstakeItem(farm, vault, req.Collection, req.ItemID)
		if err != nil {
			return nil, err
		}
		result.ReturnedItems = removed
		for _, ref := range removed {
			legs = append(legs, domain.SettlementLeg{
				Kind:       domain.LegItemReturn,
				Collection: ref.Collection,
				ItemID:     ref.ItemID,
			})
		}
	}
	result.RemainingWeight = vault.Weight.Dec()

	settlement, err := s.journalSettlement(ctx, tx, req.Account, domain.SettlementUnstake, legs)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, tx, farm, vault, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.UnstakesTotal.WithLabelValues(string(farm.Mode)).Inc()
	s.engine.Dispatch(ctx, settlement, legs)
	result.Settlement = domain.SettlementRef{SettlementID: settlement.ID.String(), Legs: len(legs)}
	return result, nil
}

// Harvest reserves all accrued reward and dispatches the credit transfers
func (s *service) Harvest(ctx context.Context, account string) (*domain.HarvestResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgHarvestCalled, "account", account)

	lock := s.locks.GetLock(account)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return nil, err
	}
	if !farm.SetupFinalized {
		return nil, domain.ErrFarmNotFinalized
	}

	vault, err := tx.GetVaultForUpdate(ctx, s.farmID, account)
	if err != nil {
		return nil, err
	}
	accrual.Accrue(farm, vault, s.now())

	units, amounts, legs := reserveReward(farm, vault)
	if len(legs) == 0 {
		return &domain.HarvestResult{
			Account: account,
			Units:   "0",
			Message: MsgNothingAccrued,
		}, nil
	}

	settlement, err := s.journalSettlement(ctx, tx, account, domain.SettlementHarvest, legs)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, tx, farm, vault, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.HarvestsTotal.Inc()
	s.engine.Dispatch(ctx, settlement, legs)
	return &domain.HarvestResult{
		Account:      account,
		Units:        units.Dec(),
		FarmedTokens: amounts,
		Settlement:   domain.SettlementRef{SettlementID: settlement.ID.String(), Legs: len(legs)},
	}, nil
}

// Close reserves everything the vault holds and dispatches the full payout
func (s *service) Close(ctx context.Context, account string) (*domain.CloseResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgCloseCalled, "account", account)

	lock := s.locks.GetLock(account)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return nil, err
	}
	if !farm.SetupFinalized {
		return nil, domain.ErrFarmNotFinalized
	}

	vault, err := tx.GetVaultForUpdate(ctx, s.farmID, account)
	if err != nil {
		return nil, err
	}
	if vault.ItemCount() > MaxCloseItems {
		return nil, domain.ErrTooManyStakedItems
	}
	accrual.Accrue(farm, vault, s.now())

	units, amounts, legs := reserveReward(farm, vault)
	// Units that translate to zero tokens in every denomination are forfeited
	// here: a closed vault must leave empty, and there is nothing to pay.
	if !vault.AccruedUnits.IsZero() {
		vault.AccruedUnits = uint256.NewInt(0)
	}
	result := &domain.CloseResult{
		Account:      account,
		Units:        units.Dec(),
		FarmedTokens: amounts,
	}

	// Return the regular stake.
	if farm.Mode == domain.FarmModeFungible {
		if !vault.Weight.IsZero() {
			amount := vault.Weight.Clone()
			if err := ledger.UnstakeFungible(farm, vault, amount); err != nil {
				return nil, err
			}
			result.ReturnedAmount = amount.Dec()
			legs = append(legs, domain.SettlementLeg{
				Kind:   domain.LegStakeReturn,
				Token:  farm.StakeToken,
				Amount: amount,
			})
		}
	} else {
		for collection := range vault.StakedItems {
			removed, err := ledger.UnstakeItem(farm, vault, collection, "")
			if err != nil {
				return nil, err
			}
			result.ReturnedItems = append(result.ReturnedItems, removed...)
			for _, ref := range removed {
				legs = append(legs, domain.SettlementLeg{
					Kind:       domain.LegItemReturn,
					Collection: ref.Collection,
					ItemID:     ref.ItemID,
				})
			}
		}
		if vault.BoostItem != "" {
			ref, err := ledger.RemoveBoost(farm, vault)
			if err != nil {
				return nil, err
			}
			result.ReturnedItems = append(result.ReturnedItems, ref)
			legs = append(legs, domain.SettlementLeg{
				Kind:       domain.LegBoostReturn,
				Collection: ref.Collection,
				ItemID:     ref.ItemID,
			})
		}
	}

	// Retry any recovered balances as part of the close.
	for token, amount := range vault.Recovered {
		if amount.IsZero() {
			continue
		}
		legs = append(legs, domain.SettlementLeg{
			Kind:   domain.LegRecoveredCredit,
			Token:  token,
			Amount: amount.Clone(),
		})
	}
	vault.Recovered = map[string]*uint256.Int{}

	if len(legs) == 0 {
		// Nothing in flight: the vault can be removed synchronously.
		if err := tx.DeleteVault(ctx, s.farmID, account); err != nil {
			return nil, err
		}
		farm.AccountsRegistered--
		if err := tx.UpdateFarm(ctx, farm); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		metrics.VaultsClosed.Inc()
		return result, nil
	}

	settlement, err := s.journalSettlement(ctx, tx, account, domain.SettlementClose, legs)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, tx, farm, vault, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.engine.Dispatch(ctx, settlement, legs)
	result.Settlement = domain.SettlementRef{SettlementID: settlement.ID.String(), Legs: len(legs)}
	return result, nil
}

// WithdrawRecovered retries the credit of a previously compensated amount
func (s *service) WithdrawRecovered(ctx context.Context, account, token string) (*domain.WithdrawRecoveredResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgWithdrawRecoveredCalled, "account", account, "token", token)

	lock := s.locks.GetLock(account)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return nil, err
	}
	vault, err := tx.GetVaultForUpdate(ctx, s.farmID, account)
	if err != nil {
		return nil, err
	}

	amount := vault.RecoveredAmount(token)
	if amount.IsZero() {
		return nil, domain.ErrNothingToWithdraw
	}
	amount = amount.Clone()
	delete(vault.Recovered, token)

	legs := []domain.SettlementLeg{{
		Kind:   domain.LegRecoveredCredit,
		Token:  token,
		Amount: amount,
	}}

	settlement, err := s.journalSettlement(ctx, tx, account, domain.SettlementRecovered, legs)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, tx, farm, vault, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.engine.Dispatch(ctx, settlement, legs)
	return &domain.WithdrawRecoveredResult{
		Account:    account,
		Token:      token,
		Amount:     amount.Dec(),
		Settlement: domain.SettlementRef{SettlementID: settlement.ID.String(), Legs: 1},
	}, nil
}

// Status projects a vault with a fresh accrual that is never written back
func (s *service) Status(ctx context.Context, account string) (*domain.AccountStatus, error) {
	farm, err := s.repo.GetFarm(ctx, s.farmID)
	if err != nil {
		return nil, err
	}
	vault, err := s.repo.GetVault(ctx, s.farmID, account)
	if err != nil {
		return nil, err
	}

	now := s.now()
	farm = farm.Clone()
	vault = vault.Clone()
	accrual.Accrue(farm, vault, now)

	farmed := make(map[string]string, len(farm.RewardTokens))
	for _, tok := range farm.RewardTokens {
		farmed[tok.Symbol] = accrual.FarmedTokens(vault.AccruedUnits, tok.Rate).Dec()
	}
	recovered := make(map[string]string)
	for token, amount := range vault.Recovered {
		if !amount.IsZero() {
			recovered[token] = amount.Dec()
		}
	}

	return &domain.AccountStatus{
		Account:        account,
		Weight:         vault.Weight.Dec(),
		AccruedUnits:   vault.AccruedUnits.Dec(),
		FarmedTokens:   farmed,
		StakedItems:    vault.StakedItems,
		BoostItem:      vault.BoostItem,
		Recovered:      recovered,
		Round:          accrual.RoundIndex(farm, now),
		RoundTimestamp: now,
	}, nil
}

// FarmStatus projects the farm aggregate
func (s *service) FarmStatus(ctx context.Context) (*domain.FarmStatus, error) {
	farm, err := s.repo.GetFarm(ctx, s.farmID)
	if err != nil {
		return nil, err
	}

	deposited := make(map[string]string, len(farm.RewardTokens))
	harvested := make(map[string]string, len(farm.RewardTokens))
	for _, tok := range farm.RewardTokens {
		deposited[tok.Symbol] = tok.Deposited.Dec()
		harvested[tok.Symbol] = tok.Harvested.Dec()
	}

	return &domain.FarmStatus{
		Mode:               string(farm.Mode),
		TotalRewardSupply:  farm.TotalRewardSupply.Dec(),
		RewardPerRound:     farm.RewardPerRound.Dec(),
		RoundsTotal:        farm.RoundsTotal,
		Round:              accrual.RoundIndex(farm, s.now()),
		FarmingStart:       farm.FarmingStart,
		FarmingEnd:         farm.FarmingEnd,
		TotalWeight:        farm.TotalWeight.Dec(),
		SetupFinalized:     farm.SetupFinalized,
		Paused:             farm.Paused,
		Deposited:          deposited,
		Harvested:          harvested,
		AccountsRegistered: farm.AccountsRegistered,
	}, nil
}

// Settlement returns the journal row for one settlement. Finalized
// settlements are usually served from the engine's outcome cache; only a
// cache miss reads the journal.
func (s *service) Settlement(ctx context.Context, id uuid.UUID) (*domain.SettlementView, error) {
	if view, ok := s.engine.Outcome(id); ok {
		return view, nil
	}

	settlement, legs, err := s.journal.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.NewSettlementView(settlement, legs), nil
}

// Fund records a reward token deposit during setup
func (s *service) Fund(ctx context.Context, token, amount string) error {
	parsed, err := parseAmount(amount)
	if err != nil {
		return err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return err
	}
	if farm.SetupFinalized {
		return domain.ErrAlreadyFinalized
	}
	idx := farm.RewardTokenIndex(token)
	if idx < 0 {
		return domain.ErrUnknownToken
	}
	farm.RewardTokens[idx].Deposited.Add(farm.RewardTokens[idx].Deposited, parsed)

	if err := tx.UpdateFarm(ctx, farm); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.FromContext(ctx).Info(LogMsgRewardFunded, "token", token, "amount", parsed.Dec())
	return nil
}

// FinalizeSetup verifies exact funding of every reward token and opens the farm
func (s *service) FinalizeSetup(ctx context.Context) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return err
	}
	if farm.SetupFinalized {
		return domain.ErrAlreadyFinalized
	}

	for _, tok := range farm.RewardTokens {
		required := accrual.RequiredDeposit(farm, tok.Rate)
		if tok.Deposited.Cmp(required) != 0 {
			return fmt.Errorf("%w: token %s has %s, needs exactly %s",
				domain.ErrDepositMismatch, tok.Symbol, tok.Deposited.Dec(), required.Dec())
		}
	}

	farm.SetupFinalized = true
	if err := tx.UpdateFarm(ctx, farm); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	_ = s.bus.Publish(ctx, event.NewFarmLifecycleEvent(event.FarmFinalized, ""))
	logger.FromContext(ctx).Info(LogMsgSetupFinalized)
	return nil
}

// SetActive pauses or resumes staking
func (s *service) SetActive(ctx context.Context, active bool) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return err
	}
	farm.Paused = !active
	if err := tx.UpdateFarm(ctx, farm); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if active {
		_ = s.bus.Publish(ctx, event.NewFarmLifecycleEvent(event.FarmResumed, ""))
		logger.FromContext(ctx).Info(LogMsgFarmResumed)
	} else {
		_ = s.bus.Publish(ctx, event.NewFarmLifecycleEvent(event.FarmPaused, ""))
		logger.FromContext(ctx).Info(LogMsgFarmPaused)
	}
	return nil
}

// SetWindow moves the farming window before setup is finalized
func (s *service) SetWindow(ctx context.Context, start, end time.Time) error {
	if !end.After(start) {
		return domain.ErrInvalidWindow
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer repository.SafeRollback(ctx, tx)

	farm, err := tx.GetFarmForUpdate(ctx, s.farmID)
	if err != nil {
		return err
	}
	if farm.SetupFinalized {
		return domain.ErrWindowImmutable
	}
	farm.FarmingStart = start
	farm.FarmingEnd = end

	if err := tx.UpdateFarm(ctx, farm); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.FromContext(ctx).Info(LogMsgWindowChanged, "start", start, "end", end)
	return nil
}

// ---- Internals ----

// requireOpenForStake gates new deposits: the farm must be finalized, not
// paused, and the farming window must not have ended. Withdrawals and
// harvests stay available regardless of pause and window.
func (s *service) requireOpenForStake(farm *domain.Farm) error {
	if !farm.SetupFinalized {
		return domain.ErrFarmNotFinalized
	}
	if farm.Paused {
		return domain.ErrFarmPaused
	}
	if !s.now().Before(farm.FarmingEnd) {
		return domain.ErrFarmWindowClosed
	}
	return nil
}

// vaultForUpdate fetches the vault under lock, registering a fresh one
// checkpointed at the current accumulator when the account is new.
func (s *service) vaultForUpdate(ctx context.Context, tx repository.FarmTx, farm *domain.Farm, account string) (*domain.Vault, bool, error) {
	vault, err := tx.GetVaultForUpdate(ctx, s.farmID, account)
	if err == nil {
		return vault, false, nil
	}
	if !errors.Is(err, domain.ErrVaultNotFound) {
		return nil, false, err
	}

	// New accounts checkpoint at the present accumulator value so they earn
	// nothing for rounds before they existed.
	accrual.UpdateCheckpoint(farm, accrual.RoundIndex(farm, s.now()))
	vault = domain.NewVault(account, farm.RewardPerWeight)
	farm.AccountsRegistered++
	return vault, true, nil
}

// persist writes the farm and vault back in the order every other transaction
// uses: farm first, vault second.
func (s *service) persist(ctx context.Context, tx repository.FarmTx, farm *domain.Farm, vault *domain.Vault, createdVault bool) error {
	if err := tx.UpdateFarm(ctx, farm); err != nil {
		return err
	}
	if createdVault {
		return tx.CreateVault(ctx, s.farmID, vault)
	}
	return tx.UpdateVault(ctx, s.farmID, vault)
}

// journalSettlement assigns leg indices and writes the settlement journal
// rows inside the caller's transaction.
func (s *service) journalSettlement(ctx context.Context, tx repository.FarmTx, account string, kind domain.SettlementKind, legs []domain.SettlementLeg) (*domain.Settlement, error) {
	settlement := &domain.Settlement{
		ID:        uuid.New(),
		FarmID:    s.farmID,
		Account:   account,
		Kind:      kind,
		LegsTotal: len(legs),
		Status:    domain.SettlementPending,
	}
	for i := range legs {
		legs[i].SettlementID = settlement.ID
		legs[i].Index = i
		legs[i].Status = domain.LegPending
	}
	if err := tx.CreateSettlement(ctx, settlement, legs); err != nil {
		return nil, err
	}
	return settlement, nil
}

// reserveReward zeroes the vault's accrued units and translates them into one
// credit leg per reward token. On single-reward-token farms the leg carries
// the unit count so a failed credit can restore the exact pre-harvest state.
// Returns no legs when every translated amount rounds to zero, in which case
// nothing is reserved.
func reserveReward(farm *domain.Farm, vault *domain.Vault) (*uint256.Int, map[string]string, []domain.SettlementLeg) {
	units := vault.AccruedUnits.Clone()
	if units.IsZero() {
		return units, nil, nil
	}

	var legs []domain.SettlementLeg
	amounts := make(map[string]string, len(farm.RewardTokens))
	for i := range farm.RewardTokens {
		tok := &farm.RewardTokens[i]
		amount := accrual.FarmedTokens(units, tok.Rate)
		if amount.IsZero() {
			continue
		}
		amounts[tok.Symbol] = amount.Dec()
		leg := domain.SettlementLeg{
			Kind:   domain.LegRewardCredit,
			Token:  tok.Symbol,
			Amount: amount,
		}
		if len(farm.RewardTokens) == 1 {
			leg.Units = units.Clone()
		}
		legs = append(legs, leg)
	}
	if len(legs) == 0 {
		return uint256.NewInt(0), nil, nil
	}

	vault.AccruedUnits = uint256.NewInt(0)
	for i := range farm.RewardTokens {
		tok := &farm.RewardTokens[i]
		if amount, ok := amounts[tok.Symbol]; ok {
			parsed := uint256.MustFromDecimal(amount)
			tok.Harvested.Add(tok.Harvested, parsed)
		}
	}
	return units, amounts, legs
}

// parseAmount parses a positive decimal amount string
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, domain.ErrZeroAmount
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, s)
	}
	if amount.IsZero() {
		return nil, domain.ErrZeroAmount
	}
	return amount, nil
}
