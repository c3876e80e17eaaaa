// Package settlement executes the asynchronous half of every payout: the
// service reserves quantities and journals the legs inside its own
// transaction, then the engine dispatches each leg's remote call, reconciles
// the outcome back into the journal, compensates failures, and finalizes the
// settlement when the last leg reports in.
//
// Finalization is driven by a counting join over the journal, never by any
// single leg: a settlement with N legs finalizes exactly once, after all N
// have reconciled, regardless of arrival order or interleaving.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/croplabs/farmd/internal/accrual"
	"github.com/croplabs/farmd/internal/concurrency"
	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/event"
	"github.com/croplabs/farmd/internal/ledger"
	"github.com/croplabs/farmd/internal/logger"
	"github.com/croplabs/farmd/internal/metrics"
	"github.com/croplabs/farmd/internal/registry"
	"github.com/croplabs/farmd/internal/repository"
	"github.com/croplabs/farmd/internal/worker"
)

// Engine dispatches settlement legs to remote registries and reconciles
// their outcomes
type Engine struct {
	farms    repository.Farm
	journal  repository.Settlement
	clients  *registry.Clients
	pool     *worker.Pool
	bus      event.Bus
	locks    *concurrency.LockManager
	outcomes *expirable.LRU[string, *domain.SettlementView]
}

// NewEngine creates a settlement engine. The worker pool is owned by the
// engine: Start and Stop manage its lifecycle.
func NewEngine(
	farms repository.Farm,
	journal repository.Settlement,
	clients *registry.Clients,
	pool *worker.Pool,
	bus event.Bus,
	locks *concurrency.LockManager,
) *Engine {
	return &Engine{
		farms:    farms,
		journal:  journal,
		clients:  clients,
		pool:     pool,
		bus:      bus,
		locks:    locks,
		outcomes: expirable.NewLRU[string, *domain.SettlementView](OutcomeCacheSize, nil, OutcomeCacheTTL),
	}
}

// Start starts the workers and re-dispatches legs that were in flight when
// the previous process stopped.
func (e *Engine) Start(ctx context.Context) error {
	e.pool.Start()

	legs, err := e.journal.ListPendingLegs(ctx, RecoverPendingLegsCap)
	if err != nil {
		return fmt.Errorf("failed to recover pending settlement legs: %w", err)
	}
	for _, leg := range legs {
		settlement, _, err := e.journal.GetSettlement(ctx, leg.SettlementID)
		if err != nil {
			return err
		}
		e.enqueue(settlement, leg)
	}
	if len(legs) > 0 {
		logger.FromContext(ctx).Info(LogMsgRecoveredPendingLegs, "count", len(legs))
	}
	return nil
}

// Stop stops the workers after their current job
func (e *Engine) Stop() {
	e.pool.Stop()
}

// Dispatch hands a journaled settlement's legs to the worker pool. The caller
// must have committed the reservation and the journal rows already: dispatch
// after commit, never before.
func (e *Engine) Dispatch(ctx context.Context, settlement *domain.Settlement, legs []domain.SettlementLeg) {
	for _, leg := range legs {
		metrics.SettlementLegsDispatched.WithLabelValues(string(leg.Kind)).Inc()
		e.enqueue(settlement, leg)
	}

	_ = e.bus.Publish(ctx, event.NewSettlementEvent(
		event.SettlementDispatched,
		settlement.ID.String(), settlement.Account, string(settlement.Kind),
		settlement.LegsTotal, 0,
	))
	logger.FromContext(ctx).Info(LogMsgSettlementDispatched,
		"settlement_id", settlement.ID,
		"kind", settlement.Kind,
		"legs", settlement.LegsTotal)
}

// Outcome returns a recently finalized settlement's terminal view. Status
// polling hits this cache first; only a miss falls through to the journal.
func (e *Engine) Outcome(id uuid.UUID) (*domain.SettlementView, bool) {
	return e.outcomes.Get(id.String())
}

func (e *Engine) enqueue(settlement *domain.Settlement, leg domain.SettlementLeg) {
	e.pool.Enqueue(&legJob{
		engine:  e,
		farmID:  settlement.FarmID,
		account: settlement.Account,
		kind:    settlement.Kind,
		leg:     leg,
	})
}

// legJob executes one leg: the remote call, then reconciliation
type legJob struct {
	engine  *Engine
	farmID  int64
	account string
	kind    domain.SettlementKind
	leg     domain.SettlementLeg
}

// Process implements worker.Job
func (j *legJob) Process(ctx context.Context) error {
	callErr := j.execute(ctx)

	legStatus := domain.LegSucceeded
	legError := ""
	if callErr != nil {
		legStatus = domain.LegFailed
		legError = callErr.Error()
		metrics.SettlementLegsFailed.WithLabelValues(string(j.leg.Kind)).Inc()
		logger.FromContext(ctx).Warn(LogMsgLegFailed,
			"settlement_id", j.leg.SettlementID,
			"leg_kind", j.leg.Kind,
			"error", callErr)
		j.publishLegFailed(ctx, legError)
	}

	var err error
	for attempt := 1; attempt <= ReconcileMaxAttempts; attempt++ {
		if err = j.reconcile(ctx, legStatus, legError); err == nil {
			return nil
		}
		time.Sleep(ReconcileRetryDelay * time.Duration(attempt))
	}

	// The remote outcome is known but could not be recorded. The leg stays
	// pending in the journal; an operator resolves it from the stranded alert.
	metrics.CompensationsStranded.Inc()
	logger.FromContext(ctx).Error(LogMsgCompensationStranded,
		"settlement_id", j.leg.SettlementID,
		"leg_kind", j.leg.Kind,
		"error", err)
	_ = j.engine.bus.Publish(ctx, event.NewCompensationStrandedEvent(event.CompensationStrandedPayloadV1{
		SettlementID: j.leg.SettlementID.String(),
		Account:      j.account,
		LegKind:      string(j.leg.Kind),
		Amount:       amountString(j.leg),
		ItemID:       j.leg.ItemID,
		Error:        err.Error(),
	}))
	return err
}

// execute performs the leg's remote registry call. A missing registry client
// is treated exactly like a remote failure so the compensation path stays
// uniform.
func (j *legJob) execute(ctx context.Context) error {
	key := j.leg.IdempotencyKey()
	switch j.leg.Kind {
	case domain.LegRewardCredit, domain.LegRecoveredCredit:
		client, ok := j.engine.clients.Token(j.leg.Token)
		if !ok {
			return fmt.Errorf("%w: %s for token %s", domain.ErrRemoteCallFailed, LogMsgUnknownRegistry, j.leg.Token)
		}
		return client.Credit(ctx, key, j.account, j.leg.Amount)

	case domain.LegStakeReturn:
		client, ok := j.engine.clients.Token(j.leg.Token)
		if !ok {
			return fmt.Errorf("%w: %s for token %s", domain.ErrRemoteCallFailed, LogMsgUnknownRegistry, j.leg.Token)
		}
		return client.DebitTransfer(ctx, key, j.account, j.leg.Amount)

	case domain.LegItemReturn, domain.LegBoostReturn:
		client, ok := j.engine.clients.Collection(j.leg.Collection)
		if !ok {
			return fmt.Errorf("%w: %s for collection %s", domain.ErrRemoteCallFailed, LogMsgUnknownRegistry, j.leg.Collection)
		}
		return client.Transfer(ctx, key, j.account, j.leg.ItemID)

	default:
		return fmt.Errorf("%w: unknown leg kind %s", domain.ErrRemoteCallFailed, j.leg.Kind)
	}
}

// reconcile records the leg outcome, applies compensation for a failure, and
// finalizes the settlement if this was the last leg to resolve. One
// transaction covers all three so a crash can never separate them.
func (j *legJob) reconcile(ctx context.Context, legStatus domain.LegStatus, legError string) error {
	lock := j.engine.locks.GetLock(j.account)
	lock.Lock()
	defer lock.Unlock()

	tx, err := j.engine.farms.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer repository.SafeRollback(ctx, tx)

	settlement, transitioned, err := tx.ResolveLeg(ctx, j.leg.SettlementID, j.leg.Index, legStatus, legError)
	if err != nil {
		return err
	}

	// A duplicate enqueue finds the leg already resolved; compensating again
	// would restore the reservation twice.
	if legStatus == domain.LegFailed && transitioned {
		if err := j.compensate(ctx, tx); err != nil {
			return err
		}
		metrics.SettlementCompensations.WithLabelValues(string(j.leg.Kind)).Inc()
	}

	finalized := false
	vaultDeleted := false
	if settlement.Resolved() && settlement.Status == domain.SettlementPending {
		finalized = true
		status := domain.SettlementSucceeded
		if settlement.LegsFailed > 0 {
			status = domain.SettlementFailed
		}
		if err := tx.SetSettlementStatus(ctx, settlement.ID, status); err != nil {
			return err
		}
		settlement.Status = status

		if settlement.Kind == domain.SettlementClose && status == domain.SettlementSucceeded {
			vaultDeleted, err = j.removeClosedVault(ctx, tx)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if finalized {
		j.finalized(ctx, settlement, vaultDeleted)
	}
	return nil
}

// compensate restores exactly what the reservation removed, under the same
// farm and vault row locks every other mutation takes.
func (j *legJob) compensate(ctx context.Context, tx repository.FarmTx) error {
	farm, err := tx.GetFarmForUpdate(ctx, j.farmID)
	if err != nil {
		return err
	}
	vault, err := tx.GetVaultForUpdate(ctx, j.farmID, j.account)
	if err != nil {
		return err
	}

	switch j.leg.Kind {
	case domain.LegRewardCredit:
		if j.leg.Units != nil {
			// Single-reward-token farm: the reservation zeroed this many
			// accrued units, so restoring them reproduces the pre-harvest
			// state bit for bit.
			vault.AccruedUnits.Add(vault.AccruedUnits, j.leg.Units)
			idx := farm.RewardTokenIndex(j.leg.Token)
			if idx >= 0 {
				farm.RewardTokens[idx].Harvested.Sub(farm.RewardTokens[idx].Harvested, j.leg.Amount)
			}
		} else {
			// Multi-token farm: the shared unit balance cannot be restored
			// without double-paying the sibling legs. The amount becomes a
			// recovered balance, withdrawable on its own.
			vault.AddRecovered(j.leg.Token, j.leg.Amount)
		}

	case domain.LegRecoveredCredit:
		vault.AddRecovered(j.leg.Token, j.leg.Amount)

	case domain.LegStakeReturn:
		// Weight changes must not reach back into rounds already accounted,
		// so bring the vault current before restoring.
		accrual.Accrue(farm, vault, time.Now())
		vault.Weight.Add(vault.Weight, j.leg.Amount)
		farm.TotalWeight.Add(farm.TotalWeight, j.leg.Amount)

	case domain.LegItemReturn:
		accrual.Accrue(farm, vault, time.Now())
		ledger.RestoreItem(farm, vault, j.leg.Collection, j.leg.ItemID)

	case domain.LegBoostReturn:
		accrual.Accrue(farm, vault, time.Now())
		ledger.RestoreBoost(farm, vault, domain.ItemRef{Collection: j.leg.Collection, ItemID: j.leg.ItemID})
	}

	if err := tx.UpdateVault(ctx, j.farmID, vault); err != nil {
		return err
	}
	return tx.UpdateFarm(ctx, farm)
}

// removeClosedVault deletes the vault after a fully successful close. The
// vault outlives its own close settlement precisely so failed legs have a
// row to compensate into; only a clean finalization removes it.
func (j *legJob) removeClosedVault(ctx context.Context, tx repository.FarmTx) (bool, error) {
	farm, err := tx.GetFarmForUpdate(ctx, j.farmID)
	if err != nil {
		return false, err
	}
	vault, err := tx.GetVaultForUpdate(ctx, j.farmID, j.account)
	if err != nil {
		return false, err
	}
	if !vault.IsEmpty() {
		return false, nil
	}
	if err := tx.DeleteVault(ctx, j.farmID, j.account); err != nil {
		return false, err
	}
	farm.AccountsRegistered--
	if err := tx.UpdateFarm(ctx, farm); err != nil {
		return false, err
	}
	return true, nil
}

func (j *legJob) finalized(ctx context.Context, settlement *domain.Settlement, vaultDeleted bool) {
	// One journal read per settlement caches the terminal view for pollers.
	if row, legs, err := j.engine.journal.GetSettlement(ctx, settlement.ID); err == nil {
		j.engine.outcomes.Add(settlement.ID.String(), domain.NewSettlementView(row, legs))
	}
	metrics.SettlementsCompleted.WithLabelValues(string(settlement.Kind), string(settlement.Status)).Inc()

	eventType := event.SettlementCompleted
	if settlement.Status == domain.SettlementFailed {
		eventType = event.SettlementFailed
	}
	_ = j.engine.bus.Publish(ctx, event.NewSettlementEvent(
		eventType,
		settlement.ID.String(), settlement.Account, string(settlement.Kind),
		settlement.LegsTotal, settlement.LegsFailed,
	))

	if vaultDeleted {
		metrics.VaultsClosed.Inc()
		_ = j.engine.bus.Publish(ctx, event.NewFarmLifecycleEvent(event.VaultClosed, settlement.Account))
		logger.FromContext(ctx).Info(LogMsgVaultDeleted, "account", settlement.Account)
	}

	logger.FromContext(ctx).Info(LogMsgSettlementFinalized,
		"settlement_id", settlement.ID,
		"status", settlement.Status,
		"legs_failed", settlement.LegsFailed)
}

func (j *legJob) publishLegFailed(ctx context.Context, legError string) {
	_ = j.engine.bus.Publish(ctx, event.NewLegFailedEvent(event.LegFailedPayloadV1{
		SettlementID: j.leg.SettlementID.String(),
		Account:      j.account,
		LegKind:      string(j.leg.Kind),
		Token:        j.leg.Token,
		Collection:   j.leg.Collection,
		ItemID:       j.leg.ItemID,
		Amount:       amountString(j.leg),
		Error:        legError,
	}))
}

func amountString(leg domain.SettlementLeg) string {
	if leg.Amount == nil {
		return ""
	}
	return leg.Amount.Dec()
}
