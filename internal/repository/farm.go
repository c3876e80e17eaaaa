package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/croplabs/farmd/internal/domain"
)

// Farm defines the interface for farm and vault persistence. All mutating
// paths go through a FarmTx so the accumulator, the vault and the settlement
// journal move in one atomic step.
type Farm interface {
	// GetFarm retrieves a farm without locking
	GetFarm(ctx context.Context, farmID int64) (*domain.Farm, error)

	// CreateFarm inserts a farm in setup state. Idempotent: an existing farm
	// with the same ID is left untouched and returned as-is.
	CreateFarm(ctx context.Context, farm *domain.Farm) (*domain.Farm, error)

	// GetVault retrieves a vault without locking
	GetVault(ctx context.Context, farmID int64, account string) (*domain.Vault, error)

	// CountVaults returns the number of registered vaults for status reporting
	CountVaults(ctx context.Context, farmID int64) (int64, error)

	// Transaction support
	BeginTx(ctx context.Context) (FarmTx, error)
}

// FarmTx defines the interface for farm transactions
type FarmTx interface {
	Tx

	// GetFarmForUpdate retrieves the farm with FOR UPDATE lock
	GetFarmForUpdate(ctx context.Context, farmID int64) (*domain.Farm, error)

	// UpdateFarm persists accumulator, schedule and lifecycle changes
	UpdateFarm(ctx context.Context, farm *domain.Farm) error

	// GetVaultForUpdate retrieves a vault with FOR UPDATE lock
	GetVaultForUpdate(ctx context.Context, farmID int64, account string) (*domain.Vault, error)

	// CreateVault registers a new account in the farm
	CreateVault(ctx context.Context, farmID int64, vault *domain.Vault) error

	// UpdateVault persists weight, checkpoint, accrued units and holdings
	UpdateVault(ctx context.Context, farmID int64, vault *domain.Vault) error

	// DeleteVault removes a closed vault. Only finalization of a clean close
	// settlement calls this.
	DeleteVault(ctx context.Context, farmID int64, account string) error

	// CreateSettlement journals a settlement and its reserved legs
	CreateSettlement(ctx context.Context, settlement *domain.Settlement, legs []domain.SettlementLeg) error

	// ResolveLeg records one leg outcome and advances the counting join,
	// returning the updated settlement row so the caller can decide whether
	// it was the last leg to reconcile. The bool reports whether this call
	// transitioned the leg out of pending: false means a duplicate resolution
	// that must not trigger compensation again.
	ResolveLeg(ctx context.Context, settlementID uuid.UUID, index int, status domain.LegStatus, legError string) (*domain.Settlement, bool, error)

	// SetSettlementStatus records the settlement's terminal status
	SetSettlementStatus(ctx context.Context, settlementID uuid.UUID, status domain.SettlementStatus) error
}
