package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/croplabs/farmd/internal/domain"
)

// Settlement defines the read side of the settlement journal
type Settlement interface {
	// GetSettlement retrieves a settlement with its legs
	GetSettlement(ctx context.Context, id uuid.UUID) (*domain.Settlement, []domain.SettlementLeg, error)

	// ListPendingLegs returns unreconciled legs of pending settlements,
	// oldest first. Used to re-dispatch in-flight work after a restart.
	ListPendingLegs(ctx context.Context, limit int) ([]domain.SettlementLeg, error)

	// ListSettlementsForAccount returns recent settlements for an account
	ListSettlementsForAccount(ctx context.Context, account string, limit int) ([]domain.Settlement, error)
}
