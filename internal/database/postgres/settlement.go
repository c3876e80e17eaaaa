package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/croplabs/farmd/internal/domain"
)

// SettlementRepository implements the settlement journal read side
type SettlementRepository struct {
	db *pgxpool.Pool
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{db: db}
}

const settlementColumns = `settlement_id, farm_id, account, kind, legs_total,
		legs_resolved, legs_failed, status, created_at, updated_at`

const legColumns = `settlement_id, leg_index, kind, token, collection, item_id,
		amount::text, units::text, status, error`

// GetSettlement retrieves a settlement with its legs
func (r *SettlementRepository) GetSettlement(ctx context.Context, id uuid.UUID) (*domain.Settlement, []domain.SettlementLeg, error) {
	settlement, err := getSettlement(ctx, r.db, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+legColumns+` FROM settlement_legs
		WHERE settlement_id = $1
		ORDER BY leg_index
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get settlement legs: %w", err)
	}
	defer rows.Close()

	legs, err := scanLegs(rows)
	if err != nil {
		return nil, nil, err
	}
	return settlement, legs, nil
}

// ListPendingLegs returns unreconciled legs of pending settlements, oldest
// first, for re-dispatch after a restart
func (r *SettlementRepository) ListPendingLegs(ctx context.Context, limit int) ([]domain.SettlementLeg, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.settlement_id, l.leg_index, l.kind, l.token, l.collection, l.item_id,
			l.amount::text, l.units::text, l.status, l.error
		FROM settlement_legs l
		JOIN settlements s ON s.settlement_id = l.settlement_id
		WHERE l.status = 'pending' AND s.status = 'pending'
		ORDER BY s.created_at, l.leg_index
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending legs: %w", err)
	}
	defer rows.Close()

	return scanLegs(rows)
}

// ListSettlementsForAccount returns recent settlements for an account
func (r *SettlementRepository) ListSettlementsForAccount(ctx context.Context, account string, limit int) ([]domain.Settlement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE account = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, *settlement)
	}
	return settlements, rows.Err()
}

// getSettlement is shared with the transactional write side in farm.go
func getSettlement(ctx context.Context, db dbConn, id uuid.UUID) (*domain.Settlement, error) {
	row := db.QueryRow(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE settlement_id = $1`, id)
	settlement, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	var (
		settlement domain.Settlement
		kind       string
		status     string
	)
	err := row.Scan(
		&settlement.ID,
		&settlement.FarmID,
		&settlement.Account,
		&kind,
		&settlement.LegsTotal,
		&settlement.LegsResolved,
		&settlement.LegsFailed,
		&status,
		&settlement.CreatedAt,
		&settlement.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	settlement.Kind = domain.SettlementKind(kind)
	settlement.Status = domain.SettlementStatus(status)
	return &settlement, nil
}

func scanLegs(rows pgx.Rows) ([]domain.SettlementLeg, error) {
	var legs []domain.SettlementLeg
	for rows.Next() {
		var (
			leg    domain.SettlementLeg
			kind   string
			status string
			amount *string
			units  *string
		)
		err := rows.Scan(
			&leg.SettlementID,
			&leg.Index,
			&kind,
			&leg.Token,
			&leg.Collection,
			&leg.ItemID,
			&amount,
			&units,
			&status,
			&leg.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement leg: %w", err)
		}
		leg.Kind = domain.LegKind(kind)
		leg.Status = domain.LegStatus(status)
		if amount != nil {
			parsed, err := decToU256(*amount)
			if err != nil {
				return nil, err
			}
			leg.Amount = parsed
		}
		if units != nil {
			parsed, err := decToU256(*units)
			if err != nil {
				return nil, err
			}
			leg.Units = parsed
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}
