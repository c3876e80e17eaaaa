package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/croplabs/farmd/internal/logger"
)

// SafeRollback rolls back a transaction and logs any error that isn't ErrTxClosed
func SafeRollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.FromContext(ctx).Error("Failed to rollback transaction", "error", err)
	}
}

// dbConn is the subset of pgxpool.Pool and pgx.Tx the repositories use, so
// query helpers run unchanged inside and outside transactions.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ---- Amount encoding helpers ----
//
// 256-bit amounts live in NUMERIC(78,0) columns. Parameters go over the wire
// as decimal strings with an explicit ::numeric cast; selects cast back to
// text and parse with uint256.

// u256Dec renders an amount as a decimal string, nil as "0"
func u256Dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

// decToU256 parses a decimal column value back into an amount
func decToU256(s string) (*uint256.Int, error) {
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric column value %q: %w", s, err)
	}
	return x, nil
}

// u256MapToJSON marshals a token->amount map as token->decimal-string JSON
func u256MapToJSON(m map[string]*uint256.Int) ([]byte, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = u256Dec(v)
	}
	return json.Marshal(out)
}

// jsonToU256Map unmarshals a token->decimal-string JSON column
func jsonToU256Map(data []byte) (map[string]*uint256.Int, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]*uint256.Int, len(raw))
	for k, v := range raw {
		amount, err := decToU256(v)
		if err != nil {
			return nil, err
		}
		out[k] = amount
	}
	return out, nil
}
