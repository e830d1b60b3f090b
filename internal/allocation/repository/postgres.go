package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/hanifmhd/erp-allocation-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetOrderLine(ctx context.Context, id string) (*model.OrderLine, error) {
	var line model.OrderLine
	query := `
        SELECT id, order_id, merchant_id, product_id, required_qty, unit, status, delivery_date, updated_at
        FROM order_lines
        WHERE id = $1
    `
	err := r.DB.GetContext(ctx, &line, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Caller decides how to surface a missing line
		}
		return nil, err
	}
	return &line, nil
}

func (r *PGRepository) ListCandidates(ctx context.Context, merchantID, productID string) ([]model.LotCandidate, error) {
	var candidates []model.LotCandidate
	// free_qty is net of reservations held by other lines. Locked lots are
	// still listed (the UI shows them greyed out); the engine rejects
	// allocation attempts against them.
	query := `
        SELECT
            id AS lot_id,
            lot_number,
            product_id,
            GREATEST(quantity - reserved_qty, 0) AS free_qty,
            is_locked,
            expiry_date
        FROM lots
        WHERE merchant_id = $1
          AND product_id = $2
          AND quantity > 0
        ORDER BY expiry_date ASC NULLS LAST, received_at ASC
    `
	err := r.DB.SelectContext(ctx, &candidates, query, merchantID, productID)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
