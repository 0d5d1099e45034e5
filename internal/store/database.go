package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"site-server/internal/db"
)

// DatabasePriceCache stores price records in PostgreSQL.
type DatabasePriceCache struct {
	db *db.DB
}

func NewDatabasePriceCache(database *db.DB) *DatabasePriceCache {
	return &DatabasePriceCache{db: database}
}

// SavePrice inserts or replaces the record for the plan/billing-cycle pair.
func (ds *DatabasePriceCache) SavePrice(ctx context.Context, rec PriceRecord) error {
	if rec.PlanID == "" || rec.BillingCycle == "" || rec.PriceID == "" {
		return fmt.Errorf("plan_id, billing_cycle, and price_id are required")
	}

	query := `
		INSERT INTO stripe_prices (plan_id, billing_cycle, product_id, price_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (plan_id, billing_cycle)
		DO UPDATE SET
			product_id = EXCLUDED.product_id,
			price_id = EXCLUDED.price_id,
			updated_at = NOW()
	`

	if _, err := ds.db.ExecContext(ctx, query, rec.PlanID, rec.BillingCycle, rec.ProductID, rec.PriceID); err != nil {
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}

// GetPrice returns nil without error when nothing is cached.
func (ds *DatabasePriceCache) GetPrice(ctx context.Context, planID, billingCycle string) (*PriceRecord, error) {
	if planID == "" || billingCycle == "" {
		return nil, fmt.Errorf("plan_id and billing_cycle are required")
	}

	var rec PriceRecord
	query := `
		SELECT plan_id, billing_cycle, product_id, price_id, updated_at
		FROM stripe_prices
		WHERE plan_id = $1 AND billing_cycle = $2
	`
	err := ds.db.QueryRowContext(ctx, query, planID, billingCycle).Scan(
		&rec.PlanID,
		&rec.BillingCycle,
		&rec.ProductID,
		&rec.PriceID,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return &rec, nil
}

func (ds *DatabasePriceCache) DeletePrice(ctx context.Context, planID, billingCycle string) error {
	query := `DELETE FROM stripe_prices WHERE plan_id = $1 AND billing_cycle = $2`
	if _, err := ds.db.ExecContext(ctx, query, planID, billingCycle); err != nil {
		return fmt.Errorf("failed to delete price: %w", err)
	}
	return nil
}
