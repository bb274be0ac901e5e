package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/contracts"
)

// PredictionRepository persists forecast records in Postgres.
//
// The natural key is (item_id, target_date): re-running a predict date
// overwrites earlier predictions for the same target, and a later predict
// date refining an earlier one wins. Reconciliation columns are never
// touched by the upsert.
type PredictionRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPredictionRepository creates a repository on the shared pool.
func NewPredictionRepository(pool *pgxpool.Pool, log zerolog.Logger) *PredictionRepository {
	return &PredictionRepository{
		pool: pool,
		log:  log.With().Str("component", "forecast.repository").Logger(),
	}
}

var _ contracts.PredictionStore = (*PredictionRepository)(nil)

// SavePredictions upserts records one at a time so a single bad row does
// not void the rest of the batch. Returns the number of rows written.
func (r *PredictionRepository) SavePredictions(ctx context.Context, records []contracts.ForecastRecord) (int, error) {
	const q = `
		INSERT INTO price_predictions (item_id, predict_date, target_date, predicted_price, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (item_id, target_date)
		DO UPDATE SET
			predict_date    = EXCLUDED.predict_date,
			predicted_price = EXCLUDED.predicted_price`

	written := 0
	var firstErr error
	for _, rec := range records {
		_, err := r.pool.Exec(ctx, q,
			int(rec.ItemID), rec.PredictDate, rec.TargetDate, rec.PredictedPrice)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("upsert prediction item=%d target=%s: %w",
					rec.ItemID, rec.TargetDate.Format("2006-01-02"), err)
			}
			r.log.Error().Err(err).
				Int("item_id", int(rec.ItemID)).
				Time("target_date", rec.TargetDate).
				Msg("prediction upsert failed")
			continue
		}
		written++
	}
	return written, firstErr
}

// ListUnreconciled returns records with target_date in [from, to] that have
// no actual price recorded yet.
func (r *PredictionRepository) ListUnreconciled(ctx context.Context, from, to time.Time) ([]contracts.ForecastRecord, error) {
	const q = `
		SELECT id, item_id, predict_date, target_date, predicted_price, created_at
		FROM price_predictions
		WHERE target_date BETWEEN $1 AND $2
		  AND actual_price IS NULL
		ORDER BY target_date, item_id`

	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled: %w", err)
	}
	defer rows.Close()

	var out []contracts.ForecastRecord
	for rows.Next() {
		var rec contracts.ForecastRecord
		var itemID int
		if err := rows.Scan(&rec.ID, &itemID, &rec.PredictDate, &rec.TargetDate,
			&rec.PredictedPrice, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.ItemID = contracts.ItemID(itemID)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkActual records the actual price and error metric for one prediction.
func (r *PredictionRepository) MarkActual(ctx context.Context, id int64, actual, metric float64) error {
	const q = `
		UPDATE price_predictions
		SET actual_price = $2, error_pct = $3
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, id, actual, metric)
	if err != nil {
		return fmt.Errorf("mark actual id=%d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark actual id=%d: no such prediction", id)
	}
	return nil
}

// ListByItem returns an item's predictions with target_date in [from, to],
// reconciled or not.
func (r *PredictionRepository) ListByItem(ctx context.Context, item contracts.ItemID, from, to time.Time) ([]contracts.ForecastRecord, error) {
	const q = `
		SELECT id, item_id, predict_date, target_date, predicted_price,
		       actual_price, error_pct, created_at
		FROM price_predictions
		WHERE item_id = $1 AND target_date BETWEEN $2 AND $3
		ORDER BY target_date`

	rows, err := r.pool.Query(ctx, q, int(item), from, to)
	if err != nil {
		return nil, fmt.Errorf("list predictions item=%d: %w", item, err)
	}
	defer rows.Close()

	var out []contracts.ForecastRecord
	for rows.Next() {
		var rec contracts.ForecastRecord
		var itemID int
		if err := rows.Scan(&rec.ID, &itemID, &rec.PredictDate, &rec.TargetDate,
			&rec.PredictedPrice, &rec.ActualPrice, &rec.ErrorMetric, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.ItemID = contracts.ItemID(itemID)
		out = append(out, rec)
	}
	return out, rows.Err()
}
