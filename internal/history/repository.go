package history

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorraine/cropcast/internal/contracts"
)

const (
	// minWindowRows is the row count below which the window query is retried
	// with the widened cap.
	minWindowRows = 60

	// widenedCap is the fallback LIMIT when the lookback window is too
	// sparse (market rest days, ingestion gaps).
	widenedCap = 500
)

// Repository reads the merged observation history and the realized daily
// prices. Implements contracts.HistoryProvider and contracts.ActualsSource.
// Read-only; safe for concurrent use through the pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new observation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window implements contracts.HistoryProvider: observations strictly before
// cutoff, newest first capped at lookbackDays*2, re-queried with the widened
// cap when too few rows come back, returned ascending. An empty result is
// insufficient history, not an error.
func (r *Repository) Window(ctx context.Context, item contracts.ItemID, lookbackDays int, cutoff time.Time) ([]contracts.Observation, error) {
	obs, err := r.queryWindow(ctx, item, cutoff, lookbackDays*2)
	if err != nil {
		return nil, err
	}
	if len(obs) < minWindowRows {
		obs, err = r.queryWindow(ctx, item, cutoff, widenedCap)
		if err != nil {
			return nil, err
		}
	}

	// Newest-first from the query; the engine wants ascending.
	for i, j := 0, len(obs)-1; i < j; i, j = i+1, j-1 {
		obs[i], obs[j] = obs[j], obs[i]
	}
	return obs, nil
}

func (r *Repository) queryWindow(ctx context.Context, item contracts.ItemID, cutoff time.Time, limit int) ([]contracts.Observation, error) {
	query := `
		SELECT item_id, obs_date, avg_price,
		       stn_pres, temperature, humidity, wind_speed, precip, typhoon
		FROM market_observations
		WHERE item_id = $1
		  AND avg_price IS NOT NULL
		  AND obs_date < $2
		ORDER BY obs_date DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, item, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []contracts.Observation
	for rows.Next() {
		var o contracts.Observation
		if err := rows.Scan(
			&o.ItemID, &o.Date, &o.Price,
			&o.Weather.Pressure, &o.Weather.Temperature, &o.Weather.Humidity,
			&o.Weather.WindSpeed, &o.Weather.Precip, &o.Weather.Typhoon,
		); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// ActualPrice implements contracts.ActualsSource: the realized daily average
// price for (item, date), or false while it has not landed yet.
func (r *Repository) ActualPrice(ctx context.Context, item contracts.ItemID, date time.Time) (float64, bool, error) {
	query := `
		SELECT avg_price
		FROM daily_prices
		WHERE item_id = $1 AND price_date = $2
	`

	var price *float64
	err := r.pool.QueryRow(ctx, query, item, date).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if price == nil {
		return 0, false, nil
	}
	return *price, true, nil
}

// AvailableItems returns the item ids that have at least one priced
// observation. The CLI intersects this with the model registry to list
// forecastable items.
func (r *Repository) AvailableItems(ctx context.Context) ([]contracts.ItemID, error) {
	query := `
		SELECT DISTINCT item_id
		FROM market_observations
		WHERE avg_price IS NOT NULL
		ORDER BY item_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []contracts.ItemID
	for rows.Next() {
		var id contracts.ItemID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}
