package contracts

import (
	"context"
	"time"
)

// HistoryProvider fetches a bounded, leakage-safe observation window.
type HistoryProvider interface {
	// Window returns observations for item strictly before cutoff, ascending,
	// capped at lookbackDays*2 rows (widened when the recent window is too
	// sparse). An empty result means insufficient history, not an error.
	Window(ctx context.Context, item ItemID, lookbackDays int, cutoff time.Time) ([]Observation, error)
}

// PredictionStore persists forecast rows with upsert-on-conflict semantics
// keyed by (item_id, target_date).
type PredictionStore interface {
	// SavePredictions upserts records one at a time and returns how many
	// landed. A single failed row is logged by the implementation and does
	// not abort the rest.
	SavePredictions(ctx context.Context, records []ForecastRecord) (int, error)

	// ListUnreconciled returns records with target_date in [from, to] whose
	// actual_price is still null.
	ListUnreconciled(ctx context.Context, from, to time.Time) ([]ForecastRecord, error)

	// MarkActual sets actual_price and error_metric on a single record in
	// its own committed transaction. It must never change predicted_price.
	MarkActual(ctx context.Context, id int64, actual, metric float64) error

	// ListByItem returns stored records for one item in [from, to],
	// ascending by target_date.
	ListByItem(ctx context.Context, item ItemID, from, to time.Time) ([]ForecastRecord, error)
}

// ActualsSource looks up the realized price for (item, date).
type ActualsSource interface {
	// ActualPrice returns (price, true) when a realized price exists,
	// (0, false) when it does not yet.
	ActualPrice(ctx context.Context, item ItemID, date time.Time) (float64, bool, error)
}
