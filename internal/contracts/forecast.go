package contracts

import "time"

// Horizon is the number of future days forecast per invocation.
const Horizon = 7

// MinPredictedPrice is the floor applied to every emitted prediction.
const MinPredictedPrice = 0.01

// ForecastRecord is one stored prediction row. Uniqueness is on
// (ItemID, TargetDate); a re-forecast overwrites PredictDate and
// PredictedPrice only. ActualPrice and ErrorMetric are owned by the
// reconciler and stay nil until it fills them.
type ForecastRecord struct {
	ID             int64     `json:"id"`
	ItemID         ItemID    `json:"item_id"`
	PredictDate    time.Time `json:"predict_date"`
	TargetDate     time.Time `json:"target_date"`
	PredictedPrice float64   `json:"predicted_price"`
	ActualPrice    *float64  `json:"actual_price"`
	ErrorMetric    *float64  `json:"error_metric"`
	CreatedAt      time.Time `json:"created_at"`
}

// Reconciled reports whether the realized price has been backfilled.
func (r ForecastRecord) Reconciled() bool {
	return r.ActualPrice != nil
}

// RunSummary aggregates a coordinator run. Per-unit failures are counted
// here, never escalated.
type RunSummary struct {
	TotalItems     int           `json:"total_items"`
	TotalDates     int           `json:"total_dates"`
	CompletedDates int           `json:"completed_dates"`
	Successes      int           `json:"successes"`
	Failures       int           `json:"failures"`
	RecordsWritten int           `json:"records_written"`
	Duration       time.Duration `json:"duration"`
}

// Merge folds another summary into this one.
func (s *RunSummary) Merge(other RunSummary) {
	s.Successes += other.Successes
	s.Failures += other.Failures
	s.RecordsWritten += other.RecordsWritten
}
