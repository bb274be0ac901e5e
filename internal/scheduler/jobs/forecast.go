package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/contracts"
	"github.com/lorraine/cropcast/internal/forecast"
)

// DailyForecastJob runs the full daily cycle: predict the next seven days
// for every item with a model, then backfill actuals into past predictions.
type DailyForecastJob struct {
	coordinator *forecast.Coordinator
	reconciler  *forecast.Reconciler
	models      contracts.ModelRegistry
	schedule    string
	log         zerolog.Logger
}

// NewDailyForecastJob creates the daily job.
func NewDailyForecastJob(
	coordinator *forecast.Coordinator,
	reconciler *forecast.Reconciler,
	models contracts.ModelRegistry,
	schedule string,
	log zerolog.Logger,
) *DailyForecastJob {
	return &DailyForecastJob{
		coordinator: coordinator,
		reconciler:  reconciler,
		models:      models,
		schedule:    schedule,
		log:         log.With().Str("component", "jobs.daily_forecast").Logger(),
	}
}

// Name returns the job name.
func (j *DailyForecastJob) Name() string {
	return "daily_forecast"
}

// Schedule returns the cron expression.
func (j *DailyForecastJob) Schedule() string {
	return j.schedule
}

// Run executes forecast then reconciliation. A reconciliation failure does
// not fail the job; predictions are the primary output.
func (j *DailyForecastJob) Run(ctx context.Context) error {
	today := midnight(time.Now())

	summary := j.coordinator.Run(ctx, forecast.Request{
		Dates: []time.Time{today},
		Items: j.models.Items(),
	})

	if summary.Successes == 0 && summary.Failures > 0 {
		return fmt.Errorf("forecast run produced no successes (%d failures)", summary.Failures)
	}

	if _, err := j.reconciler.Sweep(ctx, today); err != nil {
		j.log.Error().Err(err).Msg("reconciliation sweep failed")
	}

	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
