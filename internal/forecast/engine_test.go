package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorraine/cropcast/internal/contracts"
)

// regressorFunc adapts a function to contracts.Regressor.
type regressorFunc func(features []float64) float64

func (f regressorFunc) Predict(features []float64) float64 { return f(features) }

// testModel pairs a feature list with a stub regressor.
func testModel(item contracts.ItemID, featureNames []string, fn regressorFunc) *contracts.Model {
	return &contracts.Model{
		ItemID:       item,
		FeatureNames: featureNames,
		Regressor:    fn,
	}
}

// makeHistory builds n ascending observations ending the day before
// predictDate, with constant weather.
func makeHistory(item contracts.ItemID, n int, predictDate time.Time, priceAt func(i int) float64) []contracts.Observation {
	temp := 18.0
	pres := 1013.0
	obs := make([]contracts.Observation, n)
	for i := 0; i < n; i++ {
		obs[i] = contracts.Observation{
			ItemID: item,
			Date:   predictDate.AddDate(0, 0, i-n),
			Price:  priceAt(i),
			Weather: contracts.Weather{
				Temperature: &temp,
				Pressure:    &pres,
			},
		}
	}
	return obs
}

var testFeatures = []string{"y_lag_1", "y_lag_7", "y_ma_7", "dayofweek", "Temperature_ma_7"}

func TestForecastEmitsFullHorizon(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	mdl := testModel(11, testFeatures, func(fs []float64) float64 { return 250.0 })
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 200 + float64(i) })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	require.Len(t, result.Records, contracts.Horizon)
	assert.Zero(t, result.SkippedSteps)

	// Targets are predictDate .. predictDate+6: the anchor is the day
	// before the predict date.
	for i, rec := range result.Records {
		assert.Equal(t, contracts.ItemID(11), rec.ItemID)
		assert.Equal(t, predictDate, rec.PredictDate)
		assert.Equal(t, predictDate.AddDate(0, 0, i), rec.TargetDate, "step %d", i+1)
		assert.Equal(t, 250.0, rec.PredictedPrice)
	}
}

func TestForecastInsufficientHistory(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	mdl := testModel(11, testFeatures, func(fs []float64) float64 { return 100 })
	obs := makeHistory(11, 10, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	_, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestForecastNilModel(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	_, err := engine.Forecast(context.Background(), nil, obs, predictDate)
	assert.ErrorIs(t, err, contracts.ErrModelNotFound)
}

func TestForecastClampsToFloor(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	mdl := testModel(11, testFeatures, func(fs []float64) float64 { return -37.5 })
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	require.Len(t, result.Records, contracts.Horizon)
	for _, rec := range result.Records {
		assert.Equal(t, contracts.MinPredictedPrice, rec.PredictedPrice)
	}
}

func TestForecastRoundsToTwoDecimals(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	mdl := testModel(11, testFeatures, func(fs []float64) float64 { return 123.456789 })
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	assert.Equal(t, 123.46, result.Records[0].PredictedPrice)
}

func TestForecastIsAutoregressive(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// The regressor echoes yesterday's price plus one. With the write-back,
	// each step should see the previous step's prediction as its lag.
	mdl := testModel(11, []string{"y_lag_1"}, func(fs []float64) float64 {
		return fs[0] + 1
	})
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 500 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	require.Len(t, result.Records, contracts.Horizon)

	for i, rec := range result.Records {
		assert.Equal(t, 501.0+float64(i), rec.PredictedPrice, "step %d", i+1)
	}
}

func TestForecastSkipsAllZeroSteps(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Every requested feature is unknown to the builder, so each step has
	// no signal at all and is skipped rather than predicted from zeros.
	mdl := testModel(11, []string{"soil_moisture", "lunar_phase"}, func(fs []float64) float64 {
		return 999
	})
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, contracts.Horizon, result.SkippedSteps)
}

func TestForecastKeepsFeatureSlotsAligned(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// The first feature is not computable. Its slot must stay in the vector
	// as a zero so y_lag_1 is still read from position 1, not shifted down.
	mdl := testModel(11, []string{"soil_moisture", "y_lag_1"}, func(fs []float64) float64 {
		require.Len(t, fs, 2)
		assert.Zero(t, fs[0])
		return fs[1]
	})
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 500 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	require.Len(t, result.Records, contracts.Horizon)
	for _, rec := range result.Records {
		assert.Equal(t, 500.0, rec.PredictedPrice)
	}
}

func TestForecastDegradedFeatureSet(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Ten requested features but only one computable: below the
	// max(5, 0.5*10) threshold, so every step runs degraded but still
	// predicts.
	names := []string{
		"y_lag_1", "f_a", "f_b", "f_c", "f_d",
		"f_e", "f_f", "f_g", "f_h", "f_i",
	}
	mdl := testModel(11, names, func(fs []float64) float64 { return 70 })
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	assert.Len(t, result.Records, contracts.Horizon)
	assert.Equal(t, contracts.Horizon, result.DegradedSteps)
}

func TestForecastStepPanicIsIsolated(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Two lags: after the panicked step leaves a hole in the series, later
	// steps still have signal through the deeper lag.
	calls := 0
	mdl := testModel(11, []string{"y_lag_1", "y_lag_3"}, func(fs []float64) float64 {
		calls++
		if calls == 3 {
			panic("bad tree")
		}
		return 100
	})
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	engine := NewEngine(zerolog.Nop())
	result, err := engine.Forecast(context.Background(), mdl, obs, predictDate)
	require.NoError(t, err)
	assert.Len(t, result.Records, contracts.Horizon-1)
	assert.Equal(t, 1, result.SkippedSteps)
}

func TestForecastStopsOnCancelledContext(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	mdl := testModel(11, testFeatures, func(fs []float64) float64 { return 100 })
	obs := makeHistory(11, 60, predictDate, func(i int) float64 { return 100 })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(zerolog.Nop())
	_, err := engine.Forecast(ctx, mdl, obs, predictDate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkingSeriesTrim(t *testing.T) {
	predictDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	obs := makeHistory(11, 200, predictDate, func(i int) float64 { return 100 })

	state := newWorkingSeries(obs)
	state.appendSynthetic(predictDate)
	state.trim()

	assert.Equal(t, trailingWindow, state.len())
	// The synthetic row survives the trim.
	last := state.rows[state.len()-1]
	assert.Equal(t, predictDate, last.Date)
	assert.Equal(t, 18.0, last.Weather[1])
}
