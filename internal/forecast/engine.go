package forecast

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/contracts"
	"github.com/lorraine/cropcast/internal/features"
)

// Engine phases, for structured logs.
type phase string

const (
	phaseInit    phase = "INIT"
	phasePredict phase = "PREDICT_STEP"
	phaseDone    phase = "DONE"
	phaseAborted phase = "ABORTED"
)

// EngineConfig tunes the forecast engine.
type EngineConfig struct {
	// MinHistory aborts the whole forecast below this many observations.
	MinHistory int

	// MinFeatureRatio and MinFeatureFloor set the degradation threshold:
	// a step with fewer than max(floor, ratio*|required|) computable
	// features proceeds best-effort but is logged as degraded.
	MinFeatureRatio float64
	MinFeatureFloor int
}

// DefaultEngineConfig returns the thresholds the models were validated with.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinHistory:      20,
		MinFeatureRatio: 0.5,
		MinFeatureFloor: 5,
	}
}

// Result is the outcome of one engine run: up to Horizon records, plus how
// many steps were skipped or ran degraded.
type Result struct {
	Records       []contracts.ForecastRecord
	SkippedSteps  int
	DegradedSteps int
}

// Engine produces the 7-day forecast for one item: append a synthetic
// horizon row, rebuild features over the trailing window, predict, write the
// prediction back, repeat. A failing step is skipped; the remaining horizon
// continues.
type Engine struct {
	cfg     EngineConfig
	builder *features.Builder
	log     zerolog.Logger
}

// NewEngine creates an engine with default thresholds.
func NewEngine(log zerolog.Logger) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig(), log)
}

// NewEngineWithConfig creates an engine with custom thresholds.
func NewEngineWithConfig(cfg EngineConfig, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		builder: features.NewBuilder(),
		log:     log.With().Str("component", "forecast.engine").Logger(),
	}
}

// Forecast runs the horizon for one item. predictDate anchors the horizon:
// the anchor is predictDate-1 (the last date that can have a known price)
// and targets are anchor+1 … anchor+Horizon. obs must be ascending and
// strictly before predictDate; the caller's history cutoff guarantees that.
//
// Returns ErrInsufficientHistory or ErrModelNotFound when the run aborts at
// INIT. Otherwise the run always reaches DONE, emitting 0..Horizon records.
func (e *Engine) Forecast(ctx context.Context, mdl *contracts.Model, obs []contracts.Observation, predictDate time.Time) (*Result, error) {
	if mdl == nil {
		e.log.Warn().Str("phase", string(phaseAborted)).Msg("no model supplied")
		return nil, contracts.ErrModelNotFound
	}
	if len(obs) < e.cfg.MinHistory {
		e.log.Warn().
			Str("phase", string(phaseAborted)).
			Int("item_id", int(mdl.ItemID)).
			Int("rows", len(obs)).
			Int("min", e.cfg.MinHistory).
			Msg("insufficient history")
		return nil, contracts.ErrInsufficientHistory
	}

	e.log.Debug().
		Str("phase", string(phaseInit)).
		Int("item_id", int(mdl.ItemID)).
		Int("rows", len(obs)).
		Time("predict_date", predictDate).
		Msg("forecast started")

	anchor := predictDate.AddDate(0, 0, -1)
	state := newWorkingSeries(obs)
	result := &Result{}

	for i := 1; i <= contracts.Horizon; i++ {
		select {
		case <-ctx.Done():
			e.log.Warn().Int("item_id", int(mdl.ItemID)).Msg("context cancelled during forecast")
			return result, ctx.Err()
		default:
		}

		targetDate := anchor.AddDate(0, 0, i)
		rec, degraded, ok := e.step(state, mdl, i, predictDate, targetDate)
		if degraded {
			result.DegradedSteps++
		}
		if !ok {
			result.SkippedSteps++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	e.log.Debug().
		Str("phase", string(phaseDone)).
		Int("item_id", int(mdl.ItemID)).
		Int("predictions", len(result.Records)).
		Int("skipped", result.SkippedSteps).
		Msg("forecast completed")

	return result, nil
}

// step runs one PREDICT_STEP. Any panic inside the step is recovered and
// treated as a step skip so the remaining horizon keeps going.
func (e *Engine) step(state *workingSeries, mdl *contracts.Model, i int, predictDate, targetDate time.Time) (rec contracts.ForecastRecord, degraded, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("phase", string(phasePredict)).
				Int("item_id", int(mdl.ItemID)).
				Int("step", i).
				Interface("panic", r).
				Msg("step failed, skipping")
			ok = false
		}
	}()

	state.appendSynthetic(targetDate)
	state.trim()

	frame := e.builder.Build(state.rows)
	last := frame.Len() - 1

	// The vector stays aligned to mdl.FeatureNames so tree splits resolve to
	// the slot they were trained against. Missing and NaN values become 0; a
	// step whose computable features are all zero carries no signal and is
	// skipped outright.
	values := make([]float64, len(mdl.FeatureNames))
	available := 0
	anySignal := false
	for j, name := range mdl.FeatureNames {
		if !frame.Has(name) {
			continue
		}
		available++
		v := frame.Value(name, last)
		if math.IsNaN(v) {
			v = 0
		} else if v != 0 {
			anySignal = true
		}
		values[j] = v
	}

	threshold := max(e.cfg.MinFeatureFloor, int(float64(len(mdl.FeatureNames))*e.cfg.MinFeatureRatio))
	if available < threshold {
		degraded = true
		e.log.Warn().
			Int("item_id", int(mdl.ItemID)).
			Int("step", i).
			Int("available", available).
			Int("threshold", threshold).
			Msg("feature set degraded, proceeding best-effort")
	}
	if !anySignal {
		e.log.Warn().
			Int("item_id", int(mdl.ItemID)).
			Int("step", i).
			Msg("all features zero or missing, skipping step")
		return rec, degraded, false
	}

	pred := mdl.Regressor.Predict(values)
	if math.IsNaN(pred) || pred < contracts.MinPredictedPrice {
		pred = contracts.MinPredictedPrice
	}

	// Autoregressive write-back: later lags and rolling stats see this
	// prediction as an observed price.
	state.setLastPrice(pred)

	rec = contracts.ForecastRecord{
		ItemID:         mdl.ItemID,
		PredictDate:    predictDate,
		TargetDate:     targetDate,
		PredictedPrice: round2(pred),
	}
	return rec, degraded, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
