package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lorraine/cropcast/internal/contracts"
)

// ReconcilerConfig tunes the reconciliation pass.
type ReconcilerConfig struct {
	// LagDays is how far back actuals are considered settled. For a run
	// on day d the primary window is [d-LagDays, d-1].
	LagDays int

	// SweepDays widens the catch-up sweep for actuals that arrived late.
	SweepDays int

	// ActualsPerSecond throttles actual-price lookups. Zero disables
	// the limiter.
	ActualsPerSecond float64
}

// DefaultReconcilerConfig matches the daily operating cadence: actuals
// settle within three days, the sweep covers a week of stragglers.
var DefaultReconcilerConfig = ReconcilerConfig{
	LagDays:          3,
	SweepDays:        7,
	ActualsPerSecond: 20,
}

// Reconciler backfills actual prices into past predictions and computes
// the absolute percentage error for each. Records are handled one at a
// time so a missing actual or a failed update never blocks the rest.
type Reconciler struct {
	store   contracts.PredictionStore
	actuals contracts.ActualsSource
	cfg     ReconcilerConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store contracts.PredictionStore, actuals contracts.ActualsSource, cfg ReconcilerConfig, log zerolog.Logger) *Reconciler {
	if cfg.LagDays < 1 {
		cfg.LagDays = DefaultReconcilerConfig.LagDays
	}
	if cfg.SweepDays < cfg.LagDays {
		cfg.SweepDays = cfg.LagDays
	}
	var limiter *rate.Limiter
	if cfg.ActualsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ActualsPerSecond), 1)
	}
	return &Reconciler{
		store:   store,
		actuals: actuals,
		cfg:     cfg,
		limiter: limiter,
		log:     log.With().Str("component", "forecast.reconciler").Logger(),
	}
}

// ReconcileSummary reports one reconciliation pass.
type ReconcileSummary struct {
	Candidates int
	Reconciled int
	Missing    int
	Failures   int
}

func (s *ReconcileSummary) add(other ReconcileSummary) {
	s.Candidates += other.Candidates
	s.Reconciled += other.Reconciled
	s.Missing += other.Missing
	s.Failures += other.Failures
}

// Run reconciles the primary window [asOf-LagDays, asOf-1].
func (r *Reconciler) Run(ctx context.Context, asOf time.Time) (ReconcileSummary, error) {
	from := asOf.AddDate(0, 0, -r.cfg.LagDays)
	to := asOf.AddDate(0, 0, -1)
	return r.reconcileRange(ctx, from, to)
}

// RunBatch reconciles the primary window [d-LagDays, d-1] of every predict
// date in a batch, so a historical backfill settles its own trailing windows
// instead of only today's. Overlapping windows are merged and each record is
// visited once.
func (r *Reconciler) RunBatch(ctx context.Context, dates []time.Time) (ReconcileSummary, error) {
	var total ReconcileSummary
	for _, w := range batchWindows(dates, r.cfg.LagDays) {
		s, err := r.reconcileRange(ctx, w.from, w.to)
		total.add(s)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type dateWindow struct {
	from, to time.Time
}

// batchWindows maps each date d to [d-lag, d-1], deduplicated, sorted, and
// with touching or overlapping windows merged.
func batchWindows(dates []time.Time, lag int) []dateWindow {
	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var out []dateWindow
	for _, d := range days {
		from := d.AddDate(0, 0, -lag)
		to := d.AddDate(0, 0, -1)
		if n := len(out); n > 0 && !from.After(out[n-1].to.AddDate(0, 0, 1)) {
			if to.After(out[n-1].to) {
				out[n-1].to = to
			}
			continue
		}
		out = append(out, dateWindow{from: from, to: to})
	}
	return out
}

// Sweep reconciles the wider catch-up window [asOf-SweepDays, asOf-1],
// picking up actuals that arrived after the primary window passed.
func (r *Reconciler) Sweep(ctx context.Context, asOf time.Time) (ReconcileSummary, error) {
	from := asOf.AddDate(0, 0, -r.cfg.SweepDays)
	to := asOf.AddDate(0, 0, -1)
	return r.reconcileRange(ctx, from, to)
}

func (r *Reconciler) reconcileRange(ctx context.Context, from, to time.Time) (ReconcileSummary, error) {
	var s ReconcileSummary

	records, err := r.store.ListUnreconciled(ctx, from, to)
	if err != nil {
		return s, fmt.Errorf("list unreconciled: %w", err)
	}
	s.Candidates = len(records)
	if len(records) == 0 {
		return s, nil
	}

	r.log.Info().
		Time("from", from).
		Time("to", to).
		Int("candidates", len(records)).
		Msg("reconciliation started")

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return s, err
			}
		}

		actual, ok, err := r.actuals.ActualPrice(ctx, rec.ItemID, rec.TargetDate)
		if err != nil {
			s.Failures++
			r.log.Error().Err(err).
				Int("item_id", int(rec.ItemID)).
				Time("target_date", rec.TargetDate).
				Msg("actual price lookup failed")
			continue
		}
		if !ok {
			s.Missing++
			continue
		}

		metric, ok := errorPct(actual, rec.PredictedPrice)
		if !ok {
			// Zero actual would divide to infinity; hold the record
			// for manual review instead of storing garbage.
			s.Missing++
			r.log.Warn().
				Int("item_id", int(rec.ItemID)).
				Time("target_date", rec.TargetDate).
				Msg("actual price is zero, skipping error metric")
			continue
		}

		if err := r.store.MarkActual(ctx, rec.ID, actual, metric); err != nil {
			s.Failures++
			r.log.Error().Err(err).
				Int64("id", rec.ID).
				Msg("reconciliation update failed")
			continue
		}
		s.Reconciled++
	}

	r.log.Info().
		Int("reconciled", s.Reconciled).
		Int("missing", s.Missing).
		Int("failures", s.Failures).
		Msg("reconciliation completed")

	return s, nil
}

// errorPct is the absolute percentage error, rounded to two decimals.
func errorPct(actual, predicted float64) (float64, bool) {
	if actual == 0 {
		return 0, false
	}
	pct := math.Abs(actual-predicted) / actual * 100
	return math.Round(pct*100) / 100, true
}
