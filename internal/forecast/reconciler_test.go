package forecast

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorraine/cropcast/internal/contracts"
)

// fakeActuals serves settled prices keyed by item and date.
type fakeActuals struct {
	prices map[string]float64
	err    error
}

func actualKey(item contracts.ItemID, date time.Time) string {
	return date.Format("2006-01-02") + "/" + strconv.Itoa(int(item))
}

func (f *fakeActuals) set(item contracts.ItemID, date time.Time, price float64) {
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[actualKey(item, date)] = price
}

func (f *fakeActuals) ActualPrice(ctx context.Context, item contracts.ItemID, date time.Time) (float64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	price, ok := f.prices[actualKey(item, date)]
	return price, ok, nil
}

func seedPrediction(store *fakeStore, id int64, item contracts.ItemID, target time.Time, predicted float64) {
	store.records = append(store.records, contracts.ForecastRecord{
		ID:             id,
		ItemID:         item,
		PredictDate:    target.AddDate(0, 0, -3),
		TargetDate:     target,
		PredictedPrice: predicted,
	})
}

func TestReconcilerComputesErrorPct(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	target := asOf.AddDate(0, 0, -2)

	store := &fakeStore{}
	seedPrediction(store, 1, 11, target, 10.0)

	actuals := &fakeActuals{}
	actuals.set(11, target, 11.0)

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())
	summary, err := rec.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Candidates)
	assert.Equal(t, 1, summary.Reconciled)

	got := store.saved()[0]
	require.True(t, got.Reconciled())
	assert.Equal(t, 11.0, *got.ActualPrice)
	// |11 - 10| / 11 * 100, rounded to two decimals.
	assert.Equal(t, 9.09, *got.ErrorMetric)
	// The stored prediction itself is untouched.
	assert.Equal(t, 10.0, got.PredictedPrice)
}

func TestReconcilerPrimaryWindow(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{}
	// Inside [asOf-3, asOf-1].
	seedPrediction(store, 1, 11, asOf.AddDate(0, 0, -1), 100)
	seedPrediction(store, 2, 11, asOf.AddDate(0, 0, -3), 100)
	// Outside: today and four days back.
	seedPrediction(store, 3, 11, asOf, 100)
	seedPrediction(store, 4, 11, asOf.AddDate(0, 0, -4), 100)

	actuals := &fakeActuals{}
	for _, d := range []int{0, -1, -2, -3, -4} {
		actuals.set(11, asOf.AddDate(0, 0, d), 100)
	}

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())
	summary, err := rec.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 2, summary.Reconciled)
}

func TestReconcilerSweepWindow(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{}
	// Six days back: outside the primary window, inside the sweep.
	seedPrediction(store, 1, 11, asOf.AddDate(0, 0, -6), 100)

	actuals := &fakeActuals{}
	actuals.set(11, asOf.AddDate(0, 0, -6), 105)

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())

	primary, err := rec.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Zero(t, primary.Candidates)

	sweep, err := rec.Sweep(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Reconciled)
}

func TestReconcilerBatchReachesPastWindows(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	batchDate := today.AddDate(0, 0, -30)
	target := batchDate.AddDate(0, 0, -1)

	store := &fakeStore{}
	seedPrediction(store, 1, 11, target, 100)

	actuals := &fakeActuals{}
	actuals.set(11, target, 110)

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())

	// A month-old backfill is invisible to both of today's windows.
	primary, err := rec.Run(context.Background(), today)
	require.NoError(t, err)
	assert.Zero(t, primary.Candidates)
	sweep, err := rec.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Zero(t, sweep.Candidates)

	// The batch pass anchors on the backfill's own predict date.
	batch, err := rec.RunBatch(context.Background(), []time.Time{batchDate})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Candidates)
	assert.Equal(t, 1, batch.Reconciled)
	require.True(t, store.saved()[0].Reconciled())
	assert.Equal(t, 110.0, *store.saved()[0].ActualPrice)
}

func TestReconcilerBatchSummariesAccumulate(t *testing.T) {
	d1 := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{}
	seedPrediction(store, 1, 11, d1.AddDate(0, 0, -1), 100)
	seedPrediction(store, 2, 11, d2.AddDate(0, 0, -2), 100)

	actuals := &fakeActuals{}
	actuals.set(11, d1.AddDate(0, 0, -1), 100)

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())
	summary, err := rec.RunBatch(context.Background(), []time.Time{d1, d2})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 1, summary.Reconciled)
	assert.Equal(t, 1, summary.Missing)
}

func TestBatchWindowsMergeAndDedupe(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
	}

	// Consecutive dates produce overlapping [d-3, d-1] windows that collapse
	// to one range; a far date and a duplicate stay separate and single.
	got := batchWindows([]time.Time{day(21), day(20), day(20), day(5)}, 3)
	require.Len(t, got, 2)
	assert.Equal(t, day(2), got[0].from)
	assert.Equal(t, day(4), got[0].to)
	assert.Equal(t, day(17), got[1].from)
	assert.Equal(t, day(20), got[1].to)

	assert.Empty(t, batchWindows(nil, 3))
}

func TestReconcilerMissingActualLeftPending(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	target := asOf.AddDate(0, 0, -1)

	store := &fakeStore{}
	seedPrediction(store, 1, 11, target, 100)

	rec := NewReconciler(store, &fakeActuals{}, DefaultReconcilerConfig, zerolog.Nop())
	summary, err := rec.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Missing)
	assert.Zero(t, summary.Reconciled)
	assert.False(t, store.saved()[0].Reconciled())
}

func TestReconcilerZeroActualSkipped(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	target := asOf.AddDate(0, 0, -1)

	store := &fakeStore{}
	seedPrediction(store, 1, 11, target, 100)

	actuals := &fakeActuals{}
	actuals.set(11, target, 0)

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())
	summary, err := rec.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Missing)
	assert.False(t, store.saved()[0].Reconciled())
}

func TestReconcilerLookupFailureIsolated(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	target := asOf.AddDate(0, 0, -1)

	store := &fakeStore{}
	seedPrediction(store, 1, 11, target, 100)
	seedPrediction(store, 2, 23, target, 100)

	actuals := &fakeActuals{err: errors.New("timeout")}

	rec := NewReconciler(store, actuals, DefaultReconcilerConfig, zerolog.Nop())
	summary, err := rec.Run(context.Background(), asOf)
	require.NoError(t, err)

	// Both lookups fail, but the pass itself completes.
	assert.Equal(t, 2, summary.Failures)
	assert.Zero(t, summary.Reconciled)
}

func TestErrorPct(t *testing.T) {
	got, ok := errorPct(11, 10)
	require.True(t, ok)
	assert.Equal(t, 9.09, got)

	got, ok = errorPct(100, 100)
	require.True(t, ok)
	assert.Zero(t, got)

	_, ok = errorPct(0, 10)
	assert.False(t, ok)
}
