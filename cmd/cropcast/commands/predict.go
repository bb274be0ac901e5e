package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorraine/cropcast/internal/contracts"
	"github.com/lorraine/cropcast/internal/forecast"
	"github.com/lorraine/cropcast/internal/history"
)

var (
	predictFrom     string
	predictTo       string
	predictItems    string
	predictWorkers  int
	predictLookback int
	predictStrategy string
	skipReconcile   bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the seven-day price forecast",
	Long: `Predicts the next seven daily prices for each item with a trained
model, upserting the results. After the forecast a reconciliation pass
backfills actual prices into recent predictions.

Per-item failures are logged and counted; the command only exits non-zero
when startup itself fails.

Example:
  go run ./cmd/cropcast predict
  go run ./cmd/cropcast predict --from 2026-08-01 --to 2026-08-07
  go run ./cmd/cropcast predict --items 11,23 --strategy by-item`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictFrom, "from", "", "first predict date (YYYY-MM-DD, default: today)")
	predictCmd.Flags().StringVar(&predictTo, "to", "", "last predict date (YYYY-MM-DD, default: same as --from)")
	predictCmd.Flags().StringVar(&predictItems, "items", "", "comma-separated item IDs (default: all items with models)")
	predictCmd.Flags().IntVar(&predictWorkers, "workers", 0, "worker pool size (default: FORECAST_MAX_WORKERS)")
	predictCmd.Flags().IntVar(&predictLookback, "lookback", 0, "history lookback in days (default: FORECAST_HISTORICAL_DAYS)")
	predictCmd.Flags().StringVar(&predictStrategy, "strategy", "", "fan-out strategy: by-date or by-item (default: FORECAST_STRATEGY)")
	predictCmd.Flags().BoolVar(&skipReconcile, "skip-reconcile", false, "skip the post-run reconciliation pass")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	dates, err := parseDateRange(predictFrom, predictTo)
	if err != nil {
		return err
	}

	items, err := parseItems(predictItems, registry.Items())
	if err != nil {
		return err
	}

	workers := cfg.Forecast.MaxWorkers
	if predictWorkers > 0 {
		workers = predictWorkers
	}
	lookback := cfg.Forecast.HistoricalDays
	if predictLookback > 0 {
		lookback = predictLookback
	}
	strategyStr := cfg.Forecast.Strategy
	if predictStrategy != "" {
		strategyStr = predictStrategy
	}
	strategy, err := forecast.ParseStrategy(strategyStr)
	if err != nil {
		return err
	}

	fmt.Printf("=== Cropcast: Predict ===\n")
	fmt.Printf("Dates: %s ~ %s | Items: %d | Workers: %d | Strategy: %s\n\n",
		dates[0].Format("2006-01-02"), dates[len(dates)-1].Format("2006-01-02"),
		len(items), workers, strategy)

	histRepo := history.NewRepository(db.Pool)
	store := forecast.NewPredictionRepository(db.Pool, log)
	engineCfg := forecast.DefaultEngineConfig()
	engineCfg.MinHistory = cfg.Forecast.MinHistory
	engine := forecast.NewEngineWithConfig(engineCfg, log)

	coordinator := forecast.NewCoordinator(histRepo, registry, store, engine, forecast.CoordinatorConfig{
		Strategy:     strategy,
		MaxWorkers:   workers,
		LookbackDays: lookback,
	}, log)

	summary := coordinator.Run(ctx, forecast.Request{Dates: dates, Items: items})

	fmt.Printf("\n✅ Forecast completed: %d succeeded, %d failed, %d records written (%s)\n",
		summary.Successes, summary.Failures, summary.RecordsWritten,
		summary.Duration.Round(time.Millisecond))

	if skipReconcile {
		return nil
	}

	reconciler := forecast.NewReconciler(store, histRepo, forecast.ReconcilerConfig{
		LagDays:          cfg.Reconcile.LagDays,
		SweepDays:        cfg.Reconcile.SweepDays,
		ActualsPerSecond: cfg.Reconcile.ActualsPerSecond,
	}, log)

	// Reconcile each batch date's own trailing window, not just today's:
	// a historical backfill settles its [d-lag, d-1] actuals in the same run.
	recon, err := reconciler.RunBatch(ctx, dates)
	if err != nil {
		// Predictions are already persisted; reconciliation can catch up later.
		log.Error().Err(err).Msg("post-run reconciliation failed")
		return nil
	}

	fmt.Printf("✅ Reconciled %d of %d candidate predictions (%d awaiting actuals)\n",
		recon.Reconciled, recon.Candidates, recon.Missing)

	return nil
}

// parseDateRange builds the inclusive predict-date list. Both ends default
// to today.
func parseDateRange(fromStr, toStr string) ([]time.Time, error) {
	today := midnight(time.Now())

	from := today
	if fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --from date: %w", err)
		}
		from = parsed
	}

	to := from
	if toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --to date: %w", err)
		}
		to = parsed
	}

	if to.Before(from) {
		return nil, fmt.Errorf("--to %s is before --from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}

// parseItems parses the --items CSV, defaulting to every modeled item.
func parseItems(itemsStr string, all []contracts.ItemID) ([]contracts.ItemID, error) {
	if itemsStr == "" {
		return all, nil
	}

	known := make(map[contracts.ItemID]bool, len(all))
	for _, item := range all {
		known[item] = true
	}

	var items []contracts.ItemID
	for _, part := range strings.Split(itemsStr, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid item ID %q", part)
		}
		item := contracts.ItemID(id)
		if !known[item] {
			return nil, fmt.Errorf("no model for item %d", id)
		}
		items = append(items, item)
	}
	return items, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
