package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorraine/cropcast/internal/forecast"
	"github.com/lorraine/cropcast/internal/history"
)

var (
	reconcileDate  string
	reconcileSweep bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill actual prices into past predictions",
	Long: `Fills settled actual prices into predictions whose target date has
passed, computing the absolute percentage error for each. The primary
window covers the last few days; --sweep widens it to catch actuals that
arrived late.

Example:
  go run ./cmd/cropcast reconcile
  go run ./cmd/cropcast reconcile --sweep
  go run ./cmd/cropcast reconcile --date 2026-08-15`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileDate, "date", "", "run as of this date (YYYY-MM-DD, default: today)")
	reconcileCmd.Flags().BoolVar(&reconcileSweep, "sweep", false, "use the wider catch-up window")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	asOf := midnight(time.Now())
	if reconcileDate != "" {
		asOf, err = time.Parse("2006-01-02", reconcileDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	histRepo := history.NewRepository(db.Pool)
	store := forecast.NewPredictionRepository(db.Pool, log)
	reconciler := forecast.NewReconciler(store, histRepo, forecast.ReconcilerConfig{
		LagDays:          cfg.Reconcile.LagDays,
		SweepDays:        cfg.Reconcile.SweepDays,
		ActualsPerSecond: cfg.Reconcile.ActualsPerSecond,
	}, log)

	fmt.Printf("=== Cropcast: Reconcile (as of %s) ===\n\n", asOf.Format("2006-01-02"))

	var summary forecast.ReconcileSummary
	if reconcileSweep {
		summary, err = reconciler.Sweep(ctx, asOf)
	} else {
		summary, err = reconciler.Run(ctx, asOf)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✅ Reconciled %d of %d candidates (%d awaiting actuals, %d failed)\n",
		summary.Reconciled, summary.Candidates, summary.Missing, summary.Failures)

	return nil
}
