package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorraine/cropcast/internal/forecast"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health and recent forecast state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("=== Cropcast: Status ===")

	health, err := db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("\nDatabase: unreachable (%v)\n", err)
		return err
	}
	fmt.Printf("\nDatabase: ok (%s, %d/%d conns)\n",
		health.ResponseTime.Round(time.Millisecond),
		health.Stats.AcquiredConns, health.Stats.MaxConns)

	registry, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("Models:   %d items (%s)\n", registry.Len(), cfg.Model.ArtifactPath)

	// Pending reconciliation over the past week.
	store := forecast.NewPredictionRepository(db.Pool, log)
	today := midnight(time.Now())
	pending, err := store.ListUnreconciled(ctx, today.AddDate(0, 0, -cfg.Reconcile.SweepDays), today.AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("list unreconciled: %w", err)
	}
	fmt.Printf("Pending:  %d predictions awaiting actuals (last %d days)\n",
		len(pending), cfg.Reconcile.SweepDays)

	return nil
}
