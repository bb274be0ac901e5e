package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorraine/cropcast/internal/forecast"
	"github.com/lorraine/cropcast/internal/history"
	"github.com/lorraine/cropcast/internal/scheduler"
	"github.com/lorraine/cropcast/internal/scheduler/jobs"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the daily forecast scheduler",
	Long: `Runs the cron scheduler in the foreground. The daily job predicts
the next seven days for every modeled item, then sweeps recent predictions
for settled actuals.

Example:
  go run ./cmd/cropcast scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	strategy, err := forecast.ParseStrategy(cfg.Forecast.Strategy)
	if err != nil {
		return err
	}

	histRepo := history.NewRepository(db.Pool)
	store := forecast.NewPredictionRepository(db.Pool, log)
	engineCfg := forecast.DefaultEngineConfig()
	engineCfg.MinHistory = cfg.Forecast.MinHistory
	engine := forecast.NewEngineWithConfig(engineCfg, log)
	coordinator := forecast.NewCoordinator(histRepo, registry, store, engine, forecast.CoordinatorConfig{
		Strategy:     strategy,
		MaxWorkers:   cfg.Forecast.MaxWorkers,
		LookbackDays: cfg.Forecast.HistoricalDays,
	}, log)
	reconciler := forecast.NewReconciler(store, histRepo, forecast.ReconcilerConfig{
		LagDays:          cfg.Reconcile.LagDays,
		SweepDays:        cfg.Reconcile.SweepDays,
		ActualsPerSecond: cfg.Reconcile.ActualsPerSecond,
	}, log)

	sched := scheduler.New(log)

	dailyJob := jobs.NewDailyForecastJob(coordinator, reconciler, registry, cfg.Scheduler.ForecastCron, log)
	if err := sched.AddJob(dailyJob); err != nil {
		return err
	}

	sched.Start()
	fmt.Printf("Scheduler running, daily forecast at %q\n", cfg.Scheduler.ForecastCron)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	sched.Stop()
	return nil
}
