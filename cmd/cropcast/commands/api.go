package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorraine/cropcast/internal/api"
	"github.com/lorraine/cropcast/internal/api/handlers"
	"github.com/lorraine/cropcast/internal/forecast"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Serves read-only prediction endpoints:

  GET /health
  GET /api/items
  GET /api/predictions/{item}?from=YYYY-MM-DD&to=YYYY-MM-DD

Example:
  go run ./cmd/cropcast api`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	store := forecast.NewPredictionRepository(db.Pool, log)
	predictions := handlers.NewPredictionHandler(store, registry, log)
	router := api.NewRouter(db, predictions, log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("API server listening on :%s\n", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
