package commands

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/model"
	"github.com/lorraine/cropcast/pkg/config"
	"github.com/lorraine/cropcast/pkg/database"
	"github.com/lorraine/cropcast/pkg/logger"
)

// initDeps loads config, builds the logger, and connects to the database.
// Failures here are startup failures and abort the command.
func initDeps() (*config.Config, zerolog.Logger, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, log, db, nil
}

// loadRegistry reads the model artifact file.
func loadRegistry(cfg *config.Config, log zerolog.Logger) (*model.Registry, error) {
	registry, err := model.Load(cfg.Model.ArtifactPath, log)
	if err != nil {
		return nil, fmt.Errorf("load model artifacts: %w", err)
	}
	return registry, nil
}
