package cli

import (
	"context"
	"fmt"

	"github.com/citydata/crimewatch/internal/config"
	"github.com/citydata/crimewatch/internal/database"
	"github.com/citydata/crimewatch/internal/logger"
	"github.com/citydata/crimewatch/internal/repository"
	"github.com/citydata/crimewatch/internal/services"
	"github.com/citydata/crimewatch/internal/socrata"
)

// app bundles the wired dependencies a command needs. Commands build one,
// run, and close it; nothing is shared across invocations.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.Database
	sync       services.SyncService
	dimensions services.DimensionService
}

// newApp loads configuration, connects to the database, and wires the
// repository and service layers.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.Server.Env)

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	client := socrata.NewClient(cfg.Socrata)
	crimeRepo := repository.NewCrimeRepository(db)
	dimensionRepo := repository.NewDimensionRepository(db)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		sync:       services.NewSyncService(crimeRepo, client, cfg.Sync, log),
		dimensions: services.NewDimensionService(dimensionRepo, client, cfg.Sync.DimensionLimit, log),
	}, nil
}

// close releases the database pool.
func (a *app) close() {
	a.db.Close()
}
