package main

import (
	"github.com/ardoise-data/building.review/db"
	"github.com/ardoise-data/building.review/internal/config"
)

// openRunsDB opens the runs database named by the configuration and
// applies any pending migrations.
func openRunsDB(cfg *config.EngineConfig) (*db.DB, error) {
	return db.Open(cfg.GetRunsDBPath(), cfg.GetMigrationsDir())
}
