// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"log/slog"

	"github.com/l3montree-dev/railguard/database/models"
	"gorm.io/gorm"
)

// RunMigrations keeps the schema in sync with the model structs. The partial
// unique indexes backing the single-writer invariants cannot be expressed as
// gorm tags, so they are created explicitly afterwards.
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.App{},
		&models.Train{},
		&models.Release{},
		&models.ReleasePlatformRun{},
		&models.Commit{},
		&models.BuildQueue{},
		&models.PreProdRelease{},
		&models.WorkflowRun{},
		&models.Build{},
		&models.ProductionRelease{},
		&models.StoreSubmission{},
		&models.StoreRollout{},
		&models.PullRequest{},
		&models.ReleaseHealthRule{},
		&models.ReleaseHealthEvent{},
		&models.ReleaseEvent{},
	)
	if err != nil {
		return err
	}

	partialIndexes := []string{
		// at most one active build queue per release
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_build_queues_one_active_per_release ON build_queues (release_id) WHERE is_active`,
		// at most one active and one inflight production release per platform run
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_production_releases_one_active_per_run ON production_releases (release_platform_run_id) WHERE status = 'active'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_production_releases_one_inflight_per_run ON production_releases (release_platform_run_id) WHERE status = 'inflight'`,
	}

	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	slog.Info("database migrations finished")
	return nil
}
