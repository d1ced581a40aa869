// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

type releaseRepository struct {
	shared.Repository[uuid.UUID, models.Release]
	db *gorm.DB
}

func NewReleaseRepository(db *gorm.DB) *releaseRepository {
	return &releaseRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.Release](db),
	}
}

func (r *releaseRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.Release, error) {
	return readForUpdate[models.Release](r.GetDB(tx), id)
}

// GetOngoing returns every non-terminal release of the train, newest first.
func (r *releaseRepository) GetOngoing(trainID uuid.UUID) ([]models.Release, error) {
	var releases []models.Release
	err := r.db.
		Where("train_id = ? AND status NOT IN ?", trainID, []models.ReleaseStatus{models.ReleaseStatusFinished, models.ReleaseStatusStopped}).
		Order("scheduled_at DESC").
		Find(&releases).Error
	return releases, err
}

func (r *releaseRepository) GetLastFinished(trainID uuid.UUID) (models.Release, error) {
	var release models.Release
	err := r.db.
		Where("train_id = ? AND status = ?", trainID, models.ReleaseStatusFinished).
		Order("completed_at DESC").
		First(&release).Error
	return release, err
}

// FindByBranch resolves a release by its release branch name. Only
// non-terminal releases are considered so pushes onto branches of old
// releases do not resurrect them.
func (r *releaseRepository) FindByBranch(branch string) (models.Release, error) {
	var release models.Release
	err := r.db.
		Where("branch_name = ? AND status NOT IN ?", branch, []models.ReleaseStatus{models.ReleaseStatusFinished, models.ReleaseStatusStopped}).
		Order("scheduled_at DESC").
		First(&release).Error
	return release, err
}

func (r *releaseRepository) ListByTrain(trainID uuid.UUID) ([]models.Release, error) {
	var releases []models.Release
	err := r.db.Where("train_id = ?", trainID).Order("scheduled_at DESC").Find(&releases).Error
	return releases, err
}

func (r *releaseRepository) ListFinishedSince(since time.Time) ([]models.Release, error) {
	var releases []models.Release
	err := r.db.
		Where("status = ? AND completed_at >= ?", models.ReleaseStatusFinished, since).
		Find(&releases).Error
	return releases, err
}

type releasePlatformRunRepository struct {
	shared.Repository[uuid.UUID, models.ReleasePlatformRun]
	db *gorm.DB
}

func NewReleasePlatformRunRepository(db *gorm.DB) *releasePlatformRunRepository {
	return &releasePlatformRunRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.ReleasePlatformRun](db),
	}
}

func (r *releasePlatformRunRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.ReleasePlatformRun, error) {
	return readForUpdate[models.ReleasePlatformRun](r.GetDB(tx), id)
}

func (r *releasePlatformRunRepository) GetByRelease(tx shared.DB, releaseID uuid.UUID) ([]models.ReleasePlatformRun, error) {
	var runs []models.ReleasePlatformRun
	err := r.GetDB(tx).Where("release_id = ?", releaseID).Order("platform ASC").Find(&runs).Error
	return runs, err
}
