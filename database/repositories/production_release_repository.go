// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

type productionReleaseRepository struct {
	shared.Repository[uuid.UUID, models.ProductionRelease]
	db *gorm.DB
}

func NewProductionReleaseRepository(db *gorm.DB) *productionReleaseRepository {
	return &productionReleaseRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.ProductionRelease](db),
	}
}

func (r *productionReleaseRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.ProductionRelease, error) {
	return readForUpdate[models.ProductionRelease](r.GetDB(tx), id)
}

// Create surfaces the partial unique indexes on inflight and active rows
// as shared.ErrAlreadyExists, so a racing writer that slipped past the row
// locks gets a typed error instead of a raw pg failure.
func (r *productionReleaseRepository) Create(tx shared.DB, release *models.ProductionRelease) error {
	if err := r.Repository.Create(tx, release); err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *productionReleaseRepository) getByStatus(tx shared.DB, runID uuid.UUID, status models.ProductionReleaseStatus) (*models.ProductionRelease, error) {
	var release models.ProductionRelease
	err := r.GetDB(tx).First(&release, "release_platform_run_id = ? AND status = ?", runID, status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *productionReleaseRepository) GetActiveForRun(tx shared.DB, runID uuid.UUID) (*models.ProductionRelease, error) {
	return r.getByStatus(tx, runID, models.ProductionReleaseStatusActive)
}

func (r *productionReleaseRepository) GetInflightForRun(tx shared.DB, runID uuid.UUID) (*models.ProductionRelease, error) {
	return r.getByStatus(tx, runID, models.ProductionReleaseStatusInflight)
}

func (r *productionReleaseRepository) ListByRun(runID uuid.UUID) ([]models.ProductionRelease, error) {
	var releases []models.ProductionRelease
	err := r.db.Where("release_platform_run_id = ?", runID).Order("created_at ASC").Find(&releases).Error
	return releases, err
}

type storeSubmissionRepository struct {
	shared.Repository[uuid.UUID, models.StoreSubmission]
	db *gorm.DB
}

func NewStoreSubmissionRepository(db *gorm.DB) *storeSubmissionRepository {
	return &storeSubmissionRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.StoreSubmission](db),
	}
}

func (r *storeSubmissionRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.StoreSubmission, error) {
	return readForUpdate[models.StoreSubmission](r.GetDB(tx), id)
}

func (r *storeSubmissionRepository) ListByParent(parentType models.ParentReleaseType, parentID uuid.UUID) ([]models.StoreSubmission, error) {
	var submissions []models.StoreSubmission
	err := r.db.Where("parent_release_type = ? AND parent_release_id = ?", parentType, parentID).Find(&submissions).Error
	return submissions, err
}

type storeRolloutRepository struct {
	shared.Repository[uuid.UUID, models.StoreRollout]
	db *gorm.DB
}

func NewStoreRolloutRepository(db *gorm.DB) *storeRolloutRepository {
	return &storeRolloutRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.StoreRollout](db),
	}
}

func (r *storeRolloutRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.StoreRollout, error) {
	return readForUpdate[models.StoreRollout](r.GetDB(tx), id)
}

func (r *storeRolloutRepository) GetBySubmission(submissionID uuid.UUID) (models.StoreRollout, error) {
	var rollout models.StoreRollout
	err := r.db.First(&rollout, "store_submission_id = ?", submissionID).Error
	return rollout, err
}

func (r *storeRolloutRepository) ListByRun(runID uuid.UUID) ([]models.StoreRollout, error) {
	var rollouts []models.StoreRollout
	err := r.db.Where("release_platform_run_id = ?", runID).Order("created_at ASC").Find(&rollouts).Error
	return rollouts, err
}

// ListDueAutomatic returns started automatic rollouts whose next scheduled
// update has passed.
func (r *storeRolloutRepository) ListDueAutomatic(now time.Time) ([]models.StoreRollout, error) {
	var rollouts []models.StoreRollout
	err := r.db.
		Where("automatic_rollout AND status = ? AND automatic_rollout_next_update_at IS NOT NULL AND automatic_rollout_next_update_at <= ?", models.RolloutStatusStarted, now).
		Find(&rollouts).Error
	return rollouts, err
}
