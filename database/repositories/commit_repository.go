// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

type commitRepository struct {
	shared.Repository[uuid.UUID, models.Commit]
	db *gorm.DB
}

func NewCommitRepository(db *gorm.DB) *commitRepository {
	return &commitRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.Commit](db),
	}
}

func (r *commitRepository) FindByReleaseAndHash(tx shared.DB, releaseID uuid.UUID, hash string) (models.Commit, error) {
	var commit models.Commit
	err := r.GetDB(tx).First(&commit, "release_id = ? AND commit_hash = ?", releaseID, hash).Error
	return commit, err
}

func (r *commitRepository) CountByRelease(tx shared.DB, releaseID uuid.UUID) (int64, error) {
	var count int64
	err := r.GetDB(tx).Model(&models.Commit{}).Where("release_id = ?", releaseID).Count(&count).Error
	return count, err
}

// ListByQueue returns the queued commits ordered by (fudged) timestamp, so
// the last element is the head.
func (r *commitRepository) ListByQueue(tx shared.DB, queueID uuid.UUID) ([]models.Commit, error) {
	var commits []models.Commit
	err := r.GetDB(tx).Where("build_queue_id = ?", queueID).Order("timestamp ASC").Find(&commits).Error
	return commits, err
}

func (r *commitRepository) ListBackmergeFailures(releaseID uuid.UUID) ([]models.Commit, error) {
	var commits []models.Commit
	err := r.db.Where("release_id = ? AND backmerge_failure", releaseID).Find(&commits).Error
	return commits, err
}

type buildQueueRepository struct {
	shared.Repository[uuid.UUID, models.BuildQueue]
	db *gorm.DB
}

func NewBuildQueueRepository(db *gorm.DB) *buildQueueRepository {
	return &buildQueueRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.BuildQueue](db),
	}
}

func (r *buildQueueRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.BuildQueue, error) {
	return readForUpdate[models.BuildQueue](r.GetDB(tx), id)
}

// Create maps the one-active-queue-per-release index onto
// shared.ErrAlreadyExists.
func (r *buildQueueRepository) Create(tx shared.DB, queue *models.BuildQueue) error {
	if err := r.Repository.Create(tx, queue); err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *buildQueueRepository) GetActiveForRelease(tx shared.DB, releaseID uuid.UUID) (models.BuildQueue, error) {
	var queue models.BuildQueue
	err := r.GetDB(tx).First(&queue, "release_id = ? AND is_active", releaseID).Error
	return queue, err
}

func (r *buildQueueRepository) ListActive() ([]models.BuildQueue, error) {
	var queues []models.BuildQueue
	err := r.db.Where("is_active").Find(&queues).Error
	return queues, err
}
