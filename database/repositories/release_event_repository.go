// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

type releaseEventRepository struct {
	db *gorm.DB
}

func NewReleaseEventRepository(db *gorm.DB) *releaseEventRepository {
	return &releaseEventRepository{db: db}
}

// Stamp appends an audit event. It participates in the caller's transaction
// so a rolled-back mutation never leaves a stray event behind.
func (r *releaseEventRepository) Stamp(tx shared.DB, event models.ReleaseEvent) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Create(&event).Error
}

func (r *releaseEventRepository) ListForStampable(stampableType models.StampableType, stampableID uuid.UUID) ([]models.ReleaseEvent, error) {
	var events []models.ReleaseEvent
	err := r.db.
		Where("stampable_type = ? AND stampable_id = ?", stampableType, stampableID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

type pullRequestRepository struct {
	shared.Repository[uuid.UUID, models.PullRequest]
	db *gorm.DB
}

func NewPullRequestRepository(db *gorm.DB) *pullRequestRepository {
	return &pullRequestRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.PullRequest](db),
	}
}

func (r *pullRequestRepository) ListOpenByPhase(tx shared.DB, releaseID uuid.UUID, phase models.PullRequestPhase) ([]models.PullRequest, error) {
	var prs []models.PullRequest
	err := r.GetDB(tx).Where("release_id = ? AND state = ? AND phase = ?", releaseID, models.PullRequestStateOpen, phase).Find(&prs).Error
	return prs, err
}

func (r *pullRequestRepository) ListOpenAutomatic(tx shared.DB, releaseID uuid.UUID) ([]models.PullRequest, error) {
	var prs []models.PullRequest
	err := r.GetDB(tx).Where("release_id = ? AND state = ? AND automatic", releaseID, models.PullRequestStateOpen).Find(&prs).Error
	return prs, err
}

type releaseHealthRuleRepository struct {
	shared.Repository[uuid.UUID, models.ReleaseHealthRule]
	db *gorm.DB
}

func NewReleaseHealthRuleRepository(db *gorm.DB) *releaseHealthRuleRepository {
	return &releaseHealthRuleRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.ReleaseHealthRule](db),
	}
}

func (r *releaseHealthRuleRepository) ListEnabled(trainID uuid.UUID, platform models.Platform) ([]models.ReleaseHealthRule, error) {
	var rules []models.ReleaseHealthRule
	err := r.db.Where("train_id = ? AND platform = ? AND enabled", trainID, platform).Find(&rules).Error
	return rules, err
}

type releaseHealthEventRepository struct {
	shared.Repository[uuid.UUID, models.ReleaseHealthEvent]
	db *gorm.DB
}

func NewReleaseHealthEventRepository(db *gorm.DB) *releaseHealthEventRepository {
	return &releaseHealthEventRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.ReleaseHealthEvent](db),
	}
}

func (r *releaseHealthEventRepository) ListByProductionRelease(productionReleaseID uuid.UUID) ([]models.ReleaseHealthEvent, error) {
	var events []models.ReleaseHealthEvent
	err := r.db.Where("production_release_id = ?", productionReleaseID).Order("evaluated_at ASC").Find(&events).Error
	return events, err
}
