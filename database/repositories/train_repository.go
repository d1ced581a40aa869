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

type appRepository struct {
	shared.Repository[uuid.UUID, models.App]
	db *gorm.DB
}

func NewAppRepository(db *gorm.DB) *appRepository {
	return &appRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.App](db),
	}
}

func (r *appRepository) GetBySlug(slug string) (models.App, error) {
	var app models.App
	err := r.db.First(&app, "slug = ?", slug).Error
	return app, err
}

type trainRepository struct {
	shared.Repository[uuid.UUID, models.Train]
	db *gorm.DB
}

func NewTrainRepository(db *gorm.DB) *trainRepository {
	return &trainRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.Train](db),
	}
}

func (r *trainRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.Train, error) {
	return readForUpdate[models.Train](r.GetDB(tx), id)
}

func (r *trainRepository) GetBySlug(slug string) (models.Train, error) {
	var train models.Train
	err := r.db.Preload("App").First(&train, "slug = ?", slug).Error
	return train, err
}

func (r *trainRepository) ListByApp(appID uuid.UUID) ([]models.Train, error) {
	var trains []models.Train
	err := r.db.Where("app_id = ?", appID).Order("created_at ASC").Find(&trains).Error
	return trains, err
}

func (r *trainRepository) ListDueForKickoff(now time.Time) ([]models.Train, error) {
	var trains []models.Train
	err := r.db.Where("status = ? AND kickoff_at IS NOT NULL AND kickoff_at <= ?", models.TrainStatusActive, now).Find(&trains).Error
	return trains, err
}
