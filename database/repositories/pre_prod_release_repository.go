// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"errors"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

type preProdReleaseRepository struct {
	shared.Repository[uuid.UUID, models.PreProdRelease]
	db *gorm.DB
}

func NewPreProdReleaseRepository(db *gorm.DB) *preProdReleaseRepository {
	return &preProdReleaseRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.PreProdRelease](db),
	}
}

func (r *preProdReleaseRepository) LatestForRun(tx shared.DB, runID uuid.UUID, kind models.PreProdKind) (*models.PreProdRelease, error) {
	var release models.PreProdRelease
	err := r.GetDB(tx).
		Where("release_platform_run_id = ? AND kind = ?", runID, kind).
		Order("created_at DESC").
		First(&release).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *preProdReleaseRepository) FindByRunCommitAndKind(tx shared.DB, runID, commitID uuid.UUID, kind models.PreProdKind) (models.PreProdRelease, error) {
	var release models.PreProdRelease
	err := r.GetDB(tx).First(&release, "release_platform_run_id = ? AND commit_id = ? AND kind = ?", runID, commitID, kind).Error
	return release, err
}

func (r *preProdReleaseRepository) ListByRunAndKind(runID uuid.UUID, kind models.PreProdKind) ([]models.PreProdRelease, error) {
	var releases []models.PreProdRelease
	err := r.db.
		Where("release_platform_run_id = ? AND kind = ?", runID, kind).
		Order("created_at ASC").
		Find(&releases).Error
	return releases, err
}

type workflowRunRepository struct {
	shared.Repository[uuid.UUID, models.WorkflowRun]
	db *gorm.DB
}

func NewWorkflowRunRepository(db *gorm.DB) *workflowRunRepository {
	return &workflowRunRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.WorkflowRun](db),
	}
}

func (r *workflowRunRepository) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.WorkflowRun, error) {
	return readForUpdate[models.WorkflowRun](r.GetDB(tx), id)
}

func (r *workflowRunRepository) FindByPreProdRelease(tx shared.DB, preProdReleaseID uuid.UUID) (models.WorkflowRun, error) {
	var run models.WorkflowRun
	err := r.GetDB(tx).First(&run, "pre_prod_release_id = ?", preProdReleaseID).Error
	return run, err
}

func (r *workflowRunRepository) FindByExternalID(externalID string) (models.WorkflowRun, error) {
	var run models.WorkflowRun
	err := r.db.First(&run, "external_id = ?", externalID).Error
	return run, err
}

type buildRepository struct {
	shared.Repository[uuid.UUID, models.Build]
	db *gorm.DB
}

func NewBuildRepository(db *gorm.DB) *buildRepository {
	return &buildRepository{
		db:         db,
		Repository: newGormRepository[uuid.UUID, models.Build](db),
	}
}

func (r *buildRepository) NextSequenceNumber(tx shared.DB, runID uuid.UUID) (int, error) {
	var current *int
	err := r.GetDB(tx).Model(&models.Build{}).
		Where("release_platform_run_id = ?", runID).
		Select("MAX(sequence_number)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 1, nil
	}
	return *current + 1, nil
}

func (r *buildRepository) FindByWorkflowRun(tx shared.DB, workflowRunID uuid.UUID) (models.Build, error) {
	var build models.Build
	err := r.GetDB(tx).First(&build, "workflow_run_id = ?", workflowRunID).Error
	return build, err
}

func (r *buildRepository) ListByRun(runID uuid.UUID) ([]models.Build, error) {
	var builds []models.Build
	err := r.db.Where("release_platform_run_id = ?", runID).Order("sequence_number ASC").Find(&builds).Error
	return builds, err
}

func (r *buildRepository) ListReleaseCandidatesByRun(runID uuid.UUID) ([]models.Build, error) {
	var builds []models.Build
	err := r.db.
		Joins("JOIN workflow_runs ON workflow_runs.id = builds.workflow_run_id").
		Where("builds.release_platform_run_id = ? AND workflow_runs.kind = ?", runID, models.WorkflowKindReleaseCandidate).
		Order("builds.sequence_number ASC").
		Find(&builds).Error
	return builds, err
}
