// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

// ProductionReleaseCoordinator runs the production submission cycle of a
// platform run: one inflight candidate at a time, promoted to active when
// the store approves it.
type ProductionReleaseCoordinator struct {
	platformRunRepository       shared.ReleasePlatformRunRepository
	productionReleaseRepository shared.ProductionReleaseRepository
	buildRepository             shared.BuildRepository
	storeSubmissionRepository   shared.StoreSubmissionRepository
	storeRolloutRepository      shared.StoreRolloutRepository
	eventRepository             shared.ReleaseEventRepository
	stores                      shared.StoreProviderRegistry
}

func NewProductionReleaseCoordinator(
	platformRunRepository shared.ReleasePlatformRunRepository,
	productionReleaseRepository shared.ProductionReleaseRepository,
	buildRepository shared.BuildRepository,
	storeSubmissionRepository shared.StoreSubmissionRepository,
	storeRolloutRepository shared.StoreRolloutRepository,
	eventRepository shared.ReleaseEventRepository,
	stores shared.StoreProviderRegistry,
) *ProductionReleaseCoordinator {
	return &ProductionReleaseCoordinator{
		platformRunRepository:       platformRunRepository,
		productionReleaseRepository: productionReleaseRepository,
		buildRepository:             buildRepository,
		storeSubmissionRepository:   storeSubmissionRepository,
		storeRolloutRepository:      storeRolloutRepository,
		eventRepository:             eventRepository,
		stores:                      stores,
	}
}

// StartProductionRelease submits the given build to the production store.
// An already active production release is left alone unless force is set,
// in which case it goes stale and the new candidate takes over.
func (c *ProductionReleaseCoordinator) StartProductionRelease(runID, buildID uuid.UUID, force bool) error {
	fups := followUps{}
	err := c.platformRunRepository.Transaction(func(tx shared.DB) error {
		run, err := c.platformRunRepository.ReadForUpdate(tx, runID)
		if err != nil {
			return err
		}
		if !run.OnTrack() {
			slog.Info("not starting production release for platform run", "platformRunId", run.ID, "status", run.Status)
			return nil
		}

		config, err := run.PlatformConfig()
		if err != nil {
			return err
		}
		if config.ProductionSubmission == nil {
			return fmt.Errorf("platform %s has no production submission configured", run.Platform)
		}

		if inflight, err := c.productionReleaseRepository.GetInflightForRun(tx, run.ID); err != nil {
			return err
		} else if inflight != nil {
			return ErrActiveProductionRelease
		}

		active, err := c.productionReleaseRepository.GetActiveForRun(tx, run.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if !force {
				slog.Info("production release already active, not starting another", "platformRunId", run.ID)
				return nil
			}
			if err := active.TransitionTo(models.ProductionReleaseStatusStale); err != nil {
				return err
			}
			if err := c.productionReleaseRepository.Save(tx, active); err != nil {
				return err
			}
		}

		build, err := c.buildRepository.Read(buildID)
		if err != nil {
			return err
		}
		if build.ReleasePlatformRunID != run.ID {
			return fmt.Errorf("build %s does not belong to platform run %s", build.ID, run.ID)
		}

		rawConfig, err := json.Marshal(config.ProductionSubmission)
		if err != nil {
			return err
		}
		production := models.ProductionRelease{
			ReleasePlatformRunID: run.ID,
			Status:               models.ProductionReleaseStatusInflight,
			BuildID:              &build.ID,
			Config:               rawConfig,
		}
		if active != nil {
			production.PreviousID = &active.ID
		}
		if err := c.productionReleaseRepository.Create(tx, &production); err != nil {
			// a concurrent writer won the inflight slot between our checks
			// and the insert
			if errors.Is(err, shared.ErrAlreadyExists) {
				return ErrActiveProductionRelease
			}
			return err
		}

		submission := models.StoreSubmission{
			ReleasePlatformRunID: run.ID,
			ParentReleaseType:    models.ParentReleaseProduction,
			ParentReleaseID:      production.ID,
			BuildID:              build.ID,
			Store:                config.ProductionSubmission.Store,
			Status:               models.SubmissionStatusPreparing,
		}
		if err := c.storeSubmissionRepository.Create(tx, &submission); err != nil {
			return err
		}

		if err := stamp(c.eventRepository, tx, models.StampableProductionRelease, production.ID, "production_release_started", models.EventKindSuccess,
			fmt.Sprintf("build %s (#%d) submitted to %s", build.BuildNumber, build.SequenceNumber, submission.Store), map[string]any{"force": force}); err != nil {
			return err
		}

		fups = append(fups, c.prepareProductionFollowUp(submission, build))
		return nil
	})
	if err != nil {
		return err
	}

	fups.run()
	return nil
}

func (c *ProductionReleaseCoordinator) prepareProductionFollowUp(submission models.StoreSubmission, build models.Build) func() {
	return func() {
		provider := c.stores.For(submission.Store)
		if err := provider.PrepareSubmission(context.Background(), submission, build); err != nil {
			slog.Error("could not prepare production submission", "submissionId", submission.ID, "err", err)
			monitoring.Alert("production submission preparation failed", err)
			submission.FailureReason = err.Error()
			if terr := submission.TransitionTo(models.SubmissionStatusFailed); terr == nil {
				if serr := c.storeSubmissionRepository.Save(nil, &submission); serr != nil {
					slog.Error("could not persist failed production submission", "submissionId", submission.ID, "err", serr)
				}
			}
			return
		}
		submission.PreparedAt = shared.Ptr(time.Now())
		if err := submission.TransitionTo(models.SubmissionStatusPrepared); err != nil {
			slog.Error("unexpected production submission state after prepare", "submissionId", submission.ID, "err", err)
			return
		}
		if err := c.storeSubmissionRepository.Save(nil, &submission); err != nil {
			slog.Error("could not persist prepared production submission", "submissionId", submission.ID, "err", err)
			return
		}

		if err := provider.SubmitForReview(context.Background(), submission); err != nil {
			slog.Error("could not submit production build for review", "submissionId", submission.ID, "err", err)
			monitoring.Alert("production review submission failed", err)
			return
		}
		submission.SubmittedAt = shared.Ptr(time.Now())
		if err := submission.TransitionTo(models.SubmissionStatusSubmittedForReview); err != nil {
			slog.Error("unexpected production submission state after review submit", "submissionId", submission.ID, "err", err)
			return
		}
		if err := c.storeSubmissionRepository.Save(nil, &submission); err != nil {
			slog.Error("could not persist submitted production submission", "submissionId", submission.ID, "err", err)
		}
	}
}

// UpdateStoreSubmission is the store webhook entry point. Approval of a
// production submission promotes the inflight production release to active
// and starts the staged rollout.
func (c *ProductionReleaseCoordinator) UpdateStoreSubmission(submissionID uuid.UUID, status models.SubmissionStatus, failureReason string) error {
	unlocked, err := c.storeSubmissionRepository.Read(submissionID)
	if err != nil {
		return err
	}

	fups := followUps{}
	err = c.storeSubmissionRepository.Transaction(func(tx shared.DB) error {
		run, err := c.platformRunRepository.ReadForUpdate(tx, unlocked.ReleasePlatformRunID)
		if err != nil {
			return err
		}
		submission, err := c.storeSubmissionRepository.ReadForUpdate(tx, submissionID)
		if err != nil {
			return err
		}

		if d := submission.CanTransitionTo(status); !d.Allowed {
			slog.Debug("ignoring store submission callback", "submissionId", submission.ID, "reason", d.Reason)
			return nil
		}
		if err := submission.TransitionTo(status); err != nil {
			return err
		}
		switch status {
		case models.SubmissionStatusApproved:
			submission.ApprovedAt = shared.Ptr(time.Now())
		case models.SubmissionStatusReviewFailed, models.SubmissionStatusFailed:
			submission.FailureReason = failureReason
		}
		if err := c.storeSubmissionRepository.Save(tx, &submission); err != nil {
			return err
		}

		kind := models.EventKindNotice
		if status == models.SubmissionStatusFailed || status == models.SubmissionStatusReviewFailed {
			kind = models.EventKindError
		}
		if err := stamp(c.eventRepository, tx, models.StampableStoreSubmission, submission.ID, "submission_"+string(status), kind,
			fmt.Sprintf("store %s reported %s", submission.Store, status), nil); err != nil {
			return err
		}

		if submission.ParentReleaseType != models.ParentReleaseProduction || status != models.SubmissionStatusApproved {
			return nil
		}
		stepFups, err := c.approveProduction(tx, run, submission)
		if err != nil {
			return err
		}
		fups = append(fups, stepFups...)
		return nil
	})
	if err != nil {
		return err
	}

	fups.run()
	return nil
}

// approveProduction promotes the inflight production release and creates
// the rollout for the approved submission.
func (c *ProductionReleaseCoordinator) approveProduction(tx shared.DB, run models.ReleasePlatformRun, submission models.StoreSubmission) (followUps, error) {
	production, err := c.productionReleaseRepository.ReadForUpdate(tx, submission.ParentReleaseID)
	if err != nil {
		return nil, err
	}
	if production.Status != models.ProductionReleaseStatusInflight {
		slog.Info("approval for non-inflight production release", "productionReleaseId", production.ID, "status", production.Status)
		return nil, nil
	}

	// the previously active production release is replaced by this one
	if production.PreviousID != nil {
		previous, err := c.productionReleaseRepository.ReadForUpdate(tx, *production.PreviousID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil && previous.Status == models.ProductionReleaseStatusActive {
			if err := previous.TransitionTo(models.ProductionReleaseStatusFinished); err != nil {
				return nil, err
			}
			if err := c.productionReleaseRepository.Save(tx, &previous); err != nil {
				return nil, err
			}
		}
	}

	if err := production.TransitionTo(models.ProductionReleaseStatusActive); err != nil {
		return nil, err
	}
	if err := c.productionReleaseRepository.Save(tx, &production); err != nil {
		return nil, err
	}

	var subConfig models.SubmissionConfig
	if err := json.Unmarshal(production.Config, &subConfig); err != nil {
		return nil, err
	}
	stages, err := models.StagesToJSON(subConfig.RolloutStages)
	if err != nil {
		return nil, err
	}
	rollout := models.StoreRollout{
		StoreSubmissionID:        submission.ID,
		ReleasePlatformRunID:     run.ID,
		Store:                    submission.Store,
		Status:                   models.RolloutStatusCreated,
		Config:                   stages,
		CurrentStage:             -1,
		IsStaged:                 subConfig.IsStaged,
		AutomaticRollout:         subConfig.AutomaticRollout,
		AutomaticRolloutInterval: time.Duration(subConfig.RolloutUpdateIntervalSec) * time.Second,
	}
	if err := c.storeRolloutRepository.Create(tx, &rollout); err != nil {
		return nil, err
	}

	if err := stamp(c.eventRepository, tx, models.StampableProductionRelease, production.ID, "production_release_active", models.EventKindSuccess,
		"the store approved the production build", nil); err != nil {
		return nil, err
	}

	return followUps{c.startRolloutFollowUp(rollout)}, nil
}

func (c *ProductionReleaseCoordinator) startRolloutFollowUp(rollout models.StoreRollout) func() {
	return func() {
		provider := c.stores.For(rollout.Store)
		if err := provider.StartRollout(context.Background(), rollout); err != nil {
			slog.Error("could not start store rollout", "rolloutId", rollout.ID, "err", err)
			monitoring.Alert("store rollout start failed", err)
			return
		}
		rollout.CurrentStage = 0
		if !rollout.IsStaged {
			rollout.CurrentStage = len(rollout.Stages()) - 1
		}
		if rollout.AutomaticRollout && rollout.AutomaticRolloutInterval > 0 {
			rollout.AutomaticRolloutNextUpdateAt = shared.Ptr(time.Now().Add(rollout.AutomaticRolloutInterval))
		}
		if err := rollout.TransitionTo(models.RolloutStatusStarted); err != nil {
			slog.Error("unexpected rollout state after start", "rolloutId", rollout.ID, "err", err)
			return
		}
		if err := c.storeRolloutRepository.Save(nil, &rollout); err != nil {
			slog.Error("could not persist started rollout", "rolloutId", rollout.ID, "err", err)
		}
	}
}
