// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

// BuildArtifact carries the artifact metadata a finished CI workflow
// reported.
type BuildArtifact struct {
	VersionName string
	BuildNumber string
	GeneratedAt time.Time
	SizeBytes   int64
}

// WorkflowRunCoordinator applies CI status callbacks to workflow runs and
// turns finished runs into builds and store submissions.
type WorkflowRunCoordinator struct {
	workflowRunRepository     shared.WorkflowRunRepository
	platformRunRepository     shared.ReleasePlatformRunRepository
	preProdRepository         shared.PreProdReleaseRepository
	buildRepository           shared.BuildRepository
	storeSubmissionRepository shared.StoreSubmissionRepository
	eventRepository           shared.ReleaseEventRepository
	stores                    shared.StoreProviderRegistry
}

func NewWorkflowRunCoordinator(
	workflowRunRepository shared.WorkflowRunRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	preProdRepository shared.PreProdReleaseRepository,
	buildRepository shared.BuildRepository,
	storeSubmissionRepository shared.StoreSubmissionRepository,
	eventRepository shared.ReleaseEventRepository,
	stores shared.StoreProviderRegistry,
) *WorkflowRunCoordinator {
	return &WorkflowRunCoordinator{
		workflowRunRepository:     workflowRunRepository,
		platformRunRepository:     platformRunRepository,
		preProdRepository:         preProdRepository,
		buildRepository:           buildRepository,
		storeSubmissionRepository: storeSubmissionRepository,
		eventRepository:           eventRepository,
		stores:                    stores,
	}
}

// HandleWorkflowRunUpdate is the CI webhook entry point. Status callbacks
// for workflow runs the system does not know are ignored.
func (c *WorkflowRunCoordinator) HandleWorkflowRunUpdate(externalID string, status models.WorkflowRunStatus, artifact *BuildArtifact) error {
	unlocked, err := c.workflowRunRepository.FindByExternalID(externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Debug("ignoring callback for unknown workflow run", "externalId", externalID)
			return nil
		}
		return err
	}

	fups := followUps{}
	err = c.workflowRunRepository.Transaction(func(tx shared.DB) error {
		// lock order: platform run first, then workflow run
		run, err := c.platformRunRepository.ReadForUpdate(tx, unlocked.ReleasePlatformRunID)
		if err != nil {
			return err
		}
		workflowRun, err := c.workflowRunRepository.ReadForUpdate(tx, unlocked.ID)
		if err != nil {
			return err
		}

		if d := workflowRun.CanTransitionTo(status); !d.Allowed {
			// late or duplicate callback, the run already moved on
			slog.Debug("ignoring workflow run callback", "workflowRunId", workflowRun.ID, "reason", d.Reason)
			return nil
		}
		if err := workflowRun.TransitionTo(status); err != nil {
			return err
		}
		if err := c.workflowRunRepository.Save(tx, &workflowRun); err != nil {
			return err
		}

		switch status {
		case models.WorkflowRunStatusFinished:
			stepFups, err := c.finishWorkflowRun(tx, run, workflowRun, artifact)
			if err != nil {
				return err
			}
			fups = append(fups, stepFups...)
		case models.WorkflowRunStatusFailed:
			if err := c.failWorkflowRun(tx, workflowRun); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fups.run()
	return nil
}

// finishWorkflowRun records the build and finishes the pre-prod release.
// With auto-promote configured the build goes straight into the configured
// store channels.
func (c *WorkflowRunCoordinator) finishWorkflowRun(tx shared.DB, run models.ReleasePlatformRun, workflowRun models.WorkflowRun, artifact *BuildArtifact) (followUps, error) {
	if artifact == nil {
		return nil, fmt.Errorf("workflow run %s finished without an artifact", workflowRun.ID)
	}

	sequence, err := c.buildRepository.NextSequenceNumber(tx, run.ID)
	if err != nil {
		return nil, err
	}
	build := models.Build{
		ReleasePlatformRunID: run.ID,
		WorkflowRunID:        workflowRun.ID,
		CommitID:             workflowRun.CommitID,
		VersionName:          artifact.VersionName,
		BuildNumber:          artifact.BuildNumber,
		GeneratedAt:          artifact.GeneratedAt,
		SequenceNumber:       sequence,
		SizeBytes:            artifact.SizeBytes,
	}
	if err := c.buildRepository.Create(tx, &build); err != nil {
		return nil, err
	}

	if workflowRun.PreProdReleaseID == nil {
		return nil, nil
	}
	preProd, err := c.preProdRepository.Read(*workflowRun.PreProdReleaseID)
	if err != nil {
		return nil, err
	}
	if d := preProd.CanTransitionTo(models.PreProdStatusFinished); !d.Allowed {
		// superseded while the workflow was running, keep the build but
		// do not submit anywhere
		slog.Info("build arrived for superseded pre-prod release", "preProdReleaseId", preProd.ID)
		return nil, nil
	}
	if err := preProd.TransitionTo(models.PreProdStatusFinished); err != nil {
		return nil, err
	}
	if err := c.preProdRepository.Save(tx, &preProd); err != nil {
		return nil, err
	}
	if err := stamp(c.eventRepository, tx, models.StampablePreProdRelease, preProd.ID, "build_available", models.EventKindSuccess,
		fmt.Sprintf("build %s (#%d) is available", build.BuildNumber, build.SequenceNumber), nil); err != nil {
		return nil, err
	}

	config, err := preProd.PreProdConfig()
	if err != nil {
		return nil, err
	}
	if !config.AutoPromote && preProd.Kind == models.PreProdKindInternal {
		return nil, nil
	}

	fups := followUps{}
	for _, sub := range config.Submissions {
		submission := models.StoreSubmission{
			ReleasePlatformRunID: run.ID,
			ParentReleaseType:    models.ParentReleasePreProd,
			ParentReleaseID:      preProd.ID,
			BuildID:              build.ID,
			Store:                sub.Store,
			Status:               models.SubmissionStatusPreparing,
		}
		if err := c.storeSubmissionRepository.Create(tx, &submission); err != nil {
			return nil, err
		}
		fups = append(fups, c.prepareSubmissionFollowUp(submission, build))
	}
	return fups, nil
}

func (c *WorkflowRunCoordinator) failWorkflowRun(tx shared.DB, workflowRun models.WorkflowRun) error {
	if workflowRun.PreProdReleaseID == nil {
		return nil
	}
	preProd, err := c.preProdRepository.Read(*workflowRun.PreProdReleaseID)
	if err != nil {
		return err
	}
	if d := preProd.CanTransitionTo(models.PreProdStatusFailed); !d.Allowed {
		return nil
	}
	if err := preProd.TransitionTo(models.PreProdStatusFailed); err != nil {
		return err
	}
	if err := c.preProdRepository.Save(tx, &preProd); err != nil {
		return err
	}
	monitoring.Alert("workflow run failed", fmt.Errorf("workflow run %s failed", workflowRun.ID))
	return stamp(c.eventRepository, tx, models.StampablePreProdRelease, preProd.ID, "workflow_run_failed", models.EventKindError,
		"the CI workflow run failed", nil)
}

// prepareSubmissionFollowUp pushes the build into the store after commit.
// A failure marks the submission failed instead of leaving it preparing.
func (c *WorkflowRunCoordinator) prepareSubmissionFollowUp(submission models.StoreSubmission, build models.Build) func() {
	return func() {
		provider := c.stores.For(submission.Store)
		if err := provider.PrepareSubmission(context.Background(), submission, build); err != nil {
			slog.Error("could not prepare store submission", "submissionId", submission.ID, "store", submission.Store, "err", err)
			submission.FailureReason = err.Error()
			if terr := submission.TransitionTo(models.SubmissionStatusFailed); terr == nil {
				if serr := c.storeSubmissionRepository.Save(nil, &submission); serr != nil {
					slog.Error("could not persist failed submission", "submissionId", submission.ID, "err", serr)
				}
			}
			return
		}
		submission.PreparedAt = shared.Ptr(time.Now())
		if err := submission.TransitionTo(models.SubmissionStatusPrepared); err != nil {
			slog.Error("unexpected submission state after prepare", "submissionId", submission.ID, "err", err)
			return
		}
		if err := c.storeSubmissionRepository.Save(nil, &submission); err != nil {
			slog.Error("could not persist prepared submission", "submissionId", submission.ID, "err", err)
		}
	}
}
