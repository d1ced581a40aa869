// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/versioning"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PreProdCoordinator creates internal and beta releases for a platform run
// and tracks the CI workflow runs they trigger.
type PreProdCoordinator struct {
	releaseRepository         shared.ReleaseRepository
	trainRepository           shared.TrainRepository
	commitRepository          shared.CommitRepository
	preProdRepository         shared.PreProdReleaseRepository
	workflowRunRepository     shared.WorkflowRunRepository
	platformRunRepository     shared.ReleasePlatformRunRepository
	buildRepository           shared.BuildRepository
	storeSubmissionRepository shared.StoreSubmissionRepository
	eventRepository           shared.ReleaseEventRepository
	ci                        shared.CIProvider
	stores                    shared.StoreProviderRegistry
}

func NewPreProdCoordinator(
	releaseRepository shared.ReleaseRepository,
	trainRepository shared.TrainRepository,
	commitRepository shared.CommitRepository,
	preProdRepository shared.PreProdReleaseRepository,
	workflowRunRepository shared.WorkflowRunRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	buildRepository shared.BuildRepository,
	storeSubmissionRepository shared.StoreSubmissionRepository,
	eventRepository shared.ReleaseEventRepository,
	ci shared.CIProvider,
	stores shared.StoreProviderRegistry,
) *PreProdCoordinator {
	return &PreProdCoordinator{
		releaseRepository:         releaseRepository,
		trainRepository:           trainRepository,
		commitRepository:          commitRepository,
		preProdRepository:         preProdRepository,
		workflowRunRepository:     workflowRunRepository,
		platformRunRepository:     platformRunRepository,
		buildRepository:           buildRepository,
		storeSubmissionRepository: storeSubmissionRepository,
		eventRepository:           eventRepository,
		ci:                        ci,
		stores:                    stores,
	}
}

func workflowKindFor(kind models.PreProdKind) models.WorkflowKind {
	if kind == models.PreProdKindInternal {
		return models.WorkflowKindInternal
	}
	return models.WorkflowKindReleaseCandidate
}

// readyForBetaRelease requires the internal flow to either be skipped by
// configuration or to have produced at least one internal release.
func (c *PreProdCoordinator) readyForBetaRelease(tx shared.DB, run models.ReleasePlatformRun, config models.PlatformConfig) (bool, error) {
	if !config.InternalReleaseConfigured() {
		return true, nil
	}
	latest, err := c.preProdRepository.LatestForRun(tx, run.ID, models.PreProdKindInternal)
	if err != nil {
		return false, err
	}
	return latest != nil, nil
}

// Create runs inside the caller's transaction (the release or platform run
// lock is already held) and returns the follow-ups to execute after commit.
func (c *PreProdCoordinator) Create(tx shared.DB, run models.ReleasePlatformRun, branchName string, strategy versioning.Strategy, commit models.Commit, kind models.PreProdKind) (followUps, error) {
	if !run.OnTrack() {
		return nil, ErrPlatformRunNotOnTrack
	}
	if commit.ID == uuid.Nil {
		return nil, ErrBlankCommit
	}

	config, err := run.PlatformConfig()
	if err != nil {
		return nil, err
	}

	if kind == models.PreProdKindBeta {
		ready, err := c.readyForBetaRelease(tx, run, config)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, ErrNotReadyForBetaRelease
		}
	}

	// idempotency guard: re-applying the same commit never creates a second
	// pre-prod release of the same kind
	if _, err := c.preProdRepository.FindByRunCommitAndKind(tx, run.ID, commit.ID, kind); err == nil {
		return nil, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// defensive re-normalization of the version string
	if normalized, err := versioning.Normalize(strategy, run.ReleaseVersion); err == nil && normalized != run.ReleaseVersion {
		run.ReleaseVersion = normalized
		if err := c.platformRunRepository.Save(tx, &run); err != nil {
			return nil, err
		}
	}

	snapshot, workflow, err := preProdSnapshot(config, kind)
	if err != nil {
		return nil, err
	}

	previous, err := c.preProdRepository.LatestForRun(tx, run.ID, kind)
	if err != nil {
		return nil, err
	}

	preProd := models.PreProdRelease{
		ReleasePlatformRunID: run.ID,
		Kind:                 kind,
		Status:               models.PreProdStatusCreated,
		CommitID:             commit.ID,
		Config:               snapshot,
	}
	if previous != nil {
		preProd.PreviousID = &previous.ID
	}
	if err := c.preProdRepository.Create(tx, &preProd); err != nil {
		return nil, err
	}

	workflowRun := models.WorkflowRun{
		ReleasePlatformRunID: run.ID,
		PreProdReleaseID:     &preProd.ID,
		CommitID:             commit.ID,
		Kind:                 workflowKindFor(kind),
		Status:               models.WorkflowRunStatusTriggering,
	}
	if err := c.workflowRunRepository.Create(tx, &workflowRun); err != nil {
		return nil, err
	}

	fups := followUps{}

	// supersession: only the newest pre-prod release's workflow keeps
	// running
	if previous != nil {
		if fup, err := c.cancelSuperseded(tx, *previous); err != nil {
			return nil, err
		} else if fup != nil {
			fups = append(fups, fup)
		}
	}

	if err := stamp(c.eventRepository, tx, models.StampablePreProdRelease, preProd.ID, "pre_prod_release_created", models.EventKindSuccess,
		fmt.Sprintf("%s release created for commit %s", kind, commit.ShortHash()), map[string]any{"version": run.ReleaseVersion}); err != nil {
		return nil, err
	}

	fups = append(fups, c.triggerWorkflowFollowUp(workflowRun, workflow, branchName, run))
	return fups, nil
}

func preProdSnapshot(config models.PlatformConfig, kind models.PreProdKind) (datatypes.JSON, models.WorkflowConfig, error) {
	var snapshot models.PreProdConfig
	switch kind {
	case models.PreProdKindInternal:
		if config.InternalWorkflow == nil {
			return nil, models.WorkflowConfig{}, errors.New("no internal workflow configured for this platform")
		}
		snapshot = models.PreProdConfig{
			Workflow:    *config.InternalWorkflow,
			Submissions: config.InternalSubmissions,
		}
		if len(config.InternalSubmissions) > 0 {
			snapshot.AutoPromote = config.InternalSubmissions[0].AutoPromote
		}
	case models.PreProdKindBeta:
		snapshot = models.PreProdConfig{
			Workflow:    config.RCWorkflow,
			Submissions: config.BetaSubmissions,
		}
	default:
		return nil, models.WorkflowConfig{}, fmt.Errorf("unknown pre-prod kind %q", kind)
	}

	raw, err := snapshot.ToJSON()
	if err != nil {
		return nil, models.WorkflowConfig{}, err
	}
	return raw, snapshot.Workflow, nil
}

func (c *PreProdCoordinator) cancelSuperseded(tx shared.DB, previous models.PreProdRelease) (func(), error) {
	prevWorkflow, err := c.workflowRunRepository.FindByPreProdRelease(tx, previous.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if previous.Status == models.PreProdStatusCreated {
		if err := previous.TransitionTo(models.PreProdStatusStale); err != nil {
			return nil, err
		}
		if err := c.preProdRepository.Save(tx, &previous); err != nil {
			return nil, err
		}
	}

	if !prevWorkflow.Unfinished() {
		return nil, nil
	}
	if err := prevWorkflow.TransitionTo(models.WorkflowRunStatusCancelling); err != nil {
		return nil, err
	}
	if err := c.workflowRunRepository.Save(tx, &prevWorkflow); err != nil {
		return nil, err
	}

	externalID := prevWorkflow.ExternalID
	workflowRunID := prevWorkflow.ID
	return func() {
		// cooperative cancel, acknowledged asynchronously by the CI webhook
		if externalID == "" {
			return
		}
		if err := c.ci.CancelWorkflow(context.Background(), externalID); err != nil {
			slog.Error("could not cancel superseded workflow run", "workflowRunId", workflowRunID, "err", err)
			return
		}
		monitoring.WorkflowRunsCancelled.Inc()
	}, nil
}

// triggerWorkflowFollowUp performs the CI trigger after commit. A trigger
// failure is a rescue boundary: it leaves the workflow run in a terminal
// unavailable state instead of an inconsistent one.
func (c *PreProdCoordinator) triggerWorkflowFollowUp(workflowRun models.WorkflowRun, workflow models.WorkflowConfig, branchName string, run models.ReleasePlatformRun) func() {
	return func() {
		inputs := map[string]string{
			"version_name": run.ReleaseVersion,
			"platform":     string(run.Platform),
		}
		triggered, err := c.ci.TriggerWorkflow(context.Background(), workflow, branchName, inputs)
		if err != nil {
			slog.Error("could not trigger workflow", "workflowRunId", workflowRun.ID, "workflow", workflow.Identifier, "err", err)
			monitoring.Alert("workflow trigger failed", err)
			if terr := workflowRun.TransitionTo(models.WorkflowRunStatusUnavailable); terr == nil {
				if serr := c.workflowRunRepository.Save(nil, &workflowRun); serr != nil {
					slog.Error("could not persist unavailable workflow run", "workflowRunId", workflowRun.ID, "err", serr)
				}
			}
			if serr := stamp(c.eventRepository, nil, models.StampablePlatformRun, run.ID, "workflow_trigger_failed", models.EventKindError, err.Error(), nil); serr != nil {
				slog.Error("could not stamp workflow trigger failure", "err", serr)
			}
			return
		}

		workflowRun.ExternalID = triggered.ExternalID
		workflowRun.ExternalURL = triggered.ExternalURL
		workflowRun.ExternalNumber = triggered.ExternalNumber
		if err := workflowRun.TransitionTo(models.WorkflowRunStatusTriggered); err != nil {
			slog.Error("unexpected workflow run state after trigger", "workflowRunId", workflowRun.ID, "err", err)
			return
		}
		if err := c.workflowRunRepository.Save(nil, &workflowRun); err != nil {
			slog.Error("could not persist triggered workflow run", "workflowRunId", workflowRun.ID, "err", err)
			return
		}
		monitoring.WorkflowRunsTriggered.WithLabelValues(string(workflowRun.Kind)).Inc()
	}
}

// PromoteToBeta cuts a beta release from the platform run's last applied
// commit. Used when the internal flow does not auto-promote.
func (c *PreProdCoordinator) PromoteToBeta(runID uuid.UUID) error {
	unlocked, err := c.platformRunRepository.Read(runID)
	if err != nil {
		return err
	}

	fups := followUps{}
	err = c.platformRunRepository.Transaction(func(tx shared.DB) error {
		release, err := c.releaseRepository.ReadForUpdate(tx, unlocked.ReleaseID)
		if err != nil {
			return err
		}
		run, err := c.platformRunRepository.ReadForUpdate(tx, runID)
		if err != nil {
			return err
		}
		if run.LastCommitID == nil {
			return ErrBlankCommit
		}
		commit, err := c.commitRepository.Read(*run.LastCommitID)
		if err != nil {
			return err
		}
		train, err := c.trainRepository.Read(release.TrainID)
		if err != nil {
			return err
		}

		fups, err = c.Create(tx, run, release.BranchName, versioning.Strategy(train.VersioningStrategy), commit, models.PreProdKindBeta)
		return err
	})
	if err != nil {
		return err
	}

	fups.run()
	return nil
}
