// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"log/slog"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/versioning"
)

// ApplyCommitCoordinator fans a single commit out to every platform run of
// a release and kicks off the next pre-prod step on each.
type ApplyCommitCoordinator struct {
	platformRunRepository       shared.ReleasePlatformRunRepository
	productionReleaseRepository shared.ProductionReleaseRepository
	commitRepository            shared.CommitRepository
	preProd                     *PreProdCoordinator
}

func NewApplyCommitCoordinator(
	platformRunRepository shared.ReleasePlatformRunRepository,
	productionReleaseRepository shared.ProductionReleaseRepository,
	commitRepository shared.CommitRepository,
	preProd *PreProdCoordinator,
) *ApplyCommitCoordinator {
	return &ApplyCommitCoordinator{
		platformRunRepository:       platformRunRepository,
		productionReleaseRepository: productionReleaseRepository,
		commitRepository:            commitRepository,
		preProd:                     preProd,
	}
}

// preProdKindFor picks the step the commit drives. Hotfixes skip the
// internal flow and go straight to beta.
func preProdKindFor(release models.Release, config models.PlatformConfig) models.PreProdKind {
	if release.Hotfix() || !config.InternalReleaseConfigured() {
		return models.PreProdKindBeta
	}
	return models.PreProdKindInternal
}

// ApplyCommit runs inside the caller's transaction with the release lock
// held. It updates every on-track platform run and returns the follow-ups
// to execute after commit.
func (c *ApplyCommitCoordinator) ApplyCommit(tx shared.DB, train models.Train, release models.Release, commit models.Commit) (followUps, error) {
	if !release.Committable() {
		return nil, ErrReleaseNotCommittable
	}

	strategy := versioning.Strategy(train.VersioningStrategy)
	runs, err := c.platformRunRepository.GetByRelease(tx, release.ID)
	if err != nil {
		return nil, err
	}

	fups := followUps{}
	for i := range runs {
		run := runs[i]
		if !run.OnTrack() {
			slog.Debug("skipping platform run for incoming commit", "platformRunId", run.ID, "status", run.Status)
			continue
		}

		// once a production release went out on this version, a new commit
		// means the run needs a fresh version for its next candidate
		active, err := c.productionReleaseRepository.GetActiveForRun(tx, run.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			bumped, err := versioning.NextReleaseVersion(strategy, run.ReleaseVersion, true)
			if err != nil {
				return nil, err
			}
			run.ReleaseVersion = bumped
		}

		run.LastCommitID = shared.Ptr(commit.ID)
		if err := c.platformRunRepository.Save(tx, &run); err != nil {
			return nil, err
		}

		config, err := run.PlatformConfig()
		if err != nil {
			return nil, err
		}

		stepFups, err := c.preProd.Create(tx, run, release.BranchName, strategy, commit, preProdKindFor(release, config))
		if err != nil {
			return nil, err
		}
		fups = append(fups, stepFups...)
	}

	if !commit.Applied {
		commit.Applied = true
		if err := c.commitRepository.Save(tx, &commit); err != nil {
			return nil, err
		}
	}
	return fups, nil
}
