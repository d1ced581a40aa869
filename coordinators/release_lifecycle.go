// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/versioning"
)

// releaseFinalizer kicks off the post-release phase. Implemented by the
// finalize coordinator; the indirection keeps the dependency one-way.
type releaseFinalizer interface {
	FinalizeRelease(releaseID uuid.UUID, force bool) error
}

// ReleaseLifecycleCoordinator moves platform runs and their release through
// the tail end of the pipeline once rollouts complete.
type ReleaseLifecycleCoordinator struct {
	trainRepository             shared.TrainRepository
	releaseRepository           shared.ReleaseRepository
	platformRunRepository       shared.ReleasePlatformRunRepository
	productionReleaseRepository shared.ProductionReleaseRepository
	eventRepository             shared.ReleaseEventRepository
	notify                      shared.NotificationSink
	cache                       BreakdownCache
	finalizer                   releaseFinalizer
}

func NewReleaseLifecycleCoordinator(
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	productionReleaseRepository shared.ProductionReleaseRepository,
	eventRepository shared.ReleaseEventRepository,
	notify shared.NotificationSink,
	cache BreakdownCache,
	finalizer releaseFinalizer,
) *ReleaseLifecycleCoordinator {
	return &ReleaseLifecycleCoordinator{
		trainRepository:             trainRepository,
		releaseRepository:           releaseRepository,
		platformRunRepository:       platformRunRepository,
		productionReleaseRepository: productionReleaseRepository,
		eventRepository:             eventRepository,
		notify:                      notify,
		cache:                       cache,
		finalizer:                   finalizer,
	}
}

// advanceTrainVersion moves the train's current version forward to the
// release version, never backward.
func advanceTrainVersion(tx shared.DB, trains shared.TrainRepository, release models.Release) error {
	train, err := trains.ReadForUpdate(tx, release.TrainID)
	if err != nil {
		return err
	}
	strategy := versioning.Strategy(train.VersioningStrategy)
	cmp, err := versioning.Compare(strategy, release.ReleaseVersion, train.CurrentVersion)
	if err != nil {
		return err
	}
	if cmp <= 0 {
		return nil
	}
	train.CurrentVersion = release.ReleaseVersion
	return trains.Save(tx, &train)
}

// ConcludePlatformRun marks the platform run's pipeline as done. The last
// run to conclude moves the release into the post-release phase; earlier
// ones leave it partially finished with the train version already advanced.
func (c *ReleaseLifecycleCoordinator) ConcludePlatformRun(runID uuid.UUID) error {
	unlocked, err := c.platformRunRepository.Read(runID)
	if err != nil {
		return err
	}

	fups := followUps{}
	var finalize bool
	var releaseID uuid.UUID
	err = c.platformRunRepository.Transaction(func(tx shared.DB) error {
		// lock order: release first, then platform run
		release, err := c.releaseRepository.ReadForUpdate(tx, unlocked.ReleaseID)
		if err != nil {
			return err
		}
		releaseID = release.ID
		run, err := c.platformRunRepository.ReadForUpdate(tx, runID)
		if err != nil {
			return err
		}
		if d := run.CanTransitionTo(models.PlatformRunStatusConcluded); !d.Allowed {
			slog.Info("platform run cannot conclude", "platformRunId", run.ID, "reason", d.Reason)
			return nil
		}

		// the rollout that completed belongs to the active production
		// release, which is done now
		if active, err := c.productionReleaseRepository.GetActiveForRun(tx, run.ID); err != nil {
			return err
		} else if active != nil {
			if err := active.TransitionTo(models.ProductionReleaseStatusFinished); err != nil {
				return err
			}
			if err := c.productionReleaseRepository.Save(tx, active); err != nil {
				return err
			}
		}

		if err := run.TransitionTo(models.PlatformRunStatusConcluded); err != nil {
			return err
		}
		run.CompletedAt = shared.Ptr(time.Now())
		if err := c.platformRunRepository.Save(tx, &run); err != nil {
			return err
		}

		runs, err := c.platformRunRepository.GetByRelease(tx, release.ID)
		if err != nil {
			return err
		}
		allDone := true
		for _, other := range runs {
			if other.Status == models.PlatformRunStatusStopped || other.Status == models.PlatformRunStatusConcluded || other.Status == models.PlatformRunStatusFinished {
				continue
			}
			allDone = false
		}

		if allDone {
			if err := release.TransitionTo(models.ReleaseStatusPostReleaseStarted); err != nil {
				return err
			}
			finalize = true
		} else if release.Status == models.ReleaseStatusOnTrack {
			if err := release.TransitionTo(models.ReleaseStatusPartiallyFinished); err != nil {
				return err
			}
			if err := advanceTrainVersion(tx, c.trainRepository, release); err != nil {
				return err
			}
		}
		if err := c.releaseRepository.Save(tx, &release); err != nil {
			return err
		}

		if err := stamp(c.eventRepository, tx, models.StampablePlatformRun, run.ID, "platform_run_concluded", models.EventKindSuccess,
			fmt.Sprintf("%s pipeline concluded for version %s", run.Platform, run.ReleaseVersion), nil); err != nil {
			return err
		}

		train, err := c.trainRepository.Read(release.TrainID)
		if err != nil {
			return err
		}
		channel := train.NotificationChannel
		platform := run.Platform
		version := run.ReleaseVersion
		fups = append(fups, func() {
			c.cache.ThawPlatformRun(runID)
			c.notify.Notify(channel, fmt.Sprintf("%s release %s concluded", platform, version), map[string]any{
				"releaseId": release.ID.String(),
			})
		})
		return nil
	})
	if err != nil {
		return err
	}

	fups.run()
	if finalize {
		// finalization takes its own locks, strictly after this commit
		if err := c.finalizer.FinalizeRelease(releaseID, false); err != nil {
			slog.Error("could not finalize release", "releaseId", releaseID, "err", err)
		}
	}
	return nil
}
