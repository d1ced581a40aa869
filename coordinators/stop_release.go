// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

// StopReleaseCoordinator aborts a release and everything under it.
type StopReleaseCoordinator struct {
	trainRepository       shared.TrainRepository
	releaseRepository     shared.ReleaseRepository
	platformRunRepository shared.ReleasePlatformRunRepository
	eventRepository       shared.ReleaseEventRepository
	notify                shared.NotificationSink
	cache                 BreakdownCache
}

func NewStopReleaseCoordinator(
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	eventRepository shared.ReleaseEventRepository,
	notify shared.NotificationSink,
	cache BreakdownCache,
) *StopReleaseCoordinator {
	return &StopReleaseCoordinator{
		trainRepository:       trainRepository,
		releaseRepository:     releaseRepository,
		platformRunRepository: platformRunRepository,
		eventRepository:       eventRepository,
		notify:                notify,
		cache:                 cache,
	}
}

// rollbackTrainVersion undoes the version advance of a partially finished
// release that is being stopped. The train falls back to the last finished
// release's version.
func (c *StopReleaseCoordinator) rollbackTrainVersion(tx shared.DB, release models.Release) error {
	train, err := c.trainRepository.ReadForUpdate(tx, release.TrainID)
	if err != nil {
		return err
	}
	if train.CurrentVersion != release.ReleaseVersion {
		return nil
	}
	last, err := c.releaseRepository.GetLastFinished(train.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Warn("no finished release to roll the train version back to", "trainId", train.ID)
			return nil
		}
		return err
	}
	train.CurrentVersion = last.ReleaseVersion
	return c.trainRepository.Save(tx, &train)
}

// StopRelease stops the release and all of its platform runs. Stopping a
// partially finished release also rolls the train version back.
func (c *StopReleaseCoordinator) StopRelease(releaseID uuid.UUID) error {
	fups := followUps{}
	err := c.releaseRepository.Transaction(func(tx shared.DB) error {
		release, err := c.releaseRepository.ReadForUpdate(tx, releaseID)
		if err != nil {
			return err
		}
		wasPartiallyFinished := release.Status == models.ReleaseStatusPartiallyFinished
		if err := release.TransitionTo(models.ReleaseStatusStopped); err != nil {
			return err
		}
		release.StoppedAt = shared.Ptr(time.Now())
		if err := c.releaseRepository.Save(tx, &release); err != nil {
			return err
		}

		runs, err := c.platformRunRepository.GetByRelease(tx, release.ID)
		if err != nil {
			return err
		}
		for i := range runs {
			if runs[i].Terminal() {
				continue
			}
			if err := runs[i].TransitionTo(models.PlatformRunStatusStopped); err != nil {
				return err
			}
			runs[i].StoppedAt = shared.Ptr(time.Now())
			if err := c.platformRunRepository.Save(tx, &runs[i]); err != nil {
				return err
			}
		}

		if wasPartiallyFinished {
			if err := c.rollbackTrainVersion(tx, release); err != nil {
				return err
			}
		}

		if err := stamp(c.eventRepository, tx, models.StampableRelease, release.ID, "release_stopped", models.EventKindNotice,
			fmt.Sprintf("release %s was stopped", release.ReleaseVersion), nil); err != nil {
			return err
		}

		train, err := c.trainRepository.Read(release.TrainID)
		if err != nil {
			return err
		}
		channel := train.NotificationChannel
		version := release.ReleaseVersion
		fups = append(fups, func() {
			c.cache.ThawRelease(releaseID)
			c.notify.Notify(channel, fmt.Sprintf("release %s stopped", version), map[string]any{
				"releaseId": releaseID.String(),
			})
		})
		return nil
	})
	if err != nil {
		return err
	}

	fups.run()
	return nil
}
