// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
)

// FinalizeReleaseCoordinator runs the post-release phase: it validates
// nothing is left hanging, performs the branching-strategy VCS work, and
// closes the release out.
type FinalizeReleaseCoordinator struct {
	trainRepository       shared.TrainRepository
	releaseRepository     shared.ReleaseRepository
	platformRunRepository shared.ReleasePlatformRunRepository
	commitRepository      shared.CommitRepository
	pullRequestRepository shared.PullRequestRepository
	eventRepository       shared.ReleaseEventRepository
	vcs                   shared.VCSProvider
	notify                shared.NotificationSink
	cache                 BreakdownCache
}

func NewFinalizeReleaseCoordinator(
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	commitRepository shared.CommitRepository,
	pullRequestRepository shared.PullRequestRepository,
	eventRepository shared.ReleaseEventRepository,
	vcs shared.VCSProvider,
	notify shared.NotificationSink,
	cache BreakdownCache,
) *FinalizeReleaseCoordinator {
	return &FinalizeReleaseCoordinator{
		trainRepository:       trainRepository,
		releaseRepository:     releaseRepository,
		platformRunRepository: platformRunRepository,
		commitRepository:      commitRepository,
		pullRequestRepository: pullRequestRepository,
		eventRepository:       eventRepository,
		vcs:                   vcs,
		notify:                notify,
		cache:                 cache,
	}
}

// blockers returns what prevents finalization: open automatic pull
// requests and commits whose mid-release backmerge failed.
func (c *FinalizeReleaseCoordinator) blockers(tx shared.DB, release models.Release) ([]string, error) {
	var blockers []string
	open, err := c.pullRequestRepository.ListOpenAutomatic(tx, release.ID)
	if err != nil {
		return nil, err
	}
	for _, pr := range open {
		blockers = append(blockers, fmt.Sprintf("open pull request #%d (%s)", pr.Number, pr.Kind))
	}
	unmerged, err := c.commitRepository.ListBackmergeFailures(release.ID)
	if err != nil {
		return nil, err
	}
	for _, commit := range unmerged {
		blockers = append(blockers, fmt.Sprintf("unmerged commit %s", commit.ShortHash()))
	}
	return blockers, nil
}

// FinalizeRelease drives a release from post_release_started to finished.
// Blocked finalization is recorded as post_release_failed, not raised, so
// the caller can surface it and retry with force once resolved.
func (c *FinalizeReleaseCoordinator) FinalizeRelease(releaseID uuid.UUID, force bool) error {
	var (
		release models.Release
		train   models.Train
		blocked bool
	)
	// phase one: validate under the release lock
	err := c.releaseRepository.Transaction(func(tx shared.DB) error {
		var err error
		release, err = c.releaseRepository.ReadForUpdate(tx, releaseID)
		if err != nil {
			return err
		}
		switch release.Status {
		case models.ReleaseStatusPostReleaseStarted:
		case models.ReleaseStatusPostReleaseFailed:
			// retry path
			if err := release.TransitionTo(models.ReleaseStatusPostReleaseStarted); err != nil {
				return err
			}
		default:
			return ErrNotFinalizing
		}

		train, err = c.trainRepository.Read(release.TrainID)
		if err != nil {
			return err
		}

		blockers, err := c.blockers(tx, release)
		if err != nil {
			return err
		}
		if len(blockers) > 0 && !force {
			blocked = true
			if err := release.TransitionTo(models.ReleaseStatusPostReleaseFailed); err != nil {
				return err
			}
			if err := stamp(c.eventRepository, tx, models.StampableRelease, release.ID, "post_release_blocked", models.EventKindNotice,
				fmt.Sprintf("finalization is blocked: %v", blockers), nil); err != nil {
				return err
			}
		}
		return c.releaseRepository.Save(tx, &release)
	})
	if err != nil {
		return err
	}
	if blocked {
		slog.Info("release finalization blocked", "releaseId", releaseID)
		return nil
	}

	// phase two: branching-strategy VCS work, no lock held
	handler := PostReleaseHandlerFor(c.vcs, train.BranchingStrategy)
	result, err := handler.Run(context.Background(), train, release)
	if err != nil {
		monitoring.Alert("post-release handling failed", err)
		return c.recordPostReleaseFailure(releaseID, err)
	}

	// phase three: re-lock and close the release out
	fups := followUps{}
	err = c.releaseRepository.Transaction(func(tx shared.DB) error {
		release, err := c.releaseRepository.ReadForUpdate(tx, releaseID)
		if err != nil {
			return err
		}
		if release.Status != models.ReleaseStatusPostReleaseStarted {
			slog.Info("release moved while post-release work ran", "releaseId", releaseID, "status", release.Status)
			return nil
		}

		release.Tag = result.Tag
		for i := range result.PullRequests {
			pr := result.PullRequests[i]
			if pr.State == models.PullRequestStateMerged {
				pr.MergedAt = shared.Ptr(time.Now())
			}
			if err := c.pullRequestRepository.Create(tx, &pr); err != nil {
				return err
			}
		}

		if err := release.TransitionTo(models.ReleaseStatusFinished); err != nil {
			return err
		}
		release.CompletedAt = shared.Ptr(time.Now())
		if err := c.releaseRepository.Save(tx, &release); err != nil {
			return err
		}

		runs, err := c.platformRunRepository.GetByRelease(tx, release.ID)
		if err != nil {
			return err
		}
		for i := range runs {
			if runs[i].Status != models.PlatformRunStatusConcluded {
				continue
			}
			if err := runs[i].TransitionTo(models.PlatformRunStatusFinished); err != nil {
				return err
			}
			if err := c.platformRunRepository.Save(tx, &runs[i]); err != nil {
				return err
			}
		}

		if err := advanceTrainVersion(tx, c.trainRepository, release); err != nil {
			return err
		}

		if err := stamp(c.eventRepository, tx, models.StampableRelease, release.ID, "release_finished", models.EventKindSuccess,
			fmt.Sprintf("release %s finished, tagged %s", release.ReleaseVersion, result.Tag), nil); err != nil {
			return err
		}

		channel := train.NotificationChannel
		version := release.ReleaseVersion
		releaseType := string(release.ReleaseType)
		fups = append(fups, func() {
			monitoring.ReleasesFinished.WithLabelValues(releaseType).Inc()
			c.cache.ThawRelease(releaseID)
			c.notify.Notify(channel, fmt.Sprintf("release %s finished", version), map[string]any{
				"releaseId": releaseID.String(),
				"tag":       result.Tag,
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

func (c *FinalizeReleaseCoordinator) recordPostReleaseFailure(releaseID uuid.UUID, cause error) error {
	return c.releaseRepository.Transaction(func(tx shared.DB) error {
		release, err := c.releaseRepository.ReadForUpdate(tx, releaseID)
		if err != nil {
			return err
		}
		if release.Status != models.ReleaseStatusPostReleaseStarted {
			return nil
		}
		if err := release.TransitionTo(models.ReleaseStatusPostReleaseFailed); err != nil {
			return err
		}
		if err := c.releaseRepository.Save(tx, &release); err != nil {
			return err
		}
		return stamp(c.eventRepository, tx, models.StampableRelease, release.ID, "post_release_failed", models.EventKindError,
			cause.Error(), nil)
	})
}
