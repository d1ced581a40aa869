// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

// ProcessCommitsCoordinator is the single entry point for commits landing
// on a release branch, whether they arrive one at a time via webhook or as
// a batch from a push.
type ProcessCommitsCoordinator struct {
	trainRepository       shared.TrainRepository
	releaseRepository     shared.ReleaseRepository
	platformRunRepository shared.ReleasePlatformRunRepository
	commitRepository      shared.CommitRepository
	pullRequestRepository shared.PullRequestRepository
	eventRepository       shared.ReleaseEventRepository
	vcs                   shared.VCSProvider
	notify                shared.NotificationSink
	applyCommit           *ApplyCommitCoordinator
	buildQueue            *BuildQueueCoordinator
}

func NewProcessCommitsCoordinator(
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	commitRepository shared.CommitRepository,
	pullRequestRepository shared.PullRequestRepository,
	eventRepository shared.ReleaseEventRepository,
	vcs shared.VCSProvider,
	notify shared.NotificationSink,
	applyCommit *ApplyCommitCoordinator,
	buildQueue *BuildQueueCoordinator,
) *ProcessCommitsCoordinator {
	return &ProcessCommitsCoordinator{
		trainRepository:       trainRepository,
		releaseRepository:     releaseRepository,
		platformRunRepository: platformRunRepository,
		commitRepository:      commitRepository,
		pullRequestRepository: pullRequestRepository,
		eventRepository:       eventRepository,
		vcs:                   vcs,
		notify:                notify,
		applyCommit:           applyCommit,
		buildQueue:            buildQueue,
	}
}

// backfillAncestry fills missing parent hashes from the VCS. One CommitLog
// range query covers the whole batch, per-commit lookups catch whatever the
// range did not return. This happens before any lock is taken; a failure
// only degrades diff queries.
func (c *ProcessCommitsCoordinator) backfillAncestry(ctx context.Context, incoming []shared.VCSCommit) {
	missing := 0
	for i := range incoming {
		if len(incoming[i].Parents) == 0 {
			missing++
		}
	}
	if missing == 0 {
		return
	}

	oldest, newest := 0, 0
	for i := range incoming {
		if incoming[i].Timestamp.Before(incoming[oldest].Timestamp) {
			oldest = i
		}
		if incoming[i].Timestamp.After(incoming[newest].Timestamp) {
			newest = i
		}
	}
	parents := map[string][]string{}
	logged, err := c.vcs.CommitLog(ctx, incoming[oldest].Hash, incoming[newest].Hash)
	if err != nil {
		slog.Warn("could not read commit log for ancestry backfill", "from", incoming[oldest].Hash, "to", incoming[newest].Hash, "err", err)
	} else {
		for _, lc := range logged {
			parents[lc.Hash] = lc.Parents
		}
	}

	for i := range incoming {
		if len(incoming[i].Parents) > 0 {
			continue
		}
		if p, ok := parents[incoming[i].Hash]; ok && len(p) > 0 {
			incoming[i].Parents = p
			continue
		}
		fetched, err := c.vcs.GetCommit(ctx, incoming[i].Hash)
		if err != nil {
			slog.Warn("could not backfill commit ancestry", "hash", incoming[i].Hash, "err", err)
			continue
		}
		incoming[i].Parents = fetched.Parents
	}
}

func commitFromVCS(releaseID uuid.UUID, vc shared.VCSCommit) models.Commit {
	return models.Commit{
		ReleaseID:   releaseID,
		CommitHash:  vc.Hash,
		Message:     vc.Message,
		Timestamp:   vc.Timestamp,
		AuthorName:  vc.AuthorName,
		AuthorEmail: vc.AuthorEmail,
		AuthorLogin: vc.AuthorLogin,
		URL:         vc.URL,
		Parents:     vc.Parents,
	}
}

// recordCommit persists the commit unless the release already knows the
// hash. Returns the stored row and whether it is new.
func (c *ProcessCommitsCoordinator) recordCommit(tx shared.DB, releaseID uuid.UUID, vc shared.VCSCommit) (models.Commit, bool, error) {
	existing, err := c.commitRepository.FindByReleaseAndHash(tx, releaseID, vc.Hash)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Commit{}, false, err
	}
	commit := commitFromVCS(releaseID, vc)
	if err := c.commitRepository.Create(tx, &commit); err != nil {
		return models.Commit{}, false, err
	}
	return commit, true, nil
}

// closePreReleasePRs marks open pre-release pull requests closed and
// returns follow-ups performing the VCS close calls after commit.
func (c *ProcessCommitsCoordinator) closePreReleasePRs(tx shared.DB, release models.Release) (followUps, error) {
	open, err := c.pullRequestRepository.ListOpenByPhase(tx, release.ID, models.PullRequestPhasePreRelease)
	if err != nil {
		return nil, err
	}
	fups := followUps{}
	for i := range open {
		pr := open[i]
		pr.State = models.PullRequestStateClosed
		pr.ClosedAt = shared.Ptr(time.Now())
		if err := c.pullRequestRepository.Save(tx, &pr); err != nil {
			return nil, err
		}
		number := pr.Number
		fups = append(fups, func() {
			if err := c.vcs.ClosePullRequest(context.Background(), number); err != nil {
				slog.Error("could not close pre-release pull request", "number", number, "err", err)
			}
		})
	}
	return fups, nil
}

// ProcessCommits records the batch, moves a freshly created release on
// track, and drives the head commit into the next release step, directly
// or through the build queue.
func (c *ProcessCommitsCoordinator) ProcessCommits(ctx context.Context, releaseID uuid.UUID, incoming []shared.VCSCommit) error {
	if len(incoming) == 0 {
		return nil
	}

	c.backfillAncestry(ctx, incoming)
	sort.SliceStable(incoming, func(i, j int) bool {
		return incoming[i].Timestamp.Before(incoming[j].Timestamp)
	})
	head := incoming[len(incoming)-1]
	// the head must sort strictly after the rest of the batch even when
	// the VCS only delivers second precision
	if len(incoming) > 1 && !head.Timestamp.After(incoming[len(incoming)-2].Timestamp) {
		head.Timestamp = head.Timestamp.Add(time.Millisecond)
	}

	fups := followUps{}
	var applyQueueID *uuid.UUID
	err := c.releaseRepository.Transaction(func(tx shared.DB) error {
		release, err := c.releaseRepository.ReadForUpdate(tx, releaseID)
		if err != nil {
			return err
		}
		if !release.Committable() {
			slog.Info("ignoring commits for non-committable release", "releaseId", release.ID, "status", release.Status)
			return nil
		}

		train, err := c.trainRepository.Read(release.TrainID)
		if err != nil {
			return err
		}

		// first commit activity moves the release and its runs on track
		if release.Status == models.ReleaseStatusCreated {
			if err := release.TransitionTo(models.ReleaseStatusOnTrack); err != nil {
				return err
			}
			runs, err := c.platformRunRepository.GetByRelease(tx, release.ID)
			if err != nil {
				return err
			}
			for i := range runs {
				if runs[i].Status != models.PlatformRunStatusCreated {
					continue
				}
				if err := runs[i].TransitionTo(models.PlatformRunStatusOnTrack); err != nil {
					return err
				}
				if err := c.platformRunRepository.Save(tx, &runs[i]); err != nil {
					return err
				}
			}
		}

		prFups, err := c.closePreReleasePRs(tx, release)
		if err != nil {
			return err
		}
		fups = append(fups, prFups...)

		newCount := 0
		for _, vc := range incoming[:len(incoming)-1] {
			commit, created, err := c.recordCommit(tx, release.ID, vc)
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			newCount++
			if train.QueueingEnabled() {
				if _, err := c.buildQueue.enqueue(tx, train, release, &commit); err != nil {
					return err
				}
			}
		}

		headCommit, created, err := c.recordCommit(tx, release.ID, head)
		if err != nil {
			return err
		}
		if created {
			newCount++
		}

		if train.QueueingEnabled() {
			queue, err := c.buildQueue.enqueue(tx, train, release, &headCommit)
			if err != nil {
				return err
			}
			full, err := c.buildQueue.QueueFull(tx, train, queue)
			if err != nil {
				return err
			}
			if full {
				applyQueueID = shared.Ptr(queue.ID)
			}
		} else {
			stepFups, err := c.applyCommit.ApplyCommit(tx, train, release, headCommit)
			if err != nil {
				return err
			}
			fups = append(fups, stepFups...)
		}

		if !release.NotificationsSent {
			release.NotificationsSent = true
			channel := train.NotificationChannel
			version := release.ReleaseVersion
			fups = append(fups, func() {
				c.notify.Notify(channel, fmt.Sprintf("release %s received its first commits", version), map[string]any{
					"releaseId": releaseID.String(),
					"headHash":  head.Hash,
				})
			})
		}
		if err := c.releaseRepository.Save(tx, &release); err != nil {
			return err
		}

		if err := stamp(c.eventRepository, tx, models.StampableRelease, release.ID, "commits_processed", models.EventKindSuccess,
			fmt.Sprintf("processed %d commits, head %s", len(incoming), headCommit.ShortHash()), map[string]any{"new": newCount}); err != nil {
			return err
		}
		monitoring.CommitsProcessed.Add(float64(newCount))
		return nil
	})
	if err != nil {
		return err
	}

	fups.run()
	// a full queue drains immediately, with its own locking round
	if applyQueueID != nil {
		if err := c.buildQueue.ApplyBuildQueue(*applyQueueID); err != nil && !errors.Is(err, ErrQueueInactive) {
			return err
		}
	}
	return nil
}
