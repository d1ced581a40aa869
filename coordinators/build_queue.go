// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
	"gorm.io/gorm"
)

// BuildQueueCoordinator batches incoming commits and periodically applies
// the head of the batch as a single release step.
type BuildQueueCoordinator struct {
	buildQueueRepository shared.BuildQueueRepository
	commitRepository     shared.CommitRepository
	releaseRepository    shared.ReleaseRepository
	trainRepository      shared.TrainRepository
	eventRepository      shared.ReleaseEventRepository
	applyCommit          *ApplyCommitCoordinator
}

func NewBuildQueueCoordinator(
	buildQueueRepository shared.BuildQueueRepository,
	commitRepository shared.CommitRepository,
	releaseRepository shared.ReleaseRepository,
	trainRepository shared.TrainRepository,
	eventRepository shared.ReleaseEventRepository,
	applyCommit *ApplyCommitCoordinator,
) *BuildQueueCoordinator {
	return &BuildQueueCoordinator{
		buildQueueRepository: buildQueueRepository,
		commitRepository:     commitRepository,
		releaseRepository:    releaseRepository,
		trainRepository:      trainRepository,
		eventRepository:      eventRepository,
		applyCommit:          applyCommit,
	}
}

// enqueue attaches the commit to the release's active queue, creating the
// queue on first use. Runs inside the caller's transaction with the release
// lock held.
func (c *BuildQueueCoordinator) enqueue(tx shared.DB, train models.Train, release models.Release, commit *models.Commit) (models.BuildQueue, error) {
	queue, err := c.buildQueueRepository.GetActiveForRelease(tx, release.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		queue = models.BuildQueue{
			ReleaseID:   release.ID,
			ScheduledAt: time.Now().Add(train.BuildQueueWaitTime),
			IsActive:    true,
		}
		if err := c.buildQueueRepository.Create(tx, &queue); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return models.BuildQueue{}, ErrQueueAlreadyActive
			}
			return models.BuildQueue{}, err
		}
	} else if err != nil {
		return models.BuildQueue{}, err
	}

	commit.BuildQueueID = &queue.ID
	if err := c.commitRepository.Save(tx, commit); err != nil {
		return models.BuildQueue{}, err
	}
	return queue, nil
}

// QueueFull reports whether the queue reached the train's batch size.
func (c *BuildQueueCoordinator) QueueFull(tx shared.DB, train models.Train, queue models.BuildQueue) (bool, error) {
	if train.BuildQueueSize <= 0 {
		return false, nil
	}
	commits, err := c.commitRepository.ListByQueue(tx, queue.ID)
	if err != nil {
		return false, err
	}
	return len(commits) >= train.BuildQueueSize, nil
}

// ApplyBuildQueue drains the queue: the newest commit becomes the next
// release step, everything older is recorded but skipped. The queue rotates
// in the same transaction so no incoming commit ever finds the release
// without an active queue.
func (c *BuildQueueCoordinator) ApplyBuildQueue(queueID uuid.UUID) error {
	// resolve the release id before taking any lock
	unlocked, err := c.buildQueueRepository.Read(queueID)
	if err != nil {
		return err
	}

	fups := followUps{}
	err = c.buildQueueRepository.Transaction(func(tx shared.DB) error {
		// lock order: release first, then queue
		release, err := c.releaseRepository.ReadForUpdate(tx, unlocked.ReleaseID)
		if err != nil {
			return err
		}
		queue, err := c.buildQueueRepository.ReadForUpdate(tx, queueID)
		if err != nil {
			return err
		}
		if !queue.IsActive {
			return ErrQueueInactive
		}
		if !release.Committable() {
			return ErrReleaseNotCommittable
		}

		train, err := c.trainRepository.Read(release.TrainID)
		if err != nil {
			return err
		}

		commits, err := c.commitRepository.ListByQueue(tx, queue.ID)
		if err != nil {
			return err
		}

		if len(commits) > 0 {
			head := commits[0]
			for _, candidate := range commits[1:] {
				if candidate.Timestamp.After(head.Timestamp) {
					head = candidate
				}
			}
			for i := range commits {
				commits[i].BuildQueueID = nil
				if err := c.commitRepository.Save(tx, &commits[i]); err != nil {
					return err
				}
			}
			stepFups, err := c.applyCommit.ApplyCommit(tx, train, release, head)
			if err != nil {
				return err
			}
			fups = append(fups, stepFups...)

			if err := stamp(c.eventRepository, tx, models.StampableBuildQueue, queue.ID, "build_queue_applied", models.EventKindSuccess,
				fmt.Sprintf("applied head commit %s, skipped %d older commits", head.ShortHash(), len(commits)-1), nil); err != nil {
				return err
			}
		}

		queue.IsActive = false
		queue.AppliedAt = shared.Ptr(time.Now())
		if err := c.buildQueueRepository.Save(tx, &queue); err != nil {
			return err
		}

		if train.QueueingEnabled() {
			next := models.BuildQueue{
				ReleaseID:   release.ID,
				ScheduledAt: time.Now().Add(train.BuildQueueWaitTime),
				IsActive:    true,
			}
			if err := c.buildQueueRepository.Create(tx, &next); err != nil {
				if errors.Is(err, shared.ErrAlreadyExists) {
					return ErrQueueAlreadyActive
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	monitoring.BuildQueueApplies.Inc()
	fups.run()
	return nil
}
