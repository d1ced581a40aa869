// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package daemons runs the periodic background work: draining due build
// queues, advancing automatic rollouts, kicking off scheduled trains and
// warming the derived-metrics cache.
package daemons

import (
	"context"
	"log/slog"
	"time"

	"github.com/l3montree-dev/railguard/coordinators"
	"github.com/l3montree-dev/railguard/metrics"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
)

const tickInterval = time.Minute

// DaemonRunner encapsulates daemon dependencies and lifecycle.
type DaemonRunner struct {
	trainRepository        shared.TrainRepository
	releaseRepository      shared.ReleaseRepository
	buildQueueRepository   shared.BuildQueueRepository
	commitRepository       shared.CommitRepository
	storeRolloutRepository shared.StoreRolloutRepository
	buildQueue             *coordinators.BuildQueueCoordinator
	rollouts               *coordinators.StoreRolloutCoordinator
	startRelease           *coordinators.StartReleaseCoordinator
	cache                  *metrics.Cache

	stop chan struct{}
}

func NewDaemonRunner(
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	buildQueueRepository shared.BuildQueueRepository,
	commitRepository shared.CommitRepository,
	storeRolloutRepository shared.StoreRolloutRepository,
	buildQueue *coordinators.BuildQueueCoordinator,
	rollouts *coordinators.StoreRolloutCoordinator,
	startRelease *coordinators.StartReleaseCoordinator,
	cache *metrics.Cache,
) *DaemonRunner {
	return &DaemonRunner{
		trainRepository:        trainRepository,
		releaseRepository:      releaseRepository,
		buildQueueRepository:   buildQueueRepository,
		commitRepository:       commitRepository,
		storeRolloutRepository: storeRolloutRepository,
		buildQueue:             buildQueue,
		rollouts:               rollouts,
		startRelease:           startRelease,
		cache:                  cache,
		stop:                   make(chan struct{}),
	}
}

// Start launches the background loop.
func (runner *DaemonRunner) Start() {
	go func() {
		runner.tick()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runner.tick()
			case <-runner.stop:
				return
			}
		}
	}()
}

func (runner *DaemonRunner) Stop() {
	close(runner.stop)
}

func (runner *DaemonRunner) tick() {
	runner.stage("build_queues", runner.applyDueBuildQueues)
	runner.stage("rollouts", runner.advanceDueRollouts)
	runner.stage("kickoffs", runner.kickoffScheduledTrains)
	runner.stage("breakdowns", runner.warmBreakdowns)
}

func (runner *DaemonRunner) stage(name string, fn func() error) {
	start := time.Now()
	defer func() {
		monitoring.DaemonStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	if err := fn(); err != nil {
		slog.Error("daemon stage failed", "stage", name, "err", err)
	}
}

// applyDueBuildQueues drains every active queue whose wait time elapsed or
// whose batch size is reached.
func (runner *DaemonRunner) applyDueBuildQueues() error {
	queues, err := runner.buildQueueRepository.ListActive()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, queue := range queues {
		commits, err := runner.commitRepository.ListByQueue(nil, queue.ID)
		if err != nil {
			slog.Error("could not list queued commits", "queueId", queue.ID, "err", err)
			continue
		}
		if len(commits) == 0 {
			continue
		}

		due := queue.Due(now)
		if !due {
			release, err := runner.releaseRepository.Read(queue.ReleaseID)
			if err != nil {
				slog.Error("could not read release for queue", "queueId", queue.ID, "err", err)
				continue
			}
			train, err := runner.trainRepository.Read(release.TrainID)
			if err != nil {
				slog.Error("could not read train for queue", "queueId", queue.ID, "err", err)
				continue
			}
			due = train.BuildQueueSize > 0 && len(commits) >= train.BuildQueueSize
		}
		if !due {
			continue
		}
		if err := runner.buildQueue.ApplyBuildQueue(queue.ID); err != nil {
			slog.Error("could not apply build queue", "queueId", queue.ID, "err", err)
		}
	}
	return nil
}

// advanceDueRollouts moves automatic staged rollouts whose interval
// elapsed. The expected stage pins each advance to the state the rollout
// had when it was listed.
func (runner *DaemonRunner) advanceDueRollouts() error {
	now := time.Now()
	due, err := runner.storeRolloutRepository.ListDueAutomatic(now)
	if err != nil {
		return err
	}
	for _, rollout := range due {
		if err := runner.rollouts.AdvanceIfDue(rollout.ID, rollout.CurrentStage, now); err != nil {
			slog.Error("could not advance automatic rollout", "rolloutId", rollout.ID, "err", err)
		}
	}
	return nil
}

// kickoffScheduledTrains starts releases for trains whose kickoff time
// passed and reschedules them.
func (runner *DaemonRunner) kickoffScheduledTrains() error {
	now := time.Now()
	trains, err := runner.trainRepository.ListDueForKickoff(now)
	if err != nil {
		return err
	}
	for _, train := range trains {
		_, err := runner.startRelease.StartRelease(context.Background(), train.ID, coordinators.StartReleaseOptions{Automatic: true})
		if err != nil {
			// an ongoing release is expected when the previous one is
			// still running, everything else is worth a log line
			slog.Warn("scheduled kickoff did not start a release", "trainId", train.ID, "err", err)
		}

		if train.RepeatDuration == nil || *train.RepeatDuration <= 0 {
			train.KickoffAt = nil
		} else {
			next := train.KickoffAt.Add(*train.RepeatDuration)
			for !next.After(now) {
				next = next.Add(*train.RepeatDuration)
			}
			train.KickoffAt = &next
		}
		if err := runner.trainRepository.Save(nil, &train); err != nil {
			slog.Error("could not reschedule train kickoff", "trainId", train.ID, "err", err)
		}
	}
	return nil
}

// warmBreakdowns precomputes breakdowns for releases finished in the last
// day so dashboard reads stay cheap.
func (runner *DaemonRunner) warmBreakdowns() error {
	finished, err := runner.releaseRepository.ListFinishedSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return err
	}
	for _, release := range finished {
		runner.cache.Warm(release.ID)
	}
	return nil
}
