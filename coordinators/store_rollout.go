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

// StoreRolloutCoordinator advances, pauses and halts staged store
// rollouts. A completed rollout concludes its platform run.
type StoreRolloutCoordinator struct {
	platformRunRepository       shared.ReleasePlatformRunRepository
	storeRolloutRepository      shared.StoreRolloutRepository
	storeSubmissionRepository   shared.StoreSubmissionRepository
	productionReleaseRepository shared.ProductionReleaseRepository
	eventRepository             shared.ReleaseEventRepository
	stores                      shared.StoreProviderRegistry
	lifecycle                   *ReleaseLifecycleCoordinator
}

func NewStoreRolloutCoordinator(
	platformRunRepository shared.ReleasePlatformRunRepository,
	storeRolloutRepository shared.StoreRolloutRepository,
	storeSubmissionRepository shared.StoreSubmissionRepository,
	productionReleaseRepository shared.ProductionReleaseRepository,
	eventRepository shared.ReleaseEventRepository,
	stores shared.StoreProviderRegistry,
	lifecycle *ReleaseLifecycleCoordinator,
) *StoreRolloutCoordinator {
	return &StoreRolloutCoordinator{
		platformRunRepository:       platformRunRepository,
		storeRolloutRepository:      storeRolloutRepository,
		storeSubmissionRepository:   storeSubmissionRepository,
		productionReleaseRepository: productionReleaseRepository,
		eventRepository:             eventRepository,
		stores:                      stores,
		lifecycle:                   lifecycle,
	}
}

// actionable verifies the rollout still belongs to a live production
// release on a live platform run.
func (c *StoreRolloutCoordinator) actionable(tx shared.DB, run models.ReleasePlatformRun, rollout models.StoreRollout) (bool, error) {
	if !run.OnTrack() {
		return false, nil
	}
	submission, err := c.storeSubmissionRepository.Read(rollout.StoreSubmissionID)
	if err != nil {
		return false, err
	}
	if submission.ParentReleaseType != models.ParentReleaseProduction {
		return true, nil
	}
	production, err := c.productionReleaseRepository.Read(submission.ParentReleaseID)
	if err != nil {
		return false, err
	}
	return production.Actionable(), nil
}

type rolloutMutation struct {
	stamp     string
	kind      models.EventKind
	message   string
	followUps followUps
	conclude  bool
}

// mutate locks the platform run and rollout in order and applies fn. The
// conclude step and store calls run after commit.
func (c *StoreRolloutCoordinator) mutate(rolloutID uuid.UUID, fn func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error)) error {
	unlocked, err := c.storeRolloutRepository.Read(rolloutID)
	if err != nil {
		return err
	}

	var mutation rolloutMutation
	var runID uuid.UUID
	err = c.storeRolloutRepository.Transaction(func(tx shared.DB) error {
		run, err := c.platformRunRepository.ReadForUpdate(tx, unlocked.ReleasePlatformRunID)
		if err != nil {
			return err
		}
		runID = run.ID
		rollout, err := c.storeRolloutRepository.ReadForUpdate(tx, rolloutID)
		if err != nil {
			return err
		}
		mutation, err = fn(tx, run, &rollout)
		if err != nil {
			return err
		}
		if err := c.storeRolloutRepository.Save(tx, &rollout); err != nil {
			return err
		}
		if mutation.stamp == "" {
			return nil
		}
		return stamp(c.eventRepository, tx, models.StampableStoreRollout, rollout.ID, mutation.stamp, mutation.kind, mutation.message, nil)
	})
	if err != nil {
		return err
	}

	mutation.followUps.run()
	if mutation.conclude {
		if err := c.lifecycle.ConcludePlatformRun(runID); err != nil {
			slog.Error("could not conclude platform run after rollout completion", "platformRunId", runID, "err", err)
		}
	}
	return nil
}

// advance moves the rollout one stage forward. The last stage completes
// the rollout and concludes the platform run.
func (c *StoreRolloutCoordinator) advance(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout, trigger string) (rolloutMutation, error) {
	ok, err := c.actionable(tx, run, *rollout)
	if err != nil {
		return rolloutMutation{}, err
	}
	if !ok {
		return rolloutMutation{}, ErrRolloutNotActionable
	}
	if rollout.Status != models.RolloutStatusStarted {
		return rolloutMutation{}, ErrRolloutNotStarted
	}
	// a non-staged rollout starts at its only stage and has nowhere to go
	if !rollout.MayIncrease() {
		return rolloutMutation{}, ErrRolloutAtFinalStage
	}

	rollout.CurrentStage++
	percentage := rollout.CurrentPercentage()
	mutation := rolloutMutation{
		stamp:   "rollout_advanced",
		kind:    models.EventKindSuccess,
		message: fmt.Sprintf("rollout advanced to stage %d (%.2f%%)", rollout.CurrentStage, percentage),
	}

	if rollout.LastStage() {
		if err := rollout.TransitionTo(models.RolloutStatusCompleted); err != nil {
			return rolloutMutation{}, err
		}
		rollout.CompletedAt = shared.Ptr(time.Now())
		rollout.AutomaticRolloutNextUpdateAt = nil
		mutation.conclude = true
	} else if rollout.AutomaticRollout && rollout.AutomaticRolloutInterval > 0 {
		rollout.AutomaticRolloutNextUpdateAt = shared.Ptr(time.Now().Add(rollout.AutomaticRolloutInterval))
	}

	snapshot := *rollout
	mutation.followUps = followUps{func() {
		provider := c.stores.For(snapshot.Store)
		if err := provider.SetRolloutStage(context.Background(), snapshot, percentage); err != nil {
			slog.Error("could not set store rollout stage", "rolloutId", snapshot.ID, "err", err)
			monitoring.Alert("store rollout stage update failed", err)
			return
		}
		monitoring.RolloutAdvances.WithLabelValues(trigger).Inc()
	}}
	return mutation, nil
}

// Increase advances the rollout by one stage on explicit request.
func (c *StoreRolloutCoordinator) Increase(rolloutID uuid.UUID) error {
	return c.mutate(rolloutID, func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error) {
		return c.advance(tx, run, rollout, "manual")
	})
}

// AdvanceIfDue is the daemon entry point. The expected stage makes stale
// daemon calls harmless: a rollout that moved since the daemon listed it
// is silently skipped.
func (c *StoreRolloutCoordinator) AdvanceIfDue(rolloutID uuid.UUID, expectedStage int, now time.Time) error {
	return c.mutate(rolloutID, func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error) {
		if !rollout.AutomaticRollout || rollout.Status != models.RolloutStatusStarted {
			return rolloutMutation{}, nil
		}
		if rollout.AutomaticRolloutNextUpdateAt == nil || now.Before(*rollout.AutomaticRolloutNextUpdateAt) {
			return rolloutMutation{}, nil
		}
		if rollout.CurrentStage != expectedStage {
			slog.Debug("skipping stale automatic rollout advance", "rolloutId", rollout.ID, "expectedStage", expectedStage, "currentStage", rollout.CurrentStage)
			return rolloutMutation{}, nil
		}
		return c.advance(tx, run, rollout, "automatic")
	})
}

// Halt stops the rollout at the store. Used manually and by release
// health rules.
func (c *StoreRolloutCoordinator) Halt(rolloutID uuid.UUID, reason string) error {
	return c.mutate(rolloutID, func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error) {
		ok, err := c.actionable(tx, run, *rollout)
		if err != nil {
			return rolloutMutation{}, err
		}
		if !ok {
			return rolloutMutation{}, ErrRolloutNotActionable
		}
		if !rollout.MayHalt() {
			return rolloutMutation{}, ErrRolloutNotHaltable
		}
		if err := rollout.TransitionTo(models.RolloutStatusHalted); err != nil {
			return rolloutMutation{}, err
		}
		rollout.AutomaticRolloutNextUpdateAt = nil

		snapshot := *rollout
		return rolloutMutation{
			stamp:   "rollout_halted",
			kind:    models.EventKindError,
			message: reason,
			followUps: followUps{func() {
				provider := c.stores.For(snapshot.Store)
				if err := provider.HaltRollout(context.Background(), snapshot); err != nil {
					slog.Error("could not halt store rollout", "rolloutId", snapshot.ID, "err", err)
					monitoring.Alert("store rollout halt failed", err)
					return
				}
				monitoring.RolloutHalts.Inc()
			}},
		}, nil
	})
}

// Pause suspends automatic advancement without touching the store.
func (c *StoreRolloutCoordinator) Pause(rolloutID uuid.UUID) error {
	return c.mutate(rolloutID, func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error) {
		if err := rollout.TransitionTo(models.RolloutStatusPaused); err != nil {
			return rolloutMutation{}, err
		}
		rollout.AutomaticRolloutNextUpdateAt = nil
		return rolloutMutation{
			stamp:   "rollout_paused",
			kind:    models.EventKindNotice,
			message: fmt.Sprintf("rollout paused at stage %d", rollout.CurrentStage),
		}, nil
	})
}

// Resume continues a paused or halted rollout at its current stage.
func (c *StoreRolloutCoordinator) Resume(rolloutID uuid.UUID) error {
	return c.mutate(rolloutID, func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error) {
		ok, err := c.actionable(tx, run, *rollout)
		if err != nil {
			return rolloutMutation{}, err
		}
		if !ok {
			return rolloutMutation{}, ErrRolloutNotActionable
		}
		if err := rollout.TransitionTo(models.RolloutStatusStarted); err != nil {
			return rolloutMutation{}, err
		}
		if rollout.AutomaticRollout && rollout.AutomaticRolloutInterval > 0 {
			rollout.AutomaticRolloutNextUpdateAt = shared.Ptr(time.Now().Add(rollout.AutomaticRolloutInterval))
		}
		return rolloutMutation{
			stamp:   "rollout_resumed",
			kind:    models.EventKindNotice,
			message: fmt.Sprintf("rollout resumed at stage %d", rollout.CurrentStage),
		}, nil
	})
}

// FullyRelease skips the remaining stages and releases to everyone.
func (c *StoreRolloutCoordinator) FullyRelease(rolloutID uuid.UUID) error {
	return c.mutate(rolloutID, func(tx shared.DB, run models.ReleasePlatformRun, rollout *models.StoreRollout) (rolloutMutation, error) {
		ok, err := c.actionable(tx, run, *rollout)
		if err != nil {
			return rolloutMutation{}, err
		}
		if !ok {
			return rolloutMutation{}, ErrRolloutNotActionable
		}
		if err := rollout.TransitionTo(models.RolloutStatusFullyReleased); err != nil {
			return rolloutMutation{}, err
		}
		rollout.CurrentStage = len(rollout.Stages()) - 1
		rollout.CompletedAt = shared.Ptr(time.Now())
		rollout.AutomaticRolloutNextUpdateAt = nil

		snapshot := *rollout
		return rolloutMutation{
			stamp:    "rollout_fully_released",
			kind:     models.EventKindSuccess,
			message:  "rollout released to all users",
			conclude: true,
			followUps: followUps{func() {
				provider := c.stores.For(snapshot.Store)
				if err := provider.FullyRelease(context.Background(), snapshot); err != nil {
					slog.Error("could not fully release store rollout", "rolloutId", snapshot.ID, "err", err)
					monitoring.Alert("store rollout full release failed", err)
				}
			}},
		}, nil
	})
}
