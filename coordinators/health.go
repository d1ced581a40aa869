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

// HealthMetrics is one reported measurement set for a production release.
type HealthMetrics map[models.HealthMetricKind]float64

// ReleaseHealthCoordinator evaluates configured health rules against
// reported store metrics and reacts to unhealthy releases.
type ReleaseHealthCoordinator struct {
	trainRepository             shared.TrainRepository
	releaseRepository           shared.ReleaseRepository
	platformRunRepository       shared.ReleasePlatformRunRepository
	productionReleaseRepository shared.ProductionReleaseRepository
	ruleRepository              shared.ReleaseHealthRuleRepository
	healthEventRepository       shared.ReleaseHealthEventRepository
	storeRolloutRepository      shared.StoreRolloutRepository
	rollouts                    *StoreRolloutCoordinator
	notify                      shared.NotificationSink
}

func NewReleaseHealthCoordinator(
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	productionReleaseRepository shared.ProductionReleaseRepository,
	ruleRepository shared.ReleaseHealthRuleRepository,
	healthEventRepository shared.ReleaseHealthEventRepository,
	storeRolloutRepository shared.StoreRolloutRepository,
	rollouts *StoreRolloutCoordinator,
	notify shared.NotificationSink,
) *ReleaseHealthCoordinator {
	return &ReleaseHealthCoordinator{
		trainRepository:             trainRepository,
		releaseRepository:           releaseRepository,
		platformRunRepository:       platformRunRepository,
		productionReleaseRepository: productionReleaseRepository,
		ruleRepository:              ruleRepository,
		healthEventRepository:       healthEventRepository,
		storeRolloutRepository:      storeRolloutRepository,
		rollouts:                    rollouts,
		notify:                      notify,
	}
}

// EvaluateHealth records one health event per enabled rule that has a
// reported metric. An unhealthy halting rule halts the run's rollouts.
func (c *ReleaseHealthCoordinator) EvaluateHealth(productionReleaseID uuid.UUID, metrics HealthMetrics) error {
	production, err := c.productionReleaseRepository.Read(productionReleaseID)
	if err != nil {
		return err
	}
	run, err := c.platformRunRepository.Read(production.ReleasePlatformRunID)
	if err != nil {
		return err
	}
	release, err := c.releaseRepository.Read(run.ReleaseID)
	if err != nil {
		return err
	}
	train, err := c.trainRepository.Read(release.TrainID)
	if err != nil {
		return err
	}

	rules, err := c.ruleRepository.ListEnabled(train.ID, run.Platform)
	if err != nil {
		return err
	}

	haltReasons := []string{}
	for _, rule := range rules {
		value, ok := metrics[rule.MetricKind]
		if !ok {
			continue
		}
		healthy := rule.Evaluate(value)
		event := models.ReleaseHealthEvent{
			ProductionReleaseID: production.ID,
			RuleID:              rule.ID,
			Healthy:             healthy,
			MetricValue:         value,
			EvaluatedAt:         time.Now(),
		}
		if err := c.healthEventRepository.Create(nil, &event); err != nil {
			return err
		}
		if healthy {
			continue
		}

		slog.Warn("release health rule fired", "rule", rule.Name, "metric", rule.MetricKind, "value", value, "threshold", rule.TriggerThreshold)
		c.notify.Notify(train.NotificationChannel,
			fmt.Sprintf("release %s is unhealthy: %s at %.2f (threshold %.2f)", run.ReleaseVersion, rule.Name, value, rule.TriggerThreshold),
			map[string]any{"productionReleaseId": production.ID.String()})
		if rule.IsHalting {
			haltReasons = append(haltReasons, fmt.Sprintf("%s at %.2f below %.2f", rule.Name, value, rule.TriggerThreshold))
		}
	}

	if len(haltReasons) == 0 {
		return nil
	}
	rollouts, err := c.storeRolloutRepository.ListByRun(run.ID)
	if err != nil {
		return err
	}
	for _, rollout := range rollouts {
		if !rollout.MayHalt() {
			continue
		}
		reason := fmt.Sprintf("halted by health rules: %v", haltReasons)
		if err := c.rollouts.Halt(rollout.ID, reason); err != nil {
			if errors.Is(err, ErrRolloutNotActionable) || errors.Is(err, ErrRolloutNotHaltable) || errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}
