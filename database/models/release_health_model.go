// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"github.com/google/uuid"
)

type HealthMetricKind string

const (
	MetricSessionStability HealthMetricKind = "session_stability"
	MetricAdoptionRate     HealthMetricKind = "adoption_rate"
	MetricStagedRollout    HealthMetricKind = "staged_rollout"
)

// ReleaseHealthRule is evaluated against fetched store metrics for every
// active production release of the train.
type ReleaseHealthRule struct {
	Model
	TrainID uuid.UUID `json:"trainId" gorm:"type:uuid;not null;index;"`
	Train   Train     `json:"-" gorm:"foreignKey:TrainID;constraint:OnDelete:CASCADE;"`

	Platform   Platform         `json:"platform" gorm:"type:text;not null;"`
	Name       string           `json:"name" gorm:"type:text;not null;"`
	MetricKind HealthMetricKind `json:"metricKind" gorm:"type:text;not null;"`
	// TriggerThreshold is the value below which the rule fires.
	TriggerThreshold float64 `json:"triggerThreshold" gorm:"not null;"`
	// IsHalting rules halt the store rollout when unhealthy.
	IsHalting bool `json:"isHalting" gorm:"default:false;"`
	Enabled   bool `json:"enabled" gorm:"default:true;"`
}

func (r ReleaseHealthRule) TableName() string {
	return "release_health_rules"
}

func (r ReleaseHealthRule) Evaluate(value float64) bool {
	return value >= r.TriggerThreshold
}

// ReleaseHealthEvent records one rule evaluation.
type ReleaseHealthEvent struct {
	Model
	ProductionReleaseID uuid.UUID         `json:"productionReleaseId" gorm:"type:uuid;not null;index;"`
	ProductionRelease   ProductionRelease `json:"-" gorm:"foreignKey:ProductionReleaseID;constraint:OnDelete:CASCADE;"`

	RuleID      uuid.UUID `json:"ruleId" gorm:"type:uuid;not null;"`
	Healthy     bool      `json:"healthy" gorm:"not null;"`
	MetricValue float64   `json:"metricValue" gorm:"not null;"`
	EvaluatedAt time.Time `json:"evaluatedAt" gorm:"not null;"`
}

func (e ReleaseHealthEvent) TableName() string {
	return "release_health_events"
}
