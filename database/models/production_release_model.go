// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ProductionReleaseStatus string

const (
	ProductionReleaseStatusInflight ProductionReleaseStatus = "inflight"
	ProductionReleaseStatusActive   ProductionReleaseStatus = "active"
	ProductionReleaseStatusFinished ProductionReleaseStatus = "finished"
	ProductionReleaseStatusStale    ProductionReleaseStatus = "stale"
)

var productionReleaseTransitions = map[string][]string{
	string(ProductionReleaseStatusInflight): {
		string(ProductionReleaseStatusActive),
		string(ProductionReleaseStatusStale),
	},
	string(ProductionReleaseStatusActive): {
		string(ProductionReleaseStatusFinished),
		string(ProductionReleaseStatusStale),
	},
	string(ProductionReleaseStatusFinished): {},
	string(ProductionReleaseStatusStale):    {},
}

// ProductionRelease is the production store-submission cycle for a platform
// run. The schema enforces at most one active and one inflight row per run.
type ProductionRelease struct {
	Model
	ReleasePlatformRunID uuid.UUID          `json:"releasePlatformRunId" gorm:"type:uuid;not null;index;"`
	ReleasePlatformRun   ReleasePlatformRun `json:"-" gorm:"foreignKey:ReleasePlatformRunID;constraint:OnDelete:CASCADE;"`

	Status  ProductionReleaseStatus `json:"status" gorm:"type:text;not null;default:'inflight';"`
	BuildID *uuid.UUID              `json:"buildId" gorm:"type:uuid;"`

	PreviousID *uuid.UUID     `json:"previousId" gorm:"type:uuid;"`
	Config     datatypes.JSON `json:"config" gorm:"type:jsonb;"`
}

func (p ProductionRelease) TableName() string {
	return "production_releases"
}

func (p ProductionRelease) CanTransitionTo(to ProductionReleaseStatus) Decision {
	return decide(productionReleaseTransitions, "production release", string(p.Status), string(to))
}

func (p *ProductionRelease) TransitionTo(to ProductionReleaseStatus) error {
	if d := p.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	p.Status = to
	return nil
}

func (p ProductionRelease) Actionable() bool {
	return p.Status == ProductionReleaseStatusInflight || p.Status == ProductionReleaseStatusActive
}
