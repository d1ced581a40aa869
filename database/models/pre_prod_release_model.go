// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PreProdKind string

const (
	PreProdKindInternal PreProdKind = "internal"
	PreProdKindBeta     PreProdKind = "beta"
)

type PreProdStatus string

const (
	PreProdStatusCreated  PreProdStatus = "created"
	PreProdStatusFailed   PreProdStatus = "failed"
	PreProdStatusFinished PreProdStatus = "finished"
	PreProdStatusStale    PreProdStatus = "stale"
)

var preProdTransitions = map[string][]string{
	string(PreProdStatusCreated): {
		string(PreProdStatusFailed),
		string(PreProdStatusFinished),
		string(PreProdStatusStale),
	},
	string(PreProdStatusFailed):   {string(PreProdStatusStale)},
	string(PreProdStatusFinished): {string(PreProdStatusStale)},
	string(PreProdStatusStale):    {},
}

// PreProdConfig is the snapshot taken from the platform config when the
// pre-prod release is created.
type PreProdConfig struct {
	AutoPromote bool               `json:"autoPromote"`
	Workflow    WorkflowConfig     `json:"workflow"`
	Submissions []SubmissionConfig `json:"submissions,omitempty"`
}

func (c PreProdConfig) ToJSON() (datatypes.JSON, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// PreProdRelease is one CI build-and-test cycle (internal or beta) for a
// platform run. New rows supersede the previous one of the same kind.
type PreProdRelease struct {
	Model
	ReleasePlatformRunID uuid.UUID          `json:"releasePlatformRunId" gorm:"type:uuid;not null;index;"`
	ReleasePlatformRun   ReleasePlatformRun `json:"-" gorm:"foreignKey:ReleasePlatformRunID;constraint:OnDelete:CASCADE;"`

	Kind   PreProdKind   `json:"kind" gorm:"type:text;not null;"`
	Status PreProdStatus `json:"status" gorm:"type:text;not null;default:'created';"`

	// PreviousID chains supersession. Strictly backward in creation order,
	// never cyclic: it always points at the latest row of the same kind at
	// creation time.
	PreviousID *uuid.UUID `json:"previousId" gorm:"type:uuid;"`
	CommitID   uuid.UUID  `json:"commitId" gorm:"type:uuid;not null;"`
	Commit     Commit     `json:"-" gorm:"foreignKey:CommitID;"`

	Config datatypes.JSON `json:"config" gorm:"type:jsonb;"`
}

func (p PreProdRelease) TableName() string {
	return "pre_prod_releases"
}

func (p PreProdRelease) CanTransitionTo(to PreProdStatus) Decision {
	return decide(preProdTransitions, "pre-prod release", string(p.Status), string(to))
}

func (p *PreProdRelease) TransitionTo(to PreProdStatus) error {
	if d := p.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	p.Status = to
	return nil
}

func (p PreProdRelease) PreProdConfig() (PreProdConfig, error) {
	var c PreProdConfig
	if len(p.Config) == 0 {
		return c, nil
	}
	err := json.Unmarshal(p.Config, &c)
	return c, err
}
