// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RolloutStatus string

const (
	RolloutStatusCreated       RolloutStatus = "created"
	RolloutStatusStarted       RolloutStatus = "started"
	RolloutStatusPaused        RolloutStatus = "paused"
	RolloutStatusHalted        RolloutStatus = "halted"
	RolloutStatusCompleted     RolloutStatus = "completed"
	RolloutStatusFullyReleased RolloutStatus = "fully_released"
)

var rolloutTransitions = map[string][]string{
	string(RolloutStatusCreated): {string(RolloutStatusStarted)},
	string(RolloutStatusStarted): {
		string(RolloutStatusPaused),
		string(RolloutStatusHalted),
		string(RolloutStatusCompleted),
		string(RolloutStatusFullyReleased),
	},
	string(RolloutStatusPaused): {
		string(RolloutStatusStarted),
		string(RolloutStatusHalted),
	},
	string(RolloutStatusHalted): {
		// a halted rollout can be resumed once the cause is resolved
		string(RolloutStatusStarted),
	},
	string(RolloutStatusCompleted):     {string(RolloutStatusFullyReleased)},
	string(RolloutStatusFullyReleased): {},
}

// StoreRollout drives the staged percentage rollout of an approved store
// submission.
type StoreRollout struct {
	Model
	StoreSubmissionID    uuid.UUID       `json:"storeSubmissionId" gorm:"type:uuid;not null;uniqueIndex;"`
	StoreSubmission      StoreSubmission `json:"-" gorm:"foreignKey:StoreSubmissionID;constraint:OnDelete:CASCADE;"`
	ReleasePlatformRunID uuid.UUID       `json:"releasePlatformRunId" gorm:"type:uuid;not null;index;"`

	Store  Store         `json:"store" gorm:"type:text;not null;"`
	Status RolloutStatus `json:"status" gorm:"type:text;not null;default:'created';"`

	// Config is the ordered list of rollout percentages.
	Config datatypes.JSON `json:"config" gorm:"type:jsonb;"`
	// CurrentStage indexes into Config. -1 before the first stage applied.
	CurrentStage int  `json:"currentStage" gorm:"not null;default:-1;"`
	IsStaged     bool `json:"isStaged" gorm:"default:false;"`

	AutomaticRollout             bool          `json:"automaticRollout" gorm:"default:false;"`
	AutomaticRolloutInterval     time.Duration `json:"automaticRolloutInterval" gorm:"default:0;"`
	AutomaticRolloutNextUpdateAt *time.Time    `json:"automaticRolloutNextUpdateAt"`

	CompletedAt *time.Time `json:"completedAt"`
}

func (s StoreRollout) TableName() string {
	return "store_rollouts"
}

func (s StoreRollout) CanTransitionTo(to RolloutStatus) Decision {
	return decide(rolloutTransitions, "store rollout", string(s.Status), string(to))
}

func (s *StoreRollout) TransitionTo(to RolloutStatus) error {
	if d := s.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	s.Status = to
	return nil
}

func (s StoreRollout) Stages() []float64 {
	var stages []float64
	if len(s.Config) == 0 {
		return stages
	}
	if err := json.Unmarshal(s.Config, &stages); err != nil {
		return nil
	}
	return stages
}

func (s StoreRollout) CurrentPercentage() float64 {
	stages := s.Stages()
	if s.CurrentStage < 0 || s.CurrentStage >= len(stages) {
		return 0
	}
	return stages[s.CurrentStage]
}

func (s StoreRollout) LastStage() bool {
	return s.CurrentStage >= len(s.Stages())-1
}

func (s StoreRollout) MayIncrease() bool {
	return s.Status == RolloutStatusStarted && !s.LastStage()
}

func (s StoreRollout) MayHalt() bool {
	return s.Status == RolloutStatusStarted || s.Status == RolloutStatusPaused
}

func (s StoreRollout) Terminal() bool {
	return s.Status == RolloutStatusCompleted || s.Status == RolloutStatusFullyReleased
}

func StagesToJSON(stages []float64) (datatypes.JSON, error) {
	raw, err := json.Marshal(stages)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
