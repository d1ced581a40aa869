// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PlatformRunStatus string

const (
	PlatformRunStatusCreated   PlatformRunStatus = "created"
	PlatformRunStatusOnTrack   PlatformRunStatus = "on_track"
	PlatformRunStatusConcluded PlatformRunStatus = "concluded"
	PlatformRunStatusFinished  PlatformRunStatus = "finished"
	PlatformRunStatusStopped   PlatformRunStatus = "stopped"
)

var platformRunTransitions = map[string][]string{
	string(PlatformRunStatusCreated):   {string(PlatformRunStatusOnTrack), string(PlatformRunStatusStopped)},
	string(PlatformRunStatusOnTrack):   {string(PlatformRunStatusConcluded), string(PlatformRunStatusStopped)},
	string(PlatformRunStatusConcluded): {string(PlatformRunStatusFinished), string(PlatformRunStatusStopped)},
	string(PlatformRunStatusFinished):  {},
	string(PlatformRunStatusStopped):   {},
}

// ReleasePlatformRun is one platform's slice of a release.
type ReleasePlatformRun struct {
	Model
	ReleaseID uuid.UUID `json:"releaseId" gorm:"type:uuid;not null;index;"`
	Release   Release   `json:"-" gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE;"`

	Platform       Platform          `json:"platform" gorm:"type:text;not null;"`
	Status         PlatformRunStatus `json:"status" gorm:"type:text;not null;default:'created';"`
	ReleaseVersion string            `json:"releaseVersion" gorm:"not null;type:text;"`
	LastCommitID   *uuid.UUID        `json:"lastCommitId" gorm:"type:uuid;"`

	// Config is the platform workflow/submission snapshot taken at release
	// start.
	Config datatypes.JSON `json:"config" gorm:"type:jsonb;"`

	CompletedAt *time.Time `json:"completedAt"`
	StoppedAt   *time.Time `json:"stoppedAt"`
}

func (r ReleasePlatformRun) TableName() string {
	return "release_platform_runs"
}

func (r ReleasePlatformRun) CanTransitionTo(to PlatformRunStatus) Decision {
	return decide(platformRunTransitions, "release platform run", string(r.Status), string(to))
}

func (r *ReleasePlatformRun) TransitionTo(to PlatformRunStatus) error {
	if d := r.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	r.Status = to
	return nil
}

func (r ReleasePlatformRun) OnTrack() bool {
	return r.Status == PlatformRunStatusOnTrack
}

func (r ReleasePlatformRun) Terminal() bool {
	return r.Status == PlatformRunStatusFinished || r.Status == PlatformRunStatusStopped
}

func (r ReleasePlatformRun) PlatformConfig() (PlatformConfig, error) {
	return PlatformConfigFromJSON(r.Config)
}
