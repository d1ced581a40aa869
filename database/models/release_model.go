// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ReleaseStatus string

const (
	ReleaseStatusCreated            ReleaseStatus = "created"
	ReleaseStatusOnTrack            ReleaseStatus = "on_track"
	ReleaseStatusPostReleaseStarted ReleaseStatus = "post_release_started"
	ReleaseStatusPostReleaseFailed  ReleaseStatus = "post_release_failed"
	ReleaseStatusPartiallyFinished  ReleaseStatus = "partially_finished"
	ReleaseStatusFinished           ReleaseStatus = "finished"
	ReleaseStatusStopped            ReleaseStatus = "stopped"
)

type ReleaseType string

const (
	ReleaseTypeRelease ReleaseType = "release"
	ReleaseTypeHotfix  ReleaseType = "hotfix"
)

// releaseTransitions is the lifecycle state machine of a release. Finished
// and stopped are terminal.
var releaseTransitions = map[string][]string{
	string(ReleaseStatusCreated): {string(ReleaseStatusOnTrack), string(ReleaseStatusStopped)},
	string(ReleaseStatusOnTrack): {
		string(ReleaseStatusPostReleaseStarted),
		string(ReleaseStatusPartiallyFinished),
		string(ReleaseStatusStopped),
	},
	string(ReleaseStatusPartiallyFinished): {
		string(ReleaseStatusPostReleaseStarted),
		string(ReleaseStatusStopped),
	},
	string(ReleaseStatusPostReleaseStarted): {
		string(ReleaseStatusFinished),
		string(ReleaseStatusPostReleaseFailed),
		string(ReleaseStatusStopped),
	},
	string(ReleaseStatusPostReleaseFailed): {
		string(ReleaseStatusPostReleaseStarted),
		string(ReleaseStatusFinished),
		string(ReleaseStatusStopped),
	},
	string(ReleaseStatusFinished): {},
	string(ReleaseStatusStopped):  {},
}

// Release is one pass of a train through its pipeline across all platforms.
type Release struct {
	Model
	TrainID uuid.UUID `json:"trainId" gorm:"type:uuid;not null;index;"`
	Train   Train     `json:"-" gorm:"foreignKey:TrainID;constraint:OnDelete:CASCADE;"`

	Status         ReleaseStatus `json:"status" gorm:"type:text;not null;default:'created';"`
	ReleaseVersion string        `json:"releaseVersion" gorm:"not null;type:text;"`
	BranchName     string        `json:"branchName" gorm:"not null;type:text;"`
	Tag            string        `json:"tag" gorm:"type:text;"`
	IsAutomatic    bool          `json:"isAutomatic" gorm:"default:false;"`

	ReleaseType    ReleaseType `json:"releaseType" gorm:"type:text;not null;default:'release';"`
	HotfixedFromID *uuid.UUID  `json:"hotfixedFromId" gorm:"type:uuid;"`
	// NewHotfixBranch is true when the hotfix got a fresh branch cut from
	// the source tag instead of reusing an existing branch.
	NewHotfixBranch bool `json:"newHotfixBranch" gorm:"default:false;"`

	ScheduledAt time.Time  `json:"scheduledAt"`
	CompletedAt *time.Time `json:"completedAt"`
	StoppedAt   *time.Time `json:"stoppedAt"`

	// NotificationsSent guards the one-time "release started" notification.
	NotificationsSent bool `json:"-" gorm:"default:false;"`

	PlatformRuns []ReleasePlatformRun `json:"platformRuns,omitempty" gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE;"`
}

func (r Release) TableName() string {
	return "releases"
}

func (r Release) CanTransitionTo(to ReleaseStatus) Decision {
	return decide(releaseTransitions, "release", string(r.Status), string(to))
}

// TransitionTo mutates the status after checking the transition table. The
// caller persists the row and stamps the event inside its transaction.
func (r *Release) TransitionTo(to ReleaseStatus) error {
	if d := r.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	r.Status = to
	return nil
}

func (r Release) Hotfix() bool {
	return r.ReleaseType == ReleaseTypeHotfix
}

// Committable reports whether the release still accepts incoming commits.
func (r Release) Committable() bool {
	switch r.Status {
	case ReleaseStatusCreated, ReleaseStatusOnTrack, ReleaseStatusPartiallyFinished:
		return true
	}
	return false
}

// Ongoing releases block starting another non-hotfix release on the train.
func (r Release) Ongoing() bool {
	switch r.Status {
	case ReleaseStatusFinished, ReleaseStatusStopped:
		return false
	}
	return true
}

func (r Release) Terminal() bool {
	return r.Status == ReleaseStatusFinished || r.Status == ReleaseStatusStopped
}
