// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TrainStatus string

const (
	TrainStatusDraft    TrainStatus = "draft"
	TrainStatusActive   TrainStatus = "active"
	TrainStatusInactive TrainStatus = "inactive"
)

type BranchingStrategy string

const (
	BranchingAlmostTrunk      BranchingStrategy = "almost_trunk"
	BranchingReleaseBackmerge BranchingStrategy = "release_backmerge"
	BranchingParallelWorking  BranchingStrategy = "parallel_working"
)

// Train is the reusable release pipeline definition for an app.
type Train struct {
	Model
	AppID uuid.UUID `json:"appId" gorm:"type:uuid;not null;index;"`
	App   App       `json:"-" gorm:"foreignKey:AppID;constraint:OnDelete:CASCADE;"`

	Name   string      `json:"name" gorm:"not null;type:text;"`
	Slug   string      `json:"slug" gorm:"uniqueIndex;not null;type:text;"`
	Status TrainStatus `json:"status" gorm:"type:text;not null;default:'draft';"`

	BranchingStrategy  BranchingStrategy `json:"branchingStrategy" gorm:"type:text;not null;default:'almost_trunk';"`
	VersioningStrategy string            `json:"versioningStrategy" gorm:"type:text;not null;default:'semver';"`
	CurrentVersion     string            `json:"currentVersion" gorm:"type:text;not null;"`
	WorkingBranch      string            `json:"workingBranch" gorm:"type:text;not null;"`
	// BackmergeBranch is only used by the release_backmerge strategy.
	BackmergeBranch string `json:"backmergeBranch" gorm:"type:text;"`

	// optional kickoff schedule
	KickoffAt      *time.Time     `json:"kickoffAt"`
	RepeatDuration *time.Duration `json:"repeatDuration"`

	BuildQueueEnabled  bool          `json:"buildQueueEnabled" gorm:"default:false;"`
	BuildQueueSize     int           `json:"buildQueueSize" gorm:"default:0;"`
	BuildQueueWaitTime time.Duration `json:"buildQueueWaitTime" gorm:"default:0;"`

	// UpcomingReleaseStartable allows starting the next release while the
	// current one is still ongoing.
	UpcomingReleaseStartable bool `json:"upcomingReleaseStartable" gorm:"default:false;"`

	NotificationChannel string `json:"notificationChannel" gorm:"type:text;"`

	// PlatformConfig is the per-platform workflow and submission
	// configuration snapshotted onto every new release platform run.
	PlatformConfig datatypes.JSON `json:"platformConfig" gorm:"type:jsonb;"`
}

func (t Train) TableName() string {
	return "trains"
}

func (t Train) Active() bool {
	return t.Status == TrainStatusActive
}

func (t Train) QueueingEnabled() bool {
	return t.BuildQueueEnabled && (t.BuildQueueSize > 0 || t.BuildQueueWaitTime > 0)
}
