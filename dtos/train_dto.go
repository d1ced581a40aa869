// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package dtos

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TrainCreateRequest struct {
	Name               string `json:"name" validate:"required"`
	Slug               string `json:"slug" validate:"required"`
	BranchingStrategy  string `json:"branchingStrategy" validate:"required,oneof=almost_trunk release_backmerge parallel_working"`
	VersioningStrategy string `json:"versioningStrategy" validate:"required,oneof=semver partial_semver"`
	InitialVersion     string `json:"initialVersion" validate:"required"`
	WorkingBranch      string `json:"workingBranch" validate:"required"`
	BackmergeBranch    string `json:"backmergeBranch"`

	KickoffAt         *time.Time `json:"kickoffAt"`
	RepeatDurationSec *int64     `json:"repeatDurationSec" validate:"omitempty,min=0"`

	BuildQueueEnabled     bool  `json:"buildQueueEnabled"`
	BuildQueueSize        int   `json:"buildQueueSize" validate:"min=0"`
	BuildQueueWaitTimeSec int64 `json:"buildQueueWaitTimeSec" validate:"min=0"`

	UpcomingReleaseStartable bool   `json:"upcomingReleaseStartable"`
	NotificationChannel      string `json:"notificationChannel"`

	// PlatformConfig maps platform to its workflow and submission setup.
	PlatformConfig json.RawMessage `json:"platformConfig"`
}

// TrainPatchRequest carries only the fields that may change after
// creation. Branching and versioning strategy are fixed once set.
type TrainPatchRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status" validate:"omitempty,oneof=draft active inactive"`

	WorkingBranch   *string `json:"workingBranch"`
	BackmergeBranch *string `json:"backmergeBranch"`

	KickoffAt         *time.Time `json:"kickoffAt"`
	RepeatDurationSec *int64     `json:"repeatDurationSec" validate:"omitempty,min=0"`

	BuildQueueEnabled     *bool  `json:"buildQueueEnabled"`
	BuildQueueSize        *int   `json:"buildQueueSize" validate:"omitempty,min=0"`
	BuildQueueWaitTimeSec *int64 `json:"buildQueueWaitTimeSec" validate:"omitempty,min=0"`

	UpcomingReleaseStartable *bool   `json:"upcomingReleaseStartable"`
	NotificationChannel      *string `json:"notificationChannel"`

	PlatformConfig json.RawMessage `json:"platformConfig"`
}

type TrainDTO struct {
	ID                 uuid.UUID `json:"id"`
	AppID              uuid.UUID `json:"appId"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	Status             string    `json:"status"`
	BranchingStrategy  string    `json:"branchingStrategy"`
	VersioningStrategy string    `json:"versioningStrategy"`
	CurrentVersion     string    `json:"currentVersion"`
	WorkingBranch      string    `json:"workingBranch"`
	BackmergeBranch    string    `json:"backmergeBranch,omitempty"`

	KickoffAt         *time.Time `json:"kickoffAt,omitempty"`
	RepeatDurationSec *int64     `json:"repeatDurationSec,omitempty"`

	BuildQueueEnabled     bool  `json:"buildQueueEnabled"`
	BuildQueueSize        int   `json:"buildQueueSize"`
	BuildQueueWaitTimeSec int64 `json:"buildQueueWaitTimeSec"`

	UpcomingReleaseStartable bool   `json:"upcomingReleaseStartable"`
	NotificationChannel      string `json:"notificationChannel,omitempty"`

	PlatformConfig json.RawMessage `json:"platformConfig,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
