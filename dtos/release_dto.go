// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package dtos

import (
	"time"

	"github.com/google/uuid"
)

type ReleaseStartRequest struct {
	Hotfix        bool   `json:"hotfix"`
	CustomVersion string `json:"customVersion"`
}

type ReleaseFinalizeRequest struct {
	Force bool `json:"force"`
}

type ProductionStartRequest struct {
	BuildID uuid.UUID `json:"buildId" validate:"required"`
	Force   bool      `json:"force"`
}

type RolloutHaltRequest struct {
	Reason string `json:"reason"`
}

// DisplayDTO carries the human-facing rendering of a status.
type DisplayDTO struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
}

type PlatformRunDTO struct {
	ID             uuid.UUID  `json:"id"`
	ReleaseID      uuid.UUID  `json:"releaseId"`
	Platform       string     `json:"platform"`
	Status         string     `json:"status"`
	StatusDisplay  DisplayDTO `json:"statusDisplay"`
	ReleaseVersion string     `json:"releaseVersion"`
	LastCommitID   *uuid.UUID `json:"lastCommitId,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	StoppedAt      *time.Time `json:"stoppedAt,omitempty"`
}

type ReleaseDTO struct {
	ID             uuid.UUID  `json:"id"`
	TrainID        uuid.UUID  `json:"trainId"`
	Status         string     `json:"status"`
	StatusDisplay  DisplayDTO `json:"statusDisplay"`
	ReleaseVersion string    `json:"releaseVersion"`
	BranchName     string    `json:"branchName"`
	Tag            string    `json:"tag,omitempty"`
	ReleaseType    string    `json:"releaseType"`
	IsAutomatic    bool      `json:"isAutomatic"`

	HotfixedFromID *uuid.UUID `json:"hotfixedFromId,omitempty"`

	ScheduledAt time.Time  `json:"scheduledAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	StoppedAt   *time.Time `json:"stoppedAt,omitempty"`

	PlatformRuns []PlatformRunDTO `json:"platformRuns,omitempty"`
}
