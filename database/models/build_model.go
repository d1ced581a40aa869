// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"github.com/google/uuid"
)

// Build is an artifact produced by a workflow run.
type Build struct {
	Model
	ReleasePlatformRunID uuid.UUID          `json:"releasePlatformRunId" gorm:"type:uuid;not null;index;"`
	ReleasePlatformRun   ReleasePlatformRun `json:"-" gorm:"foreignKey:ReleasePlatformRunID;constraint:OnDelete:CASCADE;"`

	WorkflowRunID uuid.UUID `json:"workflowRunId" gorm:"type:uuid;not null;index;"`
	CommitID      uuid.UUID `json:"commitId" gorm:"type:uuid;not null;"`

	VersionName string    `json:"versionName" gorm:"type:text;not null;"`
	BuildNumber string    `json:"buildNumber" gorm:"type:text;not null;"`
	GeneratedAt time.Time `json:"generatedAt"`
	// SequenceNumber is monotonic per platform run.
	SequenceNumber int   `json:"sequenceNumber" gorm:"not null;"`
	SizeBytes      int64 `json:"sizeBytes"`
}

func (b Build) TableName() string {
	return "builds"
}
