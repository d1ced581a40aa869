// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"github.com/google/uuid"
)

// BuildQueue batches incoming commits for a release. At most one queue per
// release is active at any time; the partial unique index in the schema
// backs this up against lock-discipline bugs.
type BuildQueue struct {
	Model
	ReleaseID uuid.UUID `json:"releaseId" gorm:"type:uuid;not null;index;"`
	Release   Release   `json:"-" gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE;"`

	ScheduledAt time.Time  `json:"scheduledAt" gorm:"not null;"`
	AppliedAt   *time.Time `json:"appliedAt"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true;"`
}

func (b BuildQueue) TableName() string {
	return "build_queues"
}

func (b BuildQueue) Due(now time.Time) bool {
	return !now.Before(b.ScheduledAt)
}
