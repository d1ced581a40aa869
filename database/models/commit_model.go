// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"github.com/google/uuid"
)

// Commit is the immutable record of a VCS commit attached to a release.
type Commit struct {
	Model
	ReleaseID uuid.UUID `json:"releaseId" gorm:"type:uuid;not null;uniqueIndex:idx_commits_release_hash;"`
	Release   Release   `json:"-" gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE;"`

	CommitHash string `json:"commitHash" gorm:"type:text;not null;uniqueIndex:idx_commits_release_hash;"`
	Message    string `json:"message" gorm:"type:text;"`
	// Timestamp carries the +1ms head adjustment where the VCS only has
	// second precision, so the head of a batch always sorts last.
	Timestamp   time.Time `json:"timestamp" gorm:"not null;index;"`
	AuthorName  string    `json:"authorName" gorm:"type:text;"`
	AuthorEmail string    `json:"authorEmail" gorm:"type:text;"`
	AuthorLogin string    `json:"authorLogin" gorm:"type:text;"`
	URL         string    `json:"url" gorm:"type:text;"`

	// Parents is the ordered list of ancestor hashes. Nil when the ancestry
	// backfill failed; that only degrades diff queries, never progression.
	Parents []string `json:"parents" gorm:"serializer:json;type:jsonb;"`

	// BuildQueueID is set while the commit waits in a queue.
	BuildQueueID *uuid.UUID `json:"buildQueueId" gorm:"type:uuid;index;"`
	// Applied marks commits that triggered a release step. Queued commits
	// that got superseded by the head stay unapplied.
	Applied bool `json:"applied" gorm:"default:false;"`
	// BackmergeFailure is set when the mid-release backmerge of this commit
	// failed. Such commits block finalization until resolved or forced.
	BackmergeFailure bool `json:"backmergeFailure" gorm:"default:false;"`
}

func (c Commit) TableName() string {
	return "commits"
}

func (c Commit) ShortHash() string {
	if len(c.CommitHash) < 8 {
		return c.CommitHash
	}
	return c.CommitHash[:8]
}
