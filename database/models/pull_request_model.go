// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"github.com/google/uuid"
)

type PullRequestState string

const (
	PullRequestStateOpen   PullRequestState = "open"
	PullRequestStateClosed PullRequestState = "closed"
	PullRequestStateMerged PullRequestState = "merged"
)

type PullRequestPhase string

const (
	PullRequestPhasePreRelease  PullRequestPhase = "pre_release"
	PullRequestPhaseMidRelease  PullRequestPhase = "mid_release"
	PullRequestPhasePostRelease PullRequestPhase = "post_release"
)

type PullRequestKind string

const (
	PullRequestKindVersionBump  PullRequestKind = "version_bump"
	PullRequestKindBackMerge    PullRequestKind = "back_merge"
	PullRequestKindStability    PullRequestKind = "stability"
	PullRequestKindForwardMerge PullRequestKind = "forward_merge"
)

// PullRequest is a tracked VCS pull request associated with a release.
type PullRequest struct {
	Model
	ReleaseID uuid.UUID `json:"releaseId" gorm:"type:uuid;not null;index;"`
	Release   Release   `json:"-" gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE;"`

	Number  int64            `json:"number" gorm:"not null;"`
	Title   string           `json:"title" gorm:"type:text;"`
	URL     string           `json:"url" gorm:"type:text;"`
	BaseRef string           `json:"baseRef" gorm:"type:text;"`
	HeadRef string           `json:"headRef" gorm:"type:text;"`
	State   PullRequestState `json:"state" gorm:"type:text;not null;default:'open';"`
	Phase   PullRequestPhase `json:"phase" gorm:"type:text;not null;"`
	Kind    PullRequestKind  `json:"kind" gorm:"type:text;not null;"`
	// Automatic PRs were opened by the orchestrator itself; open automatic
	// PRs block finalization.
	Automatic bool `json:"automatic" gorm:"default:false;"`

	MergedAt *time.Time `json:"mergedAt"`
	ClosedAt *time.Time `json:"closedAt"`
}

func (p PullRequest) TableName() string {
	return "pull_requests"
}

func (p PullRequest) Open() bool {
	return p.State == PullRequestStateOpen
}
