// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"

	"github.com/google/uuid"
)

type WorkflowRunStatus string

const (
	WorkflowRunStatusTriggering  WorkflowRunStatus = "triggering"
	WorkflowRunStatusTriggered   WorkflowRunStatus = "triggered"
	WorkflowRunStatusStarted     WorkflowRunStatus = "started"
	WorkflowRunStatusFailed      WorkflowRunStatus = "failed"
	WorkflowRunStatusFinished    WorkflowRunStatus = "finished"
	WorkflowRunStatusUnavailable WorkflowRunStatus = "unavailable"
	WorkflowRunStatusHalted      WorkflowRunStatus = "halted"
	WorkflowRunStatusCancelling  WorkflowRunStatus = "cancelling"
	WorkflowRunStatusCancelled   WorkflowRunStatus = "cancelled"
)

var workflowRunTransitions = map[string][]string{
	string(WorkflowRunStatusTriggering): {
		string(WorkflowRunStatusTriggered),
		string(WorkflowRunStatusUnavailable),
		string(WorkflowRunStatusFailed),
		string(WorkflowRunStatusCancelling),
	},
	string(WorkflowRunStatusTriggered): {
		string(WorkflowRunStatusStarted),
		string(WorkflowRunStatusUnavailable),
		string(WorkflowRunStatusFailed),
		string(WorkflowRunStatusCancelling),
	},
	string(WorkflowRunStatusStarted): {
		string(WorkflowRunStatusFinished),
		string(WorkflowRunStatusFailed),
		string(WorkflowRunStatusHalted),
		string(WorkflowRunStatusCancelling),
	},
	string(WorkflowRunStatusCancelling): {
		string(WorkflowRunStatusCancelled),
		// the run can still finish before the CI system acknowledges
		string(WorkflowRunStatusFinished),
		string(WorkflowRunStatusFailed),
	},
	string(WorkflowRunStatusFailed):      {},
	string(WorkflowRunStatusFinished):    {},
	string(WorkflowRunStatusUnavailable): {},
	string(WorkflowRunStatusHalted):      {},
	string(WorkflowRunStatusCancelled):   {},
}

// WorkflowRun represents one CI pipeline execution.
type WorkflowRun struct {
	Model
	ReleasePlatformRunID uuid.UUID          `json:"releasePlatformRunId" gorm:"type:uuid;not null;index;"`
	ReleasePlatformRun   ReleasePlatformRun `json:"-" gorm:"foreignKey:ReleasePlatformRunID;constraint:OnDelete:CASCADE;"`

	PreProdReleaseID *uuid.UUID `json:"preProdReleaseId" gorm:"type:uuid;index;"`
	CommitID         uuid.UUID  `json:"commitId" gorm:"type:uuid;not null;"`

	Kind   WorkflowKind      `json:"kind" gorm:"type:text;not null;"`
	Status WorkflowRunStatus `json:"status" gorm:"type:text;not null;default:'triggering';"`

	ExternalID     string `json:"externalId" gorm:"type:text;index;"`
	ExternalURL    string `json:"externalUrl" gorm:"type:text;"`
	ExternalNumber int64  `json:"externalNumber"`
}

func (w WorkflowRun) TableName() string {
	return "workflow_runs"
}

func (w WorkflowRun) CanTransitionTo(to WorkflowRunStatus) Decision {
	return decide(workflowRunTransitions, "workflow run", string(w.Status), string(to))
}

func (w *WorkflowRun) TransitionTo(to WorkflowRunStatus) error {
	if d := w.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	w.Status = to
	return nil
}

// Unfinished workflow runs get cancelled when a newer pre-prod release
// supersedes theirs.
func (w WorkflowRun) Unfinished() bool {
	switch w.Status {
	case WorkflowRunStatusTriggering, WorkflowRunStatusTriggered, WorkflowRunStatusStarted:
		return true
	}
	return false
}
