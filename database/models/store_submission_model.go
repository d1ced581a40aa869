// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ParentReleaseType discriminates the tagged union a submission belongs to.
type ParentReleaseType string

const (
	ParentReleasePreProd    ParentReleaseType = "pre_prod"
	ParentReleaseProduction ParentReleaseType = "production"
)

type SubmissionStatus string

const (
	SubmissionStatusCreated            SubmissionStatus = "created"
	SubmissionStatusPreparing          SubmissionStatus = "preparing"
	SubmissionStatusPrepared           SubmissionStatus = "prepared"
	SubmissionStatusSubmittedForReview SubmissionStatus = "submitted_for_review"
	SubmissionStatusReviewFailed       SubmissionStatus = "review_failed"
	SubmissionStatusApproved           SubmissionStatus = "approved"
	SubmissionStatusFailed             SubmissionStatus = "failed"
	SubmissionStatusFinished           SubmissionStatus = "finished"
)

var submissionTransitions = map[string][]string{
	string(SubmissionStatusCreated): {
		string(SubmissionStatusPreparing),
		string(SubmissionStatusFailed),
	},
	string(SubmissionStatusPreparing): {
		string(SubmissionStatusPrepared),
		string(SubmissionStatusFailed),
	},
	string(SubmissionStatusPrepared): {
		string(SubmissionStatusSubmittedForReview),
		string(SubmissionStatusFinished), // stores without a review step
		string(SubmissionStatusFailed),
	},
	string(SubmissionStatusSubmittedForReview): {
		string(SubmissionStatusApproved),
		string(SubmissionStatusReviewFailed),
		string(SubmissionStatusFailed),
	},
	string(SubmissionStatusReviewFailed): {
		// resubmission after fixing the rejection
		string(SubmissionStatusPreparing),
	},
	string(SubmissionStatusApproved): {string(SubmissionStatusFinished)},
	string(SubmissionStatusFailed):   {},
	string(SubmissionStatusFinished): {},
}

// StoreSubmission tracks one store's review pipeline for a build.
type StoreSubmission struct {
	Model
	ReleasePlatformRunID uuid.UUID          `json:"releasePlatformRunId" gorm:"type:uuid;not null;index;"`
	ReleasePlatformRun   ReleasePlatformRun `json:"-" gorm:"foreignKey:ReleasePlatformRunID;constraint:OnDelete:CASCADE;"`

	// parent release tagged union, resolved via the discriminator instead
	// of runtime type introspection
	ParentReleaseType ParentReleaseType `json:"parentReleaseType" gorm:"type:text;not null;index:idx_store_submissions_parent;"`
	ParentReleaseID   uuid.UUID         `json:"parentReleaseId" gorm:"type:uuid;not null;index:idx_store_submissions_parent;"`

	BuildID uuid.UUID        `json:"buildId" gorm:"type:uuid;not null;"`
	Store   Store            `json:"store" gorm:"type:text;not null;"`
	Status  SubmissionStatus `json:"status" gorm:"type:text;not null;default:'created';"`

	FailureReason string     `json:"failureReason" gorm:"type:text;"`
	PreparedAt    *time.Time `json:"preparedAt"`
	SubmittedAt   *time.Time `json:"submittedAt"`
	ApprovedAt    *time.Time `json:"approvedAt"`
}

func (s StoreSubmission) TableName() string {
	return "store_submissions"
}

func (s StoreSubmission) CanTransitionTo(to SubmissionStatus) Decision {
	return decide(submissionTransitions, "store submission", string(s.Status), string(to))
}

func (s *StoreSubmission) TransitionTo(to SubmissionStatus) error {
	if d := s.CanTransitionTo(to); !d.Allowed {
		return errors.New(d.Reason)
	}
	s.Status = to
	return nil
}

func (s StoreSubmission) Finished() bool {
	return s.Status == SubmissionStatusFinished
}
