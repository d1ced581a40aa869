// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package dtos

import (
	"time"

	"github.com/google/uuid"
)

// PushAuthorDTO is the author shape both GitHub and GitLab push payloads
// reduce to.
type PushAuthorDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type PushCommitDTO struct {
	ID        string        `json:"id" validate:"required"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	URL       string        `json:"url"`
	Author    PushAuthorDTO `json:"author"`
	Parents   []string      `json:"parents"`
}

type PushEventDTO struct {
	// Ref is the full git ref of the push, e.g. refs/heads/r/app/1.2.0.
	Ref     string          `json:"ref" validate:"required"`
	Commits []PushCommitDTO `json:"commits"`
}

type WorkflowArtifactDTO struct {
	VersionName string     `json:"versionName"`
	BuildNumber string     `json:"buildNumber"`
	SizeBytes   int64      `json:"sizeBytes"`
	GeneratedAt *time.Time `json:"generatedAt"`
}

type WorkflowEventDTO struct {
	ExternalID string               `json:"externalId" validate:"required"`
	Status     string               `json:"status" validate:"required,oneof=triggered started finished failed halted cancelled"`
	Artifact   *WorkflowArtifactDTO `json:"artifact"`
}

type StoreSubmissionEventDTO struct {
	SubmissionID  uuid.UUID `json:"submissionId" validate:"required"`
	Status        string    `json:"status" validate:"required"`
	FailureReason string    `json:"failureReason"`
}

type HealthEventDTO struct {
	ProductionReleaseID uuid.UUID          `json:"productionReleaseId" validate:"required"`
	Metrics             map[string]float64 `json:"metrics" validate:"required,min=1"`
}
