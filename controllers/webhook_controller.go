// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/l3montree-dev/railguard/coordinators"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/dtos"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/utils"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// WebhookController receives the callbacks from the VCS, the CI system and
// the app stores. Events for unknown or stale entities are acknowledged
// with 200 so the sender does not retry them forever.
type WebhookController struct {
	releaseRepository shared.ReleaseRepository

	processCommitsCoordinator *coordinators.ProcessCommitsCoordinator
	workflowRunCoordinator    *coordinators.WorkflowRunCoordinator
	productionCoordinator     *coordinators.ProductionReleaseCoordinator
	healthCoordinator         *coordinators.ReleaseHealthCoordinator
}

func NewWebhookController(
	releaseRepository shared.ReleaseRepository,
	processCommitsCoordinator *coordinators.ProcessCommitsCoordinator,
	workflowRunCoordinator *coordinators.WorkflowRunCoordinator,
	productionCoordinator *coordinators.ProductionReleaseCoordinator,
	healthCoordinator *coordinators.ReleaseHealthCoordinator,
) *WebhookController {
	return &WebhookController{
		releaseRepository:         releaseRepository,
		processCommitsCoordinator: processCommitsCoordinator,
		workflowRunCoordinator:    workflowRunCoordinator,
		productionCoordinator:     productionCoordinator,
		healthCoordinator:         healthCoordinator,
	}
}

func (h *WebhookController) HandleVCSPush(ctx shared.Context) error {
	trainID, err := parseUUIDParam(ctx, "trainID")
	if err != nil {
		return err
	}

	var event dtos.PushEventDTO
	if err := bindAndValidate(ctx, &event); err != nil {
		return err
	}

	branch := strings.TrimPrefix(event.Ref, "refs/heads/")
	if branch == event.Ref {
		// tag pushes and other refs are not release branch traffic
		return ctx.NoContent(http.StatusOK)
	}

	release, err := h.releaseRepository.FindByBranch(branch)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			slog.Debug("push for branch without ongoing release", "branch", branch)
			return ctx.NoContent(http.StatusOK)
		}
		return echo.NewHTTPError(500, "could not resolve release").WithInternal(err)
	}
	if release.TrainID != trainID {
		slog.Debug("push routed to wrong train", "branch", branch, "trainId", trainID)
		return ctx.NoContent(http.StatusOK)
	}

	commits := utils.Map(event.Commits, func(c dtos.PushCommitDTO) shared.VCSCommit {
		return shared.VCSCommit{
			Hash:        c.ID,
			Message:     c.Message,
			Timestamp:   c.Timestamp,
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			AuthorLogin: c.Author.Username,
			URL:         c.URL,
			Parents:     c.Parents,
		}
	})

	if err := h.processCommitsCoordinator.ProcessCommits(ctx.Request().Context(), release.ID, commits); err != nil {
		return coordinatorError(err, "could not process commits")
	}
	return ctx.NoContent(http.StatusOK)
}

func (h *WebhookController) HandleCIEvent(ctx shared.Context) error {
	var event dtos.WorkflowEventDTO
	if err := bindAndValidate(ctx, &event); err != nil {
		return err
	}

	var artifact *coordinators.BuildArtifact
	if event.Artifact != nil {
		generatedAt := time.Now()
		if event.Artifact.GeneratedAt != nil {
			generatedAt = *event.Artifact.GeneratedAt
		}
		artifact = &coordinators.BuildArtifact{
			VersionName: event.Artifact.VersionName,
			BuildNumber: event.Artifact.BuildNumber,
			GeneratedAt: generatedAt,
			SizeBytes:   event.Artifact.SizeBytes,
		}
	}

	if err := h.workflowRunCoordinator.HandleWorkflowRunUpdate(event.ExternalID, models.WorkflowRunStatus(event.Status), artifact); err != nil {
		return coordinatorError(err, "could not update workflow run")
	}
	return ctx.NoContent(http.StatusOK)
}

func (h *WebhookController) HandleStoreEvent(ctx shared.Context) error {
	var event dtos.StoreSubmissionEventDTO
	if err := bindAndValidate(ctx, &event); err != nil {
		return err
	}

	if err := h.productionCoordinator.UpdateStoreSubmission(event.SubmissionID, models.SubmissionStatus(event.Status), event.FailureReason); err != nil {
		return coordinatorError(err, "could not update store submission")
	}
	return ctx.NoContent(http.StatusOK)
}

func (h *WebhookController) HandleHealthEvent(ctx shared.Context) error {
	var event dtos.HealthEventDTO
	if err := bindAndValidate(ctx, &event); err != nil {
		return err
	}

	metrics := coordinators.HealthMetrics{}
	for kind, value := range event.Metrics {
		metrics[models.HealthMetricKind(kind)] = value
	}

	if err := h.healthCoordinator.EvaluateHealth(event.ProductionReleaseID, metrics); err != nil {
		return coordinatorError(err, "could not evaluate release health")
	}
	return ctx.NoContent(http.StatusOK)
}
