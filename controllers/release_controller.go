// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package controllers

import (
	"net/http"

	"github.com/l3montree-dev/railguard/coordinators"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/dtos"
	"github.com/l3montree-dev/railguard/metrics"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/transformer"
	"github.com/l3montree-dev/railguard/utils"
	"github.com/labstack/echo/v4"
)

type ReleaseController struct {
	releaseRepository           shared.ReleaseRepository
	releasePlatformRunRepo      shared.ReleasePlatformRunRepository
	buildQueueRepository        shared.BuildQueueRepository
	releaseEventRepository      shared.ReleaseEventRepository
	startReleaseCoordinator     *coordinators.StartReleaseCoordinator
	stopReleaseCoordinator      *coordinators.StopReleaseCoordinator
	finalizeReleaseCoordinator  *coordinators.FinalizeReleaseCoordinator
	buildQueueCoordinator       *coordinators.BuildQueueCoordinator
	breakdowns                  *metrics.Cache
}

func NewReleaseController(
	releaseRepository shared.ReleaseRepository,
	releasePlatformRunRepo shared.ReleasePlatformRunRepository,
	buildQueueRepository shared.BuildQueueRepository,
	releaseEventRepository shared.ReleaseEventRepository,
	startReleaseCoordinator *coordinators.StartReleaseCoordinator,
	stopReleaseCoordinator *coordinators.StopReleaseCoordinator,
	finalizeReleaseCoordinator *coordinators.FinalizeReleaseCoordinator,
	buildQueueCoordinator *coordinators.BuildQueueCoordinator,
	breakdowns *metrics.Cache,
) *ReleaseController {
	return &ReleaseController{
		releaseRepository:          releaseRepository,
		releasePlatformRunRepo:     releasePlatformRunRepo,
		buildQueueRepository:       buildQueueRepository,
		releaseEventRepository:     releaseEventRepository,
		startReleaseCoordinator:    startReleaseCoordinator,
		stopReleaseCoordinator:     stopReleaseCoordinator,
		finalizeReleaseCoordinator: finalizeReleaseCoordinator,
		buildQueueCoordinator:      buildQueueCoordinator,
		breakdowns:                 breakdowns,
	}
}

func (h *ReleaseController) Start(ctx shared.Context) error {
	var req dtos.ReleaseStartRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	train := shared.GetTrain(ctx)
	release, err := h.startReleaseCoordinator.StartRelease(ctx.Request().Context(), train.ID, coordinators.StartReleaseOptions{
		Hotfix:        req.Hotfix,
		CustomVersion: req.CustomVersion,
	})
	if err != nil {
		return coordinatorError(err, "could not start release")
	}

	runs, err := h.releasePlatformRunRepo.GetByRelease(nil, release.ID)
	if err != nil {
		return echo.NewHTTPError(500, "could not read platform runs").WithInternal(err)
	}
	return ctx.JSON(http.StatusCreated, transformer.ReleaseToDTO(release, runs))
}

func (h *ReleaseController) List(ctx shared.Context) error {
	train := shared.GetTrain(ctx)
	releases, err := h.releaseRepository.ListByTrain(train.ID)
	if err != nil {
		return echo.NewHTTPError(500, "could not list releases").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, utils.Map(releases, func(r models.Release) dtos.ReleaseDTO {
		return transformer.ReleaseToDTO(r, nil)
	}))
}

func (h *ReleaseController) Read(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "releaseID")
	if err != nil {
		return err
	}

	release, err := h.releaseRepository.Read(id)
	if err != nil {
		return echo.NewHTTPError(404, "release not found").WithInternal(err)
	}
	runs, err := h.releasePlatformRunRepo.GetByRelease(nil, release.ID)
	if err != nil {
		return echo.NewHTTPError(500, "could not read platform runs").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, transformer.ReleaseToDTO(release, runs))
}

func (h *ReleaseController) Stop(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "releaseID")
	if err != nil {
		return err
	}
	if err := h.stopReleaseCoordinator.StopRelease(id); err != nil {
		return coordinatorError(err, "could not stop release")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *ReleaseController) Finalize(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "releaseID")
	if err != nil {
		return err
	}
	var req dtos.ReleaseFinalizeRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}
	if err := h.finalizeReleaseCoordinator.FinalizeRelease(id, req.Force); err != nil {
		return coordinatorError(err, "could not finalize release")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ApplyQueue drains the active build queue of the release immediately
// instead of waiting for it to become due.
func (h *ReleaseController) ApplyQueue(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "releaseID")
	if err != nil {
		return err
	}
	queue, err := h.buildQueueRepository.GetActiveForRelease(nil, id)
	if err != nil {
		return echo.NewHTTPError(404, "no active build queue").WithInternal(err)
	}
	if err := h.buildQueueCoordinator.ApplyBuildQueue(queue.ID); err != nil {
		return coordinatorError(err, "could not apply build queue")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *ReleaseController) Events(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "releaseID")
	if err != nil {
		return err
	}
	events, err := h.releaseEventRepository.ListForStampable(models.StampableRelease, id)
	if err != nil {
		return echo.NewHTTPError(500, "could not list events").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, events)
}

func (h *ReleaseController) Breakdown(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "releaseID")
	if err != nil {
		return err
	}
	breakdown, err := h.breakdowns.ReleaseBreakdown(id)
	if err != nil {
		return coordinatorError(err, "could not compute release breakdown")
	}
	return ctx.JSON(http.StatusOK, breakdown)
}
