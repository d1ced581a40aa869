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
	"github.com/labstack/echo/v4"
)

type PlatformRunController struct {
	releasePlatformRunRepo shared.ReleasePlatformRunRepository
	buildRepository        shared.BuildRepository
	preProdRepository      shared.PreProdReleaseRepository
	productionRepository   shared.ProductionReleaseRepository
	storeRolloutRepository shared.StoreRolloutRepository
	releaseEventRepository shared.ReleaseEventRepository

	preProdCoordinator    *coordinators.PreProdCoordinator
	lifecycleCoordinator  *coordinators.ReleaseLifecycleCoordinator
	productionCoordinator *coordinators.ProductionReleaseCoordinator
	breakdowns            *metrics.Cache
}

func NewPlatformRunController(
	releasePlatformRunRepo shared.ReleasePlatformRunRepository,
	buildRepository shared.BuildRepository,
	preProdRepository shared.PreProdReleaseRepository,
	productionRepository shared.ProductionReleaseRepository,
	storeRolloutRepository shared.StoreRolloutRepository,
	releaseEventRepository shared.ReleaseEventRepository,
	preProdCoordinator *coordinators.PreProdCoordinator,
	lifecycleCoordinator *coordinators.ReleaseLifecycleCoordinator,
	productionCoordinator *coordinators.ProductionReleaseCoordinator,
	breakdowns *metrics.Cache,
) *PlatformRunController {
	return &PlatformRunController{
		releasePlatformRunRepo: releasePlatformRunRepo,
		buildRepository:        buildRepository,
		preProdRepository:      preProdRepository,
		productionRepository:   productionRepository,
		storeRolloutRepository: storeRolloutRepository,
		releaseEventRepository: releaseEventRepository,
		preProdCoordinator:     preProdCoordinator,
		lifecycleCoordinator:   lifecycleCoordinator,
		productionCoordinator:  productionCoordinator,
		breakdowns:             breakdowns,
	}
}

func (h *PlatformRunController) Read(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	run, err := h.releasePlatformRunRepo.Read(id)
	if err != nil {
		return echo.NewHTTPError(404, "platform run not found").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, transformer.PlatformRunToDTO(run))
}

func (h *PlatformRunController) Builds(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	builds, err := h.buildRepository.ListByRun(id)
	if err != nil {
		return echo.NewHTTPError(500, "could not list builds").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, builds)
}

func (h *PlatformRunController) PreProdReleases(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	kind := models.PreProdKind(ctx.QueryParam("kind"))
	if kind != models.PreProdKindInternal && kind != models.PreProdKindBeta {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be internal or beta")
	}
	releases, err := h.preProdRepository.ListByRunAndKind(id, kind)
	if err != nil {
		return echo.NewHTTPError(500, "could not list pre-prod releases").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, releases)
}

func (h *PlatformRunController) ProductionReleases(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	releases, err := h.productionRepository.ListByRun(id)
	if err != nil {
		return echo.NewHTTPError(500, "could not list production releases").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, releases)
}

func (h *PlatformRunController) Rollouts(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	rollouts, err := h.storeRolloutRepository.ListByRun(id)
	if err != nil {
		return echo.NewHTTPError(500, "could not list rollouts").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, rollouts)
}

// PromoteBeta manually promotes the latest internal build to the beta
// channels.
func (h *PlatformRunController) PromoteBeta(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	if err := h.preProdCoordinator.PromoteToBeta(id); err != nil {
		return coordinatorError(err, "could not promote to beta")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *PlatformRunController) Conclude(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	if err := h.lifecycleCoordinator.ConcludePlatformRun(id); err != nil {
		return coordinatorError(err, "could not conclude platform run")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *PlatformRunController) StartProduction(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	var req dtos.ProductionStartRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}
	if err := h.productionCoordinator.StartProductionRelease(id, req.BuildID, req.Force); err != nil {
		return coordinatorError(err, "could not start production release")
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (h *PlatformRunController) Events(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	events, err := h.releaseEventRepository.ListForStampable(models.StampablePlatformRun, id)
	if err != nil {
		return echo.NewHTTPError(500, "could not list events").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, events)
}

func (h *PlatformRunController) Breakdown(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "runID")
	if err != nil {
		return err
	}
	breakdown, err := h.breakdowns.PlatformBreakdown(id)
	if err != nil {
		return coordinatorError(err, "could not compute platform breakdown")
	}
	return ctx.JSON(http.StatusOK, breakdown)
}
