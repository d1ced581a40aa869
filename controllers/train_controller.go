// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package controllers

import (
	"net/http"
	"time"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/dtos"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/transformer"
	"github.com/l3montree-dev/railguard/utils"
	"github.com/l3montree-dev/railguard/versioning"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

type TrainController struct {
	trainRepository shared.TrainRepository
}

func NewTrainController(trainRepository shared.TrainRepository) *TrainController {
	return &TrainController{trainRepository: trainRepository}
}

func (h *TrainController) List(ctx shared.Context) error {
	app := shared.GetApp(ctx)
	trains, err := h.trainRepository.ListByApp(app.ID)
	if err != nil {
		return echo.NewHTTPError(500, "could not list trains").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, utils.Map(trains, transformer.TrainToDTO))
}

func (h *TrainController) Create(ctx shared.Context) error {
	var req dtos.TrainCreateRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	strategy := versioning.Strategy(req.VersioningStrategy)
	version, err := versioning.Normalize(strategy, req.InitialVersion)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "initial version does not match the versioning strategy")
	}

	if len(req.PlatformConfig) > 0 {
		if _, err := models.TrainPlatformConfigs(datatypes.JSON(req.PlatformConfig)); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid platform config").WithInternal(err)
		}
	}

	app := shared.GetApp(ctx)
	train := models.Train{
		AppID:              app.ID,
		Name:               req.Name,
		Slug:               req.Slug,
		Status:             models.TrainStatusDraft,
		BranchingStrategy:  models.BranchingStrategy(req.BranchingStrategy),
		VersioningStrategy: req.VersioningStrategy,
		CurrentVersion:     version,
		WorkingBranch:      req.WorkingBranch,
		BackmergeBranch:    req.BackmergeBranch,

		KickoffAt: req.KickoffAt,

		BuildQueueEnabled:  req.BuildQueueEnabled,
		BuildQueueSize:     req.BuildQueueSize,
		BuildQueueWaitTime: time.Duration(req.BuildQueueWaitTimeSec) * time.Second,

		UpcomingReleaseStartable: req.UpcomingReleaseStartable,
		NotificationChannel:      req.NotificationChannel,

		PlatformConfig: datatypes.JSON(req.PlatformConfig),
	}
	if req.RepeatDurationSec != nil {
		train.RepeatDuration = shared.Ptr(time.Duration(*req.RepeatDurationSec) * time.Second)
	}

	if err := h.trainRepository.Create(nil, &train); err != nil {
		return echo.NewHTTPError(500, "could not create train").WithInternal(err)
	}
	return ctx.JSON(http.StatusCreated, transformer.TrainToDTO(train))
}

func (h *TrainController) Read(ctx shared.Context) error {
	return ctx.JSON(http.StatusOK, transformer.TrainToDTO(shared.GetTrain(ctx)))
}

func (h *TrainController) Update(ctx shared.Context) error {
	var req dtos.TrainPatchRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	train := shared.GetTrain(ctx)

	if req.Name != nil {
		train.Name = *req.Name
	}
	if req.Status != nil {
		train.Status = models.TrainStatus(*req.Status)
	}
	if req.WorkingBranch != nil {
		train.WorkingBranch = *req.WorkingBranch
	}
	if req.BackmergeBranch != nil {
		train.BackmergeBranch = *req.BackmergeBranch
	}
	if req.KickoffAt != nil {
		train.KickoffAt = req.KickoffAt
	}
	if req.RepeatDurationSec != nil {
		train.RepeatDuration = shared.Ptr(time.Duration(*req.RepeatDurationSec) * time.Second)
	}
	if req.BuildQueueEnabled != nil {
		train.BuildQueueEnabled = *req.BuildQueueEnabled
	}
	if req.BuildQueueSize != nil {
		train.BuildQueueSize = *req.BuildQueueSize
	}
	if req.BuildQueueWaitTimeSec != nil {
		train.BuildQueueWaitTime = time.Duration(*req.BuildQueueWaitTimeSec) * time.Second
	}
	if req.UpcomingReleaseStartable != nil {
		train.UpcomingReleaseStartable = *req.UpcomingReleaseStartable
	}
	if req.NotificationChannel != nil {
		train.NotificationChannel = *req.NotificationChannel
	}
	if len(req.PlatformConfig) > 0 {
		if _, err := models.TrainPlatformConfigs(datatypes.JSON(req.PlatformConfig)); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid platform config").WithInternal(err)
		}
		train.PlatformConfig = datatypes.JSON(req.PlatformConfig)
	}

	if err := h.trainRepository.Save(nil, &train); err != nil {
		return echo.NewHTTPError(500, "could not update train").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, transformer.TrainToDTO(train))
}

func (h *TrainController) Delete(ctx shared.Context) error {
	train := shared.GetTrain(ctx)
	if err := h.trainRepository.Delete(nil, train.ID); err != nil {
		return echo.NewHTTPError(500, "could not delete train").WithInternal(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}
