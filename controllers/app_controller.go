// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package controllers

import (
	"net/http"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/dtos"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/transformer"
	"github.com/l3montree-dev/railguard/utils"
	"github.com/labstack/echo/v4"
)

type AppController struct {
	appRepository shared.AppRepository
}

func NewAppController(appRepository shared.AppRepository) *AppController {
	return &AppController{appRepository: appRepository}
}

func (h *AppController) List(ctx shared.Context) error {
	apps, err := h.appRepository.All()
	if err != nil {
		return echo.NewHTTPError(500, "could not list apps").WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, utils.Map(apps, transformer.AppToDTO))
}

func (h *AppController) Create(ctx shared.Context) error {
	var req dtos.AppCreateRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	app := models.App{
		Name:      req.Name,
		Slug:      req.Slug,
		BundleID:  req.BundleID,
		Platforms: req.Platforms,
		DraftMode: req.DraftMode,
	}
	if err := h.appRepository.Create(nil, &app); err != nil {
		return echo.NewHTTPError(500, "could not create app").WithInternal(err)
	}
	return ctx.JSON(http.StatusCreated, transformer.AppToDTO(app))
}

func (h *AppController) Read(ctx shared.Context) error {
	return ctx.JSON(http.StatusOK, transformer.AppToDTO(shared.GetApp(ctx)))
}
