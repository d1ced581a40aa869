// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controllers holds the HTTP handlers. Controllers only parse and
// validate requests and translate coordinator errors into status codes,
// all sequencing lives in the coordinators package.
package controllers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/coordinators"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func parseUUIDParam(ctx shared.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(shared.GetParam(ctx, name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func bindAndValidate(ctx shared.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload").WithInternal(err)
	}
	if err := shared.V.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// conflictErrs are precondition violations: the request was well-formed
// but the entity's current state does not allow the operation.
var conflictErrs = []error{
	coordinators.ErrTrainNotActive,
	coordinators.ErrAppInDraftMode,
	coordinators.ErrReleaseAlreadyInProgress,
	coordinators.ErrUpcomingReleaseExists,
	coordinators.ErrHotfixRequiresFinished,
	coordinators.ErrHotfixSourceMissing,
	coordinators.ErrReleaseNotCommittable,
	coordinators.ErrQueueInactive,
	coordinators.ErrPlatformRunNotOnTrack,
	coordinators.ErrNotReadyForBetaRelease,
	coordinators.ErrActiveProductionRelease,
	coordinators.ErrRolloutNotActionable,
	coordinators.ErrRolloutNotStarted,
	coordinators.ErrRolloutNotHaltable,
	coordinators.ErrNotFinalizing,
}

// coordinatorError maps a coordinator failure to an HTTP error.
func coordinatorError(err error, fallback string) *echo.HTTPError {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found").WithInternal(err)
	}
	if errors.Is(err, coordinators.ErrInvalidCustomVersion) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for _, conflict := range conflictErrs {
		if errors.Is(err, conflict) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, fallback).WithInternal(err)
}
