// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package controllers

import (
	"net/http"

	"github.com/l3montree-dev/railguard/coordinators"
	"github.com/l3montree-dev/railguard/dtos"
	"github.com/l3montree-dev/railguard/shared"
)

type RolloutController struct {
	rolloutCoordinator *coordinators.StoreRolloutCoordinator
}

func NewRolloutController(rolloutCoordinator *coordinators.StoreRolloutCoordinator) *RolloutController {
	return &RolloutController{rolloutCoordinator: rolloutCoordinator}
}

func (h *RolloutController) Increase(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "rolloutID")
	if err != nil {
		return err
	}
	if err := h.rolloutCoordinator.Increase(id); err != nil {
		return coordinatorError(err, "could not increase rollout")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *RolloutController) Halt(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "rolloutID")
	if err != nil {
		return err
	}
	var req dtos.RolloutHaltRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}
	if err := h.rolloutCoordinator.Halt(id, req.Reason); err != nil {
		return coordinatorError(err, "could not halt rollout")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *RolloutController) Pause(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "rolloutID")
	if err != nil {
		return err
	}
	if err := h.rolloutCoordinator.Pause(id); err != nil {
		return coordinatorError(err, "could not pause rollout")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *RolloutController) Resume(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "rolloutID")
	if err != nil {
		return err
	}
	if err := h.rolloutCoordinator.Resume(id); err != nil {
		return coordinatorError(err, "could not resume rollout")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *RolloutController) FullyRelease(ctx shared.Context) error {
	id, err := parseUUIDParam(ctx, "rolloutID")
	if err != nil {
		return err
	}
	if err := h.rolloutCoordinator.FullyRelease(id); err != nil {
		return coordinatorError(err, "could not fully release rollout")
	}
	return ctx.NoContent(http.StatusNoContent)
}
