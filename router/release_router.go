// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"github.com/l3montree-dev/railguard/controllers"
	"github.com/labstack/echo/v4"
)

type ReleaseRouter struct {
	*echo.Group
}

func NewReleaseRouter(
	apiV1Router APIV1Router,
	releaseController *controllers.ReleaseController,
	platformRunController *controllers.PlatformRunController,
	rolloutController *controllers.RolloutController,
) ReleaseRouter {
	releaseRouter := apiV1Router.Group.Group("/releases/:releaseID")
	releaseRouter.GET("/", releaseController.Read)
	releaseRouter.GET("/events/", releaseController.Events)
	releaseRouter.GET("/breakdown/", releaseController.Breakdown)
	releaseRouter.POST("/stop/", releaseController.Stop)
	releaseRouter.POST("/finalize/", releaseController.Finalize)
	releaseRouter.POST("/build-queue/apply/", releaseController.ApplyQueue)

	runRouter := apiV1Router.Group.Group("/platform-runs/:runID")
	runRouter.GET("/", platformRunController.Read)
	runRouter.GET("/builds/", platformRunController.Builds)
	runRouter.GET("/pre-prod-releases/", platformRunController.PreProdReleases)
	runRouter.GET("/production-releases/", platformRunController.ProductionReleases)
	runRouter.GET("/rollouts/", platformRunController.Rollouts)
	runRouter.GET("/events/", platformRunController.Events)
	runRouter.GET("/breakdown/", platformRunController.Breakdown)
	runRouter.POST("/promote-beta/", platformRunController.PromoteBeta)
	runRouter.POST("/conclude/", platformRunController.Conclude)
	runRouter.POST("/production-releases/", platformRunController.StartProduction)

	rolloutRouter := apiV1Router.Group.Group("/rollouts/:rolloutID")
	rolloutRouter.POST("/increase/", rolloutController.Increase)
	rolloutRouter.POST("/halt/", rolloutController.Halt)
	rolloutRouter.POST("/pause/", rolloutController.Pause)
	rolloutRouter.POST("/resume/", rolloutController.Resume)
	rolloutRouter.POST("/fully-release/", rolloutController.FullyRelease)

	return ReleaseRouter{Group: releaseRouter}
}
