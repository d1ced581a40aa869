// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"github.com/l3montree-dev/railguard/controllers"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/labstack/echo/v4"
)

type AppRouter struct {
	*echo.Group
}

func NewAppRouter(
	apiV1Router APIV1Router,
	appController *controllers.AppController,
	trainController *controllers.TrainController,
	appRepository shared.AppRepository,
) AppRouter {
	apiV1Router.GET("/apps/", appController.List)
	apiV1Router.POST("/apps/", appController.Create)

	appRouter := apiV1Router.Group.Group("/apps/:appSlug", appMiddleware(appRepository))
	appRouter.GET("/", appController.Read)

	appRouter.GET("/trains/", trainController.List)
	appRouter.POST("/trains/", trainController.Create)

	return AppRouter{Group: appRouter}
}

type TrainRouter struct {
	*echo.Group
}

func NewTrainRouter(
	appRouter AppRouter,
	trainController *controllers.TrainController,
	releaseController *controllers.ReleaseController,
	trainRepository shared.TrainRepository,
) TrainRouter {
	trainRouter := appRouter.Group.Group("/trains/:trainSlug", trainMiddleware(trainRepository))
	trainRouter.GET("/", trainController.Read)
	trainRouter.PATCH("/", trainController.Update)
	trainRouter.DELETE("/", trainController.Delete)

	trainRouter.GET("/releases/", releaseController.List)
	trainRouter.POST("/releases/", releaseController.Start)

	return TrainRouter{Group: trainRouter}
}
