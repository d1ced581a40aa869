// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"os"
	"runtime"
	"time"

	"github.com/l3montree-dev/railguard/cmd/railguard/api"
	"github.com/l3montree-dev/railguard/controllers"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIV1Router struct {
	*echo.Group
}

func NewAPIV1Router(srv api.Server, db shared.DB, webhookController *controllers.WebhookController) APIV1Router {
	apiV1Router := srv.Echo.Group("/api/v1")

	apiV1Router.GET("/info/", func(c echo.Context) error {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		host, _ := os.Hostname()
		return c.JSON(200, echo.Map{
			"runtime": echo.Map{
				"goVersion":     runtime.Version(),
				"numGoroutines": runtime.NumGoroutine(),
				"heapAlloc":     mem.HeapAlloc,
			},
			"process": echo.Map{
				"pid":           os.Getpid(),
				"hostname":      host,
				"uptimeSeconds": int(time.Since(api.StartedAt).Seconds()),
			},
		})
	})

	apiV1Router.GET("/metrics/", echo.WrapHandler(promhttp.Handler()))
	apiV1Router.GET("/health/", func(ctx echo.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return ctx.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  "failed to get database instance",
			})
		}

		if err := sqlDB.Ping(); err != nil {
			return ctx.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  "database ping failed",
			})
		}

		return ctx.JSON(200, map[string]string{
			"status": "healthy",
		})
	})

	webhookRouter := apiV1Router.Group("/webhooks", webhookTokenMiddleware())
	webhookRouter.POST("/vcs/:trainID/", webhookController.HandleVCSPush)
	webhookRouter.POST("/ci/", webhookController.HandleCIEvent)
	webhookRouter.POST("/store/", webhookController.HandleStoreEvent)
	webhookRouter.POST("/health/", webhookController.HandleHealthEvent)

	return APIV1Router{
		Group: apiV1Router,
	}
}
