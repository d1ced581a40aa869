// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/l3montree-dev/railguard/shared"
	"github.com/labstack/echo/v4"
)

func appMiddleware(repository shared.AppRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug, err := shared.GetAppSlug(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid app slug")
			}

			app, err := repository.GetBySlug(slug)
			if err != nil {
				return echo.NewHTTPError(http.StatusNotFound, "could not find app").WithInternal(err)
			}

			shared.SetApp(c, app)
			return next(c)
		}
	}
}

func trainMiddleware(repository shared.TrainRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug, err := shared.GetTrainSlug(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid train slug")
			}

			train, err := repository.GetBySlug(slug)
			if err != nil {
				return echo.NewHTTPError(http.StatusNotFound, "could not find train").WithInternal(err)
			}

			shared.SetTrain(c, train)
			return next(c)
		}
	}
}

// webhookTokenMiddleware rejects webhook calls without the shared secret.
// When WEBHOOK_SHARED_SECRET is unset the check is skipped, which is only
// acceptable for local development.
func webhookTokenMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			secret := os.Getenv("WEBHOOK_SHARED_SECRET")
			if secret == "" {
				return next(c)
			}
			token := c.Request().Header.Get("X-Railguard-Token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
			}
			return next(c)
		}
	}
}
