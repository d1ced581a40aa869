// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/l3montree-dev/railguard/cmd/railguard/api"
	"github.com/l3montree-dev/railguard/controllers"
	"github.com/l3montree-dev/railguard/coordinators"
	"github.com/l3montree-dev/railguard/daemons"
	"github.com/l3montree-dev/railguard/database"
	"github.com/l3montree-dev/railguard/database/repositories"
	"github.com/l3montree-dev/railguard/integrations"
	"github.com/l3montree-dev/railguard/metrics"
	"github.com/l3montree-dev/railguard/router"
	"github.com/l3montree-dev/railguard/shared"
	"go.uber.org/fx"

	_ "github.com/lib/pq"
)

var release string // Will be filled at build time

func main() {
	shared.LoadConfig() // nolint: errcheck
	shared.InitLogger()

	if os.Getenv("ERROR_TRACKING_DSN") != "" {
		initSentry()

		defer func() {
			if err := recover(); err != nil {
				sentry.CurrentHub().Recover(err)
				sentry.Flush(time.Second * 5)
			}
		}()
	}

	db, err := shared.DatabaseFactory()
	if err != nil {
		slog.Error(err.Error())
		panic(errors.New("failed to setup database connection"))
	}

	if os.Getenv("DISABLE_AUTOMIGRATE") != "true" {
		slog.Info("running database migrations...")
		if err := database.RunMigrations(db); err != nil {
			slog.Error("failed to run database migrations", "error", err)
			panic(errors.New("failed to run database migrations"))
		}
	} else {
		slog.Info("automatic migrations disabled via DISABLE_AUTOMIGRATE=true")
	}

	fx.New(
		fx.Supply(db),
		fx.Provide(api.NewServer),
		repositories.Module,
		integrations.Module,
		coordinators.Module,
		metrics.Module,
		controllers.ControllerModule,
		router.RouterModule,
		daemons.Module,

		// invoke all routers so they register their routes
		fx.Invoke(func(appRouter router.AppRouter) {}),
		fx.Invoke(func(trainRouter router.TrainRouter) {}),
		fx.Invoke(func(releaseRouter router.ReleaseRouter) {}),
	).Run()
}

func initSentry() {
	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("ERROR_TRACKING_DSN"),
		Environment:      environment,
		Release:          release,
		Debug:            environment == "dev",
		AttachStacktrace: true,
		SendDefaultPII:   false,
	})
	if err != nil {
		slog.Error("failed to init error tracking", "err", err)
	}
}
