// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package daemons

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("daemons",
	fx.Provide(NewDaemonRunner),
	fx.Invoke(func(lc fx.Lifecycle, runner *DaemonRunner) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				runner.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				runner.Stop()
				return nil
			},
		})
	}),
)
