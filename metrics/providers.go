// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"github.com/l3montree-dev/railguard/coordinators"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(
		NewService,
		NewCache,
		func(c *Cache) coordinators.BreakdownCache { return c },
	),
)
