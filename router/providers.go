// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "go.uber.org/fx"

var RouterModule = fx.Options(
	fx.Provide(NewAPIV1Router),
	fx.Provide(NewAppRouter),
	fx.Provide(NewTrainRouter),
	fx.Provide(NewReleaseRouter),
)
