// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package controllers

import (
	"go.uber.org/fx"
)

var ControllerModule = fx.Options(
	fx.Provide(NewAppController),
	fx.Provide(NewTrainController),
	fx.Provide(NewReleaseController),
	fx.Provide(NewPlatformRunController),
	fx.Provide(NewRolloutController),
	fx.Provide(NewWebhookController),
)
