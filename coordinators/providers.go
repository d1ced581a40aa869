// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import "go.uber.org/fx"

var Module = fx.Module("coordinators",
	fx.Provide(
		NewPreProdCoordinator,
		NewApplyCommitCoordinator,
		NewBuildQueueCoordinator,
		NewProcessCommitsCoordinator,
		NewStartReleaseCoordinator,
		NewWorkflowRunCoordinator,
		NewProductionReleaseCoordinator,
		NewStoreRolloutCoordinator,
		NewReleaseLifecycleCoordinator,
		NewFinalizeReleaseCoordinator,
		NewStopReleaseCoordinator,
		NewReleaseHealthCoordinator,
		func(f *FinalizeReleaseCoordinator) releaseFinalizer { return f },
	),
)
