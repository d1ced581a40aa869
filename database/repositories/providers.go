// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"github.com/l3montree-dev/railguard/shared"
	"go.uber.org/fx"
)

var Module = fx.Module("repositories",
	fx.Provide(fx.Annotate(NewAppRepository, fx.As(new(shared.AppRepository)))),
	fx.Provide(fx.Annotate(NewTrainRepository, fx.As(new(shared.TrainRepository)))),
	fx.Provide(fx.Annotate(NewReleaseRepository, fx.As(new(shared.ReleaseRepository)))),
	fx.Provide(fx.Annotate(NewReleasePlatformRunRepository, fx.As(new(shared.ReleasePlatformRunRepository)))),
	fx.Provide(fx.Annotate(NewCommitRepository, fx.As(new(shared.CommitRepository)))),
	fx.Provide(fx.Annotate(NewBuildQueueRepository, fx.As(new(shared.BuildQueueRepository)))),
	fx.Provide(fx.Annotate(NewPreProdReleaseRepository, fx.As(new(shared.PreProdReleaseRepository)))),
	fx.Provide(fx.Annotate(NewWorkflowRunRepository, fx.As(new(shared.WorkflowRunRepository)))),
	fx.Provide(fx.Annotate(NewBuildRepository, fx.As(new(shared.BuildRepository)))),
	fx.Provide(fx.Annotate(NewProductionReleaseRepository, fx.As(new(shared.ProductionReleaseRepository)))),
	fx.Provide(fx.Annotate(NewStoreSubmissionRepository, fx.As(new(shared.StoreSubmissionRepository)))),
	fx.Provide(fx.Annotate(NewStoreRolloutRepository, fx.As(new(shared.StoreRolloutRepository)))),
	fx.Provide(fx.Annotate(NewPullRequestRepository, fx.As(new(shared.PullRequestRepository)))),
	fx.Provide(fx.Annotate(NewReleaseEventRepository, fx.As(new(shared.ReleaseEventRepository)))),
	fx.Provide(fx.Annotate(NewReleaseHealthRuleRepository, fx.As(new(shared.ReleaseHealthRuleRepository)))),
	fx.Provide(fx.Annotate(NewReleaseHealthEventRepository, fx.As(new(shared.ReleaseHealthEventRepository)))),
)
