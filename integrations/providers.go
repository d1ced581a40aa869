// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package integrations wires the external providers: the VCS and CI
// system, the store providers and the notification sink.
package integrations

import (
	"fmt"
	"os"

	"github.com/l3montree-dev/railguard/integrations/githubint"
	"github.com/l3montree-dev/railguard/integrations/gitlabint"
	"github.com/l3montree-dev/railguard/integrations/notifyint"
	"github.com/l3montree-dev/railguard/integrations/storeint"
	"github.com/l3montree-dev/railguard/shared"
	"go.uber.org/fx"
)

// vcsAndCI bundles the two provider interfaces one backend serves.
type vcsAndCI interface {
	shared.VCSProvider
	shared.CIProvider
}

// newVCSBackend selects the backend via VCS_PROVIDER (github or gitlab).
func newVCSBackend() (vcsAndCI, error) {
	switch provider := os.Getenv("VCS_PROVIDER"); provider {
	case "", "github":
		return githubint.NewGithubProvider()
	case "gitlab":
		return gitlabint.NewGitlabProvider()
	default:
		return nil, fmt.Errorf("unknown VCS_PROVIDER %q", provider)
	}
}

var Module = fx.Module("integrations",
	fx.Provide(
		newVCSBackend,
		func(backend vcsAndCI) shared.VCSProvider { return backend },
		func(backend vcsAndCI) shared.CIProvider { return backend },
		func() shared.StoreProviderRegistry { return storeint.NewRegistry() },
		notifyint.NewSinkFromEnv,
	),
)
