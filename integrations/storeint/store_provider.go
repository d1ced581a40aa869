// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storeint holds the store provider implementations. The logging
// provider stands in for stores that are driven manually or not connected
// yet; every call succeeds and is logged so the release flow can be run
// end to end without store credentials.
package storeint

import (
	"context"
	"log/slog"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
)

type LoggingStoreProvider struct {
	store models.Store
}

func NewLoggingStoreProvider(store models.Store) *LoggingStoreProvider {
	return &LoggingStoreProvider{store: store}
}

func (p *LoggingStoreProvider) PrepareSubmission(ctx context.Context, submission models.StoreSubmission, build models.Build) error {
	slog.Info("preparing store submission", "store", p.store, "submissionId", submission.ID, "buildNumber", build.BuildNumber)
	return nil
}

func (p *LoggingStoreProvider) SubmitForReview(ctx context.Context, submission models.StoreSubmission) error {
	slog.Info("submitting for review", "store", p.store, "submissionId", submission.ID)
	return nil
}

func (p *LoggingStoreProvider) StartRollout(ctx context.Context, rollout models.StoreRollout) error {
	slog.Info("starting rollout", "store", p.store, "rolloutId", rollout.ID, "staged", rollout.IsStaged)
	return nil
}

func (p *LoggingStoreProvider) SetRolloutStage(ctx context.Context, rollout models.StoreRollout, percentage float64) error {
	slog.Info("setting rollout stage", "store", p.store, "rolloutId", rollout.ID, "percentage", percentage)
	return nil
}

func (p *LoggingStoreProvider) HaltRollout(ctx context.Context, rollout models.StoreRollout) error {
	slog.Info("halting rollout", "store", p.store, "rolloutId", rollout.ID)
	return nil
}

func (p *LoggingStoreProvider) FullyRelease(ctx context.Context, rollout models.StoreRollout) error {
	slog.Info("fully releasing rollout", "store", p.store, "rolloutId", rollout.ID)
	return nil
}

// Registry resolves a provider per store, falling back to the logging
// provider for stores without a dedicated implementation.
type Registry struct {
	providers map[models.Store]shared.StoreProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[models.Store]shared.StoreProvider{}}
}

func (r *Registry) Register(store models.Store, provider shared.StoreProvider) {
	r.providers[store] = provider
}

func (r *Registry) For(store models.Store) shared.StoreProvider {
	if provider, ok := r.providers[store]; ok {
		return provider
	}
	return NewLoggingStoreProvider(store)
}
