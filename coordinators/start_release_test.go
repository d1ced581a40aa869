// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"testing"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("creates release with platform runs and cuts the branch", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t, models.PlatformIOS, models.PlatformAndroid)
		train := h.seedTrain(t, app, nil)

		release, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		require.NoError(t, err)

		assert.Equal(t, "1.3.0", release.ReleaseVersion)
		assert.Equal(t, "r/weekly/1.3.0", release.BranchName)
		assert.Equal(t, models.ReleaseStatusCreated, release.Status)

		runs, err := h.runs.GetByRelease(nil, release.ID)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
		for _, run := range runs {
			assert.Equal(t, models.PlatformRunStatusCreated, run.Status)
			assert.Equal(t, "1.3.0", run.ReleaseVersion)
		}

		require.Len(t, h.vcs.createdBranches, 1)
		assert.Equal(t, "main", h.vcs.createdBranches[0].From)
		assert.Equal(t, "r/weekly/1.3.0", h.vcs.createdBranches[0].Name)
		assert.Contains(t, h.events.reasons(models.StampableRelease, release.ID), "release_started")
	})

	t.Run("registers the push webhook for the train", func(t *testing.T) {
		t.Setenv("WEBHOOK_CALLBACK_BASE_URL", "https://railguard.example.com/")
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)

		_, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		require.NoError(t, err)

		require.Len(t, h.vcs.registeredWebhooks, 1)
		assert.Equal(t, "https://railguard.example.com/api/v1/webhooks/vcs/"+train.ID.String()+"/", h.vcs.registeredWebhooks[0])
	})

	t.Run("suffixes the branch name when it already exists", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		h.vcs.branches["r/weekly/1.3.0"] = true

		release, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "r/weekly/1.3.0-1", release.BranchName)
	})

	t.Run("rejects a second regular release", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		h.seedRelease(t, app, train, "1.3.0")

		_, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		assert.ErrorIs(t, err, ErrReleaseAlreadyInProgress)
	})

	t.Run("allows one upcoming release when configured", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, func(tr *models.Train) {
			tr.UpcomingReleaseStartable = true
			// the ongoing release already advanced the train version
			tr.CurrentVersion = "1.3.0"
		})
		h.seedRelease(t, app, train, "1.3.0")

		upcoming, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "1.4.0", upcoming.ReleaseVersion)

		_, err = h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		assert.ErrorIs(t, err, ErrUpcomingReleaseExists)
	})

	t.Run("hotfix runs next to an ongoing release", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)

		finished := models.Release{
			TrainID:        train.ID,
			Status:         models.ReleaseStatusFinished,
			ReleaseVersion: "1.2.0",
			BranchName:     "r/weekly/1.2.0",
			Tag:            "v1.2.0",
		}
		require.NoError(t, h.releases.Create(nil, &finished))
		h.vcs.tags["v1.2.0"] = true
		h.seedRelease(t, app, train, "1.3.0")

		hotfix, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{Hotfix: true})
		require.NoError(t, err)
		assert.True(t, hotfix.Hotfix())
		assert.Equal(t, "1.2.1", hotfix.ReleaseVersion)
		assert.Equal(t, &finished.ID, hotfix.HotfixedFromID)
		// the source branch is gone, so the hotfix branches from the tag
		assert.True(t, hotfix.NewHotfixBranch)
		require.Len(t, h.vcs.createdBranches, 1)
		assert.Equal(t, "v1.2.0", h.vcs.createdBranches[0].From)

		_, err = h.start.StartRelease(ctx, train.ID, StartReleaseOptions{Hotfix: true})
		assert.ErrorIs(t, err, ErrReleaseAlreadyInProgress)
	})

	t.Run("hotfix reuses the finished release branch when it still exists", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)

		finished := models.Release{
			TrainID:        train.ID,
			Status:         models.ReleaseStatusFinished,
			ReleaseVersion: "1.2.0",
			BranchName:     "r/weekly/1.2.0",
			Tag:            "v1.2.0",
		}
		require.NoError(t, h.releases.Create(nil, &finished))
		h.vcs.tags["v1.2.0"] = true
		h.vcs.branches["r/weekly/1.2.0"] = true

		hotfix, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{Hotfix: true})
		require.NoError(t, err)
		assert.Equal(t, "r/weekly/1.2.0", hotfix.BranchName)
		assert.False(t, hotfix.NewHotfixBranch)
		assert.Empty(t, h.vcs.createdBranches)
	})

	t.Run("hotfix without a finished release is rejected", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)

		_, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{Hotfix: true})
		assert.ErrorIs(t, err, ErrHotfixRequiresFinished)
	})

	t.Run("custom version must match the strategy", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)

		_, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{CustomVersion: "2.0"})
		assert.ErrorIs(t, err, ErrInvalidCustomVersion)

		release, err := h.start.StartRelease(ctx, train.ID, StartReleaseOptions{CustomVersion: "2.0.0"})
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", release.ReleaseVersion)
	})

	t.Run("inactive trains and draft apps cannot start releases", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		inactive := h.seedTrain(t, app, func(tr *models.Train) { tr.Status = models.TrainStatusInactive })
		_, err := h.start.StartRelease(ctx, inactive.ID, StartReleaseOptions{})
		assert.ErrorIs(t, err, ErrTrainNotActive)

		draftApp := models.App{Name: "Draft", Slug: "draft-app", Platforms: []string{"ios"}, DraftMode: true}
		require.NoError(t, h.apps.Create(nil, &draftApp))
		train := h.seedTrain(t, draftApp, func(tr *models.Train) { tr.Slug = "draft-weekly" })
		_, err = h.start.StartRelease(ctx, train.ID, StartReleaseOptions{})
		assert.ErrorIs(t, err, ErrAppInDraftMode)
	})
}

func TestStopRelease(t *testing.T) {
	t.Run("stops the release and all non-terminal runs", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t, models.PlatformIOS, models.PlatformAndroid)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedRelease(t, app, train, "1.3.0")

		require.NoError(t, h.stop.StopRelease(release.ID))

		stopped, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusStopped, stopped.Status)
		assert.NotNil(t, stopped.StoppedAt)

		runs, err := h.runs.GetByRelease(nil, release.ID)
		require.NoError(t, err)
		for _, run := range runs {
			assert.Equal(t, models.PlatformRunStatusStopped, run.Status)
		}
		assert.Contains(t, h.cache.thawedReleases, release.ID)
	})

	t.Run("stopping a partially finished release rolls the train version back", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)

		finished := models.Release{TrainID: train.ID, Status: models.ReleaseStatusFinished, ReleaseVersion: "1.2.0"}
		require.NoError(t, h.releases.Create(nil, &finished))

		release, _ := h.seedRelease(t, app, train, "1.3.0")
		release.Status = models.ReleaseStatusPartiallyFinished
		require.NoError(t, h.releases.Save(nil, &release))
		train.CurrentVersion = "1.3.0"
		require.NoError(t, h.trains.Save(nil, &train))

		require.NoError(t, h.stop.StopRelease(release.ID))

		reloaded, err := h.trains.Read(train.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", reloaded.CurrentVersion)
	})

	t.Run("a finished release cannot be stopped", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release := models.Release{TrainID: train.ID, Status: models.ReleaseStatusFinished, ReleaseVersion: "1.2.0"}
		require.NoError(t, h.releases.Create(nil, &release))

		assert.Error(t, h.stop.StopRelease(release.ID))
	})
}
