// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"errors"
	"testing"
	"time"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFinalizing puts a release into the post-release phase with its
// platform runs concluded, as ConcludePlatformRun would leave them.
func (h *harness) seedFinalizing(t *testing.T, app models.App, train models.Train, version string) (models.Release, []models.ReleasePlatformRun) {
	t.Helper()
	release, runs := h.seedRelease(t, app, train, version)
	release.Status = models.ReleaseStatusPostReleaseStarted
	require.NoError(t, h.releases.Save(nil, &release))
	for i := range runs {
		runs[i].Status = models.PlatformRunStatusConcluded
		require.NoError(t, h.runs.Save(nil, &runs[i]))
	}
	return release, runs
}

func TestFinalizeRelease(t *testing.T) {
	t.Run("finalizes a clean almost-trunk release", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, runs := h.seedFinalizing(t, app, train, "1.3.0")

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		finished, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusFinished, finished.Status)
		assert.Equal(t, "v1.3.0", finished.Tag)
		assert.NotNil(t, finished.CompletedAt)
		assert.Equal(t, []string{"v1.3.0"}, h.vcs.createdTags)

		run, err := h.runs.Read(runs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlatformRunStatusFinished, run.Status)

		reloadedTrain, err := h.trains.Read(train.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.3.0", reloadedTrain.CurrentVersion)

		assert.Contains(t, h.events.reasons(models.StampableRelease, release.ID), "release_finished")
		assert.Contains(t, h.cache.thawedReleases, release.ID)
		assert.Contains(t, h.notify.messages, "release 1.3.0 finished")
	})

	t.Run("an existing tag is reused instead of recreated", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")
		h.vcs.tags["v1.3.0"] = true

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		finished, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, "v1.3.0", finished.Tag)
		assert.Empty(t, h.vcs.createdTags)
	})

	t.Run("an open automatic pull request blocks finalization", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")
		pr := models.PullRequest{
			ReleaseID: release.ID,
			Number:    7,
			State:     models.PullRequestStateOpen,
			Phase:     models.PullRequestPhaseMidRelease,
			Kind:      models.PullRequestKindBackMerge,
			Automatic: true,
		}
		require.NoError(t, h.pulls.Create(nil, &pr))

		// blocked finalization is recorded, not raised
		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		blocked, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusPostReleaseFailed, blocked.Status)
		assert.Empty(t, h.vcs.createdTags)
		assert.Contains(t, h.events.reasons(models.StampableRelease, release.ID), "post_release_blocked")
	})

	t.Run("a failed backmerge commit blocks finalization", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")
		commit := h.seedCommit(t, release.ID, "deadbeefcafe", time.Now())
		commit.BackmergeFailure = true
		require.NoError(t, h.commits.Save(nil, &commit))

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		blocked, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusPostReleaseFailed, blocked.Status)
	})

	t.Run("force retries past the blockers", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")
		pr := models.PullRequest{
			ReleaseID: release.ID,
			Number:    7,
			State:     models.PullRequestStateOpen,
			Phase:     models.PullRequestPhaseMidRelease,
			Kind:      models.PullRequestKindBackMerge,
			Automatic: true,
		}
		require.NoError(t, h.pulls.Create(nil, &pr))
		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, true))

		finished, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusFinished, finished.Status)
		assert.Equal(t, "v1.3.0", finished.Tag)
	})

	t.Run("a release outside the post-release phase is rejected", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedRelease(t, app, train, "1.3.0")

		assert.ErrorIs(t, h.finalize.FinalizeRelease(release.ID, false), ErrNotFinalizing)
	})

	t.Run("release-backmerge opens a backmerge pull request", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, func(tr *models.Train) {
			tr.BranchingStrategy = models.BranchingReleaseBackmerge
		})
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		prs, err := h.pulls.ListOpenByPhase(nil, release.ID, models.PullRequestPhasePostRelease)
		require.NoError(t, err)
		require.Len(t, prs, 1)
		assert.Equal(t, models.PullRequestKindBackMerge, prs[0].Kind)
		assert.Equal(t, int64(101), prs[0].Number)
		assert.Equal(t, "main", prs[0].BaseRef)
		assert.Equal(t, release.BranchName, prs[0].HeadRef)

		finished, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusFinished, finished.Status)
	})

	t.Run("parallel-working merges the forward pull request", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, func(tr *models.Train) {
			tr.BranchingStrategy = models.BranchingParallelWorking
		})
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		all, err := h.pulls.All()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, models.PullRequestKindForwardMerge, all[0].Kind)
		assert.Equal(t, models.PullRequestStateMerged, all[0].State)
		assert.NotNil(t, all[0].MergedAt)
		assert.Equal(t, []int64{101}, h.vcs.mergedPRs)
	})

	t.Run("a conflicted forward merge stays open for a human", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, func(tr *models.Train) {
			tr.BranchingStrategy = models.BranchingParallelWorking
		})
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")
		h.vcs.mergeErr = errors.New("merge conflict")

		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		all, err := h.pulls.All()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, models.PullRequestStateOpen, all[0].State)
		assert.Nil(t, all[0].MergedAt)
		assert.Empty(t, h.vcs.mergedPRs)
	})

	t.Run("a failing pull request creation records a post-release failure", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, func(tr *models.Train) {
			tr.BranchingStrategy = models.BranchingReleaseBackmerge
		})
		release, _ := h.seedFinalizing(t, app, train, "1.3.0")
		h.vcs.createPRErr = errors.New("vcs unavailable")

		// the failure is recorded on the release rather than raised
		require.NoError(t, h.finalize.FinalizeRelease(release.ID, false))

		failed, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusPostReleaseFailed, failed.Status)
		assert.Contains(t, h.events.reasons(models.StampableRelease, release.ID), "post_release_failed")
	})
}
