// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCommits(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("first commits move the release on track and trigger the workflow", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, runs := h.seedRelease(t, app, train, "1.3.0")
		release.Status = models.ReleaseStatusCreated
		require.NoError(t, h.releases.Save(nil, &release))
		runs[0].Status = models.PlatformRunStatusCreated
		require.NoError(t, h.runs.Save(nil, &runs[0]))

		err := h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)})
		require.NoError(t, err)

		reloaded, err := h.releases.Read(release.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReleaseStatusOnTrack, reloaded.Status)

		run, err := h.runs.Read(runs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlatformRunStatusOnTrack, run.Status)

		preProds, err := h.preProds.ListByRunAndKind(run.ID, models.PreProdKindBeta)
		require.NoError(t, err)
		require.Len(t, preProds, 1)

		workflow, err := h.workflows.FindByPreProdRelease(nil, preProds[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowRunStatusTriggered, workflow.Status)
		assert.Equal(t, []string{"ci-1"}, h.ci.triggered)
	})

	t.Run("re-delivered pushes do not create duplicate steps", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, runs := h.seedRelease(t, app, train, "1.3.0")

		batch := []shared.VCSCommit{vcsCommit("aaaa1111", base)}
		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, batch))
		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, batch))

		count, err := h.commits.CountByRelease(nil, release.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		preProds, err := h.preProds.ListByRunAndKind(runs[0].ID, models.PreProdKindBeta)
		require.NoError(t, err)
		assert.Len(t, preProds, 1)
		assert.Len(t, h.ci.triggered, 1)
	})

	t.Run("a newer commit supersedes the running workflow", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, runs := h.seedRelease(t, app, train, "1.3.0")

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)}))
		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("bbbb2222", base.Add(time.Minute))}))

		preProds, err := h.preProds.ListByRunAndKind(runs[0].ID, models.PreProdKindBeta)
		require.NoError(t, err)
		require.Len(t, preProds, 2)
		assert.Equal(t, models.PreProdStatusStale, preProds[0].Status)
		assert.Equal(t, models.PreProdStatusCreated, preProds[1].Status)
		assert.Equal(t, &preProds[0].ID, preProds[1].PreviousID)

		superseded, err := h.workflows.FindByPreProdRelease(nil, preProds[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowRunStatusCancelling, superseded.Status)
		assert.Equal(t, []string{"ci-1"}, h.ci.cancelled)

		// the CI system acknowledges the cancel asynchronously
		require.NoError(t, h.workflow.HandleWorkflowRunUpdate("ci-1", models.WorkflowRunStatusCancelled, nil))
		superseded, err = h.workflows.Read(superseded.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowRunStatusCancelled, superseded.Status)
	})

	t.Run("commits for a non-committable release are ignored", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedRelease(t, app, train, "1.3.0")
		release.Status = models.ReleaseStatusPostReleaseStarted
		require.NoError(t, h.releases.Save(nil, &release))

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)}))

		count, err := h.commits.CountByRelease(nil, release.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("ancestry backfill prefers one commit log range query", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedRelease(t, app, train, "1.3.0")

		bare := func(hash string, at time.Time) shared.VCSCommit {
			return shared.VCSCommit{Hash: hash, Message: "change " + hash, Timestamp: at, AuthorName: "Dev"}
		}
		h.vcs.log = []shared.VCSCommit{
			{Hash: "aaaa1111", Parents: []string{"base"}},
			{Hash: "bbbb2222", Parents: []string{"aaaa1111"}},
		}

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{
			bare("bbbb2222", base.Add(time.Minute)),
			bare("aaaa1111", base),
		}))

		assert.Equal(t, []hashRange{{From: "aaaa1111", To: "bbbb2222"}}, h.vcs.logRanges)
		assert.Empty(t, h.vcs.getCommitCalls)

		stored, err := h.commits.FindByReleaseAndHash(nil, release.ID, "bbbb2222")
		require.NoError(t, err)
		assert.Equal(t, []string{"aaaa1111"}, stored.Parents)
	})

	t.Run("ancestry backfill falls back to per-commit lookups", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedRelease(t, app, train, "1.3.0")

		h.vcs.logErr = errors.New("range query unsupported")
		h.vcs.commits["aaaa1111"] = vcsCommit("aaaa1111", base)

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{
			{Hash: "aaaa1111", Message: "change aaaa1111", Timestamp: base, AuthorName: "Dev"},
		}))

		assert.Len(t, h.vcs.logRanges, 1)
		assert.Equal(t, []string{"aaaa1111"}, h.vcs.getCommitCalls)

		stored, err := h.commits.FindByReleaseAndHash(nil, release.ID, "aaaa1111")
		require.NoError(t, err)
		assert.Equal(t, []string{"base"}, stored.Parents)
	})

	t.Run("open pre-release pull requests are closed on first commit", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := h.seedTrain(t, app, nil)
		release, _ := h.seedRelease(t, app, train, "1.3.0")

		pr := models.PullRequest{
			ReleaseID: release.ID,
			Number:    42,
			State:     models.PullRequestStateOpen,
			Phase:     models.PullRequestPhasePreRelease,
			Kind:      models.PullRequestKindVersionBump,
			Automatic: true,
		}
		require.NoError(t, h.pulls.Create(nil, &pr))

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)}))

		reloaded, err := h.pulls.Read(pr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PullRequestStateClosed, reloaded.State)
		assert.Equal(t, []int64{42}, h.vcs.closedPRs)
	})
}

func TestBuildQueue(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	queueTrain := func(t *testing.T, h *harness, app models.App) models.Train {
		return h.seedTrain(t, app, func(tr *models.Train) {
			tr.BuildQueueEnabled = true
			tr.BuildQueueSize = 3
			tr.BuildQueueWaitTime = time.Hour
		})
	}

	t.Run("commits wait in the queue until it fills", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := queueTrain(t, h, app)
		release, runs := h.seedRelease(t, app, train, "1.3.0")

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)}))

		// nothing applied yet
		preProds, err := h.preProds.ListByRunAndKind(runs[0].ID, models.PreProdKindBeta)
		require.NoError(t, err)
		assert.Empty(t, preProds)

		queue, err := h.queues.GetActiveForRelease(nil, release.ID)
		require.NoError(t, err)
		queued, err := h.commits.ListByQueue(nil, queue.ID)
		require.NoError(t, err)
		assert.Len(t, queued, 1)
	})

	t.Run("a full queue drains and only the head commit is built", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := queueTrain(t, h, app)
		release, runs := h.seedRelease(t, app, train, "1.3.0")

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)}))
		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{
			vcsCommit("bbbb2222", base.Add(time.Minute)),
			vcsCommit("cccc3333", base.Add(2*time.Minute)),
		}))

		// only the newest commit triggered a release step
		preProds, err := h.preProds.ListByRunAndKind(runs[0].ID, models.PreProdKindBeta)
		require.NoError(t, err)
		require.Len(t, preProds, 1)
		head, err := h.commits.FindByReleaseAndHash(nil, release.ID, "cccc3333")
		require.NoError(t, err)
		assert.Equal(t, head.ID, preProds[0].CommitID)
		assert.True(t, head.Applied)

		skipped, err := h.commits.FindByReleaseAndHash(nil, release.ID, "aaaa1111")
		require.NoError(t, err)
		assert.False(t, skipped.Applied)
		assert.Nil(t, skipped.BuildQueueID)

		// the drained queue rotated into a fresh active one
		next, err := h.queues.GetActiveForRelease(nil, release.ID)
		require.NoError(t, err)
		queued, err := h.commits.ListByQueue(nil, next.ID)
		require.NoError(t, err)
		assert.Empty(t, queued)
	})

	t.Run("applying an already drained queue fails", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := queueTrain(t, h, app)
		release, _ := h.seedRelease(t, app, train, "1.3.0")

		require.NoError(t, h.process.ProcessCommits(ctx, release.ID, []shared.VCSCommit{vcsCommit("aaaa1111", base)}))
		queue, err := h.queues.GetActiveForRelease(nil, release.ID)
		require.NoError(t, err)

		require.NoError(t, h.queue.ApplyBuildQueue(queue.ID))
		assert.ErrorIs(t, h.queue.ApplyBuildQueue(queue.ID), ErrQueueInactive)
	})

	t.Run("an empty due queue rotates without a release step", func(t *testing.T) {
		h := newHarness()
		app := h.seedApp(t)
		train := queueTrain(t, h, app)
		release, runs := h.seedRelease(t, app, train, "1.3.0")

		queue := models.BuildQueue{ReleaseID: release.ID, ScheduledAt: base, IsActive: true}
		require.NoError(t, h.queues.Create(nil, &queue))

		require.NoError(t, h.queue.ApplyBuildQueue(queue.ID))

		preProds, err := h.preProds.ListByRunAndKind(runs[0].ID, models.PreProdKindBeta)
		require.NoError(t, err)
		assert.Empty(t, preProds)

		drained, err := h.queues.Read(queue.ID)
		require.NoError(t, err)
		assert.False(t, drained.IsActive)
		assert.NotNil(t, drained.AppliedAt)
	})
}
