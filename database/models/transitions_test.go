// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseTransitions(t *testing.T) {
	t.Run("created release can start tracking", func(t *testing.T) {
		release := Release{Status: ReleaseStatusCreated}
		assert.NoError(t, release.TransitionTo(ReleaseStatusOnTrack))
		assert.Equal(t, ReleaseStatusOnTrack, release.Status)
	})

	t.Run("created release cannot finish directly", func(t *testing.T) {
		release := Release{Status: ReleaseStatusCreated}
		err := release.TransitionTo(ReleaseStatusFinished)
		assert.Error(t, err)
		assert.Equal(t, ReleaseStatusCreated, release.Status)
	})

	t.Run("post release failure can be retried", func(t *testing.T) {
		release := Release{Status: ReleaseStatusPostReleaseStarted}
		assert.NoError(t, release.TransitionTo(ReleaseStatusPostReleaseFailed))
		assert.NoError(t, release.TransitionTo(ReleaseStatusPostReleaseStarted))
		assert.NoError(t, release.TransitionTo(ReleaseStatusFinished))
	})

	t.Run("terminal statuses reject every transition", func(t *testing.T) {
		for _, from := range []ReleaseStatus{ReleaseStatusFinished, ReleaseStatusStopped} {
			release := Release{Status: from}
			assert.False(t, release.CanTransitionTo(ReleaseStatusOnTrack).Allowed)
			assert.False(t, release.CanTransitionTo(ReleaseStatusStopped).Allowed)
		}
	})

	t.Run("every non terminal status can be stopped", func(t *testing.T) {
		for _, from := range []ReleaseStatus{
			ReleaseStatusCreated,
			ReleaseStatusOnTrack,
			ReleaseStatusPartiallyFinished,
			ReleaseStatusPostReleaseStarted,
			ReleaseStatusPostReleaseFailed,
		} {
			release := Release{Status: from}
			assert.True(t, release.CanTransitionTo(ReleaseStatusStopped).Allowed, string(from))
		}
	})

	t.Run("unknown status counts as terminal", func(t *testing.T) {
		release := Release{Status: ReleaseStatus("bogus")}
		decision := release.CanTransitionTo(ReleaseStatusOnTrack)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.Reason, "bogus")
	})
}

func TestReleasePredicates(t *testing.T) {
	t.Run("committable while the pipeline is running", func(t *testing.T) {
		assert.True(t, Release{Status: ReleaseStatusCreated}.Committable())
		assert.True(t, Release{Status: ReleaseStatusOnTrack}.Committable())
		assert.True(t, Release{Status: ReleaseStatusPartiallyFinished}.Committable())
		assert.False(t, Release{Status: ReleaseStatusPostReleaseStarted}.Committable())
		assert.False(t, Release{Status: ReleaseStatusFinished}.Committable())
	})

	t.Run("ongoing until a terminal status", func(t *testing.T) {
		assert.True(t, Release{Status: ReleaseStatusPostReleaseFailed}.Ongoing())
		assert.False(t, Release{Status: ReleaseStatusFinished}.Ongoing())
		assert.False(t, Release{Status: ReleaseStatusStopped}.Ongoing())
	})

	t.Run("hotfix flag follows the release type", func(t *testing.T) {
		assert.True(t, Release{ReleaseType: ReleaseTypeHotfix}.Hotfix())
		assert.False(t, Release{ReleaseType: ReleaseTypeRelease}.Hotfix())
	})
}

func TestPlatformRunTransitions(t *testing.T) {
	t.Run("full happy path", func(t *testing.T) {
		run := ReleasePlatformRun{Status: PlatformRunStatusCreated}
		assert.NoError(t, run.TransitionTo(PlatformRunStatusOnTrack))
		assert.NoError(t, run.TransitionTo(PlatformRunStatusConcluded))
		assert.NoError(t, run.TransitionTo(PlatformRunStatusFinished))
		assert.True(t, run.Terminal())
	})

	t.Run("cannot conclude before tracking", func(t *testing.T) {
		run := ReleasePlatformRun{Status: PlatformRunStatusCreated}
		assert.Error(t, run.TransitionTo(PlatformRunStatusConcluded))
	})

	t.Run("cannot reopen a finished run", func(t *testing.T) {
		run := ReleasePlatformRun{Status: PlatformRunStatusFinished}
		assert.Error(t, run.TransitionTo(PlatformRunStatusOnTrack))
	})
}

func TestWorkflowRunTransitions(t *testing.T) {
	t.Run("run can finish while cancelling", func(t *testing.T) {
		run := WorkflowRun{Status: WorkflowRunStatusStarted}
		assert.NoError(t, run.TransitionTo(WorkflowRunStatusCancelling))
		assert.NoError(t, run.TransitionTo(WorkflowRunStatusFinished))
	})

	t.Run("triggering run cannot skip to finished", func(t *testing.T) {
		run := WorkflowRun{Status: WorkflowRunStatusTriggering}
		assert.Error(t, run.TransitionTo(WorkflowRunStatusFinished))
	})

	t.Run("unavailable is terminal", func(t *testing.T) {
		run := WorkflowRun{Status: WorkflowRunStatusUnavailable}
		assert.Error(t, run.TransitionTo(WorkflowRunStatusTriggered))
	})

	t.Run("unfinished covers every pre-completion status", func(t *testing.T) {
		assert.True(t, WorkflowRun{Status: WorkflowRunStatusTriggering}.Unfinished())
		assert.True(t, WorkflowRun{Status: WorkflowRunStatusTriggered}.Unfinished())
		assert.True(t, WorkflowRun{Status: WorkflowRunStatusStarted}.Unfinished())
		assert.False(t, WorkflowRun{Status: WorkflowRunStatusCancelling}.Unfinished())
		assert.False(t, WorkflowRun{Status: WorkflowRunStatusFinished}.Unfinished())
	})
}

func TestSubmissionTransitions(t *testing.T) {
	t.Run("review rejection allows resubmission", func(t *testing.T) {
		submission := StoreSubmission{Status: SubmissionStatusSubmittedForReview}
		assert.NoError(t, submission.TransitionTo(SubmissionStatusReviewFailed))
		assert.NoError(t, submission.TransitionTo(SubmissionStatusPreparing))
	})

	t.Run("stores without review finish from prepared", func(t *testing.T) {
		submission := StoreSubmission{Status: SubmissionStatusPrepared}
		assert.NoError(t, submission.TransitionTo(SubmissionStatusFinished))
		assert.True(t, submission.Finished())
	})

	t.Run("approved submission cannot fail review again", func(t *testing.T) {
		submission := StoreSubmission{Status: SubmissionStatusApproved}
		assert.Error(t, submission.TransitionTo(SubmissionStatusReviewFailed))
		assert.NoError(t, submission.TransitionTo(SubmissionStatusFinished))
	})
}

func TestRolloutTransitions(t *testing.T) {
	t.Run("halted rollout can be resumed", func(t *testing.T) {
		rollout := StoreRollout{Status: RolloutStatusHalted}
		assert.NoError(t, rollout.TransitionTo(RolloutStatusStarted))
	})

	t.Run("paused rollout cannot complete without resuming", func(t *testing.T) {
		rollout := StoreRollout{Status: RolloutStatusPaused}
		assert.Error(t, rollout.TransitionTo(RolloutStatusCompleted))
		assert.NoError(t, rollout.TransitionTo(RolloutStatusStarted))
		assert.NoError(t, rollout.TransitionTo(RolloutStatusCompleted))
	})

	t.Run("fully released is terminal", func(t *testing.T) {
		rollout := StoreRollout{Status: RolloutStatusFullyReleased}
		assert.Error(t, rollout.TransitionTo(RolloutStatusStarted))
		assert.True(t, rollout.Terminal())
	})
}
