// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coordinators holds the stateless command objects that sequence
// release operations across entities transactionally. Every coordinator
// acquires the relevant row lock before checking preconditions and never
// holds it across an external network call.
package coordinators

import "github.com/pkg/errors"

// Precondition violations. They abort the transaction, surface to the user
// and must not be retried.
var (
	ErrTrainNotActive           = errors.New("train is not active")
	ErrAppInDraftMode           = errors.New("app is in draft mode and cannot release to restricted channels")
	ErrReleaseAlreadyInProgress = errors.New("another release is already in progress for this train")
	ErrUpcomingReleaseExists    = errors.New("an upcoming release already exists for this train")
	ErrHotfixRequiresFinished   = errors.New("a hotfix requires a previously finished release")
	ErrHotfixSourceMissing      = errors.New("hotfix source branch or tag does not exist")
	ErrInvalidCustomVersion     = errors.New("custom version does not match the train's versioning strategy")
	ErrReleaseNotCommittable    = errors.New("release no longer accepts commits")
	ErrQueueInactive            = errors.New("build queue is not active")
	ErrPlatformRunNotOnTrack    = errors.New("release platform run is not on track")
	ErrNotReadyForBetaRelease   = errors.New("platform run is not ready for a beta release")
	ErrBlankCommit              = errors.New("a release step requires a commit")
	ErrActiveProductionRelease  = errors.New("a production release is already active for this platform run")
	ErrQueueAlreadyActive       = errors.New("an active build queue already exists for this release")
	ErrRolloutNotActionable     = errors.New("store rollout belongs to a stale or stopped release")
	ErrRolloutNotStarted        = errors.New("store rollout has not been started")
	ErrRolloutNotHaltable       = errors.New("store rollout cannot be halted in its current state")
	ErrRolloutAtFinalStage      = errors.New("store rollout is already at its final stage")
	ErrNotFinalizing            = errors.New("release is not in the post-release phase")
)
