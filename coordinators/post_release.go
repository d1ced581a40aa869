// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
)

// PostReleaseResult is what a branching strategy produced: the release tag
// and any pull requests it opened or merged.
type PostReleaseResult struct {
	Tag          string
	PullRequests []models.PullRequest
}

// PostReleaseHandler performs the branching-strategy specific VCS work
// after all platform runs concluded. Implementations run without any row
// lock held; the finalize coordinator re-locks to apply the result.
type PostReleaseHandler interface {
	Run(ctx context.Context, train models.Train, release models.Release) (PostReleaseResult, error)
}

// PostReleaseHandlerFor resolves the handler for the train's branching
// strategy.
func PostReleaseHandlerFor(vcs shared.VCSProvider, strategy models.BranchingStrategy) PostReleaseHandler {
	switch strategy {
	case models.BranchingReleaseBackmerge:
		return releaseBackmergeHandler{vcs: vcs}
	case models.BranchingParallelWorking:
		return parallelWorkingHandler{vcs: vcs}
	default:
		return almostTrunkHandler{vcs: vcs}
	}
}

func releaseTag(release models.Release) string {
	return "v" + release.ReleaseVersion
}

func createReleaseTag(ctx context.Context, vcs shared.VCSProvider, release models.Release) (string, error) {
	tag := releaseTag(release)
	exists, err := vcs.TagExists(ctx, tag)
	if err != nil {
		return "", err
	}
	if exists {
		return tag, nil
	}
	if err := vcs.CreateTag(ctx, tag, release.BranchName); err != nil {
		return "", err
	}
	return tag, nil
}

// almostTrunkHandler tags the release head. Work continued on the trunk
// the whole time, so there is nothing to merge back.
type almostTrunkHandler struct {
	vcs shared.VCSProvider
}

func (h almostTrunkHandler) Run(ctx context.Context, train models.Train, release models.Release) (PostReleaseResult, error) {
	tag, err := createReleaseTag(ctx, h.vcs, release)
	if err != nil {
		return PostReleaseResult{}, err
	}
	return PostReleaseResult{Tag: tag}, nil
}

// releaseBackmergeHandler tags the release and opens a pull request
// merging the release branch back into the backmerge branch.
type releaseBackmergeHandler struct {
	vcs shared.VCSProvider
}

func (h releaseBackmergeHandler) Run(ctx context.Context, train models.Train, release models.Release) (PostReleaseResult, error) {
	tag, err := createReleaseTag(ctx, h.vcs, release)
	if err != nil {
		return PostReleaseResult{}, err
	}

	base := train.BackmergeBranch
	if base == "" {
		base = train.WorkingBranch
	}
	pr, err := h.vcs.CreatePullRequest(ctx, base, release.BranchName,
		fmt.Sprintf("Backmerge release %s", release.ReleaseVersion),
		fmt.Sprintf("Merges the stabilization changes of release %s back into %s.", release.ReleaseVersion, base))
	if err != nil {
		return PostReleaseResult{}, err
	}
	return PostReleaseResult{
		Tag: tag,
		PullRequests: []models.PullRequest{{
			ReleaseID: release.ID,
			Number:    pr.Number,
			Title:     pr.Title,
			URL:       pr.URL,
			BaseRef:   pr.BaseRef,
			HeadRef:   pr.HeadRef,
			State:     models.PullRequestStateOpen,
			Phase:     models.PullRequestPhasePostRelease,
			Kind:      models.PullRequestKindBackMerge,
			Automatic: true,
		}},
	}, nil
}

// parallelWorkingHandler tags the release and merges the release branch
// forward into the working branch. When the merge cannot happen cleanly
// the pull request stays open for a human.
type parallelWorkingHandler struct {
	vcs shared.VCSProvider
}

func (h parallelWorkingHandler) Run(ctx context.Context, train models.Train, release models.Release) (PostReleaseResult, error) {
	tag, err := createReleaseTag(ctx, h.vcs, release)
	if err != nil {
		return PostReleaseResult{}, err
	}

	pr, err := h.vcs.CreatePullRequest(ctx, train.WorkingBranch, release.BranchName,
		fmt.Sprintf("Merge release %s into %s", release.ReleaseVersion, train.WorkingBranch),
		fmt.Sprintf("Brings release %s forward into the working branch.", release.ReleaseVersion))
	if err != nil {
		return PostReleaseResult{}, err
	}

	tracked := models.PullRequest{
		ReleaseID: release.ID,
		Number:    pr.Number,
		Title:     pr.Title,
		URL:       pr.URL,
		BaseRef:   pr.BaseRef,
		HeadRef:   pr.HeadRef,
		State:     models.PullRequestStateOpen,
		Phase:     models.PullRequestPhasePostRelease,
		Kind:      models.PullRequestKindForwardMerge,
		Automatic: true,
	}
	if err := h.vcs.MergePullRequest(ctx, pr.Number); err != nil {
		slog.Warn("could not merge forward-merge pull request", "number", pr.Number, "err", err)
	} else {
		tracked.State = models.PullRequestStateMerged
	}
	return PostReleaseResult{Tag: tag, PullRequests: []models.PullRequest{tracked}}, nil
}
