// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package githubint connects railguard to a GitHub repository: commits,
// branches, tags and pull requests for the release flow, and GitHub
// Actions as the CI system building the releases.
package githubint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

type GithubProvider struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGithubProvider reads GITHUB_TOKEN, GITHUB_OWNER and GITHUB_REPO from
// the environment.
func NewGithubProvider() (*GithubProvider, error) {
	token := os.Getenv("GITHUB_TOKEN")
	owner := os.Getenv("GITHUB_OWNER")
	repo := os.Getenv("GITHUB_REPO")
	if token == "" || owner == "" || repo == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN, GITHUB_OWNER and GITHUB_REPO have to be set")
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return &GithubProvider{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}, nil
}

func vcsCommitFromGithub(rc *github.RepositoryCommit) shared.VCSCommit {
	commit := shared.VCSCommit{
		Hash: rc.GetSHA(),
		URL:  rc.GetHTMLURL(),
	}
	if c := rc.GetCommit(); c != nil {
		commit.Message = c.GetMessage()
		if author := c.GetAuthor(); author != nil {
			commit.AuthorName = author.GetName()
			commit.AuthorEmail = author.GetEmail()
			commit.Timestamp = author.GetDate().Time
		}
	}
	if rc.GetAuthor() != nil {
		commit.AuthorLogin = rc.GetAuthor().GetLogin()
	}
	for _, parent := range rc.Parents {
		commit.Parents = append(commit.Parents, parent.GetSHA())
	}
	return commit
}

func (g *GithubProvider) CommitLog(ctx context.Context, fromHash, toHash string) ([]shared.VCSCommit, error) {
	comparison, _, err := g.client.Repositories.CompareCommits(ctx, g.owner, g.repo, fromHash, toHash, &github.ListOptions{PerPage: 250})
	if err != nil {
		return nil, errors.Wrap(err, "could not compare commits")
	}
	commits := make([]shared.VCSCommit, 0, len(comparison.Commits))
	for _, rc := range comparison.Commits {
		commits = append(commits, vcsCommitFromGithub(rc))
	}
	return commits, nil
}

func (g *GithubProvider) GetCommit(ctx context.Context, hash string) (shared.VCSCommit, error) {
	rc, _, err := g.client.Repositories.GetCommit(ctx, g.owner, g.repo, hash, nil)
	if err != nil {
		return shared.VCSCommit{}, errors.Wrap(err, "could not get commit")
	}
	return vcsCommitFromGithub(rc), nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

func (g *GithubProvider) BranchExists(ctx context.Context, name string) (bool, error) {
	_, _, err := g.client.Repositories.GetBranch(ctx, g.owner, g.repo, name, 0)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not get branch")
	}
	return true, nil
}

func (g *GithubProvider) TagExists(ctx context.Context, name string) (bool, error) {
	_, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "tags/"+name)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not get tag ref")
	}
	return true, nil
}

// resolveSHA turns a branch name, tag name or commit hash into a sha.
func (g *GithubProvider) resolveSHA(ctx context.Context, ref string) (string, error) {
	for _, candidate := range []string{"heads/" + ref, "tags/" + ref} {
		resolved, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, candidate)
		if err == nil {
			return resolved.GetObject().GetSHA(), nil
		}
		if !isNotFound(err) {
			return "", errors.Wrap(err, "could not resolve ref")
		}
	}
	// assume it already is a sha
	return ref, nil
}

func (g *GithubProvider) CreateBranch(ctx context.Context, fromRef, name string) error {
	sha, err := g.resolveSHA(ctx, fromRef)
	if err != nil {
		return err
	}
	_, _, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(sha)},
	})
	return errors.Wrap(err, "could not create branch")
}

func (g *GithubProvider) CreateTag(ctx context.Context, name, sha string) error {
	resolved, err := g.resolveSHA(ctx, sha)
	if err != nil {
		return err
	}
	_, _, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/tags/" + name),
		Object: &github.GitObject{SHA: github.String(resolved)},
	})
	return errors.Wrap(err, "could not create tag")
}

func (g *GithubProvider) CreatePullRequest(ctx context.Context, base, head, title, body string) (shared.VCSPullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return shared.VCSPullRequest{}, errors.Wrap(err, "could not create pull request")
	}
	return shared.VCSPullRequest{
		Number:  int64(pr.GetNumber()),
		Title:   pr.GetTitle(),
		URL:     pr.GetHTMLURL(),
		BaseRef: base,
		HeadRef: head,
	}, nil
}

func (g *GithubProvider) ClosePullRequest(ctx context.Context, number int64) error {
	_, _, err := g.client.PullRequests.Edit(ctx, g.owner, g.repo, int(number), &github.PullRequest{
		State: github.String("closed"),
	})
	return errors.Wrap(err, "could not close pull request")
}

func (g *GithubProvider) MergePullRequest(ctx context.Context, number int64) error {
	result, _, err := g.client.PullRequests.Merge(ctx, g.owner, g.repo, int(number), "", nil)
	if err != nil {
		return errors.Wrap(err, "could not merge pull request")
	}
	if !result.GetMerged() {
		return fmt.Errorf("pull request %d was not merged: %s", number, result.GetMessage())
	}
	return nil
}

func (g *GithubProvider) RegisterWebhook(ctx context.Context, callbackURL string, events []string) error {
	_, resp, err := g.client.Repositories.CreateHook(ctx, g.owner, g.repo, &github.Hook{
		Active: github.Bool(true),
		Events: events,
		Config: &github.HookConfig{
			URL:         github.String(callbackURL),
			ContentType: github.String("json"),
			Secret:      github.String(os.Getenv("GITHUB_WEBHOOK_SECRET")),
		},
	})
	if err != nil {
		// GitHub answers 422 when a hook for this URL already exists
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		return errors.Wrap(err, "could not register webhook")
	}
	return nil
}

// TriggerWorkflow dispatches the workflow file and resolves the freshly
// created run by polling the run list, since the dispatch endpoint does
// not return the run it started.
func (g *GithubProvider) TriggerWorkflow(ctx context.Context, workflow models.WorkflowConfig, ref string, inputs map[string]string) (shared.CIWorkflowRun, error) {
	dispatchInputs := make(map[string]any, len(inputs)+len(workflow.Parameters))
	for key, value := range workflow.Parameters {
		dispatchInputs[key] = value
	}
	for key, value := range inputs {
		dispatchInputs[key] = value
	}

	dispatchedAt := time.Now().Add(-10 * time.Second)
	_, err := g.client.Actions.CreateWorkflowDispatchEventByFileName(ctx, g.owner, g.repo, workflow.Identifier, github.CreateWorkflowDispatchEventRequest{
		Ref:    ref,
		Inputs: dispatchInputs,
	})
	if err != nil {
		return shared.CIWorkflowRun{}, errors.Wrap(err, "could not dispatch workflow")
	}

	for attempt := 0; attempt < 5; attempt++ {
		time.Sleep(time.Duration(attempt) * time.Second)
		runs, _, err := g.client.Actions.ListWorkflowRunsByFileName(ctx, g.owner, g.repo, workflow.Identifier, &github.ListWorkflowRunsOptions{
			Branch:      ref,
			Event:       "workflow_dispatch",
			ListOptions: github.ListOptions{PerPage: 5},
		})
		if err != nil {
			return shared.CIWorkflowRun{}, errors.Wrap(err, "could not list workflow runs")
		}
		for _, run := range runs.WorkflowRuns {
			if run.GetCreatedAt().Time.Before(dispatchedAt) {
				continue
			}
			return shared.CIWorkflowRun{
				ExternalID:     strconv.FormatInt(run.GetID(), 10),
				ExternalURL:    run.GetHTMLURL(),
				ExternalNumber: int64(run.GetRunNumber()),
				Status:         run.GetStatus(),
			}, nil
		}
	}
	slog.Warn("workflow dispatched but run not found yet", "workflow", workflow.Identifier, "ref", ref)
	return shared.CIWorkflowRun{}, fmt.Errorf("dispatched workflow %s but could not find the run", workflow.Identifier)
}

func (g *GithubProvider) CancelWorkflow(ctx context.Context, externalID string) error {
	runID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return errors.Wrap(err, "invalid workflow run id")
	}
	_, err = g.client.Actions.CancelWorkflowRunByID(ctx, g.owner, g.repo, runID)
	return errors.Wrap(err, "could not cancel workflow run")
}

func (g *GithubProvider) GetWorkflowRun(ctx context.Context, externalID string) (shared.CIWorkflowRun, error) {
	runID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return shared.CIWorkflowRun{}, errors.Wrap(err, "invalid workflow run id")
	}
	run, _, err := g.client.Actions.GetWorkflowRunByID(ctx, g.owner, g.repo, runID)
	if err != nil {
		return shared.CIWorkflowRun{}, errors.Wrap(err, "could not get workflow run")
	}
	status := run.GetStatus()
	if run.GetConclusion() != "" {
		status = run.GetConclusion()
	}
	return shared.CIWorkflowRun{
		ExternalID:     externalID,
		ExternalURL:    run.GetHTMLURL(),
		ExternalNumber: int64(run.GetRunNumber()),
		Status:         status,
	}, nil
}
