// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gitlabint connects railguard to a GitLab project, using GitLab
// pipelines as the CI system.
package gitlabint

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/pkg/errors"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

type GitlabProvider struct {
	client    *gitlab.Client
	projectID string
}

// NewGitlabProvider reads GITLAB_TOKEN, GITLAB_PROJECT_ID and optionally
// GITLAB_BASE_URL from the environment.
func NewGitlabProvider() (*GitlabProvider, error) {
	token := os.Getenv("GITLAB_TOKEN")
	projectID := os.Getenv("GITLAB_PROJECT_ID")
	if token == "" || projectID == "" {
		return nil, fmt.Errorf("GITLAB_TOKEN and GITLAB_PROJECT_ID have to be set")
	}

	opts := []gitlab.ClientOptionFunc{}
	if baseURL := os.Getenv("GITLAB_BASE_URL"); baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create gitlab client")
	}
	return &GitlabProvider{client: client, projectID: projectID}, nil
}

func notFound(resp *gitlab.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func vcsCommitFromGitlab(c *gitlab.Commit) shared.VCSCommit {
	commit := shared.VCSCommit{
		Hash:        c.ID,
		Message:     c.Message,
		AuthorName:  c.AuthorName,
		AuthorEmail: c.AuthorEmail,
		URL:         c.WebURL,
		Parents:     c.ParentIDs,
	}
	if c.AuthoredDate != nil {
		commit.Timestamp = *c.AuthoredDate
	} else if c.CreatedAt != nil {
		commit.Timestamp = *c.CreatedAt
	}
	return commit
}

func (g *GitlabProvider) CommitLog(ctx context.Context, fromHash, toHash string) ([]shared.VCSCommit, error) {
	comparison, _, err := g.client.Repositories.Compare(g.projectID, &gitlab.CompareOptions{
		From: gitlab.Ptr(fromHash),
		To:   gitlab.Ptr(toHash),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "could not compare commits")
	}
	commits := make([]shared.VCSCommit, 0, len(comparison.Commits))
	for _, c := range comparison.Commits {
		commits = append(commits, vcsCommitFromGitlab(c))
	}
	return commits, nil
}

func (g *GitlabProvider) GetCommit(ctx context.Context, hash string) (shared.VCSCommit, error) {
	commit, _, err := g.client.Commits.GetCommit(g.projectID, hash, nil, gitlab.WithContext(ctx))
	if err != nil {
		return shared.VCSCommit{}, errors.Wrap(err, "could not get commit")
	}
	return vcsCommitFromGitlab(commit), nil
}

func (g *GitlabProvider) BranchExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := g.client.Branches.GetBranch(g.projectID, name, gitlab.WithContext(ctx))
	if err != nil {
		if notFound(resp) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not get branch")
	}
	return true, nil
}

func (g *GitlabProvider) TagExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := g.client.Tags.GetTag(g.projectID, name, gitlab.WithContext(ctx))
	if err != nil {
		if notFound(resp) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not get tag")
	}
	return true, nil
}

func (g *GitlabProvider) CreateBranch(ctx context.Context, fromRef, name string) error {
	_, _, err := g.client.Branches.CreateBranch(g.projectID, &gitlab.CreateBranchOptions{
		Branch: gitlab.Ptr(name),
		Ref:    gitlab.Ptr(fromRef),
	}, gitlab.WithContext(ctx))
	return errors.Wrap(err, "could not create branch")
}

func (g *GitlabProvider) CreateTag(ctx context.Context, name, sha string) error {
	_, _, err := g.client.Tags.CreateTag(g.projectID, &gitlab.CreateTagOptions{
		TagName: gitlab.Ptr(name),
		Ref:     gitlab.Ptr(sha),
	}, gitlab.WithContext(ctx))
	return errors.Wrap(err, "could not create tag")
}

func (g *GitlabProvider) CreatePullRequest(ctx context.Context, base, head, title, body string) (shared.VCSPullRequest, error) {
	mr, _, err := g.client.MergeRequests.CreateMergeRequest(g.projectID, &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(body),
		SourceBranch: gitlab.Ptr(head),
		TargetBranch: gitlab.Ptr(base),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return shared.VCSPullRequest{}, errors.Wrap(err, "could not create merge request")
	}
	return shared.VCSPullRequest{
		Number:  int64(mr.IID),
		Title:   mr.Title,
		URL:     mr.WebURL,
		BaseRef: base,
		HeadRef: head,
	}, nil
}

func (g *GitlabProvider) ClosePullRequest(ctx context.Context, number int64) error {
	_, _, err := g.client.MergeRequests.UpdateMergeRequest(g.projectID, number, &gitlab.UpdateMergeRequestOptions{
		StateEvent: gitlab.Ptr("close"),
	}, gitlab.WithContext(ctx))
	return errors.Wrap(err, "could not close merge request")
}

func (g *GitlabProvider) MergePullRequest(ctx context.Context, number int64) error {
	_, _, err := g.client.MergeRequests.AcceptMergeRequest(g.projectID, number, &gitlab.AcceptMergeRequestOptions{}, gitlab.WithContext(ctx))
	return errors.Wrap(err, "could not merge merge request")
}

func (g *GitlabProvider) RegisterWebhook(ctx context.Context, callbackURL string, events []string) error {
	// gitlab happily creates duplicate hooks for the same URL
	existing, _, err := g.client.Projects.ListProjectHooks(g.projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "could not list project hooks")
	}
	for _, hook := range existing {
		if hook.URL == callbackURL {
			return nil
		}
	}
	opts := &gitlab.AddProjectHookOptions{
		URL:   gitlab.Ptr(callbackURL),
		Token: gitlab.Ptr(os.Getenv("GITLAB_WEBHOOK_SECRET")),
	}
	for _, event := range events {
		switch event {
		case "push":
			opts.PushEvents = gitlab.Ptr(true)
		case "pipeline":
			opts.PipelineEvents = gitlab.Ptr(true)
		case "merge_request":
			opts.MergeRequestsEvents = gitlab.Ptr(true)
		}
	}
	_, _, err = g.client.Projects.AddProjectHook(g.projectID, opts, gitlab.WithContext(ctx))
	return errors.Wrap(err, "could not register webhook")
}

// TriggerWorkflow starts a pipeline on the ref. Workflow parameters and
// inputs become pipeline variables.
func (g *GitlabProvider) TriggerWorkflow(ctx context.Context, workflow models.WorkflowConfig, ref string, inputs map[string]string) (shared.CIWorkflowRun, error) {
	variables := []*gitlab.PipelineVariableOptions{}
	for key, value := range workflow.Parameters {
		variables = append(variables, &gitlab.PipelineVariableOptions{Key: gitlab.Ptr(key), Value: gitlab.Ptr(value)})
	}
	for key, value := range inputs {
		variables = append(variables, &gitlab.PipelineVariableOptions{Key: gitlab.Ptr(key), Value: gitlab.Ptr(value)})
	}

	pipeline, _, err := g.client.Pipelines.CreatePipeline(g.projectID, &gitlab.CreatePipelineOptions{
		Ref:       gitlab.Ptr(ref),
		Variables: &variables,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return shared.CIWorkflowRun{}, errors.Wrap(err, "could not create pipeline")
	}
	return shared.CIWorkflowRun{
		ExternalID:     strconv.FormatInt(pipeline.ID, 10),
		ExternalURL:    pipeline.WebURL,
		ExternalNumber: int64(pipeline.IID),
		Status:         pipeline.Status,
	}, nil
}

func (g *GitlabProvider) CancelWorkflow(ctx context.Context, externalID string) error {
	pipelineID, err := strconv.Atoi(externalID)
	if err != nil {
		return errors.Wrap(err, "invalid pipeline id")
	}
	_, _, err = g.client.Pipelines.CancelPipelineBuild(g.projectID, int64(pipelineID), gitlab.WithContext(ctx))
	return errors.Wrap(err, "could not cancel pipeline")
}

func (g *GitlabProvider) GetWorkflowRun(ctx context.Context, externalID string) (shared.CIWorkflowRun, error) {
	pipelineID, err := strconv.Atoi(externalID)
	if err != nil {
		return shared.CIWorkflowRun{}, errors.Wrap(err, "invalid pipeline id")
	}
	pipeline, _, err := g.client.Pipelines.GetPipeline(g.projectID, int64(pipelineID), gitlab.WithContext(ctx))
	if err != nil {
		return shared.CIWorkflowRun{}, errors.Wrap(err, "could not get pipeline")
	}
	return shared.CIWorkflowRun{
		ExternalID:     externalID,
		ExternalURL:    pipeline.WebURL,
		ExternalNumber: int64(pipeline.IID),
		Status:         pipeline.Status,
	}, nil
}
