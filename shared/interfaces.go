// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
)

// Repository is the base contract all entity repositories provide.
type Repository[ID comparable, T any] interface {
	All() ([]T, error)
	Read(id ID) (T, error)
	Create(tx DB, t *T) error
	Save(tx DB, t *T) error
	Delete(tx DB, id ID) error
	Transaction(fn func(tx DB) error) error
	GetDB(tx DB) DB
}

type AppRepository interface {
	Repository[uuid.UUID, models.App]
	GetBySlug(slug string) (models.App, error)
}

type TrainRepository interface {
	Repository[uuid.UUID, models.Train]
	// ReadForUpdate acquires a row lock on the train for the duration of
	// the surrounding transaction.
	ReadForUpdate(tx DB, id uuid.UUID) (models.Train, error)
	GetBySlug(slug string) (models.Train, error)
	ListByApp(appID uuid.UUID) ([]models.Train, error)
	ListDueForKickoff(now time.Time) ([]models.Train, error)
}

type ReleaseRepository interface {
	Repository[uuid.UUID, models.Release]
	ReadForUpdate(tx DB, id uuid.UUID) (models.Release, error)
	GetOngoing(trainID uuid.UUID) ([]models.Release, error)
	FindByBranch(branch string) (models.Release, error)
	GetLastFinished(trainID uuid.UUID) (models.Release, error)
	ListByTrain(trainID uuid.UUID) ([]models.Release, error)
	ListFinishedSince(since time.Time) ([]models.Release, error)
}

type ReleasePlatformRunRepository interface {
	Repository[uuid.UUID, models.ReleasePlatformRun]
	ReadForUpdate(tx DB, id uuid.UUID) (models.ReleasePlatformRun, error)
	GetByRelease(tx DB, releaseID uuid.UUID) ([]models.ReleasePlatformRun, error)
}

type CommitRepository interface {
	Repository[uuid.UUID, models.Commit]
	FindByReleaseAndHash(tx DB, releaseID uuid.UUID, hash string) (models.Commit, error)
	CountByRelease(tx DB, releaseID uuid.UUID) (int64, error)
	ListByQueue(tx DB, queueID uuid.UUID) ([]models.Commit, error)
	ListBackmergeFailures(releaseID uuid.UUID) ([]models.Commit, error)
}

type BuildQueueRepository interface {
	Repository[uuid.UUID, models.BuildQueue]
	ReadForUpdate(tx DB, id uuid.UUID) (models.BuildQueue, error)
	GetActiveForRelease(tx DB, releaseID uuid.UUID) (models.BuildQueue, error)
	ListActive() ([]models.BuildQueue, error)
}

type PreProdReleaseRepository interface {
	Repository[uuid.UUID, models.PreProdRelease]
	// LatestForRun returns nil when the run has no pre-prod release of the
	// given kind yet.
	LatestForRun(tx DB, runID uuid.UUID, kind models.PreProdKind) (*models.PreProdRelease, error)
	FindByRunCommitAndKind(tx DB, runID, commitID uuid.UUID, kind models.PreProdKind) (models.PreProdRelease, error)
	ListByRunAndKind(runID uuid.UUID, kind models.PreProdKind) ([]models.PreProdRelease, error)
}

type WorkflowRunRepository interface {
	Repository[uuid.UUID, models.WorkflowRun]
	ReadForUpdate(tx DB, id uuid.UUID) (models.WorkflowRun, error)
	FindByPreProdRelease(tx DB, preProdReleaseID uuid.UUID) (models.WorkflowRun, error)
	FindByExternalID(externalID string) (models.WorkflowRun, error)
}

type BuildRepository interface {
	Repository[uuid.UUID, models.Build]
	NextSequenceNumber(tx DB, runID uuid.UUID) (int, error)
	FindByWorkflowRun(tx DB, workflowRunID uuid.UUID) (models.Build, error)
	ListByRun(runID uuid.UUID) ([]models.Build, error)
	// ListReleaseCandidatesByRun returns builds produced by
	// release-candidate workflow runs.
	ListReleaseCandidatesByRun(runID uuid.UUID) ([]models.Build, error)
}

type ProductionReleaseRepository interface {
	Repository[uuid.UUID, models.ProductionRelease]
	ReadForUpdate(tx DB, id uuid.UUID) (models.ProductionRelease, error)
	GetActiveForRun(tx DB, runID uuid.UUID) (*models.ProductionRelease, error)
	GetInflightForRun(tx DB, runID uuid.UUID) (*models.ProductionRelease, error)
	ListByRun(runID uuid.UUID) ([]models.ProductionRelease, error)
}

type StoreSubmissionRepository interface {
	Repository[uuid.UUID, models.StoreSubmission]
	ReadForUpdate(tx DB, id uuid.UUID) (models.StoreSubmission, error)
	ListByParent(parentType models.ParentReleaseType, parentID uuid.UUID) ([]models.StoreSubmission, error)
}

type StoreRolloutRepository interface {
	Repository[uuid.UUID, models.StoreRollout]
	ReadForUpdate(tx DB, id uuid.UUID) (models.StoreRollout, error)
	GetBySubmission(submissionID uuid.UUID) (models.StoreRollout, error)
	ListByRun(runID uuid.UUID) ([]models.StoreRollout, error)
	ListDueAutomatic(now time.Time) ([]models.StoreRollout, error)
}

type PullRequestRepository interface {
	Repository[uuid.UUID, models.PullRequest]
	ListOpenByPhase(tx DB, releaseID uuid.UUID, phase models.PullRequestPhase) ([]models.PullRequest, error)
	ListOpenAutomatic(tx DB, releaseID uuid.UUID) ([]models.PullRequest, error)
}

type ReleaseEventRepository interface {
	// Stamp appends an audit event inside the caller's transaction.
	Stamp(tx DB, event models.ReleaseEvent) error
	ListForStampable(stampableType models.StampableType, stampableID uuid.UUID) ([]models.ReleaseEvent, error)
}

type ReleaseHealthRuleRepository interface {
	Repository[uuid.UUID, models.ReleaseHealthRule]
	ListEnabled(trainID uuid.UUID, platform models.Platform) ([]models.ReleaseHealthRule, error)
}

type ReleaseHealthEventRepository interface {
	Repository[uuid.UUID, models.ReleaseHealthEvent]
	ListByProductionRelease(productionReleaseID uuid.UUID) ([]models.ReleaseHealthEvent, error)
}

// VCSCommit is the provider-neutral shape of a commit fetched from the VCS.
type VCSCommit struct {
	Hash        string
	Message     string
	Timestamp   time.Time
	AuthorName  string
	AuthorEmail string
	AuthorLogin string
	URL         string
	Parents     []string
}

type VCSPullRequest struct {
	Number  int64
	Title   string
	URL     string
	BaseRef string
	HeadRef string
}

// VCSProvider abstracts the hosted version control system.
type VCSProvider interface {
	CommitLog(ctx context.Context, fromHash, toHash string) ([]VCSCommit, error)
	GetCommit(ctx context.Context, hash string) (VCSCommit, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	TagExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, fromRef, name string) error
	CreateTag(ctx context.Context, name, sha string) error
	CreatePullRequest(ctx context.Context, base, head, title, body string) (VCSPullRequest, error)
	ClosePullRequest(ctx context.Context, number int64) error
	MergePullRequest(ctx context.Context, number int64) error
	RegisterWebhook(ctx context.Context, callbackURL string, events []string) error
}

type CIWorkflowRun struct {
	ExternalID     string
	ExternalURL    string
	ExternalNumber int64
	Status         string
}

// CIProvider abstracts the CI/CD system running build workflows.
type CIProvider interface {
	TriggerWorkflow(ctx context.Context, workflow models.WorkflowConfig, ref string, inputs map[string]string) (CIWorkflowRun, error)
	CancelWorkflow(ctx context.Context, externalID string) error
	GetWorkflowRun(ctx context.Context, externalID string) (CIWorkflowRun, error)
}

// StoreProvider abstracts one app store's submission and rollout API.
type StoreProvider interface {
	PrepareSubmission(ctx context.Context, submission models.StoreSubmission, build models.Build) error
	SubmitForReview(ctx context.Context, submission models.StoreSubmission) error
	StartRollout(ctx context.Context, rollout models.StoreRollout) error
	SetRolloutStage(ctx context.Context, rollout models.StoreRollout, percentage float64) error
	HaltRollout(ctx context.Context, rollout models.StoreRollout) error
	FullyRelease(ctx context.Context, rollout models.StoreRollout) error
}

// StoreProviderRegistry resolves the provider for a concrete store.
type StoreProviderRegistry interface {
	For(store models.Store) StoreProvider
}

// NotificationSink delivers fire-and-forget messages. Implementations must
// never return delivery failures into the calling transaction.
type NotificationSink interface {
	Notify(channel string, message string, params map[string]any)
}
