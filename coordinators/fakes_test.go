// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type entity interface {
	GetID() uuid.UUID
}

// memRepo is an in-memory stand-in for the gorm repositories. Transactions
// degrade to plain function calls; all the locking helpers read the same map.
type memRepo[T entity] struct {
	items  map[uuid.UUID]T
	order  []uuid.UUID
	assign func(*T, uuid.UUID)

	createErr error
}

func newMemRepo[T entity](assign func(*T, uuid.UUID)) *memRepo[T] {
	return &memRepo[T]{items: map[uuid.UUID]T{}, assign: assign}
}

func (r *memRepo[T]) put(t T) {
	id := t.GetID()
	if _, ok := r.items[id]; !ok {
		r.order = append(r.order, id)
	}
	r.items[id] = t
}

// list returns the rows in creation order.
func (r *memRepo[T]) list() []T {
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

func (r *memRepo[T]) All() ([]T, error) {
	return r.list(), nil
}

func (r *memRepo[T]) Read(id uuid.UUID) (T, error) {
	t, ok := r.items[id]
	if !ok {
		var zero T
		return zero, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (r *memRepo[T]) Create(tx shared.DB, t *T) error {
	if r.createErr != nil {
		return r.createErr
	}
	if (*t).GetID() == uuid.Nil {
		r.assign(t, uuid.New())
	}
	r.put(*t)
	return nil
}

func (r *memRepo[T]) Save(tx shared.DB, t *T) error {
	r.put(*t)
	return nil
}

func (r *memRepo[T]) Delete(tx shared.DB, id uuid.UUID) error {
	delete(r.items, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo[T]) Transaction(fn func(tx shared.DB) error) error {
	return fn(nil)
}

func (r *memRepo[T]) GetDB(tx shared.DB) shared.DB {
	return nil
}

type fakeAppRepo struct{ *memRepo[models.App] }

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{newMemRepo(func(a *models.App, id uuid.UUID) { a.ID = id })}
}

func (r *fakeAppRepo) GetBySlug(slug string) (models.App, error) {
	for _, app := range r.list() {
		if app.Slug == slug {
			return app, nil
		}
	}
	return models.App{}, gorm.ErrRecordNotFound
}

type fakeTrainRepo struct{ *memRepo[models.Train] }

func newFakeTrainRepo() *fakeTrainRepo {
	return &fakeTrainRepo{newMemRepo(func(t *models.Train, id uuid.UUID) { t.ID = id })}
}

func (r *fakeTrainRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.Train, error) {
	return r.Read(id)
}

func (r *fakeTrainRepo) GetBySlug(slug string) (models.Train, error) {
	for _, train := range r.list() {
		if train.Slug == slug {
			return train, nil
		}
	}
	return models.Train{}, gorm.ErrRecordNotFound
}

func (r *fakeTrainRepo) ListByApp(appID uuid.UUID) ([]models.Train, error) {
	var out []models.Train
	for _, train := range r.list() {
		if train.AppID == appID {
			out = append(out, train)
		}
	}
	return out, nil
}

func (r *fakeTrainRepo) ListDueForKickoff(now time.Time) ([]models.Train, error) {
	var out []models.Train
	for _, train := range r.list() {
		if train.Active() && train.KickoffAt != nil && !now.Before(*train.KickoffAt) {
			out = append(out, train)
		}
	}
	return out, nil
}

type fakeReleaseRepo struct{ *memRepo[models.Release] }

func newFakeReleaseRepo() *fakeReleaseRepo {
	return &fakeReleaseRepo{newMemRepo(func(rel *models.Release, id uuid.UUID) { rel.ID = id })}
}

func (r *fakeReleaseRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.Release, error) {
	return r.Read(id)
}

func (r *fakeReleaseRepo) GetOngoing(trainID uuid.UUID) ([]models.Release, error) {
	var out []models.Release
	for _, release := range r.list() {
		if release.TrainID == trainID && release.Ongoing() {
			out = append(out, release)
		}
	}
	return out, nil
}

func (r *fakeReleaseRepo) FindByBranch(branch string) (models.Release, error) {
	releases := r.list()
	for i := len(releases) - 1; i >= 0; i-- {
		if releases[i].BranchName == branch && !releases[i].Terminal() {
			return releases[i], nil
		}
	}
	return models.Release{}, gorm.ErrRecordNotFound
}

func (r *fakeReleaseRepo) GetLastFinished(trainID uuid.UUID) (models.Release, error) {
	releases := r.list()
	for i := len(releases) - 1; i >= 0; i-- {
		if releases[i].TrainID == trainID && releases[i].Status == models.ReleaseStatusFinished {
			return releases[i], nil
		}
	}
	return models.Release{}, gorm.ErrRecordNotFound
}

func (r *fakeReleaseRepo) ListByTrain(trainID uuid.UUID) ([]models.Release, error) {
	var out []models.Release
	for _, release := range r.list() {
		if release.TrainID == trainID {
			out = append(out, release)
		}
	}
	return out, nil
}

func (r *fakeReleaseRepo) ListFinishedSince(since time.Time) ([]models.Release, error) {
	var out []models.Release
	for _, release := range r.list() {
		if release.Status == models.ReleaseStatusFinished && release.CompletedAt != nil && release.CompletedAt.After(since) {
			out = append(out, release)
		}
	}
	return out, nil
}

type fakeRunRepo struct{ *memRepo[models.ReleasePlatformRun] }

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{newMemRepo(func(run *models.ReleasePlatformRun, id uuid.UUID) { run.ID = id })}
}

func (r *fakeRunRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.ReleasePlatformRun, error) {
	return r.Read(id)
}

func (r *fakeRunRepo) GetByRelease(tx shared.DB, releaseID uuid.UUID) ([]models.ReleasePlatformRun, error) {
	var out []models.ReleasePlatformRun
	for _, run := range r.list() {
		if run.ReleaseID == releaseID {
			out = append(out, run)
		}
	}
	return out, nil
}

type fakeCommitRepo struct{ *memRepo[models.Commit] }

func newFakeCommitRepo() *fakeCommitRepo {
	return &fakeCommitRepo{newMemRepo(func(c *models.Commit, id uuid.UUID) { c.ID = id })}
}

func (r *fakeCommitRepo) FindByReleaseAndHash(tx shared.DB, releaseID uuid.UUID, hash string) (models.Commit, error) {
	for _, commit := range r.list() {
		if commit.ReleaseID == releaseID && commit.CommitHash == hash {
			return commit, nil
		}
	}
	return models.Commit{}, gorm.ErrRecordNotFound
}

func (r *fakeCommitRepo) CountByRelease(tx shared.DB, releaseID uuid.UUID) (int64, error) {
	var count int64
	for _, commit := range r.list() {
		if commit.ReleaseID == releaseID {
			count++
		}
	}
	return count, nil
}

func (r *fakeCommitRepo) ListByQueue(tx shared.DB, queueID uuid.UUID) ([]models.Commit, error) {
	var out []models.Commit
	for _, commit := range r.list() {
		if commit.BuildQueueID != nil && *commit.BuildQueueID == queueID {
			out = append(out, commit)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *fakeCommitRepo) ListBackmergeFailures(releaseID uuid.UUID) ([]models.Commit, error) {
	var out []models.Commit
	for _, commit := range r.list() {
		if commit.ReleaseID == releaseID && commit.BackmergeFailure {
			out = append(out, commit)
		}
	}
	return out, nil
}

type fakeQueueRepo struct{ *memRepo[models.BuildQueue] }

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{newMemRepo(func(q *models.BuildQueue, id uuid.UUID) { q.ID = id })}
}

func (r *fakeQueueRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.BuildQueue, error) {
	return r.Read(id)
}

func (r *fakeQueueRepo) GetActiveForRelease(tx shared.DB, releaseID uuid.UUID) (models.BuildQueue, error) {
	for _, queue := range r.list() {
		if queue.ReleaseID == releaseID && queue.IsActive {
			return queue, nil
		}
	}
	return models.BuildQueue{}, gorm.ErrRecordNotFound
}

func (r *fakeQueueRepo) ListActive() ([]models.BuildQueue, error) {
	var out []models.BuildQueue
	for _, queue := range r.list() {
		if queue.IsActive {
			out = append(out, queue)
		}
	}
	return out, nil
}

type fakePreProdRepo struct{ *memRepo[models.PreProdRelease] }

func newFakePreProdRepo() *fakePreProdRepo {
	return &fakePreProdRepo{newMemRepo(func(p *models.PreProdRelease, id uuid.UUID) { p.ID = id })}
}

func (r *fakePreProdRepo) LatestForRun(tx shared.DB, runID uuid.UUID, kind models.PreProdKind) (*models.PreProdRelease, error) {
	releases := r.list()
	for i := len(releases) - 1; i >= 0; i-- {
		if releases[i].ReleasePlatformRunID == runID && releases[i].Kind == kind {
			found := releases[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakePreProdRepo) FindByRunCommitAndKind(tx shared.DB, runID, commitID uuid.UUID, kind models.PreProdKind) (models.PreProdRelease, error) {
	for _, release := range r.list() {
		if release.ReleasePlatformRunID == runID && release.CommitID == commitID && release.Kind == kind {
			return release, nil
		}
	}
	return models.PreProdRelease{}, gorm.ErrRecordNotFound
}

func (r *fakePreProdRepo) ListByRunAndKind(runID uuid.UUID, kind models.PreProdKind) ([]models.PreProdRelease, error) {
	var out []models.PreProdRelease
	for _, release := range r.list() {
		if release.ReleasePlatformRunID == runID && release.Kind == kind {
			out = append(out, release)
		}
	}
	return out, nil
}

type fakeWorkflowRepo struct{ *memRepo[models.WorkflowRun] }

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{newMemRepo(func(w *models.WorkflowRun, id uuid.UUID) { w.ID = id })}
}

func (r *fakeWorkflowRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.WorkflowRun, error) {
	return r.Read(id)
}

func (r *fakeWorkflowRepo) FindByPreProdRelease(tx shared.DB, preProdReleaseID uuid.UUID) (models.WorkflowRun, error) {
	for _, run := range r.list() {
		if run.PreProdReleaseID != nil && *run.PreProdReleaseID == preProdReleaseID {
			return run, nil
		}
	}
	return models.WorkflowRun{}, gorm.ErrRecordNotFound
}

func (r *fakeWorkflowRepo) FindByExternalID(externalID string) (models.WorkflowRun, error) {
	for _, run := range r.list() {
		if run.ExternalID == externalID {
			return run, nil
		}
	}
	return models.WorkflowRun{}, gorm.ErrRecordNotFound
}

type fakeBuildRepo struct {
	*memRepo[models.Build]
	workflows *fakeWorkflowRepo
}

func newFakeBuildRepo(workflows *fakeWorkflowRepo) *fakeBuildRepo {
	return &fakeBuildRepo{newMemRepo(func(b *models.Build, id uuid.UUID) { b.ID = id }), workflows}
}

func (r *fakeBuildRepo) NextSequenceNumber(tx shared.DB, runID uuid.UUID) (int, error) {
	count := 0
	for _, build := range r.list() {
		if build.ReleasePlatformRunID == runID {
			count++
		}
	}
	return count + 1, nil
}

func (r *fakeBuildRepo) FindByWorkflowRun(tx shared.DB, workflowRunID uuid.UUID) (models.Build, error) {
	for _, build := range r.list() {
		if build.WorkflowRunID == workflowRunID {
			return build, nil
		}
	}
	return models.Build{}, gorm.ErrRecordNotFound
}

func (r *fakeBuildRepo) ListByRun(runID uuid.UUID) ([]models.Build, error) {
	var out []models.Build
	for _, build := range r.list() {
		if build.ReleasePlatformRunID == runID {
			out = append(out, build)
		}
	}
	return out, nil
}

func (r *fakeBuildRepo) ListReleaseCandidatesByRun(runID uuid.UUID) ([]models.Build, error) {
	var out []models.Build
	for _, build := range r.list() {
		if build.ReleasePlatformRunID != runID {
			continue
		}
		workflow, err := r.workflows.Read(build.WorkflowRunID)
		if err != nil {
			continue
		}
		if workflow.Kind == models.WorkflowKindReleaseCandidate {
			out = append(out, build)
		}
	}
	return out, nil
}

type fakeProductionRepo struct{ *memRepo[models.ProductionRelease] }

func newFakeProductionRepo() *fakeProductionRepo {
	return &fakeProductionRepo{newMemRepo(func(p *models.ProductionRelease, id uuid.UUID) { p.ID = id })}
}

func (r *fakeProductionRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.ProductionRelease, error) {
	return r.Read(id)
}

func (r *fakeProductionRepo) GetActiveForRun(tx shared.DB, runID uuid.UUID) (*models.ProductionRelease, error) {
	for _, production := range r.list() {
		if production.ReleasePlatformRunID == runID && production.Status == models.ProductionReleaseStatusActive {
			found := production
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeProductionRepo) GetInflightForRun(tx shared.DB, runID uuid.UUID) (*models.ProductionRelease, error) {
	for _, production := range r.list() {
		if production.ReleasePlatformRunID == runID && production.Status == models.ProductionReleaseStatusInflight {
			found := production
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeProductionRepo) ListByRun(runID uuid.UUID) ([]models.ProductionRelease, error) {
	var out []models.ProductionRelease
	for _, production := range r.list() {
		if production.ReleasePlatformRunID == runID {
			out = append(out, production)
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct{ *memRepo[models.StoreSubmission] }

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{newMemRepo(func(s *models.StoreSubmission, id uuid.UUID) { s.ID = id })}
}

func (r *fakeSubmissionRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.StoreSubmission, error) {
	return r.Read(id)
}

func (r *fakeSubmissionRepo) ListByParent(parentType models.ParentReleaseType, parentID uuid.UUID) ([]models.StoreSubmission, error) {
	var out []models.StoreSubmission
	for _, submission := range r.list() {
		if submission.ParentReleaseType == parentType && submission.ParentReleaseID == parentID {
			out = append(out, submission)
		}
	}
	return out, nil
}

type fakeRolloutRepo struct{ *memRepo[models.StoreRollout] }

func newFakeRolloutRepo() *fakeRolloutRepo {
	return &fakeRolloutRepo{newMemRepo(func(s *models.StoreRollout, id uuid.UUID) { s.ID = id })}
}

func (r *fakeRolloutRepo) ReadForUpdate(tx shared.DB, id uuid.UUID) (models.StoreRollout, error) {
	return r.Read(id)
}

func (r *fakeRolloutRepo) GetBySubmission(submissionID uuid.UUID) (models.StoreRollout, error) {
	for _, rollout := range r.list() {
		if rollout.StoreSubmissionID == submissionID {
			return rollout, nil
		}
	}
	return models.StoreRollout{}, gorm.ErrRecordNotFound
}

func (r *fakeRolloutRepo) ListByRun(runID uuid.UUID) ([]models.StoreRollout, error) {
	var out []models.StoreRollout
	for _, rollout := range r.list() {
		if rollout.ReleasePlatformRunID == runID {
			out = append(out, rollout)
		}
	}
	return out, nil
}

func (r *fakeRolloutRepo) ListDueAutomatic(now time.Time) ([]models.StoreRollout, error) {
	var out []models.StoreRollout
	for _, rollout := range r.list() {
		if rollout.AutomaticRollout && rollout.Status == models.RolloutStatusStarted &&
			rollout.AutomaticRolloutNextUpdateAt != nil && !now.Before(*rollout.AutomaticRolloutNextUpdateAt) {
			out = append(out, rollout)
		}
	}
	return out, nil
}

type fakePullRepo struct{ *memRepo[models.PullRequest] }

func newFakePullRepo() *fakePullRepo {
	return &fakePullRepo{newMemRepo(func(p *models.PullRequest, id uuid.UUID) { p.ID = id })}
}

func (r *fakePullRepo) ListOpenByPhase(tx shared.DB, releaseID uuid.UUID, phase models.PullRequestPhase) ([]models.PullRequest, error) {
	var out []models.PullRequest
	for _, pr := range r.list() {
		if pr.ReleaseID == releaseID && pr.Phase == phase && pr.Open() {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (r *fakePullRepo) ListOpenAutomatic(tx shared.DB, releaseID uuid.UUID) ([]models.PullRequest, error) {
	var out []models.PullRequest
	for _, pr := range r.list() {
		if pr.ReleaseID == releaseID && pr.Automatic && pr.Open() {
			out = append(out, pr)
		}
	}
	return out, nil
}

type fakeRuleRepo struct{ *memRepo[models.ReleaseHealthRule] }

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{newMemRepo(func(r *models.ReleaseHealthRule, id uuid.UUID) { r.ID = id })}
}

func (r *fakeRuleRepo) ListEnabled(trainID uuid.UUID, platform models.Platform) ([]models.ReleaseHealthRule, error) {
	var out []models.ReleaseHealthRule
	for _, rule := range r.list() {
		if rule.TrainID == trainID && rule.Platform == platform && rule.Enabled {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeHealthEventRepo struct{ *memRepo[models.ReleaseHealthEvent] }

func newFakeHealthEventRepo() *fakeHealthEventRepo {
	return &fakeHealthEventRepo{newMemRepo(func(e *models.ReleaseHealthEvent, id uuid.UUID) { e.ID = id })}
}

func (r *fakeHealthEventRepo) ListByProductionRelease(productionReleaseID uuid.UUID) ([]models.ReleaseHealthEvent, error) {
	var out []models.ReleaseHealthEvent
	for _, event := range r.list() {
		if event.ProductionReleaseID == productionReleaseID {
			out = append(out, event)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	events []models.ReleaseEvent
}

func (r *fakeEventRepo) Stamp(tx shared.DB, event models.ReleaseEvent) error {
	event.ID = uuid.New()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) ListForStampable(stampableType models.StampableType, stampableID uuid.UUID) ([]models.ReleaseEvent, error) {
	var out []models.ReleaseEvent
	for _, event := range r.events {
		if event.StampableType == stampableType && event.StampableID == stampableID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) reasons(stampableType models.StampableType, stampableID uuid.UUID) []string {
	var out []string
	for _, event := range r.events {
		if event.StampableType == stampableType && event.StampableID == stampableID {
			out = append(out, event.Reason)
		}
	}
	return out
}

type branchPair struct {
	From string
	Name string
}

type hashRange struct {
	From string
	To   string
}

type fakeVCS struct {
	branches map[string]bool
	tags     map[string]bool
	commits  map[string]shared.VCSCommit
	log      []shared.VCSCommit

	createdBranches    []branchPair
	createdTags        []string
	openedPRs          []shared.VCSPullRequest
	closedPRs          []int64
	mergedPRs          []int64
	logRanges          []hashRange
	getCommitCalls     []string
	registeredWebhooks []string
	nextPRNumber       int64

	createPRErr error
	mergeErr    error
	logErr      error
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		branches:     map[string]bool{"main": true},
		tags:         map[string]bool{},
		commits:      map[string]shared.VCSCommit{},
		nextPRNumber: 100,
	}
}

func (v *fakeVCS) CommitLog(ctx context.Context, fromHash, toHash string) ([]shared.VCSCommit, error) {
	v.logRanges = append(v.logRanges, hashRange{From: fromHash, To: toHash})
	if v.logErr != nil {
		return nil, v.logErr
	}
	return v.log, nil
}

func (v *fakeVCS) GetCommit(ctx context.Context, hash string) (shared.VCSCommit, error) {
	v.getCommitCalls = append(v.getCommitCalls, hash)
	commit, ok := v.commits[hash]
	if !ok {
		return shared.VCSCommit{}, fmt.Errorf("unknown commit %s", hash)
	}
	return commit, nil
}

func (v *fakeVCS) BranchExists(ctx context.Context, name string) (bool, error) {
	return v.branches[name], nil
}

func (v *fakeVCS) TagExists(ctx context.Context, name string) (bool, error) {
	return v.tags[name], nil
}

func (v *fakeVCS) CreateBranch(ctx context.Context, fromRef, name string) error {
	v.branches[name] = true
	v.createdBranches = append(v.createdBranches, branchPair{From: fromRef, Name: name})
	return nil
}

func (v *fakeVCS) CreateTag(ctx context.Context, name, sha string) error {
	v.tags[name] = true
	v.createdTags = append(v.createdTags, name)
	return nil
}

func (v *fakeVCS) CreatePullRequest(ctx context.Context, base, head, title, body string) (shared.VCSPullRequest, error) {
	if v.createPRErr != nil {
		return shared.VCSPullRequest{}, v.createPRErr
	}
	v.nextPRNumber++
	pr := shared.VCSPullRequest{
		Number:  v.nextPRNumber,
		Title:   title,
		URL:     fmt.Sprintf("https://vcs.example/pulls/%d", v.nextPRNumber),
		BaseRef: base,
		HeadRef: head,
	}
	v.openedPRs = append(v.openedPRs, pr)
	return pr, nil
}

func (v *fakeVCS) ClosePullRequest(ctx context.Context, number int64) error {
	v.closedPRs = append(v.closedPRs, number)
	return nil
}

func (v *fakeVCS) MergePullRequest(ctx context.Context, number int64) error {
	if v.mergeErr != nil {
		return v.mergeErr
	}
	v.mergedPRs = append(v.mergedPRs, number)
	return nil
}

func (v *fakeVCS) RegisterWebhook(ctx context.Context, callbackURL string, events []string) error {
	v.registeredWebhooks = append(v.registeredWebhooks, callbackURL)
	return nil
}

type fakeCI struct {
	triggered  []string
	cancelled  []string
	nextRun    int64
	triggerErr error
}

func (c *fakeCI) TriggerWorkflow(ctx context.Context, workflow models.WorkflowConfig, ref string, inputs map[string]string) (shared.CIWorkflowRun, error) {
	if c.triggerErr != nil {
		return shared.CIWorkflowRun{}, c.triggerErr
	}
	c.nextRun++
	externalID := fmt.Sprintf("ci-%d", c.nextRun)
	c.triggered = append(c.triggered, externalID)
	return shared.CIWorkflowRun{
		ExternalID:     externalID,
		ExternalURL:    "https://ci.example/runs/" + externalID,
		ExternalNumber: c.nextRun,
		Status:         "queued",
	}, nil
}

func (c *fakeCI) CancelWorkflow(ctx context.Context, externalID string) error {
	c.cancelled = append(c.cancelled, externalID)
	return nil
}

func (c *fakeCI) GetWorkflowRun(ctx context.Context, externalID string) (shared.CIWorkflowRun, error) {
	return shared.CIWorkflowRun{ExternalID: externalID, Status: "in_progress"}, nil
}

type fakeStore struct {
	prepared      []uuid.UUID
	submitted     []uuid.UUID
	started       []uuid.UUID
	stageCalls    []float64
	halted        []uuid.UUID
	fullyReleased []uuid.UUID

	prepareErr error
	stageErr   error
}

func (s *fakeStore) PrepareSubmission(ctx context.Context, submission models.StoreSubmission, build models.Build) error {
	if s.prepareErr != nil {
		return s.prepareErr
	}
	s.prepared = append(s.prepared, submission.ID)
	return nil
}

func (s *fakeStore) SubmitForReview(ctx context.Context, submission models.StoreSubmission) error {
	s.submitted = append(s.submitted, submission.ID)
	return nil
}

func (s *fakeStore) StartRollout(ctx context.Context, rollout models.StoreRollout) error {
	s.started = append(s.started, rollout.ID)
	return nil
}

func (s *fakeStore) SetRolloutStage(ctx context.Context, rollout models.StoreRollout, percentage float64) error {
	if s.stageErr != nil {
		return s.stageErr
	}
	s.stageCalls = append(s.stageCalls, percentage)
	return nil
}

func (s *fakeStore) HaltRollout(ctx context.Context, rollout models.StoreRollout) error {
	s.halted = append(s.halted, rollout.ID)
	return nil
}

func (s *fakeStore) FullyRelease(ctx context.Context, rollout models.StoreRollout) error {
	s.fullyReleased = append(s.fullyReleased, rollout.ID)
	return nil
}

type fakeRegistry struct{ store *fakeStore }

func (r *fakeRegistry) For(store models.Store) shared.StoreProvider {
	return r.store
}

type fakeNotify struct {
	messages []string
}

func (n *fakeNotify) Notify(channel string, message string, params map[string]any) {
	n.messages = append(n.messages, message)
}

type fakeCache struct {
	thawedReleases []uuid.UUID
	thawedRuns     []uuid.UUID
}

func (c *fakeCache) ThawRelease(releaseID uuid.UUID) {
	c.thawedReleases = append(c.thawedReleases, releaseID)
}

func (c *fakeCache) ThawPlatformRun(runID uuid.UUID) {
	c.thawedRuns = append(c.thawedRuns, runID)
}

// harness wires every coordinator against the in-memory fakes, mirroring
// the production fx graph.
type harness struct {
	apps         *fakeAppRepo
	trains       *fakeTrainRepo
	releases     *fakeReleaseRepo
	runs         *fakeRunRepo
	commits      *fakeCommitRepo
	queues       *fakeQueueRepo
	preProds     *fakePreProdRepo
	workflows    *fakeWorkflowRepo
	builds       *fakeBuildRepo
	productions  *fakeProductionRepo
	submissions  *fakeSubmissionRepo
	rollouts     *fakeRolloutRepo
	pulls        *fakePullRepo
	events       *fakeEventRepo
	rules        *fakeRuleRepo
	healthEvents *fakeHealthEventRepo

	vcs    *fakeVCS
	ci     *fakeCI
	store  *fakeStore
	notify *fakeNotify
	cache  *fakeCache

	start       *StartReleaseCoordinator
	stop        *StopReleaseCoordinator
	process     *ProcessCommitsCoordinator
	queue       *BuildQueueCoordinator
	preProd     *PreProdCoordinator
	workflow    *WorkflowRunCoordinator
	production  *ProductionReleaseCoordinator
	rollout     *StoreRolloutCoordinator
	lifecycle   *ReleaseLifecycleCoordinator
	finalize    *FinalizeReleaseCoordinator
	health      *ReleaseHealthCoordinator
	applyCommit *ApplyCommitCoordinator
}

func newHarness() *harness {
	h := &harness{
		apps:         newFakeAppRepo(),
		trains:       newFakeTrainRepo(),
		releases:     newFakeReleaseRepo(),
		runs:         newFakeRunRepo(),
		commits:      newFakeCommitRepo(),
		queues:       newFakeQueueRepo(),
		preProds:     newFakePreProdRepo(),
		workflows:    newFakeWorkflowRepo(),
		productions:  newFakeProductionRepo(),
		submissions:  newFakeSubmissionRepo(),
		rollouts:     newFakeRolloutRepo(),
		pulls:        newFakePullRepo(),
		events:       &fakeEventRepo{},
		rules:        newFakeRuleRepo(),
		healthEvents: newFakeHealthEventRepo(),
		vcs:          newFakeVCS(),
		ci:           &fakeCI{},
		store:        &fakeStore{},
		notify:       &fakeNotify{},
		cache:        &fakeCache{},
	}
	h.builds = newFakeBuildRepo(h.workflows)
	registry := &fakeRegistry{store: h.store}

	h.preProd = NewPreProdCoordinator(h.releases, h.trains, h.commits, h.preProds, h.workflows, h.runs, h.builds, h.submissions, h.events, h.ci, registry)
	h.applyCommit = NewApplyCommitCoordinator(h.runs, h.productions, h.commits, h.preProd)
	h.queue = NewBuildQueueCoordinator(h.queues, h.commits, h.releases, h.trains, h.events, h.applyCommit)
	h.process = NewProcessCommitsCoordinator(h.trains, h.releases, h.runs, h.commits, h.pulls, h.events, h.vcs, h.notify, h.applyCommit, h.queue)
	h.finalize = NewFinalizeReleaseCoordinator(h.trains, h.releases, h.runs, h.commits, h.pulls, h.events, h.vcs, h.notify, h.cache)
	h.lifecycle = NewReleaseLifecycleCoordinator(h.trains, h.releases, h.runs, h.productions, h.events, h.notify, h.cache, h.finalize)
	h.rollout = NewStoreRolloutCoordinator(h.runs, h.rollouts, h.submissions, h.productions, h.events, registry, h.lifecycle)
	h.workflow = NewWorkflowRunCoordinator(h.workflows, h.runs, h.preProds, h.builds, h.submissions, h.events, registry)
	h.production = NewProductionReleaseCoordinator(h.runs, h.productions, h.builds, h.submissions, h.rollouts, h.events, registry)
	h.health = NewReleaseHealthCoordinator(h.trains, h.releases, h.runs, h.productions, h.rules, h.healthEvents, h.rollouts, h.rollout, h.notify)
	h.start = NewStartReleaseCoordinator(h.apps, h.trains, h.releases, h.runs, h.events, h.vcs, h.notify)
	h.stop = NewStopReleaseCoordinator(h.trains, h.releases, h.runs, h.events, h.notify, h.cache)
	return h
}

func testPlatformConfig(platform models.Platform) models.PlatformConfig {
	store := models.StoreAppStore
	if platform == models.PlatformAndroid {
		store = models.StorePlayStore
	}
	return models.PlatformConfig{
		Platform: platform,
		RCWorkflow: models.WorkflowConfig{
			Identifier: "release-candidate.yml",
			Name:       "Release candidate",
			Kind:       models.WorkflowKindReleaseCandidate,
		},
		BetaSubmissions: []models.SubmissionConfig{{Store: models.StoreFirebase, AutoPromote: true}},
		ProductionSubmission: &models.SubmissionConfig{
			Store:         store,
			IsStaged:      true,
			RolloutStages: []float64{1, 5, 10, 50, 100},
		},
	}
}

func (h *harness) seedApp(t *testing.T, platforms ...models.Platform) models.App {
	t.Helper()
	if len(platforms) == 0 {
		platforms = []models.Platform{models.PlatformIOS}
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	app := models.App{Name: "Demo", Slug: "demo-app", Platforms: names}
	require.NoError(t, h.apps.Create(nil, &app))
	return app
}

func (h *harness) seedTrain(t *testing.T, app models.App, mutate func(*models.Train)) models.Train {
	t.Helper()
	configs := map[models.Platform]models.PlatformConfig{}
	for _, platform := range app.PlatformList() {
		configs[platform] = testPlatformConfig(platform)
	}
	raw, err := models.PlatformConfigsToJSON(configs)
	require.NoError(t, err)

	train := models.Train{
		AppID:              app.ID,
		Name:               "Weekly",
		Slug:               "weekly",
		Status:             models.TrainStatusActive,
		BranchingStrategy:  models.BranchingAlmostTrunk,
		VersioningStrategy: "semver",
		CurrentVersion:     "1.2.0",
		WorkingBranch:      "main",
		PlatformConfig:     raw,
	}
	if mutate != nil {
		mutate(&train)
	}
	require.NoError(t, h.trains.Create(nil, &train))
	return train
}

// seedRelease creates an on-track release with one on-track platform run
// per app platform, skipping the start coordinator.
func (h *harness) seedRelease(t *testing.T, app models.App, train models.Train, version string) (models.Release, []models.ReleasePlatformRun) {
	t.Helper()
	release := models.Release{
		TrainID:        train.ID,
		Status:         models.ReleaseStatusOnTrack,
		ReleaseVersion: version,
		BranchName:     fmt.Sprintf("r/%s/%s", train.Slug, version),
		ReleaseType:    models.ReleaseTypeRelease,
		ScheduledAt:    time.Now(),
	}
	require.NoError(t, h.releases.Create(nil, &release))

	var runs []models.ReleasePlatformRun
	for _, platform := range app.PlatformList() {
		raw, err := testPlatformConfig(platform).ToJSON()
		require.NoError(t, err)
		run := models.ReleasePlatformRun{
			ReleaseID:      release.ID,
			Platform:       platform,
			Status:         models.PlatformRunStatusOnTrack,
			ReleaseVersion: version,
			Config:         raw,
		}
		require.NoError(t, h.runs.Create(nil, &run))
		runs = append(runs, run)
	}
	return release, runs
}

func (h *harness) seedCommit(t *testing.T, releaseID uuid.UUID, hash string, at time.Time) models.Commit {
	t.Helper()
	commit := models.Commit{
		ReleaseID:  releaseID,
		CommitHash: hash,
		Message:    "change " + hash,
		Timestamp:  at,
	}
	require.NoError(t, h.commits.Create(nil, &commit))
	return commit
}

func vcsCommit(hash string, at time.Time) shared.VCSCommit {
	return shared.VCSCommit{
		Hash:       hash,
		Message:    "change " + hash,
		Timestamp:  at,
		AuthorName: "Dev",
		Parents:    []string{"base"},
	}
}
