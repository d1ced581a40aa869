// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics derives duration and quality breakdowns from finished
// and ongoing releases. Breakdowns are pure reads over the release data
// and get cached aggressively.
package metrics

import (
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
)

// PlatformBreakdown is the derived view of one platform run.
type PlatformBreakdown struct {
	ReleasePlatformRunID uuid.UUID       `json:"releasePlatformRunId"`
	Platform             models.Platform `json:"platform"`
	ReleaseVersion       string          `json:"releaseVersion"`

	CommitCount            int64 `json:"commitCount"`
	InternalReleaseCount   int   `json:"internalReleaseCount"`
	BetaReleaseCount       int   `json:"betaReleaseCount"`
	ProductionReleaseCount int   `json:"productionReleaseCount"`

	// StabilityDurationSec spans from the first pre-prod release to the
	// first production submission. Nil while either bound is missing.
	StabilityDurationSec  *int64 `json:"stabilityDurationSec"`
	SubmissionDurationSec *int64 `json:"submissionDurationSec"`
	RolloutDurationSec    *int64 `json:"rolloutDurationSec"`
}

// ReleaseBreakdown aggregates a release across its platform runs.
type ReleaseBreakdown struct {
	ReleaseID      uuid.UUID            `json:"releaseId"`
	ReleaseVersion string               `json:"releaseVersion"`
	Status         models.ReleaseStatus `json:"status"`
	Hotfix         bool                 `json:"hotfix"`

	OverallDurationSec *int64              `json:"overallDurationSec"`
	Platforms          []PlatformBreakdown `json:"platforms"`
	Reldex             *float64            `json:"reldex"`
}

// Service computes breakdowns. All methods are read-only.
type Service struct {
	releaseRepository           shared.ReleaseRepository
	platformRunRepository       shared.ReleasePlatformRunRepository
	commitRepository            shared.CommitRepository
	preProdRepository           shared.PreProdReleaseRepository
	buildRepository             shared.BuildRepository
	productionReleaseRepository shared.ProductionReleaseRepository
	storeSubmissionRepository   shared.StoreSubmissionRepository
	storeRolloutRepository      shared.StoreRolloutRepository
	pullRequestRepository       shared.PullRequestRepository
}

func NewService(
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	commitRepository shared.CommitRepository,
	preProdRepository shared.PreProdReleaseRepository,
	buildRepository shared.BuildRepository,
	productionReleaseRepository shared.ProductionReleaseRepository,
	storeSubmissionRepository shared.StoreSubmissionRepository,
	storeRolloutRepository shared.StoreRolloutRepository,
	pullRequestRepository shared.PullRequestRepository,
) *Service {
	return &Service{
		releaseRepository:           releaseRepository,
		platformRunRepository:       platformRunRepository,
		commitRepository:            commitRepository,
		preProdRepository:           preProdRepository,
		buildRepository:             buildRepository,
		productionReleaseRepository: productionReleaseRepository,
		storeSubmissionRepository:   storeSubmissionRepository,
		storeRolloutRepository:      storeRolloutRepository,
		pullRequestRepository:       pullRequestRepository,
	}
}

func wholeSeconds(from, to time.Time) *int64 {
	seconds := int64(to.Sub(from) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return &seconds
}

func earliestCreated[T interface{ GetID() uuid.UUID }](rows []T, createdAt func(T) time.Time) *time.Time {
	var earliest *time.Time
	for _, row := range rows {
		t := createdAt(row)
		if earliest == nil || t.Before(*earliest) {
			earliest = &t
		}
	}
	return earliest
}

// stabilityStart is the creation of the first pre-prod release, preferring
// the internal flow when the platform has one.
func (s *Service) stabilityStart(run models.ReleasePlatformRun) (*time.Time, int, int, error) {
	internals, err := s.preProdRepository.ListByRunAndKind(run.ID, models.PreProdKindInternal)
	if err != nil {
		return nil, 0, 0, err
	}
	betas, err := s.preProdRepository.ListByRunAndKind(run.ID, models.PreProdKindBeta)
	if err != nil {
		return nil, 0, 0, err
	}
	start := earliestCreated(internals, func(p models.PreProdRelease) time.Time { return p.CreatedAt })
	if start == nil {
		start = earliestCreated(betas, func(p models.PreProdRelease) time.Time { return p.CreatedAt })
	}
	return start, len(internals), len(betas), nil
}

// stabilityEnd is the first production release. An on-track run without
// one is still stabilizing, so the window extends to now. A finished run
// without one ends at its last release-candidate build.
func (s *Service) stabilityEnd(run models.ReleasePlatformRun, productions []models.ProductionRelease, now time.Time) (*time.Time, error) {
	if end := earliestCreated(productions, func(p models.ProductionRelease) time.Time { return p.CreatedAt }); end != nil {
		return end, nil
	}
	if run.OnTrack() {
		return &now, nil
	}
	builds, err := s.buildRepository.ListReleaseCandidatesByRun(run.ID)
	if err != nil {
		return nil, err
	}
	var latest *time.Time
	for _, build := range builds {
		t := build.UpdatedAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// submissionWindow spans from the first production submission to its
// approval.
func submissionWindow(submissions []models.StoreSubmission) *int64 {
	var submitted, approved *time.Time
	for _, sub := range submissions {
		if sub.ParentReleaseType != models.ParentReleaseProduction {
			continue
		}
		if sub.SubmittedAt != nil && (submitted == nil || sub.SubmittedAt.Before(*submitted)) {
			submitted = sub.SubmittedAt
		}
		if sub.ApprovedAt != nil && (approved == nil || sub.ApprovedAt.After(*approved)) {
			approved = sub.ApprovedAt
		}
	}
	if submitted == nil || approved == nil {
		return nil
	}
	return wholeSeconds(*submitted, *approved)
}

func rolloutWindow(rollouts []models.StoreRollout) *int64 {
	var started, completed *time.Time
	for _, rollout := range rollouts {
		t := rollout.CreatedAt
		if started == nil || t.Before(*started) {
			started = &t
		}
		if rollout.CompletedAt != nil && (completed == nil || rollout.CompletedAt.After(*completed)) {
			completed = rollout.CompletedAt
		}
	}
	if started == nil || completed == nil {
		return nil
	}
	return wholeSeconds(*started, *completed)
}

// ComputePlatformBreakdown derives the full breakdown of one platform run.
func (s *Service) ComputePlatformBreakdown(runID uuid.UUID) (PlatformBreakdown, error) {
	run, err := s.platformRunRepository.Read(runID)
	if err != nil {
		return PlatformBreakdown{}, err
	}

	breakdown := PlatformBreakdown{
		ReleasePlatformRunID: run.ID,
		Platform:             run.Platform,
		ReleaseVersion:       run.ReleaseVersion,
	}

	breakdown.CommitCount, err = s.commitRepository.CountByRelease(nil, run.ReleaseID)
	if err != nil {
		return PlatformBreakdown{}, err
	}

	start, internalCount, betaCount, err := s.stabilityStart(run)
	if err != nil {
		return PlatformBreakdown{}, err
	}
	breakdown.InternalReleaseCount = internalCount
	breakdown.BetaReleaseCount = betaCount

	productions, err := s.productionReleaseRepository.ListByRun(run.ID)
	if err != nil {
		return PlatformBreakdown{}, err
	}
	breakdown.ProductionReleaseCount = len(productions)

	end, err := s.stabilityEnd(run, productions, time.Now())
	if err != nil {
		return PlatformBreakdown{}, err
	}
	if start != nil && end != nil {
		breakdown.StabilityDurationSec = wholeSeconds(*start, *end)
	}

	var submissions []models.StoreSubmission
	for _, production := range productions {
		subs, err := s.storeSubmissionRepository.ListByParent(models.ParentReleaseProduction, production.ID)
		if err != nil {
			return PlatformBreakdown{}, err
		}
		submissions = append(submissions, subs...)
	}
	breakdown.SubmissionDurationSec = submissionWindow(submissions)

	rollouts, err := s.storeRolloutRepository.ListByRun(run.ID)
	if err != nil {
		return PlatformBreakdown{}, err
	}
	breakdown.RolloutDurationSec = rolloutWindow(rollouts)

	return breakdown, nil
}

// ComputeReleaseBreakdown derives the aggregate breakdown of a release.
func (s *Service) ComputeReleaseBreakdown(releaseID uuid.UUID) (ReleaseBreakdown, error) {
	release, err := s.releaseRepository.Read(releaseID)
	if err != nil {
		return ReleaseBreakdown{}, err
	}
	runs, err := s.platformRunRepository.GetByRelease(nil, releaseID)
	if err != nil {
		return ReleaseBreakdown{}, err
	}

	breakdown := ReleaseBreakdown{
		ReleaseID:      release.ID,
		ReleaseVersion: release.ReleaseVersion,
		Status:         release.Status,
		Hotfix:         release.Hotfix(),
	}
	if release.CompletedAt != nil {
		breakdown.OverallDurationSec = wholeSeconds(release.ScheduledAt, *release.CompletedAt)
	}

	for _, run := range runs {
		platform, err := s.ComputePlatformBreakdown(run.ID)
		if err != nil {
			return ReleaseBreakdown{}, err
		}
		breakdown.Platforms = append(breakdown.Platforms, platform)
	}

	open, err := s.pullRequestRepository.ListOpenAutomatic(nil, releaseID)
	if err != nil {
		return ReleaseBreakdown{}, err
	}
	breakdown.Reldex = Reldex(breakdown, len(open))
	return breakdown, nil
}
