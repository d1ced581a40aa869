// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hours int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hours) * time.Hour)
}

func TestWholeSeconds(t *testing.T) {
	assert.Equal(t, int64(3600), *wholeSeconds(at(0), at(1)))
	// clock skew between rows never yields a negative duration
	assert.Equal(t, int64(0), *wholeSeconds(at(1), at(0)))
}

func TestSubmissionWindow(t *testing.T) {
	production := func(submitted, approved *time.Time) models.StoreSubmission {
		return models.StoreSubmission{
			ParentReleaseType: models.ParentReleaseProduction,
			SubmittedAt:       submitted,
			ApprovedAt:        approved,
		}
	}

	t.Run("spans first submission to last approval", func(t *testing.T) {
		window := submissionWindow([]models.StoreSubmission{
			production(shared.Ptr(at(0)), shared.Ptr(at(2))),
			production(shared.Ptr(at(1)), shared.Ptr(at(5))),
		})
		require.NotNil(t, window)
		assert.Equal(t, int64(5*3600), *window)
	})

	t.Run("nil while approval is pending", func(t *testing.T) {
		assert.Nil(t, submissionWindow([]models.StoreSubmission{
			production(shared.Ptr(at(0)), nil),
		}))
	})

	t.Run("pre-prod submissions do not count", func(t *testing.T) {
		beta := production(shared.Ptr(at(0)), shared.Ptr(at(1)))
		beta.ParentReleaseType = models.ParentReleasePreProd
		assert.Nil(t, submissionWindow([]models.StoreSubmission{beta}))
	})
}

func TestRolloutWindow(t *testing.T) {
	rollout := func(created time.Time, completed *time.Time) models.StoreRollout {
		r := models.StoreRollout{CompletedAt: completed}
		r.CreatedAt = created
		return r
	}

	t.Run("spans first start to last completion", func(t *testing.T) {
		window := rolloutWindow([]models.StoreRollout{
			rollout(at(0), shared.Ptr(at(24))),
			rollout(at(1), shared.Ptr(at(48))),
		})
		require.NotNil(t, window)
		assert.Equal(t, int64(48*3600), *window)
	})

	t.Run("nil while still rolling out", func(t *testing.T) {
		assert.Nil(t, rolloutWindow([]models.StoreRollout{rollout(at(0), nil)}))
	})
}

type stubBuildRepo struct {
	shared.BuildRepository
	candidates []models.Build
}

func (s stubBuildRepo) ListReleaseCandidatesByRun(runID uuid.UUID) ([]models.Build, error) {
	return s.candidates, nil
}

func TestStabilityEnd(t *testing.T) {
	now := at(100)

	productionAt := func(created time.Time) models.ProductionRelease {
		p := models.ProductionRelease{}
		p.CreatedAt = created
		return p
	}
	buildAt := func(updated time.Time) models.Build {
		b := models.Build{}
		b.UpdatedAt = updated
		return b
	}

	t.Run("first production release closes the window", func(t *testing.T) {
		s := &Service{}
		run := models.ReleasePlatformRun{Status: models.PlatformRunStatusOnTrack}
		end, err := s.stabilityEnd(run, []models.ProductionRelease{productionAt(at(10)), productionAt(at(4))}, now)
		require.NoError(t, err)
		require.NotNil(t, end)
		assert.Equal(t, at(4), *end)
	})

	t.Run("an on-track run without a production release is still stabilizing", func(t *testing.T) {
		s := &Service{}
		run := models.ReleasePlatformRun{Status: models.PlatformRunStatusOnTrack}
		end, err := s.stabilityEnd(run, nil, now)
		require.NoError(t, err)
		require.NotNil(t, end)
		assert.Equal(t, now, *end)
	})

	t.Run("a done run without a production release ends at the last candidate build", func(t *testing.T) {
		s := &Service{buildRepository: stubBuildRepo{candidates: []models.Build{buildAt(at(6)), buildAt(at(9))}}}
		run := models.ReleasePlatformRun{Status: models.PlatformRunStatusStopped}
		end, err := s.stabilityEnd(run, nil, now)
		require.NoError(t, err)
		require.NotNil(t, end)
		assert.Equal(t, at(9), *end)
	})

	t.Run("nil when nothing bounds the window", func(t *testing.T) {
		s := &Service{buildRepository: stubBuildRepo{}}
		run := models.ReleasePlatformRun{Status: models.PlatformRunStatusStopped}
		end, err := s.stabilityEnd(run, nil, now)
		require.NoError(t, err)
		assert.Nil(t, end)
	})
}
