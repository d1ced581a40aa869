// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/l3montree-dev/railguard/monitoring"
)

const cacheSize = 2048

// Cache serves breakdowns from memory. A miss computes synchronously; the
// coordinators thaw entries whenever the underlying release data moved.
type Cache struct {
	service   *Service
	releases  *lru.Cache[uuid.UUID, ReleaseBreakdown]
	platforms *lru.Cache[uuid.UUID, PlatformBreakdown]
}

func NewCache(service *Service) (*Cache, error) {
	releases, err := lru.New[uuid.UUID, ReleaseBreakdown](cacheSize)
	if err != nil {
		return nil, err
	}
	platforms, err := lru.New[uuid.UUID, PlatformBreakdown](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Cache{service: service, releases: releases, platforms: platforms}, nil
}

func (c *Cache) ReleaseBreakdown(releaseID uuid.UUID) (ReleaseBreakdown, error) {
	if cached, ok := c.releases.Get(releaseID); ok {
		return cached, nil
	}
	start := time.Now()
	breakdown, err := c.service.ComputeReleaseBreakdown(releaseID)
	if err != nil {
		return ReleaseBreakdown{}, err
	}
	monitoring.BreakdownComputeDuration.Observe(time.Since(start).Seconds())
	c.releases.Add(releaseID, breakdown)
	return breakdown, nil
}

func (c *Cache) PlatformBreakdown(runID uuid.UUID) (PlatformBreakdown, error) {
	if cached, ok := c.platforms.Get(runID); ok {
		return cached, nil
	}
	start := time.Now()
	breakdown, err := c.service.ComputePlatformBreakdown(runID)
	if err != nil {
		return PlatformBreakdown{}, err
	}
	monitoring.BreakdownComputeDuration.Observe(time.Since(start).Seconds())
	c.platforms.Add(runID, breakdown)
	return breakdown, nil
}

// ThawRelease drops the cached breakdown so the next read recomputes.
func (c *Cache) ThawRelease(releaseID uuid.UUID) {
	c.releases.Remove(releaseID)
}

func (c *Cache) ThawPlatformRun(runID uuid.UUID) {
	c.platforms.Remove(runID)
	// the aggregate contains the platform view, drop it too
	run, err := c.service.platformRunRepository.Read(runID)
	if err != nil {
		slog.Debug("could not resolve platform run for cache thaw", "platformRunId", runID, "err", err)
		return
	}
	c.releases.Remove(run.ReleaseID)
}

// Warm precomputes the breakdown of a recently finished release.
func (c *Cache) Warm(releaseID uuid.UUID) {
	if _, err := c.ReleaseBreakdown(releaseID); err != nil {
		slog.Warn("could not warm release breakdown", "releaseId", releaseID, "err", err)
	}
}
