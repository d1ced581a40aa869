// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transformer maps database models to their API representations.
package transformer

import (
	"encoding/json"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/dtos"
	"github.com/l3montree-dev/railguard/utils"
)

func AppToDTO(app models.App) dtos.AppDTO {
	return dtos.AppDTO{
		ID:        app.ID,
		Name:      app.Name,
		Slug:      app.Slug,
		BundleID:  app.BundleID,
		Platforms: app.Platforms,
		DraftMode: app.DraftMode,
		CreatedAt: app.CreatedAt,
	}
}

func TrainToDTO(train models.Train) dtos.TrainDTO {
	dto := dtos.TrainDTO{
		ID:                 train.ID,
		AppID:              train.AppID,
		Name:               train.Name,
		Slug:               train.Slug,
		Status:             string(train.Status),
		BranchingStrategy:  string(train.BranchingStrategy),
		VersioningStrategy: train.VersioningStrategy,
		CurrentVersion:     train.CurrentVersion,
		WorkingBranch:      train.WorkingBranch,
		BackmergeBranch:    train.BackmergeBranch,
		KickoffAt:          train.KickoffAt,

		BuildQueueEnabled:     train.BuildQueueEnabled,
		BuildQueueSize:        train.BuildQueueSize,
		BuildQueueWaitTimeSec: int64(train.BuildQueueWaitTime.Seconds()),

		UpcomingReleaseStartable: train.UpcomingReleaseStartable,
		NotificationChannel:      train.NotificationChannel,

		PlatformConfig: json.RawMessage(train.PlatformConfig),

		CreatedAt: train.CreatedAt,
	}
	if train.RepeatDuration != nil {
		secs := int64(train.RepeatDuration.Seconds())
		dto.RepeatDurationSec = &secs
	}
	return dto
}

func displayToDTO(display models.Display) dtos.DisplayDTO {
	return dtos.DisplayDTO{Label: display.Label, Severity: string(display.Severity)}
}

func PlatformRunToDTO(run models.ReleasePlatformRun) dtos.PlatformRunDTO {
	return dtos.PlatformRunDTO{
		ID:             run.ID,
		ReleaseID:      run.ReleaseID,
		Platform:       string(run.Platform),
		Status:         string(run.Status),
		StatusDisplay:  displayToDTO(run.Status.Display()),
		ReleaseVersion: run.ReleaseVersion,
		LastCommitID:   run.LastCommitID,
		CompletedAt:    run.CompletedAt,
		StoppedAt:      run.StoppedAt,
	}
}

func ReleaseToDTO(release models.Release, runs []models.ReleasePlatformRun) dtos.ReleaseDTO {
	return dtos.ReleaseDTO{
		ID:             release.ID,
		TrainID:        release.TrainID,
		Status:         string(release.Status),
		StatusDisplay:  displayToDTO(release.Status.Display()),
		ReleaseVersion: release.ReleaseVersion,
		BranchName:     release.BranchName,
		Tag:            release.Tag,
		ReleaseType:    string(release.ReleaseType),
		IsAutomatic:    release.IsAutomatic,
		HotfixedFromID: release.HotfixedFromID,
		ScheduledAt:    release.ScheduledAt,
		CompletedAt:    release.CompletedAt,
		StoppedAt:      release.StoppedAt,
		PlatformRuns:   utils.Map(runs, PlatformRunToDTO),
	}
}
