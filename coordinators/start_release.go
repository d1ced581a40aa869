// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/monitoring"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/l3montree-dev/railguard/versioning"
	"gorm.io/gorm"
)

// StartReleaseOptions are the caller-supplied knobs for a new release.
type StartReleaseOptions struct {
	Hotfix bool
	// CustomVersion overrides the computed next version. Must match the
	// train's versioning strategy.
	CustomVersion string
	// Automatic marks releases started by the kickoff schedule.
	Automatic bool
}

// StartReleaseCoordinator validates the preconditions for a new release,
// creates it together with its platform runs, and cuts the release branch.
type StartReleaseCoordinator struct {
	appRepository         shared.AppRepository
	trainRepository       shared.TrainRepository
	releaseRepository     shared.ReleaseRepository
	platformRunRepository shared.ReleasePlatformRunRepository
	eventRepository       shared.ReleaseEventRepository
	vcs                   shared.VCSProvider
	notify                shared.NotificationSink
}

func NewStartReleaseCoordinator(
	appRepository shared.AppRepository,
	trainRepository shared.TrainRepository,
	releaseRepository shared.ReleaseRepository,
	platformRunRepository shared.ReleasePlatformRunRepository,
	eventRepository shared.ReleaseEventRepository,
	vcs shared.VCSProvider,
	notify shared.NotificationSink,
) *StartReleaseCoordinator {
	return &StartReleaseCoordinator{
		appRepository:         appRepository,
		trainRepository:       trainRepository,
		releaseRepository:     releaseRepository,
		platformRunRepository: platformRunRepository,
		eventRepository:       eventRepository,
		vcs:                   vcs,
		notify:                notify,
	}
}

// releaseBranchName finds a free branch name, suffixing a counter when a
// previous attempt already pushed the plain name.
func (c *StartReleaseCoordinator) releaseBranchName(ctx context.Context, train models.Train, version string) (string, error) {
	base := fmt.Sprintf("r/%s/%s", train.Slug, version)
	name := base
	for i := 1; ; i++ {
		exists, err := c.vcs.BranchExists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func (c *StartReleaseCoordinator) checkOngoing(train models.Train, ongoing []models.Release, hotfix bool) error {
	if hotfix {
		// a hotfix may run next to a regular release that is holding out,
		// but never next to another hotfix
		for _, r := range ongoing {
			if r.Hotfix() {
				return ErrReleaseAlreadyInProgress
			}
		}
		return nil
	}
	switch len(ongoing) {
	case 0:
		return nil
	case 1:
		if train.UpcomingReleaseStartable {
			return nil
		}
		return ErrReleaseAlreadyInProgress
	default:
		return ErrUpcomingReleaseExists
	}
}

// hotfixSource resolves the finished release a hotfix branches from.
func (c *StartReleaseCoordinator) hotfixSource(ctx context.Context, train models.Train) (models.Release, error) {
	last, err := c.releaseRepository.GetLastFinished(train.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Release{}, ErrHotfixRequiresFinished
		}
		return models.Release{}, err
	}
	if last.Tag != "" {
		exists, err := c.vcs.TagExists(ctx, last.Tag)
		if err != nil {
			return models.Release{}, err
		}
		if exists {
			return last, nil
		}
	}
	exists, err := c.vcs.BranchExists(ctx, last.BranchName)
	if err != nil {
		return models.Release{}, err
	}
	if !exists {
		return models.Release{}, ErrHotfixSourceMissing
	}
	return last, nil
}

// StartRelease creates the next release for the train. The VCS calls that
// resolve branch names and hotfix sources run before the train lock is
// taken; branch creation itself happens after commit.
func (c *StartReleaseCoordinator) StartRelease(ctx context.Context, trainID uuid.UUID, opts StartReleaseOptions) (models.Release, error) {
	train, err := c.trainRepository.Read(trainID)
	if err != nil {
		return models.Release{}, err
	}
	if !train.Active() {
		return models.Release{}, ErrTrainNotActive
	}
	app, err := c.appRepository.Read(train.AppID)
	if err != nil {
		return models.Release{}, err
	}
	if app.DraftMode {
		return models.Release{}, ErrAppInDraftMode
	}

	strategy := versioning.Strategy(train.VersioningStrategy)
	version := opts.CustomVersion
	if version != "" {
		if err := versioning.Validate(strategy, version); err != nil {
			return models.Release{}, ErrInvalidCustomVersion
		}
		version, err = versioning.Normalize(strategy, version)
		if err != nil {
			return models.Release{}, ErrInvalidCustomVersion
		}
	} else {
		version, err = versioning.NextReleaseVersion(strategy, train.CurrentVersion, opts.Hotfix)
		if err != nil {
			return models.Release{}, err
		}
	}

	var hotfixSource models.Release
	if opts.Hotfix {
		hotfixSource, err = c.hotfixSource(ctx, train)
		if err != nil {
			return models.Release{}, err
		}
	}

	branchName, err := c.releaseBranchName(ctx, train, version)
	if err != nil {
		return models.Release{}, err
	}
	// a hotfix reuses the finished release's branch when it still exists
	newBranch := true
	if opts.Hotfix {
		exists, err := c.vcs.BranchExists(ctx, hotfixSource.BranchName)
		if err != nil {
			return models.Release{}, err
		}
		if exists {
			branchName = hotfixSource.BranchName
			newBranch = false
		}
	}

	configs, err := models.TrainPlatformConfigs(train.PlatformConfig)
	if err != nil {
		return models.Release{}, err
	}

	var release models.Release
	fups := followUps{}
	err = c.trainRepository.Transaction(func(tx shared.DB) error {
		// the train lock serializes concurrent release starts; ongoing
		// releases are re-read under it
		train, err = c.trainRepository.ReadForUpdate(tx, trainID)
		if err != nil {
			return err
		}
		ongoing, err := c.releaseRepository.GetOngoing(trainID)
		if err != nil {
			return err
		}
		if err := c.checkOngoing(train, ongoing, opts.Hotfix); err != nil {
			return err
		}

		release = models.Release{
			TrainID:        trainID,
			Status:         models.ReleaseStatusCreated,
			ReleaseVersion: version,
			BranchName:     branchName,
			IsAutomatic:    opts.Automatic,
			ReleaseType:    models.ReleaseTypeRelease,
			ScheduledAt:    time.Now(),
		}
		if opts.Hotfix {
			release.ReleaseType = models.ReleaseTypeHotfix
			release.HotfixedFromID = &hotfixSource.ID
			release.NewHotfixBranch = newBranch
		}
		if err := c.releaseRepository.Create(tx, &release); err != nil {
			return err
		}

		for _, platform := range app.PlatformList() {
			config, ok := configs[platform]
			if !ok {
				continue
			}
			raw, err := config.ToJSON()
			if err != nil {
				return err
			}
			run := models.ReleasePlatformRun{
				ReleaseID:      release.ID,
				Platform:       platform,
				Status:         models.PlatformRunStatusCreated,
				ReleaseVersion: version,
				Config:         raw,
			}
			if err := c.platformRunRepository.Create(tx, &run); err != nil {
				return err
			}
		}

		if err := stamp(c.eventRepository, tx, models.StampableRelease, release.ID, "release_started", models.EventKindSuccess,
			fmt.Sprintf("release %s started on branch %s", version, branchName), map[string]any{"hotfix": opts.Hotfix}); err != nil {
			return err
		}

		fups = append(fups, c.cutBranchFollowUp(train, release, hotfixSource, opts.Hotfix, newBranch))
		fups = append(fups, c.registerWebhookFollowUp(trainID))
		channel := train.NotificationChannel
		fups = append(fups, func() {
			c.notify.Notify(channel, fmt.Sprintf("release %s started", version), map[string]any{
				"releaseId": release.ID.String(),
				"branch":    branchName,
				"hotfix":    opts.Hotfix,
			})
		})
		return nil
	})
	if err != nil {
		return models.Release{}, err
	}

	fups.run()
	return release, nil
}

// registerWebhookFollowUp points the VCS push webhook at the train's
// ingestion endpoint after commit. Providers treat a hook that already
// exists for the same URL as success, so repeated release starts are
// harmless.
func (c *StartReleaseCoordinator) registerWebhookFollowUp(trainID uuid.UUID) func() {
	return func() {
		base := os.Getenv("WEBHOOK_CALLBACK_BASE_URL")
		if base == "" {
			return
		}
		callbackURL := fmt.Sprintf("%s/api/v1/webhooks/vcs/%s/", strings.TrimSuffix(base, "/"), trainID)
		if err := c.vcs.RegisterWebhook(context.Background(), callbackURL, []string{"push"}); err != nil {
			slog.Error("could not register vcs webhook", "trainId", trainID, "err", err)
			monitoring.Alert("vcs webhook registration failed", err)
		}
	}
}

// cutBranchFollowUp creates the release branch after commit. A failure is
// surfaced through alerting; the release stays in created until commits
// arrive or it gets stopped.
func (c *StartReleaseCoordinator) cutBranchFollowUp(train models.Train, release models.Release, hotfixSource models.Release, hotfix, newBranch bool) func() {
	return func() {
		if hotfix && !newBranch {
			return
		}
		fromRef := train.WorkingBranch
		if hotfix {
			fromRef = hotfixSource.Tag
		}
		if err := c.vcs.CreateBranch(context.Background(), fromRef, release.BranchName); err != nil {
			slog.Error("could not create release branch", "releaseId", release.ID, "branch", release.BranchName, "err", err)
			monitoring.Alert("release branch creation failed", err)
		}
	}
}
