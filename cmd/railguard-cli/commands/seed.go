// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"log/slog"

	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/database/repositories"
	"github.com/l3montree-dev/railguard/shared"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
)

// NewSeedCommand creates a demo app with one active train so a fresh
// instance has something to click on.
func NewSeedCommand() *cobra.Command {
	seed := cobra.Command{
		Use:   "seed-demo",
		Short: "Seed a demo app and release train",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			shared.LoadConfig() // nolint
			db, err := shared.DatabaseFactory()
			if err != nil {
				slog.Error("could not connect to database", "err", err)
				return
			}

			appRepository := repositories.NewAppRepository(db)
			trainRepository := repositories.NewTrainRepository(db)

			app := models.App{
				Name:      "Demo App",
				Slug:      "demo-app",
				BundleID:  "dev.l3montree.railguard.demo",
				Platforms: []string{string(models.PlatformIOS), string(models.PlatformAndroid)},
			}
			if err := appRepository.Create(nil, &app); err != nil {
				slog.Error("could not create demo app", "err", err)
				return
			}

			config, err := demoPlatformConfig()
			if err != nil {
				slog.Error("could not build demo platform config", "err", err)
				return
			}

			train := models.Train{
				AppID:              app.ID,
				Name:               "Weekly",
				Slug:               "demo-weekly",
				Status:             models.TrainStatusActive,
				BranchingStrategy:  models.BranchingAlmostTrunk,
				VersioningStrategy: "semver",
				CurrentVersion:     "1.0.0",
				WorkingBranch:      "main",
				PlatformConfig:     config,
			}
			if err := trainRepository.Create(nil, &train); err != nil {
				slog.Error("could not create demo train", "err", err)
				return
			}

			slog.Info("seeded demo data", "app", app.Slug, "train", train.Slug)
		},
	}
	return &seed
}

func demoPlatformConfig() (datatypes.JSON, error) {
	configs := map[models.Platform]models.PlatformConfig{}
	for _, platform := range []models.Platform{models.PlatformIOS, models.PlatformAndroid} {
		store := models.StoreAppStore
		if platform == models.PlatformAndroid {
			store = models.StorePlayStore
		}
		configs[platform] = models.PlatformConfig{
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
				RolloutStages: []float64{1, 5, 10, 25, 50, 100},
			},
		}
	}
	return models.PlatformConfigsToJSON(configs)
}
