// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type WorkflowKind string

const (
	WorkflowKindInternal         WorkflowKind = "internal"
	WorkflowKindReleaseCandidate WorkflowKind = "release_candidate"
)

type Store string

const (
	StoreAppStore  Store = "app_store"
	StorePlayStore Store = "play_store"
	StoreFirebase  Store = "firebase"
)

type WorkflowConfig struct {
	Identifier string            `json:"identifier"`
	Name       string            `json:"name"`
	Kind       WorkflowKind      `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type SubmissionConfig struct {
	Store         Store     `json:"store"`
	AutoPromote   bool      `json:"autoPromote"`
	IsStaged      bool      `json:"isStaged"`
	RolloutStages []float64 `json:"rolloutStages,omitempty"`
	// AutomaticRollout advances staged rollouts on a schedule instead of
	// waiting for a manual increase.
	AutomaticRollout         bool `json:"automaticRollout"`
	RolloutUpdateIntervalSec int  `json:"rolloutUpdateIntervalSec,omitempty"`
}

// PlatformConfig is snapshotted from the train onto every release platform
// run so later config edits never alter in-flight releases.
type PlatformConfig struct {
	Platform Platform `json:"platform"`
	// InternalWorkflow is nil when the platform goes straight to beta.
	InternalWorkflow *WorkflowConfig `json:"internalWorkflow,omitempty"`
	RCWorkflow       WorkflowConfig  `json:"rcWorkflow"`

	InternalSubmissions []SubmissionConfig `json:"internalSubmissions,omitempty"`
	BetaSubmissions     []SubmissionConfig `json:"betaSubmissions,omitempty"`
	ProductionSubmission *SubmissionConfig `json:"productionSubmission,omitempty"`
}

func (c PlatformConfig) InternalReleaseConfigured() bool {
	return c.InternalWorkflow != nil
}

func (c PlatformConfig) ToJSON() (datatypes.JSON, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func PlatformConfigFromJSON(raw datatypes.JSON) (PlatformConfig, error) {
	var c PlatformConfig
	if len(raw) == 0 {
		return c, nil
	}
	err := json.Unmarshal(raw, &c)
	return c, err
}

func PlatformConfigsToJSON(configs map[Platform]PlatformConfig) (datatypes.JSON, error) {
	raw, err := json.Marshal(configs)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// TrainPlatformConfigs parses the per-platform config map stored on a train.
func TrainPlatformConfigs(raw datatypes.JSON) (map[Platform]PlatformConfig, error) {
	configs := map[Platform]PlatformConfig{}
	if len(raw) == 0 {
		return configs, nil
	}
	err := json.Unmarshal(raw, &configs)
	return configs, err
}
