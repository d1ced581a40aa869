// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// StampableType discriminates which entity an audit event belongs to.
type StampableType string

const (
	StampableRelease           StampableType = "release"
	StampablePlatformRun       StampableType = "release_platform_run"
	StampablePreProdRelease    StampableType = "pre_prod_release"
	StampableProductionRelease StampableType = "production_release"
	StampableStoreSubmission   StampableType = "store_submission"
	StampableStoreRollout      StampableType = "store_rollout"
	StampableBuildQueue        StampableType = "build_queue"
)

type EventKind string

const (
	EventKindSuccess EventKind = "success"
	EventKindNotice  EventKind = "notice"
	EventKindError   EventKind = "error"
)

// ReleaseEvent is the append-only audit record written for every
// significant state transition.
type ReleaseEvent struct {
	Model
	StampableType StampableType `json:"stampableType" gorm:"type:text;not null;index:idx_release_events_stampable;"`
	StampableID   uuid.UUID     `json:"stampableId" gorm:"type:uuid;not null;index:idx_release_events_stampable;"`

	// Reason is a stable machine key, e.g. "build_queue_applied".
	Reason  string    `json:"reason" gorm:"type:text;not null;"`
	Kind    EventKind `json:"kind" gorm:"type:text;not null;default:'notice';"`
	Message string    `json:"message" gorm:"type:text;"`
	Data    string    `json:"data" gorm:"type:text;"`
}

func (e ReleaseEvent) TableName() string {
	return "release_events"
}

func NewReleaseEvent(stampableType StampableType, stampableID uuid.UUID, reason string, kind EventKind, message string, data map[string]any) ReleaseEvent {
	ev := ReleaseEvent{
		StampableType: stampableType,
		StampableID:   stampableID,
		Reason:        reason,
		Kind:          kind,
		Message:       message,
	}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			slog.Warn("could not marshal event data", "reason", reason, "err", err)
		} else {
			ev.Data = string(raw)
		}
	}
	return ev
}

func (e ReleaseEvent) GetData() map[string]any {
	out := map[string]any{}
	if e.Data == "" {
		return out
	}
	if err := json.Unmarshal([]byte(e.Data), &out); err != nil {
		slog.Error("could not parse event data", "eventId", e.ID, "err", err)
		return map[string]any{}
	}
	return out
}
