// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinators

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/railguard/database/models"
	"github.com/l3montree-dev/railguard/shared"
)

// followUps are side effects (CI triggers, store calls, notifications) that
// must run strictly after the surrounding transaction committed. Row locks
// are never held across them.
type followUps []func()

func (f followUps) run() {
	for _, fn := range f {
		if fn != nil {
			fn()
		}
	}
}

// BreakdownCache is the slice of the metrics layer the coordinators need:
// explicit invalidation when a release or platform run changes terminally.
type BreakdownCache interface {
	ThawRelease(releaseID uuid.UUID)
	ThawPlatformRun(runID uuid.UUID)
}

func stamp(events shared.ReleaseEventRepository, tx shared.DB, stampableType models.StampableType, stampableID uuid.UUID, reason string, kind models.EventKind, message string, data map[string]any) error {
	return events.Stamp(tx, models.NewReleaseEvent(stampableType, stampableID, reason, kind, message, data))
}
