// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"fmt"
	"slices"
)

// Decision records whether a lifecycle transition is allowed and why it is
// forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

// decide checks a table-driven state machine: table maps a source status to
// the set of statuses reachable from it.
func decide(table map[string][]string, entity, from, to string) Decision {
	targets, ok := table[from]
	if !ok {
		return Decision{Allowed: false, Reason: fmt.Sprintf("%s in terminal or unknown status %q", entity, from)}
	}
	if !slices.Contains(targets, to) {
		return Decision{Allowed: false, Reason: fmt.Sprintf("%s cannot move from %q to %q", entity, from, to)}
	}
	return Decision{Allowed: true}
}
