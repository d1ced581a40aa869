// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package versioning implements the version strategies trains can use.
// Pure logic, no I/O.
package versioning

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

type Strategy string

const (
	// StrategySemver versions look like MAJOR.MINOR.PATCH.
	StrategySemver Strategy = "semver"
	// StrategyPartialSemver versions look like MAJOR.MINOR. Patch bumps are
	// invalid under this strategy.
	StrategyPartialSemver Strategy = "partial_semver"
)

type Term string

const (
	TermMajor Term = "major"
	TermMinor Term = "minor"
	TermPatch Term = "patch"
)

var ErrInvalidVersion = errors.New("version does not match the train's versioning strategy")

func KnownStrategy(s Strategy) bool {
	return s == StrategySemver || s == StrategyPartialSemver
}

// parse normalizes a version to a full semver value. Partial versions get a
// zero patch appended for the math and stripped again on formatting.
func parse(strategy Strategy, version string) (*semver.Version, error) {
	parts := strings.Split(version, ".")
	switch strategy {
	case StrategySemver:
		if len(parts) != 3 {
			return nil, errors.Wrapf(ErrInvalidVersion, "%q is not MAJOR.MINOR.PATCH", version)
		}
	case StrategyPartialSemver:
		if len(parts) != 2 {
			return nil, errors.Wrapf(ErrInvalidVersion, "%q is not MAJOR.MINOR", version)
		}
		version += ".0"
	default:
		return nil, fmt.Errorf("unknown versioning strategy %q", strategy)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return nil, errors.Wrapf(ErrInvalidVersion, "%q contains a non-numeric segment", version)
		}
	}
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidVersion, "%q: %v", version, err)
	}
	return v, nil
}

func format(strategy Strategy, v *semver.Version) string {
	if strategy == StrategyPartialSemver {
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

func Validate(strategy Strategy, version string) error {
	_, err := parse(strategy, version)
	return err
}

func Bump(strategy Strategy, version string, term Term) (string, error) {
	v, err := parse(strategy, version)
	if err != nil {
		return "", err
	}
	var next semver.Version
	switch term {
	case TermMajor:
		next = v.IncMajor()
	case TermMinor:
		next = v.IncMinor()
	case TermPatch:
		if strategy == StrategyPartialSemver {
			return "", errors.Wrap(ErrInvalidVersion, "partial semver has no patch term")
		}
		next = v.IncPatch()
	default:
		return "", fmt.Errorf("unknown version term %q", term)
	}
	return format(strategy, &next), nil
}

// Compare returns -1, 0 or 1 like semver comparison.
func Compare(strategy Strategy, a, b string) (int, error) {
	va, err := parse(strategy, a)
	if err != nil {
		return 0, err
	}
	vb, err := parse(strategy, b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// NextReleaseVersion computes the version of a fresh release. Regular
// releases bump the minor term; hotfixes patch-bump the version they branch
// from (major.minor bump under partial semver would skip users ahead, so a
// partial-semver hotfix bumps minor).
func NextReleaseVersion(strategy Strategy, current string, hotfix bool) (string, error) {
	if !hotfix {
		return Bump(strategy, current, TermMinor)
	}
	if strategy == StrategyPartialSemver {
		return Bump(strategy, current, TermMinor)
	}
	return Bump(strategy, current, TermPatch)
}

// Normalize re-formats a version against the strategy, fixing zero-padded
// or whitespace-damaged inputs without changing the value. Strict parsing
// rejects leading zeros, so each segment is canonicalized first.
func Normalize(strategy Strategy, version string) (string, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidVersion, "%q contains a non-numeric segment", version)
		}
		parts[i] = strconv.Itoa(n)
	}
	v, err := parse(strategy, strings.Join(parts, "."))
	if err != nil {
		return "", err
	}
	return format(strategy, v), nil
}
