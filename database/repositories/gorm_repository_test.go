// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Run("detects a wrapped unique violation", func(t *testing.T) {
		err := fmt.Errorf("could not insert row: %w", &pgconn.PgError{Code: "23505"})
		assert.True(t, isUniqueViolation(err))
	})

	t.Run("other pg errors are not unique violations", func(t *testing.T) {
		assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	})

	t.Run("plain errors are not unique violations", func(t *testing.T) {
		assert.False(t, isUniqueViolation(errors.New("connection reset")))
		assert.False(t, isUniqueViolation(nil))
	})
}
