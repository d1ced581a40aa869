// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package dtos

import (
	"time"

	"github.com/google/uuid"
)

type AppCreateRequest struct {
	Name      string   `json:"name" validate:"required"`
	Slug      string   `json:"slug" validate:"required"`
	BundleID  string   `json:"bundleId"`
	Platforms []string `json:"platforms" validate:"required,min=1,dive,oneof=ios android"`
	DraftMode bool     `json:"draftMode"`
}

type AppDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	BundleID  string    `json:"bundleId"`
	Platforms []string  `json:"platforms"`
	DraftMode bool      `json:"draftMode"`
	CreatedAt time.Time `json:"createdAt"`
}
