// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

type App struct {
	Model
	Name      string `json:"name" gorm:"not null;type:text;"`
	Slug      string `json:"slug" gorm:"uniqueIndex;not null;type:text;"`
	BundleID  string `json:"bundleId" gorm:"type:text;"`
	// Platforms the app ships on. An app is ios, android or both.
	Platforms []string `json:"platforms" gorm:"serializer:json;type:jsonb;"`
	// DraftMode apps have no store presence yet and cannot start releases
	// that would submit to restricted channels.
	DraftMode bool `json:"draftMode" gorm:"default:false;"`
}

func (a App) TableName() string {
	return "apps"
}

func (a App) PlatformList() []Platform {
	platforms := make([]Platform, 0, len(a.Platforms))
	for _, p := range a.Platforms {
		platforms = append(platforms, Platform(p))
	}
	return platforms
}
