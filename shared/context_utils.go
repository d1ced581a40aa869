// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package shared

import (
	"fmt"

	"github.com/l3montree-dev/railguard/database/models"
)

func GetParam(ctx Context, param string) string {
	v := ctx.Param(param)
	if v == "" {
		fallback := ctx.Get(param)
		if fallback == nil {
			return ""
		}
		return fallback.(string)
	}
	return v
}

func SetApp(ctx Context, app models.App) {
	ctx.Set("app", app)
}

func GetApp(ctx Context) models.App {
	return ctx.Get("app").(models.App)
}

func GetAppSlug(ctx Context) (string, error) {
	slug := GetParam(ctx, "appSlug")
	if slug == "" {
		return "", fmt.Errorf("could not get app slug")
	}
	return slug, nil
}

func SetTrain(ctx Context, train models.Train) {
	ctx.Set("train", train)
}

func GetTrain(ctx Context) models.Train {
	return ctx.Get("train").(models.Train)
}

func GetTrainSlug(ctx Context) (string, error) {
	slug := GetParam(ctx, "trainSlug")
	if slug == "" {
		return "", fmt.Errorf("could not get train slug")
	}
	return slug, nil
}
