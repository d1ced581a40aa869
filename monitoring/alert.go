// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitoring

import (
	"os"

	"github.com/getsentry/sentry-go"
)

// Alert forwards an error to the error tracking if a DSN is configured.
func Alert(msg string, err error) {
	if os.Getenv("ERROR_TRACKING_DSN") == "" {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		if err != nil {
			sentry.CaptureException(err)
			return
		}
		sentry.CaptureMessage(msg)
	})
}
