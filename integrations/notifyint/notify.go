// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notifyint delivers release notifications. Delivery is always
// fire and forget; a sink must never propagate failures back into the
// release flow.
package notifyint

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/l3montree-dev/railguard/shared"
)

// LogSink writes notifications to the log. The default when no webhook is
// configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Notify(channel string, message string, params map[string]any) {
	slog.Info("notification", "channel", channel, "message", message, "params", params)
}

// WebhookSink posts notifications as JSON to a configured endpoint, for
// example a chat webhook.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewSinkFromEnv picks the webhook sink when NOTIFICATION_WEBHOOK_URL is
// set and falls back to logging.
func NewSinkFromEnv() shared.NotificationSink {
	if url := os.Getenv("NOTIFICATION_WEBHOOK_URL"); url != "" {
		return NewWebhookSink(url)
	}
	return NewLogSink()
}

func (s *WebhookSink) Notify(channel string, message string, params map[string]any) {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"message": message,
		"params":  params,
	})
	if err != nil {
		slog.Error("could not marshal notification", "err", err)
		return
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("could not deliver notification", "channel", channel, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Error("notification endpoint rejected message", "channel", channel, "status", resp.StatusCode)
	}
}
