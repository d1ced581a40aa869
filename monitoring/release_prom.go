// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CommitsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_commits_processed_total",
	Help: "Number of VCS commits ingested into releases",
})

var BuildQueueApplies = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_build_queue_applies_total",
	Help: "Number of build queue applications",
})

var WorkflowRunsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_workflow_runs_triggered_total",
	Help: "Number of CI workflow runs triggered, by kind",
}, []string{"kind"})

var WorkflowRunsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_workflow_runs_cancelled_total",
	Help: "Number of CI workflow runs cancelled because a newer release superseded them",
})

var RolloutAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_rollout_advances_total",
	Help: "Number of staged rollout advances, by trigger",
}, []string{"trigger"})

var RolloutHalts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_rollout_halts_total",
	Help: "Number of halted store rollouts",
})

var ReleasesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_releases_finished_total",
	Help: "Number of finished releases, by release type",
}, []string{"release_type"})

var DaemonStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "railguard_daemon_stage_duration_seconds",
	Help:    "Duration of background daemon stages",
	Buckets: prometheus.DefBuckets,
}, []string{"stage"})

var BreakdownComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "railguard_breakdown_compute_duration_seconds",
	Help:    "Duration of cold derived-metrics breakdown computations",
	Buckets: prometheus.DefBuckets,
})
