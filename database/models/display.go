// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

// Severity classifies a status for display purposes.
type Severity string

const (
	SeverityNeutral Severity = "neutral"
	SeverityOngoing Severity = "ongoing"
	SeveritySuccess Severity = "success"
	SeverityFailure Severity = "failure"
	SeverityUnknown Severity = "unknown"
)

type Display struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// lookupDisplay is a total lookup: unknown statuses get an explicit unknown
// variant instead of an error, display paths must never fail.
func lookupDisplay[S ~string](table map[S]Display, status S) Display {
	if d, ok := table[status]; ok {
		return d
	}
	return Display{Label: "Unknown", Severity: SeverityUnknown}
}

// The display tables are keyed per entity family. The same literal value
// carries a different meaning per family ("started" is a running workflow
// but a rolling-out store rollout).

var releaseDisplays = map[ReleaseStatus]Display{
	ReleaseStatusCreated:            {Label: "Created", Severity: SeverityNeutral},
	ReleaseStatusOnTrack:            {Label: "On track", Severity: SeverityOngoing},
	ReleaseStatusPostReleaseStarted: {Label: "Finalizing", Severity: SeverityOngoing},
	ReleaseStatusPostReleaseFailed:  {Label: "Finalization failed", Severity: SeverityFailure},
	ReleaseStatusPartiallyFinished:  {Label: "Partially finished", Severity: SeverityOngoing},
	ReleaseStatusFinished:           {Label: "Finished", Severity: SeveritySuccess},
	ReleaseStatusStopped:            {Label: "Stopped", Severity: SeverityFailure},
}

func (s ReleaseStatus) Display() Display {
	return lookupDisplay(releaseDisplays, s)
}

var platformRunDisplays = map[PlatformRunStatus]Display{
	PlatformRunStatusCreated:   {Label: "Created", Severity: SeverityNeutral},
	PlatformRunStatusOnTrack:   {Label: "On track", Severity: SeverityOngoing},
	PlatformRunStatusConcluded: {Label: "Concluded", Severity: SeveritySuccess},
	PlatformRunStatusFinished:  {Label: "Finished", Severity: SeveritySuccess},
	PlatformRunStatusStopped:   {Label: "Stopped", Severity: SeverityFailure},
}

func (s PlatformRunStatus) Display() Display {
	return lookupDisplay(platformRunDisplays, s)
}

var workflowRunDisplays = map[WorkflowRunStatus]Display{
	WorkflowRunStatusTriggering:  {Label: "Triggering", Severity: SeverityOngoing},
	WorkflowRunStatusTriggered:   {Label: "Triggered", Severity: SeverityOngoing},
	WorkflowRunStatusStarted:     {Label: "Running", Severity: SeverityOngoing},
	WorkflowRunStatusFailed:      {Label: "Failed", Severity: SeverityFailure},
	WorkflowRunStatusFinished:    {Label: "Finished", Severity: SeveritySuccess},
	WorkflowRunStatusUnavailable: {Label: "Unavailable", Severity: SeverityFailure},
	WorkflowRunStatusHalted:      {Label: "Halted", Severity: SeverityFailure},
	WorkflowRunStatusCancelling:  {Label: "Cancelling", Severity: SeverityNeutral},
	WorkflowRunStatusCancelled:   {Label: "Cancelled", Severity: SeverityNeutral},
}

func (s WorkflowRunStatus) Display() Display {
	return lookupDisplay(workflowRunDisplays, s)
}

var preProdDisplays = map[PreProdStatus]Display{
	PreProdStatusCreated:  {Label: "Created", Severity: SeverityOngoing},
	PreProdStatusFailed:   {Label: "Failed", Severity: SeverityFailure},
	PreProdStatusFinished: {Label: "Finished", Severity: SeveritySuccess},
	PreProdStatusStale:    {Label: "Superseded", Severity: SeverityNeutral},
}

func (s PreProdStatus) Display() Display {
	return lookupDisplay(preProdDisplays, s)
}

var productionReleaseDisplays = map[ProductionReleaseStatus]Display{
	ProductionReleaseStatusInflight: {Label: "In flight", Severity: SeverityOngoing},
	ProductionReleaseStatusActive:   {Label: "Active", Severity: SeverityOngoing},
	ProductionReleaseStatusFinished: {Label: "Finished", Severity: SeveritySuccess},
	ProductionReleaseStatusStale:    {Label: "Superseded", Severity: SeverityNeutral},
}

func (s ProductionReleaseStatus) Display() Display {
	return lookupDisplay(productionReleaseDisplays, s)
}

var rolloutDisplays = map[RolloutStatus]Display{
	RolloutStatusCreated:       {Label: "Created", Severity: SeverityNeutral},
	RolloutStatusStarted:       {Label: "Rolling out", Severity: SeverityOngoing},
	RolloutStatusPaused:        {Label: "Paused", Severity: SeverityNeutral},
	RolloutStatusHalted:        {Label: "Halted", Severity: SeverityFailure},
	RolloutStatusCompleted:     {Label: "Completed", Severity: SeveritySuccess},
	RolloutStatusFullyReleased: {Label: "Fully released", Severity: SeveritySuccess},
}

func (s RolloutStatus) Display() Display {
	return lookupDisplay(rolloutDisplays, s)
}

var submissionDisplays = map[SubmissionStatus]Display{
	SubmissionStatusCreated:            {Label: "Created", Severity: SeverityNeutral},
	SubmissionStatusPreparing:          {Label: "Preparing", Severity: SeverityOngoing},
	SubmissionStatusPrepared:           {Label: "Prepared", Severity: SeverityNeutral},
	SubmissionStatusSubmittedForReview: {Label: "In review", Severity: SeverityOngoing},
	SubmissionStatusReviewFailed:       {Label: "Review failed", Severity: SeverityFailure},
	SubmissionStatusApproved:           {Label: "Approved", Severity: SeveritySuccess},
	SubmissionStatusFailed:             {Label: "Failed", Severity: SeverityFailure},
	SubmissionStatusFinished:           {Label: "Finished", Severity: SeveritySuccess},
}

func (s SubmissionStatus) Display() Display {
	return lookupDisplay(submissionDisplays, s)
}
