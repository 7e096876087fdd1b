/*
 * Copyright 2025 Nolop Makerspace.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "strings"

// JobState classifies the printer-reported job state for reconciliation.
type JobState string

const (
	JobStateActive   JobState = "active"
	JobStateFinished JobState = "finished"
	JobStateStopped  JobState = "stopped"
	JobStateUnknown  JobState = "unknown"
)

// ParseJobState interprets a raw job state string. Only the two terminal
// states matter to reconciliation; everything else non-empty is treated as
// an active job.
func ParseJobState(raw string) JobState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FINISHED":
		return JobStateFinished
	case "STOPPED":
		return JobStateStopped
	case "":
		return JobStateUnknown
	default:
		return JobStateActive
	}
}

// IsTerminal reports whether the job reached a state that can retire a
// pending usage estimate.
func (s JobState) IsTerminal() bool {
	return s == JobStateFinished || s == JobStateStopped
}

// JobSnapshot is the transient, normalized view of what a printer is doing
// right now, re-derived on every poll. It is never persisted.
type JobSnapshot struct {
	Status     CanonicalStatus `json:"status"`
	JobID      string          `json:"job_id,omitempty"`
	State      JobState        `json:"state"`
	RemotePath string          `json:"remote_path,omitempty"`

	// Completion is the job progress in percent (0-100). A nil value means
	// the printer did not report it; callers must not assume zero.
	Completion *float64 `json:"completion,omitempty"`
}
