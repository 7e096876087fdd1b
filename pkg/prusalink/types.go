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

package prusalink

import (
	"encoding/json"

	"github.com/nolop/printfarm/pkg/models"
)

// StatusResponse is the decoded /api/v1/status payload. Every job field is
// optional on the wire; absent fields stay nil instead of collapsing to a
// zero value.
type StatusResponse struct {
	Printer PrinterStatus `json:"printer"`
	Job     *JobStatus    `json:"job,omitempty"`
}

// PrinterStatus carries the firmware state string and temperatures.
type PrinterStatus struct {
	State      string  `json:"state"`
	TempNozzle float64 `json:"temp_nozzle"`
	TempBed    float64 `json:"temp_bed"`
}

// JobStatus describes the active or most recent job.
type JobStatus struct {
	ID       json.Number  `json:"id,omitempty"`
	State    string       `json:"state,omitempty"`
	Progress *JobProgress `json:"progress,omitempty"`

	// TimeRemaining is reported in seconds.
	TimeRemaining *float64 `json:"time_remaining,omitempty"`
	File          *JobFile `json:"file,omitempty"`
}

// JobProgress holds the completion percentage (0-100) when the printer
// reports one.
type JobProgress struct {
	Completion *float64 `json:"completion,omitempty"`
}

// JobFile identifies the file being printed.
type JobFile struct {
	Name string    `json:"name,omitempty"`
	Refs *FileRefs `json:"refs,omitempty"`
}

// FileRefs holds printer-side resource paths. Download is the join key
// matched against pending usage records.
type FileRefs struct {
	Download string `json:"download,omitempty"`
}

// Snapshot derives the transient job view used by the poller and the
// reconciler. Missing wire fields map to explicit unknowns.
func (s *StatusResponse) Snapshot() models.JobSnapshot {
	snap := models.JobSnapshot{
		Status: models.NormalizeStatus(s.Printer.State),
		State:  models.JobStateUnknown,
	}

	if s.Job == nil {
		return snap
	}

	snap.JobID = s.Job.ID.String()
	snap.State = models.ParseJobState(s.Job.State)

	if s.Job.Progress != nil && s.Job.Progress.Completion != nil {
		completion := *s.Job.Progress.Completion
		snap.Completion = &completion
	}

	if s.Job.File != nil && s.Job.File.Refs != nil {
		snap.RemotePath = s.Job.File.Refs.Download
	}

	return snap
}

// FileEntry is one stored file as reported by the files endpoint.
type FileEntry struct {
	Name string    `json:"name"`
	Refs *FileRefs `json:"refs,omitempty"`
}

type filesResponse struct {
	Children []FileEntry `json:"children"`
}
