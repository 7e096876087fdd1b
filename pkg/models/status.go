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

// CanonicalStatus is the closed vocabulary used across the UI and stats
// logic, decoupled from each firmware's raw state strings.
type CanonicalStatus string

const (
	StatusOperational CanonicalStatus = "operational"
	StatusPaused      CanonicalStatus = "paused"
	StatusPrinting    CanonicalStatus = "printing"
	StatusError       CanonicalStatus = "error"
	StatusReady       CanonicalStatus = "ready"
	StatusStopped     CanonicalStatus = "stopped"
	StatusBusy        CanonicalStatus = "busy"

	// StatusOffline is never produced by NormalizeStatus; it marks a printer
	// the poller or API could not reach this cycle.
	StatusOffline CanonicalStatus = "offline"
)

// NormalizeStatus maps a raw printer state string to a canonical status.
// Matching is case-insensitive on the trimmed input and total: any input,
// including empty or unrecognized strings, yields a status. Unknown states
// fall back to busy rather than ready or error.
func NormalizeStatus(raw string) CanonicalStatus {
	s := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.Contains(s, "error") || strings.Contains(s, "fault"):
		return StatusError
	case s == "printing":
		return StatusPrinting
	case s == "paused":
		return StatusPaused
	case s == "finished":
		// A finished print should look ready in the fleet view.
		return StatusReady
	case s == "stopped":
		return StatusStopped
	case s == "attention" || s == "busy":
		return StatusBusy
	case s == "idle":
		return StatusReady
	case s == "operational" || s == "online":
		return StatusOperational
	default:
		return StatusBusy
	}
}
