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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want CanonicalStatus
	}{
		{"printing lowercase", "printing", StatusPrinting},
		{"printing uppercase", "PRINTING", StatusPrinting},
		{"printing padded", "  printing  ", StatusPrinting},
		{"paused", "PAUSED", StatusPaused},
		{"finished maps to ready", "FINISHED", StatusReady},
		{"idle maps to ready", "Idle", StatusReady},
		{"stopped", "STOPPED", StatusStopped},
		{"operational", "operational", StatusOperational},
		{"online maps to operational", "ONLINE", StatusOperational},
		{"attention maps to busy", "ATTENTION", StatusBusy},
		{"busy", "BUSY", StatusBusy},
		{"bare error", "ERROR", StatusError},
		{"error substring wins", "nozzle_error_hot", StatusError},
		{"fault substring wins", "heater fault detected", StatusError},
		{"error beats printing keyword", "printing_error", StatusError},
		{"empty defaults to busy", "", StatusBusy},
		{"unknown defaults to busy", "CALIBRATING", StatusBusy},
		{"unicode defaults to busy", "занят", StatusBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestNormalizeStatusNeverOffline(t *testing.T) {
	// Offline is reserved for unreachable printers; no state string maps
	// to it.
	for _, raw := range []string{"offline", "OFFLINE", "Offline "} {
		assert.NotEqual(t, StatusOffline, NormalizeStatus(raw))
	}
}

func TestParseJobState(t *testing.T) {
	assert.Equal(t, JobStateFinished, ParseJobState("FINISHED"))
	assert.Equal(t, JobStateFinished, ParseJobState("finished"))
	assert.Equal(t, JobStateStopped, ParseJobState(" stopped "))
	assert.Equal(t, JobStateUnknown, ParseJobState(""))
	assert.Equal(t, JobStateActive, ParseJobState("PRINTING"))
	assert.Equal(t, JobStateActive, ParseJobState("PAUSED"))
}

func TestJobStateIsTerminal(t *testing.T) {
	assert.True(t, JobStateFinished.IsTerminal())
	assert.True(t, JobStateStopped.IsTerminal())
	assert.False(t, JobStateActive.IsTerminal())
	assert.False(t, JobStateUnknown.IsTerminal())
}
