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

// Package models defines the shared data types for the print farm.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Printer is the persistent record for one physical printer: identity,
// connection details, and cumulative usage statistics. Counters only ever
// grow and are incremented atomically at the storage layer.
type Printer struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Model           string     `json:"model"`
	Slug            string     `json:"slug"`
	Host            string     `json:"host"`
	APIKey          string     `json:"-"`
	DateAdded       time.Time  `json:"date_added"`
	LastMaintenance *time.Time `json:"last_maintenance,omitempty"`
	StaffNotes      string     `json:"staff_notes,omitempty"`

	// LastJobID guards the print counter against re-counting the same
	// ongoing job across poll cycles.
	LastJobID        string         `json:"last_job_id,omitempty"`
	TotalPrintCount  int64          `json:"total_print_count"`
	SuccessfulPrints int64          `json:"successful_prints"`
	FilamentUsage    FilamentTotals `json:"filament_usage"`
}

// FilamentTotals holds cumulative filament consumption per unit.
type FilamentTotals struct {
	Millimeters      float64 `json:"mm"`
	Grams            float64 `json:"g"`
	CubicCentimeters float64 `json:"cm3"`
}

// FilamentEstimate is a predicted consumption extracted from a sliced file.
// Each unit is optional; a nil field means the slicer did not report it.
type FilamentEstimate struct {
	Millimeters      *float64 `json:"mm,omitempty"`
	Grams            *float64 `json:"g,omitempty"`
	CubicCentimeters *float64 `json:"cm3,omitempty"`
}

// IsZero reports whether no unit was extracted at all.
func (e FilamentEstimate) IsZero() bool {
	return e.Millimeters == nil && e.Grams == nil && e.CubicCentimeters == nil
}

// Scale returns a copy of the estimate with every known unit multiplied by
// frac. Unknown units stay unknown.
func (e FilamentEstimate) Scale(frac float64) FilamentEstimate {
	scaled := FilamentEstimate{}

	if e.Millimeters != nil {
		v := *e.Millimeters * frac
		scaled.Millimeters = &v
	}

	if e.Grams != nil {
		v := *e.Grams * frac
		scaled.Grams = &v
	}

	if e.CubicCentimeters != nil {
		v := *e.CubicCentimeters * frac
		scaled.CubicCentimeters = &v
	}

	return scaled
}

// EstimateFromUnits builds an estimate from the unit map produced by the
// gcode scanner. Unrecognized unit tokens are ignored.
func EstimateFromUnits(units map[string]float64) FilamentEstimate {
	est := FilamentEstimate{}

	if v, ok := units["mm"]; ok {
		est.Millimeters = &v
	}

	if v, ok := units["g"]; ok {
		est.Grams = &v
	}

	if v, ok := units["cm3"]; ok {
		est.CubicCentimeters = &v
	}

	return est
}

// PendingJobUsage is a provisional filament estimate created at upload time,
// awaiting reconciliation against a later job report. RemotePath is the join
// key matched against the job's download reference.
type PendingJobUsage struct {
	ID         uuid.UUID        `json:"id"`
	PrinterID  uuid.UUID        `json:"printer_id"`
	RemotePath string           `json:"remote_path"`
	Estimate   FilamentEstimate `json:"estimate"`
	CreatedAt  time.Time        `json:"created_at"`
}
