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

// PrinterSummary is the per-printer entry in the fleet status API. Status is
// "offline" when the printer could not be reached this cycle.
type PrinterSummary struct {
	Slug   string          `json:"slug"`
	Status CanonicalStatus `json:"status"`
}

// PrinterStats is the privileged slice of the detail payload.
type PrinterStats struct {
	// SuccessRate is null when no prints have been counted yet, rather than
	// dividing by zero.
	SuccessRate      *float64       `json:"success_rate"`
	TotalPrints      int64          `json:"total_prints"`
	SuccessfulPrints int64          `json:"successful_prints"`
	FilamentUsage    FilamentTotals `json:"filament_usage"`
}

// PrinterDetail is the full payload for a single printer.
type PrinterDetail struct {
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	Model           string          `json:"model"`
	Status          CanonicalStatus `json:"status"`
	NozzleTemp      float64         `json:"nozzle_temp"`
	BedTemp         float64         `json:"bed_temp"`
	Progress        float64         `json:"progress"`
	TimeRemaining   float64         `json:"time_remaining"`
	TimeUnits       string          `json:"time_units"`
	LastMaintenance string          `json:"last_maintenance,omitempty"`

	// Stats is populated for privileged callers only.
	Stats *PrinterStats `json:"stats,omitempty"`
}
