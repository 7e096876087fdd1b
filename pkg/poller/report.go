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

package poller

import (
	"time"

	"github.com/nolop/printfarm/pkg/models"
	"github.com/nolop/printfarm/pkg/reconcile"
)

// Outcome classifies how polling one printer went.
type Outcome string

const (
	// OutcomeOK means the printer answered and its records were updated.
	OutcomeOK Outcome = "ok"

	// OutcomeUnreachable covers network failures, timeouts, auth errors,
	// and malformed responses. The printer's stats are left untouched.
	OutcomeUnreachable Outcome = "unreachable"

	// OutcomeStoreError means the printer answered but persisting the
	// update failed.
	OutcomeStoreError Outcome = "store_error"
)

// PrinterResult is the typed per-printer outcome of one cycle.
type PrinterResult struct {
	Slug            string                 `json:"slug"`
	Status          models.CanonicalStatus `json:"status"`
	Outcome         Outcome                `json:"outcome"`
	NewPrintCounted bool                   `json:"new_print_counted,omitempty"`
	Reconciled      *reconcile.Result      `json:"reconciled,omitempty"`
	Err             error                  `json:"-"`
}

// CycleReport aggregates one fleet poll cycle.
type CycleReport struct {
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Results   []PrinterResult `json:"results"`

	// Err is set only when the cycle could not run at all (printer listing
	// failed); individual printer failures live in Results.
	Err error `json:"-"`
}

// Counts tallies results by outcome.
func (r *CycleReport) Counts() (ok, unreachable, failed int) {
	for i := range r.Results {
		switch r.Results[i].Outcome {
		case OutcomeOK:
			ok++
		case OutcomeUnreachable:
			unreachable++
		case OutcomeStoreError:
			failed++
		}
	}

	return ok, unreachable, failed
}
