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

// Package reconcile matches terminal job reports against pending filament
// estimates and credits usage to printer totals exactly once.
package reconcile

import (
	"context"
	"errors"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
)

// Reconciler re-derives reconciliation state each poll from the printer and
// the pending usage ledger; nothing is persisted between cycles.
type Reconciler struct {
	store  db.Service
	logger logger.Logger
}

// New creates a reconciler on top of the given store.
func New(store db.Service, log logger.Logger) *Reconciler {
	return &Reconciler{store: store, logger: log}
}

// Result describes what a reconciliation pass did.
type Result struct {
	// Matched is set when a pending record was found and retired.
	Matched bool `json:"matched"`

	// Credited holds the usage deltas applied to the printer's totals.
	// All-nil with Matched set means the record was retired without credit
	// (stopped job with unknown completion).
	Credited models.FilamentEstimate `json:"credited"`

	// Success is set when the job finished cleanly and counted toward the
	// printer's successful prints.
	Success bool `json:"success"`
}

// Reconcile inspects the current job snapshot and, when the job reached a
// terminal state with a matching pending estimate, commits the (possibly
// pro-rated) usage and retires the record. Every other situation is a
// legitimate no-op: an active or unknown job, a job with no file reference,
// or a file that was never uploaded through this system.
//
// A repeat pass for the same outcome finds no pending record and is a safe
// no-op, so retries and overlapping poll cycles cannot double-credit.
func (r *Reconciler) Reconcile(ctx context.Context, printer *models.Printer, snap *models.JobSnapshot) (*Result, error) {
	if !snap.State.IsTerminal() {
		return &Result{}, nil
	}

	if snap.RemotePath == "" {
		return &Result{}, nil
	}

	pending, err := r.store.FindPendingUsage(ctx, printer.ID, snap.RemotePath)
	if err != nil {
		if errors.Is(err, db.ErrNoPendingUsage) {
			return &Result{}, nil
		}

		return nil, err
	}

	usage, success := r.usageForState(printer, pending, snap)

	err = r.store.CommitPendingUsage(ctx, printer.ID, pending.ID, usage, success)
	if err != nil {
		if errors.Is(err, db.ErrPendingAlreadyConsumed) {
			// Another cycle won the commit; the credit already landed.
			r.logger.Debug().
				Str("printer", printer.Slug).
				Str("remote_path", snap.RemotePath).
				Msg("Pending usage already consumed")

			return &Result{}, nil
		}

		return nil, err
	}

	r.logger.Info().
		Str("printer", printer.Slug).
		Str("remote_path", snap.RemotePath).
		Str("job_state", string(snap.State)).
		Bool("success", success).
		Msg("Reconciled pending filament usage")

	return &Result{Matched: true, Credited: usage, Success: success}, nil
}

// usageForState computes the usage to credit. A finished job commits the
// full estimate; a stopped job commits the estimate pro-rated by the
// reported completion. A stopped job with no completion reported credits
// nothing but still retires the record so it is not reprocessed forever.
func (r *Reconciler) usageForState(printer *models.Printer, pending *models.PendingJobUsage, snap *models.JobSnapshot) (models.FilamentEstimate, bool) {
	if snap.State == models.JobStateFinished {
		return pending.Estimate, true
	}

	if snap.Completion == nil {
		r.logger.Warn().
			Str("printer", printer.Slug).
			Str("remote_path", snap.RemotePath).
			Msg("Stopped job reported no completion; retiring estimate without credit")

		return models.FilamentEstimate{}, false
	}

	return pending.Estimate.Scale(*snap.Completion / 100.0), false
}
