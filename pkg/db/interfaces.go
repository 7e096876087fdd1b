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

package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nolop/printfarm/pkg/models"
)

// Service is the persistence surface consumed by the poller, the reconciler,
// and the HTTP API.
type Service interface {
	// Printers.

	ListPrinters(ctx context.Context) ([]models.Printer, error)
	GetPrinterBySlug(ctx context.Context, slug string) (*models.Printer, error)
	CreatePrinter(ctx context.Context, printer *models.Printer) error
	UpdatePrinter(ctx context.Context, printer *models.Printer) error

	// RecordJobStarted atomically bumps the printer's total print count and
	// stores jobID as the last seen job, but only when jobID differs from
	// the stored one. Returns whether a new print was counted.
	RecordJobStarted(ctx context.Context, slug, jobID string) (bool, error)

	// Pending usage ledger.

	CreatePendingUsage(ctx context.Context, pending *models.PendingJobUsage) error

	// FindPendingUsage returns the oldest unconsumed record for the
	// (printer, remote path) pair, or ErrNoPendingUsage.
	FindPendingUsage(ctx context.Context, printerID uuid.UUID, remotePath string) (*models.PendingJobUsage, error)

	// CommitPendingUsage deletes the pending record and credits the usage
	// deltas (and, when success is set, the successful-print counter) to the
	// printer in a single transaction. If the record was already consumed it
	// returns ErrPendingAlreadyConsumed and credits nothing.
	CommitPendingUsage(ctx context.Context, printerID, pendingID uuid.UUID, usage models.FilamentEstimate, success bool) error

	// PrunePendingUsage removes records created before cutoff, returning the
	// number retired. Orphaned duplicates from re-uploads age out here.
	PrunePendingUsage(ctx context.Context, cutoff time.Time) (int64, error)

	Close()
}
