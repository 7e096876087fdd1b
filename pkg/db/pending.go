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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nolop/printfarm/pkg/models"
)

// CreatePendingUsage stores a provisional filament estimate created at
// upload time.
func (db *DB) CreatePendingUsage(ctx context.Context, pending *models.PendingJobUsage) error {
	if pending == nil {
		return ErrPendingNil
	}

	if pending.ID == uuid.Nil {
		pending.ID = uuid.New()
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO pending_job_usage (id, printer_id, remote_path,
			filament_mm, filament_g, filament_cm3)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pending.ID, pending.PrinterID, pending.RemotePath,
		pending.Estimate.Millimeters, pending.Estimate.Grams,
		pending.Estimate.CubicCentimeters)
	if err != nil {
		return fmt.Errorf("failed to insert pending usage: %w", err)
	}

	return nil
}

// FindPendingUsage returns the oldest unconsumed record for the given
// (printer, remote path) pair. Duplicates from re-uploads lose; the oldest
// row is the deterministic match.
func (db *DB) FindPendingUsage(ctx context.Context, printerID uuid.UUID, remotePath string) (*models.PendingJobUsage, error) {
	var pending models.PendingJobUsage

	err := db.pool.QueryRow(ctx, `
		SELECT id, printer_id, remote_path, filament_mm, filament_g,
			filament_cm3, created_at
		FROM pending_job_usage
		WHERE printer_id = $1 AND remote_path = $2
		ORDER BY created_at ASC
		LIMIT 1`,
		printerID, remotePath).Scan(
		&pending.ID, &pending.PrinterID, &pending.RemotePath,
		&pending.Estimate.Millimeters, &pending.Estimate.Grams,
		&pending.Estimate.CubicCentimeters, &pending.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingUsage
		}

		return nil, fmt.Errorf("failed to query pending usage: %w", err)
	}

	return &pending, nil
}

// CommitPendingUsage consumes a pending record and credits its usage to the
// printer's cumulative counters inside one transaction. The DELETE runs
// first: if another poll cycle already consumed the record, zero rows are
// affected, the transaction rolls back, and nothing is credited. That makes
// reconciliation idempotent under concurrent pollers.
func (db *DB) CommitPendingUsage(ctx context.Context, printerID, pendingID uuid.UUID, usage models.FilamentEstimate, success bool) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM pending_job_usage WHERE id = $1`, pendingID)
	if err != nil {
		return fmt.Errorf("failed to consume pending usage: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrPendingAlreadyConsumed
	}

	set, args := usageIncrements(printerID, usage, success)
	if len(set) > 0 {
		query := `UPDATE printers SET ` + strings.Join(set, ", ") + ` WHERE id = $1`

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to credit usage: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// usageIncrements builds atomic "column = column + $n" clauses for every
// known unit. Unknown units leave their counter untouched.
func usageIncrements(printerID uuid.UUID, usage models.FilamentEstimate, success bool) (set []string, args []interface{}) {
	args = []interface{}{printerID}

	add := func(column string, delta float64) {
		args = append(args, delta)
		set = append(set, fmt.Sprintf("%s = %s + $%d", column, column, len(args)))
	}

	if usage.Millimeters != nil {
		add("filament_usage_mm", *usage.Millimeters)
	}

	if usage.Grams != nil {
		add("filament_usage_g", *usage.Grams)
	}

	if usage.CubicCentimeters != nil {
		add("filament_usage_cm3", *usage.CubicCentimeters)
	}

	if success {
		set = append(set, "successful_prints = successful_prints + 1")
	}

	return set, args
}

// PrunePendingUsage retires records created before cutoff. Estimates for
// files that were never printed, and orphaned duplicates from re-uploads,
// age out here.
func (db *DB) PrunePendingUsage(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM pending_job_usage WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune pending usage: %w", err)
	}

	return tag.RowsAffected(), nil
}
