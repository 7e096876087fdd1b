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

const printerColumns = `id, name, model, slug, host, api_key, date_added,
	last_maintenance, staff_notes, last_job_id, total_print_count,
	successful_prints, filament_usage_mm, filament_usage_g, filament_usage_cm3`

// ListPrinters returns all printers ordered by name.
func (db *DB) ListPrinters(ctx context.Context) ([]models.Printer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+printerColumns+` FROM printers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []models.Printer

	for rows.Next() {
		printer, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}

		printers = append(printers, *printer)
	}

	return printers, rows.Err()
}

// GetPrinterBySlug fetches one printer by its slug.
func (db *DB) GetPrinterBySlug(ctx context.Context, slug string) (*models.Printer, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, ErrSlugRequired
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+printerColumns+` FROM printers WHERE slug = $1`, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to query printer: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}

		return nil, ErrPrinterNotFound
	}

	return scanPrinter(rows)
}

// CreatePrinter inserts a new printer record, assigning an ID when missing.
func (db *DB) CreatePrinter(ctx context.Context, printer *models.Printer) error {
	if strings.TrimSpace(printer.Slug) == "" {
		return ErrSlugRequired
	}

	if printer.ID == uuid.Nil {
		printer.ID = uuid.New()
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO printers (id, name, model, slug, host, api_key, date_added,
			last_maintenance, staff_notes)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, CURRENT_DATE), $8, $9)`,
		printer.ID, printer.Name, printer.Model, printer.Slug, printer.Host,
		printer.APIKey, nullableTime(printer.DateAdded), printer.LastMaintenance,
		printer.StaffNotes)
	if err != nil {
		return fmt.Errorf("failed to insert printer: %w", err)
	}

	return nil
}

// UpdatePrinter updates the administrative fields of a printer. Counters are
// deliberately excluded; those only move through atomic increments.
func (db *DB) UpdatePrinter(ctx context.Context, printer *models.Printer) error {
	tag, err := db.pool.Exec(ctx, `
		UPDATE printers
		SET name = $2, model = $3, host = $4, api_key = $5,
			last_maintenance = $6, staff_notes = $7
		WHERE slug = $1`,
		printer.Slug, printer.Name, printer.Model, printer.Host, printer.APIKey,
		printer.LastMaintenance, printer.StaffNotes)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrPrinterNotFound
	}

	return nil
}

// RecordJobStarted bumps total_print_count and stores the new job id in one
// guarded UPDATE. The guard makes repeated polls of the same ongoing job a
// no-op even with concurrent pollers.
func (db *DB) RecordJobStarted(ctx context.Context, slug, jobID string) (bool, error) {
	tag, err := db.pool.Exec(ctx, `
		UPDATE printers
		SET total_print_count = total_print_count + 1, last_job_id = $2
		WHERE slug = $1 AND last_job_id IS DISTINCT FROM $2`,
		slug, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to record job start: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// nullableTime maps the zero time to NULL so column defaults apply.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

func scanPrinter(rows pgx.Rows) (*models.Printer, error) {
	var printer models.Printer

	err := rows.Scan(
		&printer.ID, &printer.Name, &printer.Model, &printer.Slug, &printer.Host,
		&printer.APIKey, &printer.DateAdded, &printer.LastMaintenance,
		&printer.StaffNotes, &printer.LastJobID, &printer.TotalPrintCount,
		&printer.SuccessfulPrints, &printer.FilamentUsage.Millimeters,
		&printer.FilamentUsage.Grams, &printer.FilamentUsage.CubicCentimeters)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrinterNotFound
		}

		return nil, fmt.Errorf("failed to scan printer: %w", err)
	}

	return &printer, nil
}
