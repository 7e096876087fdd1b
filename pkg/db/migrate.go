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
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS printers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL UNIQUE,
		model TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		host TEXT NOT NULL,
		api_key TEXT NOT NULL,
		date_added DATE NOT NULL DEFAULT CURRENT_DATE,
		last_maintenance DATE,
		staff_notes TEXT NOT NULL DEFAULT '',
		last_job_id TEXT NOT NULL DEFAULT '',
		total_print_count BIGINT NOT NULL DEFAULT 0,
		successful_prints BIGINT NOT NULL DEFAULT 0,
		filament_usage_mm DOUBLE PRECISION NOT NULL DEFAULT 0,
		filament_usage_g DOUBLE PRECISION NOT NULL DEFAULT 0,
		filament_usage_cm3 DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS pending_job_usage (
		id UUID PRIMARY KEY,
		printer_id UUID NOT NULL REFERENCES printers(id) ON DELETE CASCADE,
		remote_path TEXT NOT NULL,
		filament_mm DOUBLE PRECISION,
		filament_g DOUBLE PRECISION,
		filament_cm3 DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_usage_match
		ON pending_job_usage (printer_id, remote_path, created_at)`,
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInit, err)
		}
	}

	return nil
}
