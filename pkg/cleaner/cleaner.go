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

// Package cleaner empties each printer's queue directory and prunes stale
// pending usage records. It runs as a batch, typically from cron between
// semesters.
package cleaner

import (
	"context"
	"time"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
	"github.com/nolop/printfarm/pkg/prusalink"
)

const (
	defaultQueueDir       = "/PRINT_QUEUE"
	defaultPrinterTimeout = 10 * time.Second

	// Pending rows older than this were never matched by a job report; the
	// print either never ran or ran unobserved. Keep them long enough to
	// survive extended downtime, then let them go.
	defaultRetention = 30 * 24 * time.Hour
)

// Config drives the cleanup batch.
type Config struct {
	QueueDir       string          `json:"queue_dir"`
	PrinterTimeout models.Duration `json:"printer_timeout"`

	// Retention bounds the age of unmatched pending usage rows.
	Retention models.Duration `json:"retention"`

	Database *db.Config     `json:"database"`
	Logging  *logger.Config `json:"logging"`
}

// Validate fills defaults and checks required fields.
func (c *Config) Validate() error {
	if c.QueueDir == "" {
		c.QueueDir = defaultQueueDir
	}

	if time.Duration(c.PrinterTimeout) <= 0 {
		c.PrinterTimeout = models.Duration(defaultPrinterTimeout)
	}

	if time.Duration(c.Retention) <= 0 {
		c.Retention = models.Duration(defaultRetention)
	}

	if c.Database == nil {
		return errDatabaseRequired
	}

	return nil
}

// Report summarizes one cleanup run.
type Report struct {
	PrintersCleaned int
	PrintersFailed  int
	FilesDeleted    int
	PendingPruned   int64
}

// Cleaner deletes queued files from printer storage and ages out orphaned
// pending usage rows.
type Cleaner struct {
	config    Config
	store     db.Service
	newClient prusalink.ClientFactory
	logger    logger.Logger
}

// New creates a cleaner against the given store and transport factory.
func New(config *Config, store db.Service, newClient prusalink.ClientFactory, log logger.Logger) (*Cleaner, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	if store == nil {
		return nil, ErrStoreRequired
	}

	if newClient == nil {
		return nil, ErrClientFactoryRequired
	}

	return &Cleaner{
		config:    *config,
		store:     store,
		newClient: newClient,
		logger:    log,
	}, nil
}

// Run performs one cleanup pass over the whole fleet. Printer failures are
// isolated per printer; only a store failure aborts the run.
func (c *Cleaner) Run(ctx context.Context) (*Report, error) {
	printers, err := c.store.ListPrinters(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}

	for i := range printers {
		printer := &printers[i]

		deleted, err := c.cleanPrinter(ctx, printer)
		if err != nil {
			c.logger.Warn().Err(err).Str("printer", printer.Slug).Msg("Queue cleanup failed")

			report.PrintersFailed++

			continue
		}

		report.PrintersCleaned++
		report.FilesDeleted += deleted
	}

	cutoff := time.Now().Add(-time.Duration(c.config.Retention))

	pruned, err := c.store.PrunePendingUsage(ctx, cutoff)
	if err != nil {
		return report, err
	}

	report.PendingPruned = pruned

	c.logger.Info().
		Int("printers_cleaned", report.PrintersCleaned).
		Int("printers_failed", report.PrintersFailed).
		Int("files_deleted", report.FilesDeleted).
		Int64("pending_pruned", pruned).
		Msg("Cleanup run completed")

	return report, nil
}

func (c *Cleaner) cleanPrinter(ctx context.Context, printer *models.Printer) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.config.PrinterTimeout))
	defer cancel()

	client := c.newClient(printer)

	files, err := client.ListFiles(callCtx, c.config.QueueDir)
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, file := range files {
		path := c.config.QueueDir + "/" + file.Name

		if err := client.DeleteFile(callCtx, path); err != nil {
			// Keep going; a file busy printing right now is expected to fail.
			c.logger.Warn().Err(err).
				Str("printer", printer.Slug).
				Str("path", path).
				Msg("Failed to delete queued file")

			continue
		}

		deleted++
	}

	return deleted, nil
}
