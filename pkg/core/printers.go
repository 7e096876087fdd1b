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

package core

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/gcode"
	"github.com/nolop/printfarm/pkg/models"
	"github.com/nolop/printfarm/pkg/prusalink"
)

const maxUploadMemory = 32 << 20 // 32 MiB before multipart spills to disk

// getFleetStatus returns the per-printer summary used by the dashboard. A
// printer that cannot be reached shows as offline; it never blocks the rest
// of the fleet.
func (s *APIServer) getFleetStatus(w http.ResponseWriter, r *http.Request) {
	s.encodeJSONResponse(w, s.fleetSummaries(r.Context()))
}

func (s *APIServer) fleetSummaries(ctx context.Context) []models.PrinterSummary {
	printers, err := s.store.ListPrinters(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list printers")
		return []models.PrinterSummary{}
	}

	summaries := make([]models.PrinterSummary, 0, len(printers))

	for i := range printers {
		printer := &printers[i]
		summary := models.PrinterSummary{Slug: printer.Slug, Status: models.StatusOffline}

		status, err := s.getPrinterStatus(ctx, printer)
		if err != nil {
			s.logger.Warn().Err(err).Str("printer", printer.Slug).Msg("Printer unreachable")
		} else {
			summary.Status = models.NormalizeStatus(status.Printer.State)
		}

		summaries = append(summaries, summary)
	}

	return summaries
}

// getPrinter returns the detailed payload for one printer. Privileged
// callers additionally get the fleet-internal statistics.
func (s *APIServer) getPrinter(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	printer, err := s.store.GetPrinterBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, db.ErrPrinterNotFound) {
			writeError(w, "Printer not found", http.StatusNotFound)
			return
		}

		writeError(w, "Internal error", http.StatusInternalServerError)

		return
	}

	status, err := s.getPrinterStatus(r.Context(), printer)
	if err != nil {
		writeError(w, "Printer unavailable", http.StatusBadGateway)
		return
	}

	detail := buildPrinterDetail(printer, status)

	if s.isAdmin(r) {
		detail.Stats = printerStats(printer)
	}

	s.encodeJSONResponse(w, detail)
}

func buildPrinterDetail(printer *models.Printer, status *prusalink.StatusResponse) *models.PrinterDetail {
	snap := status.Snapshot()

	detail := &models.PrinterDetail{
		Slug:       printer.Slug,
		Name:       printer.Name,
		Model:      printer.Model,
		Status:     snap.Status,
		NozzleTemp: status.Printer.TempNozzle,
		BedTemp:    status.Printer.TempBed,
	}

	if snap.Completion != nil {
		detail.Progress = *snap.Completion
	}

	if status.Job != nil && status.Job.TimeRemaining != nil {
		detail.TimeRemaining, detail.TimeUnits = formatTimeRemaining(*status.Job.TimeRemaining)
	}

	if printer.LastMaintenance != nil {
		detail.LastMaintenance = printer.LastMaintenance.Format("2006-01-02")
	}

	return detail
}

// formatTimeRemaining converts a seconds count to minutes, switching to
// hours once the estimate passes 100 minutes.
func formatTimeRemaining(seconds float64) (value float64, units string) {
	minutes := seconds / 60

	if minutes > 100 {
		return round2(minutes / 60), "hours"
	}

	return math.Round(minutes), "minutes"
}

func printerStats(printer *models.Printer) *models.PrinterStats {
	stats := &models.PrinterStats{
		TotalPrints:      printer.TotalPrintCount,
		SuccessfulPrints: printer.SuccessfulPrints,
		FilamentUsage:    printer.FilamentUsage,
	}

	// Undefined rather than a divide-by-zero before the first print.
	if printer.TotalPrintCount > 0 {
		rate := round2(float64(printer.SuccessfulPrints) / float64(printer.TotalPrintCount))
		stats.SuccessRate = &rate
	}

	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// uploadPrintFile pushes a sliced file to the printer's queue directory and
// records its filament estimate for later reconciliation. The upload is
// never blocked by estimator failures; a file with no usage comments simply
// creates no pending record.
func (s *APIServer) uploadPrintFile(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	printer, err := s.store.GetPrinterBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, db.ErrPrinterNotFound) {
			writeError(w, "Printer not found", http.StatusNotFound)
			return
		}

		writeError(w, "Internal error", http.StatusInternalServerError)

		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	estimate := models.EstimateFromUnits(gcode.ExtractFilamentUsage(file))

	remotePath := s.config.QueueDir + "/" + header.Filename

	callCtx, cancel := context.WithTimeout(r.Context(), time.Duration(s.config.PrinterTimeout))
	defer cancel()

	// Operators start prints at the printer; uploads never auto-start.
	err = s.newClient(printer).Upload(callCtx, file, remotePath, prusalink.UploadOptions{
		Overwrite: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("printer", slug).Msg("Printer upload failed")
		writeError(w, "Printer upload failed", http.StatusBadGateway)

		return
	}

	if !estimate.IsZero() {
		pending := &models.PendingJobUsage{
			PrinterID:  printer.ID,
			RemotePath: remotePath,
			Estimate:   estimate,
		}

		if err := s.store.CreatePendingUsage(r.Context(), pending); err != nil {
			// The file is already on the printer; losing the estimate only
			// costs stats accuracy.
			s.logger.Error().Err(err).Str("printer", slug).Msg("Failed to record pending usage")
		}
	}

	s.encodeJSONResponse(w, map[string]interface{}{
		"ok":          true,
		"filename":    header.Filename,
		"remote_path": remotePath,
	})
}

func (s *APIServer) getPrinterStatus(ctx context.Context, printer *models.Printer) (*prusalink.StatusResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.PrinterTimeout))
	defer cancel()

	return s.newClient(printer).GetStatus(callCtx)
}
