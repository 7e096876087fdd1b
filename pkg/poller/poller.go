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

// Package poller drives periodic fleet polling: fetch status, normalize,
// count new prints, and reconcile pending filament usage per printer.
package poller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
	"github.com/nolop/printfarm/pkg/prusalink"
	"github.com/nolop/printfarm/pkg/reconcile"
)

// Poller polls every known printer on an interval. Cycles never overlap;
// printers within a cycle are polled with bounded parallelism and fail
// independently of each other.
type Poller struct {
	config     Config
	store      db.Service
	reconciler *reconcile.Reconciler
	newClient  prusalink.ClientFactory
	clock      Clock
	logger     logger.Logger
	ticker     Ticker
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// New creates a poller. A nil clock defaults to the real one.
func New(config *Config, store db.Service, newClient prusalink.ClientFactory, clock Clock, log logger.Logger) (*Poller, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	if store == nil {
		return nil, ErrStoreRequired
	}

	if newClient == nil {
		return nil, ErrClientFactoryRequired
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Poller{
		config:     *config,
		store:      store,
		reconciler: reconcile.New(store, log),
		newClient:  newClient,
		clock:      clock,
		logger:     log,
		done:       make(chan struct{}),
	}, nil
}

// Start implements the lifecycle.Service interface. It runs an immediate
// cycle and then one per interval; each cycle runs to completion before the
// next tick is considered, so cycles never overlap.
func (p *Poller) Start(ctx context.Context) error {
	interval := time.Duration(p.config.PollInterval)
	p.ticker = p.clock.Ticker(interval)

	defer p.ticker.Stop()

	p.logger.Info().Dur("interval", interval).Msg("Starting fleet poller")

	p.wg.Add(1)
	defer p.wg.Done()

	p.runCycleLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-p.ticker.Chan():
			p.runCycleLogged(ctx)
		}
	}
}

// Stop implements the lifecycle.Service interface.
func (p *Poller) Stop(_ context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.wg.Wait()
	p.store.Close()

	return nil
}

func (p *Poller) runCycleLogged(ctx context.Context) {
	report := p.RunCycle(ctx)
	if report.Err != nil {
		p.logger.Error().Err(report.Err).Msg("Poll cycle failed")
		return
	}

	ok, unreachable, failed := report.Counts()

	p.logger.Info().
		Int("ok", ok).
		Int("unreachable", unreachable).
		Int("store_errors", failed).
		Dur("duration", report.Duration).
		Msg("Poll cycle completed")
}

// RunCycle polls the whole fleet once and returns the per-printer report.
func (p *Poller) RunCycle(ctx context.Context) *CycleReport {
	report := &CycleReport{StartedAt: p.clock.Now()}

	printers, err := p.store.ListPrinters(ctx)
	if err != nil {
		report.Err = err
		return report
	}

	results := make(chan PrinterResult, len(printers))

	var g errgroup.Group

	g.SetLimit(p.config.MaxConcurrency)

	for i := range printers {
		printer := printers[i]

		g.Go(func() error {
			results <- p.pollPrinter(ctx, &printer)
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	for result := range results {
		report.Results = append(report.Results, result)
	}

	report.Duration = p.clock.Now().Sub(report.StartedAt)

	return report
}

// pollPrinter runs the full sequence for one printer: fetch, normalize,
// count a new print, reconcile. Failures are captured in the result, never
// propagated, so one bad printer cannot abort the cycle.
func (p *Poller) pollPrinter(ctx context.Context, printer *models.Printer) PrinterResult {
	result := PrinterResult{Slug: printer.Slug, Status: models.StatusOffline}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.PollTimeout))
	defer cancel()

	status, err := p.newClient(printer).GetStatus(callCtx)
	if err != nil {
		p.logger.Warn().Err(err).Str("printer", printer.Slug).Msg("Printer unreachable")

		result.Outcome = OutcomeUnreachable
		result.Err = err

		return result
	}

	snap := status.Snapshot()
	result.Status = snap.Status

	if snap.Status == models.StatusPrinting && snap.JobID != "" && snap.JobID != printer.LastJobID {
		counted, err := p.store.RecordJobStarted(ctx, printer.Slug, snap.JobID)
		if err != nil {
			p.logger.Error().Err(err).Str("printer", printer.Slug).Msg("Failed to record job start")

			result.Outcome = OutcomeStoreError
			result.Err = err

			return result
		}

		result.NewPrintCounted = counted

		if counted {
			p.logger.Info().
				Str("printer", printer.Slug).
				Str("job_id", snap.JobID).
				Msg("Counted new print job")
		}
	}

	reconciled, err := p.reconciler.Reconcile(ctx, printer, &snap)
	if err != nil {
		p.logger.Error().Err(err).Str("printer", printer.Slug).Msg("Reconciliation failed")

		result.Outcome = OutcomeStoreError
		result.Err = err

		return result
	}

	result.Reconciled = reconciled
	result.Outcome = OutcomeOK

	return result
}
