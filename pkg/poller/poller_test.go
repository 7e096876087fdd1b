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
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
	"github.com/nolop/printfarm/pkg/prusalink"
)

var errDialFailed = errors.New("dial tcp: connection refused")

// fakeClient serves a canned status response or error per printer.
type fakeClient struct {
	status *prusalink.StatusResponse
	err    error
}

func (f *fakeClient) GetStatus(context.Context) (*prusalink.StatusResponse, error) {
	return f.status, f.err
}

func (f *fakeClient) Upload(context.Context, io.Reader, string, prusalink.UploadOptions) error {
	return f.err
}

func (f *fakeClient) ListFiles(context.Context, string) ([]prusalink.FileEntry, error) {
	return nil, f.err
}

func (f *fakeClient) DeleteFile(context.Context, string) error {
	return f.err
}

// fakeStore is an in-memory db.Service tracking counter movements.
type fakeStore struct {
	mu           sync.Mutex
	printers     []models.Printer
	pending      map[uuid.UUID]*models.PendingJobUsage
	printCounts  map[string]int
	lastJobIDs   map[string]string
	creditedMM   map[string]float64
	recordCalls  int
	listErr      error
	recordJobErr error
}

func newFakeStore(printers ...models.Printer) *fakeStore {
	return &fakeStore{
		printers:    printers,
		pending:     make(map[uuid.UUID]*models.PendingJobUsage),
		printCounts: make(map[string]int),
		lastJobIDs:  make(map[string]string),
		creditedMM:  make(map[string]float64),
	}
}

func (s *fakeStore) ListPrinters(context.Context) ([]models.Printer, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	return s.printers, nil
}

func (s *fakeStore) GetPrinterBySlug(_ context.Context, slug string) (*models.Printer, error) {
	for i := range s.printers {
		if s.printers[i].Slug == slug {
			return &s.printers[i], nil
		}
	}

	return nil, db.ErrPrinterNotFound
}

func (s *fakeStore) CreatePrinter(context.Context, *models.Printer) error { return nil }
func (s *fakeStore) UpdatePrinter(context.Context, *models.Printer) error { return nil }

func (s *fakeStore) RecordJobStarted(_ context.Context, slug, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordCalls++

	if s.recordJobErr != nil {
		return false, s.recordJobErr
	}

	if s.lastJobIDs[slug] == jobID {
		return false, nil
	}

	s.lastJobIDs[slug] = jobID
	s.printCounts[slug]++

	return true, nil
}

func (s *fakeStore) CreatePendingUsage(_ context.Context, p *models.PendingJobUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	s.pending[p.ID] = p

	return nil
}

func (s *fakeStore) FindPendingUsage(_ context.Context, printerID uuid.UUID, remotePath string) (*models.PendingJobUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *models.PendingJobUsage

	for _, p := range s.pending {
		if p.PrinterID != printerID || p.RemotePath != remotePath {
			continue
		}

		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}

	if oldest == nil {
		return nil, db.ErrNoPendingUsage
	}

	copied := *oldest

	return &copied, nil
}

func (s *fakeStore) CommitPendingUsage(_ context.Context, printerID, pendingID uuid.UUID, usage models.FilamentEstimate, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[pendingID]; !ok {
		return db.ErrPendingAlreadyConsumed
	}

	delete(s.pending, pendingID)

	if usage.Millimeters != nil {
		s.creditedMM[printerID.String()] += *usage.Millimeters
	}

	return nil
}

func (s *fakeStore) PrunePendingUsage(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *fakeStore) Close()                                                      {}

func printingStatus(jobID, downloadPath string) *prusalink.StatusResponse {
	return &prusalink.StatusResponse{
		Printer: prusalink.PrinterStatus{State: "PRINTING"},
		Job: &prusalink.JobStatus{
			ID:    json.Number(jobID),
			State: "PRINTING",
			File:  &prusalink.JobFile{Refs: &prusalink.FileRefs{Download: downloadPath}},
		},
	}
}

func finishedStatus(jobID, downloadPath string) *prusalink.StatusResponse {
	return &prusalink.StatusResponse{
		Printer: prusalink.PrinterStatus{State: "FINISHED"},
		Job: &prusalink.JobStatus{
			ID:    json.Number(jobID),
			State: "FINISHED",
			File:  &prusalink.JobFile{Refs: &prusalink.FileRefs{Download: downloadPath}},
		},
	}
}

func newTestPoller(t *testing.T, store db.Service, clients map[string]prusalink.API) *Poller {
	t.Helper()

	cfg := &Config{Database: &db.Config{}}
	require.NoError(t, cfg.Validate())

	factory := func(printer *models.Printer) prusalink.API {
		return clients[printer.Slug]
	}

	p, err := New(cfg, store, factory, nil, logger.NewTestLogger())
	require.NoError(t, err)

	return p
}

func TestRunCycle_IsolatesUnreachablePrinter(t *testing.T) {
	healthy := models.Printer{ID: uuid.New(), Slug: "mk4"}
	broken := models.Printer{ID: uuid.New(), Slug: "core-one"}
	store := newFakeStore(broken, healthy)

	clients := map[string]prusalink.API{
		"core-one": &fakeClient{err: errDialFailed},
		"mk4":      &fakeClient{status: printingStatus("42", "")},
	}

	p := newTestPoller(t, store, clients)
	report := p.RunCycle(context.Background())

	require.NoError(t, report.Err)
	require.Len(t, report.Results, 2)

	byslug := map[string]PrinterResult{}
	for _, r := range report.Results {
		byslug[r.Slug] = r
	}

	assert.Equal(t, OutcomeUnreachable, byslug["core-one"].Outcome)
	assert.Equal(t, models.StatusOffline, byslug["core-one"].Status)

	assert.Equal(t, OutcomeOK, byslug["mk4"].Outcome)
	assert.Equal(t, models.StatusPrinting, byslug["mk4"].Status)
	assert.True(t, byslug["mk4"].NewPrintCounted)
	assert.Equal(t, 1, store.printCounts["mk4"])

	// The broken printer's counters must be untouched.
	assert.Equal(t, 0, store.printCounts["core-one"])
}

func TestRunCycle_DoesNotRecountOngoingJob(t *testing.T) {
	printer := models.Printer{ID: uuid.New(), Slug: "mk4", LastJobID: "42"}
	store := newFakeStore(printer)

	clients := map[string]prusalink.API{
		"mk4": &fakeClient{status: printingStatus("42", "")},
	}

	p := newTestPoller(t, store, clients)
	report := p.RunCycle(context.Background())

	require.NoError(t, report.Err)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].NewPrintCounted)
	assert.Equal(t, 0, store.printCounts["mk4"])
	assert.Zero(t, store.recordCalls, "job id unchanged, no store round trip expected")
}

func TestRunCycle_ReconcilesFinishedJob(t *testing.T) {
	printer := models.Printer{ID: uuid.New(), Slug: "mk4"}
	store := newFakeStore(printer)

	mm := 150.0
	require.NoError(t, store.CreatePendingUsage(context.Background(), &models.PendingJobUsage{
		PrinterID:  printer.ID,
		RemotePath: "/PRINT_QUEUE/benchy.bgcode",
		Estimate:   models.FilamentEstimate{Millimeters: &mm},
		CreatedAt:  time.Now(),
	}))

	clients := map[string]prusalink.API{
		"mk4": &fakeClient{status: finishedStatus("42", "/PRINT_QUEUE/benchy.bgcode")},
	}

	p := newTestPoller(t, store, clients)
	report := p.RunCycle(context.Background())

	require.NoError(t, report.Err)
	require.Len(t, report.Results, 1)

	result := report.Results[0]
	assert.Equal(t, OutcomeOK, result.Outcome)
	require.NotNil(t, result.Reconciled)
	assert.True(t, result.Reconciled.Matched)
	assert.InDelta(t, 150.0, store.creditedMM[printer.ID.String()], 0.001)
	assert.Empty(t, store.pending)
}

func TestRunCycle_StoreErrorIsTypedPerPrinter(t *testing.T) {
	printer := models.Printer{ID: uuid.New(), Slug: "mk4"}
	store := newFakeStore(printer)
	store.recordJobErr = errors.New("connection reset")

	clients := map[string]prusalink.API{
		"mk4": &fakeClient{status: printingStatus("7", "")},
	}

	p := newTestPoller(t, store, clients)
	report := p.RunCycle(context.Background())

	require.NoError(t, report.Err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeStoreError, report.Results[0].Outcome)
	assert.Error(t, report.Results[0].Err)
}

func TestRunCycle_ListFailureFailsCycle(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("database down")

	p := newTestPoller(t, store, nil)
	report := p.RunCycle(context.Background())

	assert.Error(t, report.Err)
	assert.Empty(t, report.Results)
}

func TestNew_RequiresDependencies(t *testing.T) {
	store := newFakeStore()
	factory := func(*models.Printer) prusalink.API { return &fakeClient{} }
	cfg := &Config{Database: &db.Config{}}

	_, err := New(nil, store, factory, nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrConfigRequired)

	_, err = New(cfg, nil, factory, nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = New(cfg, store, nil, nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrClientFactoryRequired)
}

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := &Config{Database: &db.Config{}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultPollInterval, time.Duration(cfg.PollInterval))
	assert.Equal(t, defaultPollTimeout, time.Duration(cfg.PollTimeout))
	assert.Equal(t, defaultMaxConcurrency, cfg.MaxConcurrency)
}

func TestConfigValidate_RequiresDatabase(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), errDatabaseRequired)
}
