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

package cleaner

import (
	"context"
	"errors"
	"io"
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

var errDialFailed = errors.New("dial failed")

type fakeClient struct {
	files   []prusalink.FileEntry
	listErr error

	deleted   []string
	deleteErr map[string]error
}

func (f *fakeClient) GetStatus(_ context.Context) (*prusalink.StatusResponse, error) {
	return nil, errDialFailed
}

func (f *fakeClient) Upload(_ context.Context, _ io.Reader, _ string, _ prusalink.UploadOptions) error {
	return errDialFailed
}

func (f *fakeClient) ListFiles(_ context.Context, _ string) ([]prusalink.FileEntry, error) {
	return f.files, f.listErr
}

func (f *fakeClient) DeleteFile(_ context.Context, path string) error {
	if err, ok := f.deleteErr[path]; ok {
		return err
	}

	f.deleted = append(f.deleted, path)

	return nil
}

type fakeStore struct {
	printers []models.Printer
	listErr  error

	prunedCutoff time.Time
	prunedCount  int64
	pruneErr     error
}

func (f *fakeStore) ListPrinters(_ context.Context) ([]models.Printer, error) {
	return f.printers, f.listErr
}

func (f *fakeStore) GetPrinterBySlug(_ context.Context, _ string) (*models.Printer, error) {
	return nil, db.ErrPrinterNotFound
}

func (f *fakeStore) CreatePrinter(_ context.Context, _ *models.Printer) error { return nil }
func (f *fakeStore) UpdatePrinter(_ context.Context, _ *models.Printer) error { return nil }

func (f *fakeStore) RecordJobStarted(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (f *fakeStore) CreatePendingUsage(_ context.Context, _ *models.PendingJobUsage) error {
	return nil
}

func (f *fakeStore) FindPendingUsage(_ context.Context, _ uuid.UUID, _ string) (*models.PendingJobUsage, error) {
	return nil, db.ErrNoPendingUsage
}

func (f *fakeStore) CommitPendingUsage(_ context.Context, _, _ uuid.UUID, _ models.FilamentEstimate, _ bool) error {
	return nil
}

func (f *fakeStore) PrunePendingUsage(_ context.Context, cutoff time.Time) (int64, error) {
	f.prunedCutoff = cutoff
	return f.prunedCount, f.pruneErr
}

func (f *fakeStore) Close() {}

func newTestCleaner(t *testing.T, store db.Service, clients map[string]prusalink.API) *Cleaner {
	t.Helper()

	cfg := &Config{Database: &db.Config{}}
	require.NoError(t, cfg.Validate())

	factory := func(printer *models.Printer) prusalink.API {
		if client, ok := clients[printer.Slug]; ok {
			return client
		}

		return &fakeClient{listErr: errDialFailed}
	}

	c, err := New(cfg, store, factory, logger.NewTestLogger())
	require.NoError(t, err)

	return c
}

func TestRunDeletesQueuedFiles(t *testing.T) {
	store := &fakeStore{
		printers:    []models.Printer{{ID: uuid.New(), Slug: "alpha"}},
		prunedCount: 3,
	}

	client := &fakeClient{files: []prusalink.FileEntry{{Name: "a.gcode"}, {Name: "b.gcode"}}}

	c := newTestCleaner(t, store, map[string]prusalink.API{"alpha": client})

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.PrintersCleaned)
	assert.Equal(t, 0, report.PrintersFailed)
	assert.Equal(t, 2, report.FilesDeleted)
	assert.Equal(t, int64(3), report.PendingPruned)
	assert.Equal(t, []string{"/PRINT_QUEUE/a.gcode", "/PRINT_QUEUE/b.gcode"}, client.deleted)
}

func TestRunIsolatesUnreachablePrinter(t *testing.T) {
	store := &fakeStore{printers: []models.Printer{
		{ID: uuid.New(), Slug: "alpha"},
		{ID: uuid.New(), Slug: "down"},
	}}

	client := &fakeClient{files: []prusalink.FileEntry{{Name: "a.gcode"}}}

	c := newTestCleaner(t, store, map[string]prusalink.API{"alpha": client})

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.PrintersCleaned)
	assert.Equal(t, 1, report.PrintersFailed)
	assert.Equal(t, 1, report.FilesDeleted)
}

func TestRunContinuesPastBusyFile(t *testing.T) {
	store := &fakeStore{printers: []models.Printer{{ID: uuid.New(), Slug: "alpha"}}}

	client := &fakeClient{
		files:     []prusalink.FileEntry{{Name: "busy.gcode"}, {Name: "done.gcode"}},
		deleteErr: map[string]error{"/PRINT_QUEUE/busy.gcode": errors.New("file in use")},
	}

	c := newTestCleaner(t, store, map[string]prusalink.API{"alpha": client})

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesDeleted)
	assert.Equal(t, []string{"/PRINT_QUEUE/done.gcode"}, client.deleted)
}

func TestRunPruneCutoffHonorsRetention(t *testing.T) {
	store := &fakeStore{}

	cfg := &Config{Retention: models.Duration(48 * time.Hour), Database: &db.Config{}}
	require.NoError(t, cfg.Validate())

	c, err := New(cfg, store, func(_ *models.Printer) prusalink.API {
		return &fakeClient{}
	}, logger.NewTestLogger())
	require.NoError(t, err)

	before := time.Now().Add(-48 * time.Hour)

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	after := time.Now().Add(-48 * time.Hour)

	assert.False(t, store.prunedCutoff.Before(before))
	assert.False(t, store.prunedCutoff.After(after))
}

func TestRunListFailureAborts(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}

	c := newTestCleaner(t, store, nil)

	_, err := c.Run(context.Background())
	require.Error(t, err)
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{Database: &db.Config{}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultQueueDir, cfg.QueueDir)
	assert.Equal(t, defaultRetention, time.Duration(cfg.Retention))
	assert.Equal(t, defaultPrinterTimeout, time.Duration(cfg.PrinterTimeout))
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := &Config{Database: &db.Config{}}

	_, err := New(nil, &fakeStore{}, func(_ *models.Printer) prusalink.API { return &fakeClient{} }, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrConfigRequired)

	_, err = New(cfg, nil, func(_ *models.Printer) prusalink.API { return &fakeClient{} }, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = New(cfg, &fakeStore{}, nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrClientFactoryRequired)
}
