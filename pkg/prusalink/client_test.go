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

package prusalink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
)

const statusPayload = `{
	"printer": {"state": "PRINTING", "temp_nozzle": 215.3, "temp_bed": 60.1},
	"job": {
		"id": 42,
		"state": "PRINTING",
		"progress": {"completion": 37.5},
		"time_remaining": 5400,
		"file": {"name": "bracket.gcode", "refs": {"download": "/PRINT_QUEUE/bracket.gcode"}}
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "secret-key", 5*time.Second, logger.NewTestLogger()), srv
}

func TestGetStatus(t *testing.T) {
	var gotPath, gotKey string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statusPayload))
	})

	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/status", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "PRINTING", status.Printer.State)
	assert.InDelta(t, 215.3, status.Printer.TempNozzle, 0.001)

	require.NotNil(t, status.Job)
	assert.Equal(t, "42", status.Job.ID.String())
	require.NotNil(t, status.Job.Progress)
	require.NotNil(t, status.Job.Progress.Completion)
	assert.InDelta(t, 37.5, *status.Job.Progress.Completion, 0.001)
}

func TestGetStatusIdleOmitsJob(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"printer": {"state": "IDLE"}}`))
	})

	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.Job)
}

func TestGetStatusErrorCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetStatus(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedStatusCode)
}

func TestGetStatusMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"printer": `))
	})

	_, err := client.GetStatus(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(srv.URL, "key", time.Second, logger.NewTestLogger())

	_, err := client.GetStatus(context.Background())
	require.ErrorIs(t, err, ErrPrinterUnreachable)
}

func TestUpload(t *testing.T) {
	var (
		gotMethod, gotPath string
		gotOverwrite       string
		gotPrintAfter      string
		gotBody            string
	)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotOverwrite = r.Header.Get("Overwrite")
		gotPrintAfter = r.Header.Get("Print-After-Upload")

		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.WriteHeader(http.StatusCreated)
	})

	err := client.Upload(context.Background(), strings.NewReader("G28\n"),
		"/PRINT_QUEUE/part.gcode", UploadOptions{Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/v1/files/usb/PRINT_QUEUE/part.gcode", gotPath)
	assert.Equal(t, "?1", gotOverwrite)
	assert.Equal(t, "?0", gotPrintAfter)
	assert.Equal(t, "G28\n", gotBody)
}

func TestUploadRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	err := client.Upload(context.Background(), strings.NewReader("x"), "part.gcode", UploadOptions{})
	require.ErrorIs(t, err, ErrUnexpectedStatusCode)
}

func TestListFiles(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/files/usb/PRINT_QUEUE", r.URL.Path)
		_, _ = w.Write([]byte(`{"children": [{"name": "a.gcode"}, {"name": "b.gcode"}]}`))
	})

	files, err := client.ListFiles(context.Background(), "/PRINT_QUEUE")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.gcode", files[0].Name)
}

func TestListFilesMissingDir(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	files, err := client.ListFiles(context.Background(), "/PRINT_QUEUE")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDeleteFile(t *testing.T) {
	var gotMethod, gotPath string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path

		w.WriteHeader(http.StatusNoContent)
	})

	err := client.DeleteFile(context.Background(), "/PRINT_QUEUE/a.gcode")
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v1/files/usb/PRINT_QUEUE/a.gcode", gotPath)
}

func TestSnapshotDerivation(t *testing.T) {
	completion := 62.0

	status := &StatusResponse{
		Printer: PrinterStatus{State: "PRINTING"},
		Job: &JobStatus{
			ID:       "7",
			State:    "PRINTING",
			Progress: &JobProgress{Completion: &completion},
			File: &JobFile{
				Name: "vase.gcode",
				Refs: &FileRefs{Download: "/PRINT_QUEUE/vase.gcode"},
			},
		},
	}

	snap := status.Snapshot()

	assert.Equal(t, models.StatusPrinting, snap.Status)
	assert.Equal(t, "7", snap.JobID)
	assert.Equal(t, models.JobStateActive, snap.State)
	assert.Equal(t, "/PRINT_QUEUE/vase.gcode", snap.RemotePath)
	require.NotNil(t, snap.Completion)
	assert.InDelta(t, 62.0, *snap.Completion, 0.001)
}

func TestSnapshotWithoutJob(t *testing.T) {
	status := &StatusResponse{Printer: PrinterStatus{State: "IDLE"}}

	snap := status.Snapshot()

	assert.Equal(t, models.StatusReady, snap.Status)
	assert.Empty(t, snap.JobID)
	assert.Equal(t, models.JobStateUnknown, snap.State)
	assert.Nil(t, snap.Completion)
	assert.Empty(t, snap.RemotePath)
}

func TestHostSchemeDefaulting(t *testing.T) {
	client := NewClient("printer.local:8080", "key", 0, nil)
	assert.Equal(t, "http://printer.local:8080", client.baseURL)

	client = NewClient("https://printer.local/", "key", 0, nil)
	assert.Equal(t, "https://printer.local", client.baseURL)
}
