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

// Package prusalink is a REST client for PrusaLink-compatible printers.
// The rest of the system treats it as an opaque transport: any network,
// auth, or decode failure simply renders the printer unreachable for the
// current cycle.
package prusalink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
)

const (
	defaultTimeout = 10 * time.Second
	statusPath     = "/api/v1/status"
	storagePath    = "/api/v1/files/usb"
)

// API is the printer transport surface consumed by the poller, the upload
// handler, and the queue cleaner.
type API interface {
	GetStatus(ctx context.Context) (*StatusResponse, error)
	Upload(ctx context.Context, r io.Reader, remotePath string, opts UploadOptions) error
	ListFiles(ctx context.Context, dir string) ([]FileEntry, error)
	DeleteFile(ctx context.Context, path string) error
}

// ClientFactory builds a transport client for one printer. Injected into
// the poller and the API server so tests can substitute fakes.
type ClientFactory func(printer *models.Printer) API

// NewFactory returns the production factory with a shared per-call timeout.
func NewFactory(timeout time.Duration, log logger.Logger) ClientFactory {
	return func(printer *models.Printer) API {
		return NewClient(printer.Host, printer.APIKey, timeout, log)
	}
}

// UploadOptions controls printer-side upload behavior.
type UploadOptions struct {
	Overwrite        bool
	PrintAfterUpload bool
}

// Client talks to a single printer over its REST API. Every call carries a
// hard timeout so one unresponsive printer cannot stall a poll cycle.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a client for the printer at host, authenticating with
// apiKey. A non-positive timeout selects the default.
func NewClient(host, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// GetStatus fetches and decodes the printer's current status.
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, statusPath, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrinterUnreachable, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return &status, nil
}

// Upload stores the file at remotePath on the printer's USB storage.
func (c *Client) Upload(ctx context.Context, r io.Reader, remotePath string, opts UploadOptions) error {
	req, err := c.newRequest(ctx, http.MethodPut, storagePath+normalizePath(remotePath), r)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Overwrite", boolHeader(opts.Overwrite))
	req.Header.Set("Print-After-Upload", boolHeader(opts.PrintAfterUpload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrinterUnreachable, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}

// ListFiles lists the files stored under dir on the printer.
func (c *Client) ListFiles(ctx context.Context, dir string) ([]FileEntry, error) {
	req, err := c.newRequest(ctx, http.MethodGet, storagePath+normalizePath(dir), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrinterUnreachable, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	var files filesResponse
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return files.Children, nil
}

// DeleteFile removes the file at path from the printer's storage.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, storagePath+normalizePath(path), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrinterUnreachable, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Msg("Failed to close response body")
	}
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}

	return p
}

func boolHeader(v bool) string {
	if v {
		return "?1"
	}

	return "?0"
}
