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

// Package core provides the HTTP API surfaced to the dashboard UI: fleet
// status, per-printer detail, print file upload, and a live status feed.
package core

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/lifecycle"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
	"github.com/nolop/printfarm/pkg/prusalink"
)

const (
	defaultListenAddr     = ":8090"
	defaultQueueDir       = "/PRINT_QUEUE"
	defaultPrinterTimeout = 10 * time.Second
	defaultStatusInterval = 5 * time.Second
)

// Config drives the API server.
type Config struct {
	ListenAddr string `json:"listen_addr"`

	// AdminAPIKey unlocks the fleet-internal stats in the detail payload.
	// Empty disables privileged access entirely.
	AdminAPIKey string `json:"admin_api_key"`

	// QueueDir is the printer-side directory uploads land in. Its exact
	// spelling is the join key between uploads and later job reports.
	QueueDir string `json:"queue_dir"`

	PrinterTimeout models.Duration `json:"printer_timeout"`
	StatusInterval models.Duration `json:"status_interval"`

	Database *db.Config     `json:"database"`
	Logging  *logger.Config `json:"logging"`
}

// Validate fills defaults and checks required fields.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.QueueDir == "" {
		c.QueueDir = defaultQueueDir
	}

	if time.Duration(c.PrinterTimeout) <= 0 {
		c.PrinterTimeout = models.Duration(defaultPrinterTimeout)
	}

	if time.Duration(c.StatusInterval) <= 0 {
		c.StatusInterval = models.Duration(defaultStatusInterval)
	}

	if c.Database == nil {
		return errDatabaseRequired
	}

	return nil
}

// APIServer exposes the print farm over HTTP.
type APIServer struct {
	config    Config
	store     db.Service
	newClient prusalink.ClientFactory
	router    *mux.Router
	hub       *statusHub
	logger    logger.Logger
}

// NewAPIServer wires the API server against the given store and transport
// factory.
func NewAPIServer(config *Config, store db.Service, newClient prusalink.ClientFactory, log logger.Logger) (*APIServer, error) {
	if config == nil {
		return nil, errConfigRequired
	}

	s := &APIServer{
		config:    *config,
		store:     store,
		newClient: newClient,
		router:    mux.NewRouter(),
		logger:    log,
	}

	s.hub = newStatusHub(s.fleetSummaries, time.Duration(config.StatusInterval), log)
	s.setupRoutes()

	return s, nil
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/api/printers", s.getFleetStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/printers/{slug}", s.getPrinter).Methods(http.MethodGet)
	s.router.HandleFunc("/api/printers/{slug}/upload", s.uploadPrintFile).Methods(http.MethodPost)
	s.router.HandleFunc("/api/ws/status", s.hub.handleStatusFeed)
}

// Router returns the configured HTTP handler.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Run serves the API and the live status feed until ctx is canceled.
func (s *APIServer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.run(ctx)

	return lifecycle.RunHTTPServer(ctx, s.config.ListenAddr, s.router, s.logger)
}

// isAdmin reports whether the request carries the configured admin key.
func (s *APIServer) isAdmin(r *http.Request) bool {
	return s.config.AdminAPIKey != "" && r.Header.Get("X-Admin-Key") == s.config.AdminAPIKey
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
