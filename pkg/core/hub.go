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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
)

const hubWriteTimeout = 10 * time.Second

// statusHub pushes fleet status summaries to connected dashboards over
// websockets, saving them from polling the REST endpoint.
//
// Each connection has exactly one writer goroutine fed by a buffered send
// channel; websocket connections do not tolerate concurrent writers.
type statusHub struct {
	fetch    func(ctx context.Context) []models.PrinterSummary
	interval time.Duration
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.Mutex
	clients map[*feedClient]bool
}

// feedClient is one connected dashboard. The send channel is closed exactly
// once, under the hub mutex, when the client is dropped.
type feedClient struct {
	conn *websocket.Conn
	send chan []models.PrinterSummary
}

func newStatusHub(fetch func(ctx context.Context) []models.PrinterSummary, interval time.Duration, log logger.Logger) *statusHub {
	return &statusHub{
		fetch:    fetch,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  log,
		clients: make(map[*feedClient]bool),
	}
}

// run broadcasts summaries on the configured interval until ctx is
// canceled. Fleet polling is skipped entirely while nobody is connected.
func (h *statusHub) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if h.clientCount() == 0 {
				continue
			}

			h.broadcast(h.fetch(ctx))
		}
	}
}

// handleStatusFeed upgrades the request and registers the client. The
// initial snapshot is queued before the writer starts, so new clients do not
// wait a full interval.
func (h *statusHub) handleStatusFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan []models.PrinterSummary, 2),
	}
	client.send <- h.fetch(r.Context())

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", total).Msg("Status feed client connected")

	go h.writeLoop(client)
	go h.readLoop(client)
}

// writeLoop is the sole writer for one connection. It exits when the send
// channel is closed or a write fails, and owns closing the connection.
func (h *statusHub) writeLoop(client *feedClient) {
	defer func() { _ = client.conn.Close() }()

	for summaries := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))

		if err := client.conn.WriteJSON(summaries); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to push status update")
			h.drop(client)

			return
		}
	}
}

// readLoop drains the connection to detect disconnects.
func (h *statusHub) readLoop(client *feedClient) {
	defer h.drop(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast queues the summaries for every client without touching the
// network. A client whose buffer is full misses this tick instead of
// stalling registration and the other clients.
func (h *statusHub) broadcast(summaries []models.PrinterSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- summaries:
		default:
		}
	}
}

// drop unregisters the client and closes its send channel, which in turn
// stops its writer and closes the connection. Safe to call more than once.
func (h *statusHub) drop(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}

	delete(h.clients, client)
	close(client.send)

	h.logger.Info().Int("clients", len(h.clients)).Msg("Status feed client disconnected")
}

func (h *statusHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *statusHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
	}

	h.clients = make(map[*feedClient]bool)
}
