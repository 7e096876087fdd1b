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
	"time"

	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/models"
)

const (
	defaultPollInterval   = 30 * time.Second
	defaultPollTimeout    = 10 * time.Second
	defaultMaxConcurrency = 4
)

// Config drives the fleet poller.
type Config struct {
	// PollInterval is the pause between fleet poll cycles.
	PollInterval models.Duration `json:"poll_interval"`

	// PollTimeout bounds every network call to a single printer, so one
	// unresponsive printer cannot stall a cycle.
	PollTimeout models.Duration `json:"poll_timeout"`

	// MaxConcurrency caps how many printers are polled in parallel.
	MaxConcurrency int `json:"max_concurrency"`

	Database *db.Config     `json:"database"`
	Logging  *logger.Config `json:"logging"`
}

// Validate fills defaults and checks required fields.
func (c *Config) Validate() error {
	if time.Duration(c.PollInterval) <= 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollTimeout) <= 0 {
		c.PollTimeout = models.Duration(defaultPollTimeout)
	}

	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}

	if c.Database == nil {
		return errDatabaseRequired
	}

	return nil
}
