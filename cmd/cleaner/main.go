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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nolop/printfarm/pkg/cleaner"
	"github.com/nolop/printfarm/pkg/config"
	"github.com/nolop/printfarm/pkg/db"
	"github.com/nolop/printfarm/pkg/logger"
	"github.com/nolop/printfarm/pkg/prusalink"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/printfarm/cleaner.json", "Path to cleaner config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg cleaner.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	cleanerLogger, err := logger.NewComponent("cleaner", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := db.New(ctx, cfg.Database, cleanerLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	factory := prusalink.NewFactory(time.Duration(cfg.PrinterTimeout), cleanerLogger)

	c, err := cleaner.New(&cfg, store, factory, cleanerLogger)
	if err != nil {
		return err
	}

	_, err = c.Run(ctx)

	return err
}
