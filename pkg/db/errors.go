package db

import "errors"

var (
	ErrConfigNil    = errors.New("database config is nil")
	ErrFailedOpenDB = errors.New("failed to open database")
	ErrFailedToInit = errors.New("failed to initialize schema")

	ErrPrinterNotFound = errors.New("printer not found")
	ErrSlugRequired    = errors.New("printer slug is required")

	// Ledger errors.

	ErrPendingNil             = errors.New("pending usage record is nil")
	ErrNoPendingUsage         = errors.New("no pending usage record")
	ErrPendingAlreadyConsumed = errors.New("pending usage record already consumed")
)
