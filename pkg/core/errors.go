package core

import "errors"

var (
	errConfigRequired   = errors.New("config is required")
	errDatabaseRequired = errors.New("database config is required")
)
