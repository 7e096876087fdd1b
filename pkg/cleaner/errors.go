package cleaner

import "errors"

var (
	ErrConfigRequired        = errors.New("config is required")
	ErrStoreRequired         = errors.New("store is required")
	ErrClientFactoryRequired = errors.New("client factory is required")

	errDatabaseRequired = errors.New("database config is required")
)
