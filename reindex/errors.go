package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRecordStoreRequired is returned by NewRebuilder without a record store
	ErrRecordStoreRequired = errors.New("record store is required")

	// ErrSearchIndexRequired is returned by NewRebuilder without a search index
	ErrSearchIndexRequired = errors.New("search index is required")
)
