package sync

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMalformedRecord marks a record that cannot be reconciled; it is
	// logged and skipped without aborting the batch.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrFetchFailure aborts a reconciliation run before any mutation.
	ErrFetchFailure = errors.New("fetch failure")
)

// ExternalRecord is one deadline row as produced by the external calendar.
type ExternalRecord struct {
	SourceID    string
	Title       string
	Description string
	DueDate     *time.Time // nil for open-ended deadlines
	UserRef     string     // username or email of the owner
}

// Fetcher retrieves the current batch of external records. The boolean
// reports whether the feed is complete: only a complete feed enables the
// prune pass that cancels deadlines missing from it.
type Fetcher interface {
	Fetch(ctx context.Context) ([]ExternalRecord, bool, error)
}
