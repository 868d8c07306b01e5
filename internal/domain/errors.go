package domain

import (
	"errors"
	"fmt"
)

// FetchKind classifies a source fetch failure.
type FetchKind string

const (
	FetchKindNetwork FetchKind = "network"
	FetchKindParse   FetchKind = "parse"
)

// FetchError is a recoverable, per-source collection failure. It never aborts
// the cycle for other sources; the source is retried on the next cycle.
type FetchError struct {
	Source string
	Kind   FetchKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError marks a failed transactional write; the whole batch was rolled
// back and nothing from the cycle was persisted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrSelectorMiss indicates that no configured selector set matched the
// scraped page layout; the source is flagged degraded but the cycle goes on.
var ErrSelectorMiss = errors.New("no selector set matched page layout")

// ErrRefreshBusy rejects a refresh requested while another cycle is running.
var ErrRefreshBusy = errors.New("refresh already in progress")
