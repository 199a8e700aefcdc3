// Package kizamierr defines the sentinel error kinds shared by the ingestion
// engine and the HTTP layer.
package kizamierr

import "errors"

var (
	// ErrUpstream wraps a network, timeout, non-2xx, or malformed-NDJSON
	// failure talking to SQD Portal.
	ErrUpstream = errors.New("upstream error")

	// ErrStorage wraps a read/write failure against the persistent store.
	ErrStorage = errors.New("storage error")

	// ErrNotFound means no block satisfies a query, or no cursor is stored
	// for a slug. An unknown chain id is reported as ErrUnknownChain.
	ErrNotFound = errors.New("not found")

	// ErrUnknownChain means the chain id is not in the registry.
	ErrUnknownChain = errors.New("unknown chain")

	// ErrBadInput means a path or query parameter failed to parse.
	ErrBadInput = errors.New("bad input")

	// ErrNotReady means the progress map has not been populated yet.
	ErrNotReady = errors.New("not ready")
)
