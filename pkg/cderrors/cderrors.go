// Package cderrors defines the abstract error kinds shared by every
// ConDaLF component. They are sentinel values, comparable with
// errors.Is, rather than a single catch-all structured error type: the
// component contracts switch on a closed set of eight kinds, so a
// sentinel set serves the decision points directly.
package cderrors

import (
	"errors"
	"fmt"
)

var (
	// Invalid means a precondition was violated (bad argument, record
	// type out of range, serializer used after invalidation).
	Invalid = errors.New("invalid argument")
	// NoMemory means an allocation failed.
	NoMemory = errors.New("no memory")
	// NoSpace means a buffer or storage medium is full.
	NoSpace = errors.New("no space")
	// NoBuffers means the configuration is too tight to hold even one
	// record (encoding buffer smaller than any single record).
	NoBuffers = errors.New("no buffers")
	// TryAgain means the caller must swap buffers and retry.
	TryAgain = errors.New("try again")
	// NoEntry means an empty pool or missing file.
	NoEntry = errors.New("no entry")
	// WouldBlock means an async dispatch mailbox is full.
	WouldBlock = errors.New("would block")
	// NoSuchProcess means the worker goroutine the caller wanted to
	// reach is no longer running.
	NoSuchProcess = errors.New("no such process")
)

// Wrap attaches a propagated cause to one of the sentinel kinds above,
// so that errors.Is matches both the kind and the original cause.
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
