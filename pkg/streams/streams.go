// Package streams defines the Record Stream capability (spec.md
// §4.M): the ownership-transferring sink every logger instance
// implements, independent of what sits downstream of it.
package streams

import "github.com/derMihai/condalf/pkg/record"

// Stream accepts records for eventual encoding and transfer.
type Stream interface {
	// Put ingests rec. On success rec's data has been consumed
	// (moved or copied into the stream's own buffers) and the caller
	// must not read or free it afterward; on error rec is left
	// untouched and still owned by the caller.
	Put(rec *record.Record) error
	// Flush forces any buffered records through the stream's encoder
	// and transfer driver immediately, rather than waiting for a
	// buffer to fill.
	Flush() error
	// Close flushes remaining data and releases the stream. Put and
	// Flush return Invalid after Close.
	Close() error
}
