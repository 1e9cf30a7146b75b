// Package ring implements the fixed-capacity peek ring buffer over
// records (spec.md §4.C): a power-of-two capacity ring supporting
// put/get/peek/advance-iterator with masked indexing and no internal
// locking — the serializer is its sole owner.
package ring

import (
	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
)

// Ring is a fixed-capacity circular buffer of records. Indices (ri,
// wi) are monotonically increasing and never wrapped explicitly; the
// physical slot is always index & mask.
type Ring struct {
	buf  []record.Record
	mask uint64
	ri   uint64
	wi   uint64
}

// New allocates a ring of the given capacity, which must be a power
// of two (spec.md §4.C).
func New(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, cderrors.Invalid
	}
	return &Ring{
		buf:  make([]record.Record, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Fill returns the number of records currently queued.
func (r *Ring) Fill() int { return int(r.wi - r.ri) }

// Put writes as many of recs as fit (capacity - Fill) and returns the
// count actually written.
func (r *Ring) Put(recs []record.Record) int {
	empty := len(r.buf) - r.Fill()
	toWrite := len(recs)
	if toWrite > empty {
		toWrite = empty
	}
	for i := 0; i < toWrite; i++ {
		r.buf[r.wi&r.mask] = recs[i]
		r.wi++
	}
	return toWrite
}

// PutOne is the common case of Put with a single record.
func (r *Ring) PutOne(rec record.Record) int {
	return r.Put([]record.Record{rec})
}

// Get consumes up to len(out) records (bounded by Fill) into out and
// returns the count consumed.
func (r *Ring) Get(out []record.Record) int {
	fill := r.Fill()
	toRead := len(out)
	if toRead > fill {
		toRead = fill
	}
	for i := 0; i < toRead; i++ {
		out[i] = r.buf[r.ri&r.mask]
		r.ri++
	}
	return toRead
}

// GetOne consumes and returns exactly one record, or NoEntry if empty.
func (r *Ring) GetOne() (record.Record, error) {
	if r.Fill() == 0 {
		return record.Record{}, cderrors.NoEntry
	}
	var out [1]record.Record
	r.Get(out[:])
	return out[0], nil
}

// Peek returns the oldest record without consuming it, and an
// iterator positioned at the read index for a subsequent Next.
func (r *Ring) Peek() (rec record.Record, it uint64, err error) {
	if r.Fill() == 0 {
		return record.Record{}, 0, cderrors.NoEntry
	}
	return r.buf[r.ri&r.mask], r.ri, nil
}

// Next advances an iterator that already points at a valid slot
// (returned by Peek or a prior Next) and returns the next record.
// Returns NoEntry once the ring is exhausted, Invalid if it does not
// point at a currently valid slot.
func (r *Ring) Next(it uint64) (rec record.Record, next uint64, err error) {
	next = it + 1

	diff := int64(r.wi - next)
	if diff == 0 {
		return record.Record{}, it, cderrors.NoEntry
	}
	if diff < 0 || uint64(diff) > uint64(r.Fill()) {
		return record.Record{}, it, cderrors.Invalid
	}

	return r.buf[next&r.mask], next, nil
}
