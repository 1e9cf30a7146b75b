// Package serializer implements the Record Serializer (spec.md §4.D):
// a double-queue encoder that accepts individual records, proves in
// advance how many of them fit the current output buffer via a
// simulated encoder, and produces self-contained envelopes on Swap
// with no partial encodings and no lost records.
package serializer

import (
	"errors"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
	"github.com/derMihai/condalf/pkg/ring"
	"github.com/derMihai/condalf/pkg/senml"
)

// unboundedLimit sizes the simulation encoder used purely to flush
// (and so release the owned string payloads of) the ring's remaining
// contents once a serializer is invalidated. It only ever needs to be
// larger than any buffer the caller could plausibly have used.
const unboundedLimit = 1 << 30

// Serializer is the stateful combination of a simulated SenML encoder
// and a peek ring buffer. See spec.md §4.D for the full contract;
// Invariant: fitCount <= ring.Fill() at all times.
type Serializer struct {
	ring     *ring.Ring
	enc      *senml.Encoder
	fitCount int
	base     record.Base
	buf      []byte
	valid    bool
}

// Init allocates a ring of lenLimit records (must be a power of two)
// and initializes the encoder in simulation mode sized to
// len(buf) - senml.ArrayMaxBytes, reserving room for the eventual
// envelope close. buf is the first accumulation buffer; it becomes
// real output only once fitCount > 0 records have been committed to
// it on the first Swap.
func Init(buf []byte, lenLimit int, base record.Base) (*Serializer, error) {
	if buf == nil || lenLimit == 0 {
		return nil, cderrors.Invalid
	}
	if len(buf) < senml.ArrayMaxBytes {
		return nil, cderrors.NoSpace
	}

	r, err := ring.New(lenLimit)
	if err != nil {
		return nil, err
	}

	s := &Serializer{
		ring:  r,
		enc:   senml.NewEncoder(),
		base:  base,
		buf:   buf,
		valid: true,
	}

	if err := s.enc.Init(nil, len(buf)-senml.ArrayMaxBytes, base); err != nil {
		return nil, err
	}

	return s, nil
}

// FitCount returns the number of records at the ring head proven
// encodable into the current output buffer.
func (s *Serializer) FitCount() int { return s.fitCount }

// Fill returns the number of records currently queued.
func (s *Serializer) Fill() int { return s.ring.Fill() }

// Put consumes ownership of rec on success, and also on TryAgain: the
// record is then queued beyond the fit line and rec is zeroed. On any
// other error rec is left unchanged (bitwise, including its string
// payload) and still owned by the caller. See spec.md §4.D for the
// precedence of outcomes.
func (s *Serializer) Put(rec *record.Record) error {
	if !s.valid {
		return cderrors.Invalid
	}

	var nrec record.Record
	record.Move(&nrec, rec)

	if s.ring.Fill() == s.ring.Cap() {
		record.Move(rec, &nrec)
		return cderrors.NoSpace
	}

	err := s.enc.Put(&nrec)
	if errors.Is(err, cderrors.NoSpace) {
		if s.fitCount == 0 {
			record.Move(rec, &nrec)
			return cderrors.NoBuffers
		}
		s.ring.PutOne(nrec)
		return cderrors.TryAgain
	}
	if err != nil {
		record.Move(rec, &nrec)
		return cderrors.Invalid
	}

	s.ring.PutOne(nrec)
	s.fitCount++

	return nil
}

// flushSimulate walks up to cnt records from the ring head without
// consuming them, feeding each to the (already-simulation-mode)
// encoder until one fails to fit or the ring is exhausted. It returns
// the number that fit.
func (s *Serializer) flushSimulate(cnt int) (int, error) {
	if cnt == 0 {
		return 0, nil
	}

	rec, it, err := s.ring.Peek()
	if errors.Is(err, cderrors.NoEntry) {
		return 0, nil
	}

	flushed := 0
	for {
		res := s.enc.Put(&rec)
		if errors.Is(res, cderrors.NoSpace) {
			break
		}
		if res != nil {
			return flushed, res
		}
		flushed++
		cnt--
		if cnt == 0 {
			break
		}

		rec, it, err = s.ring.Next(it)
		if errors.Is(err, cderrors.NoEntry) {
			break
		}
		if err != nil {
			return flushed, err
		}
	}

	return flushed, nil
}

// flush consumes exactly cnt records from the ring, feeding each to
// the encoder (real or simulated, per its current mode) and freeing
// any owned string payload once the record has been encoded.
func (s *Serializer) flush(cnt int) (int, error) {
	flushed := 0
	for cnt > 0 {
		rec, err := s.ring.GetOne()
		if err != nil {
			// The caller only ever asks for at most Fill() records;
			// running out here means the fitCount invariant broke.
			panic("serializer: flush count exceeds ring fill")
		}

		res := s.enc.Put(&rec)
		rec.FreeData()

		if errors.Is(res, cderrors.NoSpace) {
			break
		}
		if res != nil {
			return flushed, res
		}
		flushed++
		cnt--
	}
	return flushed, nil
}

// Swap atomically exchanges the output buffer. See spec.md §4.D for
// the three-step contract. newBuf == nil invalidates the serializer:
// all further calls return Invalid.
func (s *Serializer) Swap(newBuf []byte) ([]byte, error) {
	if !s.valid {
		return nil, cderrors.Invalid
	}

	var encLen int

	if s.fitCount > 0 {
		sw := &sliceWriter{buf: s.buf}
		if err := s.enc.Init(sw, len(s.buf), s.base); err != nil {
			return nil, err
		}

		fitCnt := s.fitCount
		n, err := s.flush(fitCnt)
		if err != nil {
			return nil, err
		}
		if n != fitCnt {
			panic("serializer: flush drained fewer records than fitCount")
		}
		s.fitCount = 0

		length, err := s.enc.Close()
		if err != nil {
			return nil, err
		}
		encLen = length
	}

	old := s.buf
	s.buf = newBuf
	out := old[:encLen]

	if newBuf == nil {
		// Invalidate: release any still-queued owned string payloads
		// via an unbounded simulated flush, then free the ring.
		if err := s.enc.Init(nil, unboundedLimit, s.base); err != nil {
			return out, err
		}
		if _, err := s.flush(s.ring.Fill()); err != nil {
			return out, err
		}
		s.fitCount = 0
		s.ring = nil
		s.valid = false
		return out, nil
	}

	if err := s.enc.Init(nil, len(s.buf)-senml.ArrayMaxBytes, s.base); err != nil {
		return out, err
	}

	if s.ring.Fill() > 0 {
		n, err := s.flushSimulate(s.ring.Fill())
		if err != nil {
			return out, err
		}
		s.fitCount = n
		return out, cderrors.TryAgain
	}

	return out, nil
}
