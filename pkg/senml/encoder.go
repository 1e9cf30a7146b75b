// Package senml implements the SenML/CBOR wire encoder (spec.md §4.B,
// §6): a stateful, append-only encoder that writes one CBOR array of
// records into a caller-supplied buffer, or — in simulation mode —
// only accounts for the bytes it would have written.
package senml

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
)

// senmlKey mirrors the SENMLKEY_* enum from the original encoder.
const (
	keyBaseName = -2
	keyName     = 0
	keyUnit     = 1
	keyValue    = 2
	keyTime     = 6
)

// Encoder appends records into an indefinite-length CBOR array. The
// array-open and -close framing costs exactly one byte each (0x9f /
// 0xff), which is why the serializer reserves ArrayMaxBytes = 4 for
// envelope-close overhead when sizing the simulated encoder. The open
// byte and any base-name map are counted by Init in both modes, so
// only the close byte draws on that reserve; the rest is spare,
// matching the original's conservative reserve.
type Encoder struct {
	w        io.Writer
	limit    int
	written  int
	base     record.Base
	simulate bool
	closed   bool
}

// ArrayMaxBytes is the byte reserve the serializer subtracts from a
// buffer's length before sizing the encoder in simulation mode, to
// guarantee the final Close always has room (spec.md §4.D).
const ArrayMaxBytes = 4

// NewEncoder returns an Encoder ready for Init.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Init (re)opens the encoder. w == nil selects simulation mode: no
// bytes are written anywhere, only accounted against limit.
func (e *Encoder) Init(w io.Writer, limit int, base record.Base) error {
	*e = Encoder{w: w, limit: limit, base: base, simulate: w == nil}

	if err := e.reserve(1); err != nil {
		return err
	}
	e.emit([]byte{0x9f}) // indefinite-length array open

	if e.base.Name != "" {
		bm, err := cbor.Marshal(map[int]string{keyBaseName: e.base.Name})
		if err != nil {
			return cderrors.Invalid
		}
		if err := e.reserve(len(bm)); err != nil {
			return err
		}
		e.emit(bm)
	}

	return nil
}

// Put appends one record map. See spec.md §4.B for the per-type value
// tagging and §4.B "Numeric semantics" for the timestamp conversion.
func (e *Encoder) Put(rec *record.Record) error {
	if e.closed {
		return cderrors.Invalid
	}
	if rec.Type == record.Empty {
		return cderrors.Invalid
	}
	if rec.Unit != record.UnitNone && !rec.Unit.Valid() {
		return cderrors.Invalid
	}

	m := make(map[int]interface{}, 4)
	m[keyName] = rec.Name
	m[keyTime] = rec.Timestamp.Double()
	if rec.Unit != record.UnitNone {
		m[keyUnit] = rec.Unit.String()
	}

	switch rec.Type {
	case record.U32:
		m[keyValue] = uint64(rec.U32)
	case record.I32:
		m[keyValue] = int64(rec.I32)
	case record.String:
		m[keyValue] = rec.Str
	default:
		return cderrors.Invalid
	}

	b, err := cbor.Marshal(m)
	if err != nil {
		return cderrors.Invalid
	}

	if err := e.reserve(len(b)); err != nil {
		return err
	}
	e.emit(b)

	return nil
}

// Close closes the array and reports the total byte length (real or
// simulated).
func (e *Encoder) Close() (int, error) {
	if e.closed {
		return 0, cderrors.Invalid
	}
	if err := e.reserve(1); err != nil {
		return 0, err
	}
	e.emit([]byte{0xff})
	e.closed = true
	return e.written, nil
}

// reserve fails with NoSpace if n more bytes would exceed the limit.
func (e *Encoder) reserve(n int) error {
	if e.written+n > e.limit {
		return cderrors.NoSpace
	}
	return nil
}

// emit accounts n bytes and, outside simulation mode, writes them.
func (e *Encoder) emit(b []byte) {
	if !e.simulate {
		// The buffer was sized by the caller to hold everything that
		// passed reserve(); a short write here would mean the caller
		// broke that contract, which is a programmer error, not a
		// runtime condition to propagate.
		if _, err := e.w.Write(b); err != nil {
			panic(err)
		}
	}
	e.written += len(b)
}
