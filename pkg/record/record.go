// Package record defines the value type that flows through every
// ConDaLF component: a named, timestamped, typed measurement with an
// optional unit, plus the owned/borrowed string discipline the
// serializer and logger rely on.
package record

// Type tags the payload union carried by a Record.
type Type uint8

const (
	// Empty is the zero value and never encodes successfully.
	Empty Type = iota
	U32
	I32
	String
)

// Timestamp is seconds plus a microsecond remainder, matching the
// original's timex_t. Double returns the IEEE-754 seconds value the
// SenML encoder writes under tag 6.
type Timestamp struct {
	Seconds uint64
	Micros  uint32
}

// Double returns seconds + microseconds*1e-6.
func (t Timestamp) Double() float64 {
	return float64(t.Seconds) + float64(t.Micros)/1e6
}

// Base is the optional per-envelope header applied once, copied by
// value into the serializer (spec.md §3 "Record Base").
type Base struct {
	Name string
}

// Record is a named, timestamped, typed telemetry sample.
//
// Name is borrowed: it is assumed to come from a long-lived string
// table (a literal, a config value) and Record never frees it. Str is
// owned by whichever holder currently holds the Record when
// Type == String; Move transfers that ownership, Copy duplicates the
// value (cheap in Go, since strings are immutable), and FreeData
// releases it. Go's garbage collector makes "free" a formality, but
// the discipline still matters: it is what lets Put give its
// one-round-trip guarantee (a record whose payload has been moved away
// must not be read again by its original holder).
type Record struct {
	Name      string
	Timestamp Timestamp
	Unit      Unit
	Type      Type
	U32       uint32
	I32       int32
	Str       string
}

// Move transfers dst from src and leaves src as an empty Record, the
// same deep-null the original's record_move performs on the source's
// string pointer.
func Move(dst, src *Record) {
	*dst = *src
	*src = Record{}
}

// Copy duplicates src into dst. Because Go strings are immutable value
// types, this never aliases a mutable buffer the way the original's
// malloc'd copy does; it is still named Copy (not an assignment) to
// keep the ownership vocabulary consistent at call sites.
func Copy(dst *Record, src *Record) {
	*dst = *src
}

// FreeData releases r's owned payload. It is a no-op under the
// garbage collector but documents, at every call site that mirrors
// the original's free_data calls, exactly where ownership of a string
// payload ends.
func (r *Record) FreeData() {
	if r.Type == String {
		r.Str = ""
	}
}
