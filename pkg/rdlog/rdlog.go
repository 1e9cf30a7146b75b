// Package rdlog implements the Remote Diagnostics Log (spec.md §4.K):
// a process-wide sink for free-form diagnostic messages, carried as
// String records through whatever streams.Stream is currently
// enabled. It exists so a constrained node can ship its own log lines
// out through the same envelope/transport path as its telemetry,
// instead of needing a second logging channel.
package rdlog

import (
	"fmt"
	"sync"

	"github.com/derMihai/condalf/pkg/record"
	"github.com/derMihai/condalf/pkg/streams"
)

// DefaultMaxLen is the longest formatted message Log will emit,
// matching the original's RDLOG_LOG_MAXLEN: the encoding buffer behind
// a diagnostics logger is sized as queue_len * RDLOG_LOG_MAXLEN, so an
// unbounded message could overrun a record the configured logger has
// no room left to hold.
const DefaultMaxLen = 64

// Level is a diagnostic severity, ordered least to most verbose.
type Level int

const (
	// LevelErr through LevelDbg are the only valid levels; zero is reserved
	// so an accidentally zero-valued Level is silently dropped rather
	// than logged under a wrong name.
	LevelErr Level = iota + 1
	LevelWrn
	LevelInf
	LevelDbg
)

var levelNames = [...]string{"", "ERR", "WRN", "INF", "DBG"}

var (
	mu     sync.Mutex
	stream streams.Stream
	timeFn func() record.Timestamp
	maxLen = DefaultMaxLen
)

// Enable routes subsequent Log calls through stream, stamping each
// record via timeFn. Any previously enabled stream is closed first.
// timeFn may be nil, in which case every record carries the zero
// Timestamp and Log becomes a silent no-op — mirroring the C
// original's rule that a zero-second timestamp means "no clock
// available yet, don't log". The per-message length cap is reset to
// DefaultMaxLen; call SetMaxLen after Enable to override it.
func Enable(s streams.Stream, timeFn_ func() record.Timestamp) {
	mu.Lock()
	defer mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	stream = s
	timeFn = timeFn_
	maxLen = DefaultMaxLen
}

// SetMaxLen caps every subsequent Log call's formatted message at n
// bytes, truncating anything longer. n <= 0 restores DefaultMaxLen.
func SetMaxLen(n int) {
	mu.Lock()
	defer mu.Unlock()

	if n <= 0 {
		n = DefaultMaxLen
	}
	maxLen = n
}

// Disable closes the active stream, if any, and stops logging.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if stream != nil {
		stream.Close()
		stream = nil
	}
}

// Flush forces any buffered diagnostic records out now.
func Flush() {
	mu.Lock()
	defer mu.Unlock()

	if stream != nil {
		stream.Flush()
	}
}

// truncate cuts s to at most n bytes, mirroring vsnprintf's behavior
// against a fixed-size buffer rather than growing one to fit.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Log formats and emits a diagnostic record at the given level. It is
// silent whenever no stream is enabled, the level is out of range, or
// the configured clock reports a zero timestamp. The formatted
// message is capped at maxLen bytes (DefaultMaxLen unless SetMaxLen
// was called), the same bound the original enforces via vsnprintf
// against a fixed RDLOG_LOG_MAXLEN buffer, so a long diagnostic can
// never produce a record the configured logger's encoding buffer
// can't hold.
func Log(level Level, format string, args ...interface{}) {
	if level < LevelErr || level > LevelDbg {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	if stream == nil {
		return
	}

	var ts record.Timestamp
	if timeFn != nil {
		ts = timeFn()
	}
	if ts.Seconds == 0 {
		return
	}

	rec := record.Record{
		Name:      levelNames[level],
		Timestamp: ts,
		Unit:      record.UnitNone,
		Type:      record.String,
		Str:       truncate(fmt.Sprintf(format, args...), maxLen),
	}

	if err := stream.Put(&rec); err != nil {
		rec.FreeData()
	}
}

// Errorf, Warnf, Infof and Debugf are convenience wrappers over Log.
func Errorf(format string, args ...interface{}) { Log(LevelErr, format, args...) }
func Warnf(format string, args ...interface{})  { Log(LevelWrn, format, args...) }
func Infof(format string, args ...interface{})  { Log(LevelInf, format, args...) }
func Debugf(format string, args ...interface{}) { Log(LevelDbg, format, args...) }
