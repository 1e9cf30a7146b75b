package rdlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derMihai/condalf/pkg/record"
)

type fakeStream struct {
	puts   []record.Record
	closed bool
	flushed bool
}

func (f *fakeStream) Put(rec *record.Record) error {
	f.puts = append(f.puts, *rec)
	return nil
}

func (f *fakeStream) Flush() error {
	f.flushed = true
	return nil
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func fixedClock(sec uint64) func() record.Timestamp {
	return func() record.Timestamp { return record.Timestamp{Seconds: sec} }
}

func TestLogDropsWhenDisabled(t *testing.T) {
	Disable()
	Errorf("should be dropped, nothing is enabled")
}

func TestLogRoutesThroughEnabledStream(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(100))
	defer Disable()

	Errorf("disk at %d%%", 90)

	require.Len(t, fs.puts, 1)
	assert.Equal(t, "ERR", fs.puts[0].Name)
	assert.Equal(t, record.String, fs.puts[0].Type)
	assert.Equal(t, "disk at 90%", fs.puts[0].Str)
}

func TestLogDropsOnZeroClock(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(0))
	defer Disable()

	Warnf("clock not ready yet")

	assert.Empty(t, fs.puts)
}

func TestLogDropsOutOfRangeLevel(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(100))
	defer Disable()

	Log(Level(0), "invalid level")
	Log(Level(99), "invalid level")

	assert.Empty(t, fs.puts)
}

func TestEnableClosesPreviousStream(t *testing.T) {
	first := &fakeStream{}
	second := &fakeStream{}

	Enable(first, fixedClock(1))
	Enable(second, fixedClock(1))
	defer Disable()

	assert.True(t, first.closed)
	assert.False(t, second.closed)
}

func TestFlushDelegatesToStream(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(1))
	defer Disable()

	Flush()

	assert.True(t, fs.flushed)
}

func TestLogTruncatesMessageToDefaultMaxLen(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(1))
	defer Disable()

	long := ""
	for i := 0; i < DefaultMaxLen*2; i++ {
		long += "x"
	}
	Errorf("%s", long)

	require.Len(t, fs.puts, 1)
	assert.Len(t, fs.puts[0].Str, DefaultMaxLen)
}

func TestSetMaxLenOverridesCap(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(1))
	defer Disable()
	SetMaxLen(8)

	Errorf("0123456789abcdef")

	require.Len(t, fs.puts, 1)
	assert.Equal(t, "01234567", fs.puts[0].Str)
}

func TestSetMaxLenNonPositiveRestoresDefault(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(1))
	defer Disable()
	SetMaxLen(8)
	SetMaxLen(0)

	long := ""
	for i := 0; i < DefaultMaxLen*2; i++ {
		long += "y"
	}
	Errorf("%s", long)

	require.Len(t, fs.puts, 1)
	assert.Len(t, fs.puts[0].Str, DefaultMaxLen)
}

func TestDisableClosesStream(t *testing.T) {
	fs := &fakeStream{}
	Enable(fs, fixedClock(1))

	Disable()

	assert.True(t, fs.closed)
	Infof("dropped after disable")
	assert.Empty(t, fs.puts)
}
