package sampler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
)

type fixedSource struct {
	light, temp int32
}

func (f fixedSource) Sample() (int32, int32) { return f.light, f.temp }

type captureSink struct {
	mu   sync.Mutex
	recs []record.Record
	fail bool
}

func (c *captureSink) Put(rec *record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return cderrors.NoSpace
	}
	c.recs = append(c.recs, *rec)
	return nil
}

func (c *captureSink) Flush() error { return nil }
func (c *captureSink) Close() error { return nil }

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func TestTickConvertsAndEmitsLightAndTemp(t *testing.T) {
	sink := &captureSink{}
	s, err := New(Config{
		Name:   "t",
		Period: time.Hour,
		Source: fixedSource{light: 512, temp: 512},
		Sink:   sink,
	})
	require.NoError(t, err)

	s.tick()

	require.Equal(t, 2, sink.count())
	assert.Equal(t, "light", sink.recs[0].Name)
	assert.Equal(t, record.UnitPercent, sink.recs[0].Unit)
	assert.Equal(t, int32(512*100/adcMax), sink.recs[0].I32)

	assert.Equal(t, "temp", sink.recs[1].Name)
	assert.Equal(t, record.UnitCelsius, sink.recs[1].Unit)
	assert.Equal(t, int32(512*3300/adcMax/10*2), sink.recs[1].I32)
}

func TestTickSkipsWhileNotReady(t *testing.T) {
	sink := &captureSink{}
	s, err := New(Config{
		Name:   "t",
		Period: time.Hour,
		Source: fixedSource{light: 100, temp: 100},
		Ready:  func() bool { return false },
		Sink:   sink,
	})
	require.NoError(t, err)

	s.tick()

	assert.Equal(t, 0, sink.count())
}

func TestTickStopsAtFirstRejection(t *testing.T) {
	sink := &captureSink{fail: true}
	s, err := New(Config{
		Name:   "t",
		Period: time.Hour,
		Source: fixedSource{light: 100, temp: 100},
		Sink:   sink,
	})
	require.NoError(t, err)

	s.tick()

	assert.Equal(t, 0, sink.count())
}

func TestStartAndStopRunsOnSchedule(t *testing.T) {
	sink := &captureSink{}
	s, err := New(Config{
		Name:   "t",
		Period: 10 * time.Millisecond,
		Source: fixedSource{light: 300, temp: 300},
		Sink:   sink,
	})
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool {
		return sink.count() >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestNewRequiresSourceSinkAndPeriod(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, cderrors.Invalid)
}

func TestSyntheticSourceStaysWithinADCRange(t *testing.T) {
	src := NewSyntheticSource(1)
	for i := 0; i < 1000; i++ {
		light, temp := src.Sample()
		require.GreaterOrEqual(t, light, int32(0))
		require.LessOrEqual(t, light, int32(adcMax))
		require.GreaterOrEqual(t, temp, int32(0))
		require.LessOrEqual(t, temp, int32(adcMax))
	}
}
