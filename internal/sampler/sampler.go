// Package sampler implements the periodic sensor loop from
// original_source/usecase/usecase.c: a light/temperature probe, IIR
// smoothed, converted to percent/Celsius and pushed through a
// streams.Stream on a fixed period. The original drives this off a
// real ADC gated on an NTP time sync; that hardware and network stack
// are out of this module's scope (spec.md §1's external collaborators),
// so Sampler takes a pluggable Source and a Ready gate instead.
package sampler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/derMihai/condalf/internal/metrics"
	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
	"github.com/derMihai/condalf/pkg/streams"
)

// adcMax is the resolution usecase.c samples at (ADC_RES_10BIT).
const adcMax = 1023

// Source produces one raw light/temperature pair per tick, in the
// same 0-1023 range usecase.c's adc_sample returns. Production
// hardware would back this with a real ADC driver; this module ships
// only the synthetic stand-in below.
type Source interface {
	Sample() (light, temp int32)
}

// SyntheticSource wanders two independent values around a midpoint by
// a small random step per tick, clamped to the ADC's range — a
// stand-in for the absent ADC driver, not a model of any real sensor.
type SyntheticSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	light int32
	temp  int32
}

// NewSyntheticSource seeds a SyntheticSource at the ADC range's
// midpoint.
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{
		rng:   rand.New(rand.NewSource(seed)),
		light: adcMax / 2,
		temp:  adcMax / 2,
	}
}

func (s *SyntheticSource) Sample() (light, temp int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.light = clamp(s.light + int32(s.rng.Intn(21)) - 10)
	s.temp = clamp(s.temp + int32(s.rng.Intn(21)) - 10)

	return s.light, s.temp
}

func clamp(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > adcMax {
		return adcMax
	}
	return v
}

// Config parameterizes a Sampler.
type Config struct {
	// Name identifies this sampler in logs and metrics.
	Name string
	// Period is the delay between probes (usecase.c's PROBING_PERIOD).
	Period time.Duration
	// Source supplies raw ADC-range samples each tick.
	Source Source
	// Ready reports whether a timestamp is currently trustworthy
	// (usecase.c's time_is_set gate). A tick is skipped, not queued,
	// while it reports false. Nil means always ready.
	Ready func() bool
	// Now supplies the timestamp stamped on each record. Defaults to
	// time.Now.
	Now    func() time.Time
	Sink   streams.Stream
	Logger *logrus.Logger
}

// Sampler runs the light/temperature probing loop on its own
// goroutine until Stop is called.
type Sampler struct {
	cfg    Config
	logger *logrus.Logger

	sumLight int32
	sumTemp  int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and builds a Sampler without starting its loop.
func New(cfg Config) (*Sampler, error) {
	if cfg.Source == nil || cfg.Sink == nil || cfg.Period <= 0 {
		return nil, cderrors.Invalid
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sampler{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start runs the probing loop on a background goroutine.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and waits for it to return.
func (s *Sampler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Sampler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick converts one raw sample pair the way usecase.c does, except
// that it divides by adcMax (1023) where usecase.c divides by 1024:
// light to a percentage of ADC full-scale, temp to millivolts then to
// Celsius via the LM35's 10mV/degree slope, doubled to correct for
// the board's halved reading. Both conversions feed an independent
// exponential moving average (sum -= sum/10; sum += sample); the
// smoothed sums stay inside the Sampler and are neither emitted nor
// exposed. The records emitted carry the instantaneous converted
// sample, matching usecase.c's recstr_put calls.
func (s *Sampler) tick() {
	if s.cfg.Ready != nil && !s.cfg.Ready() {
		metrics.SamplerTicks.WithLabelValues(s.cfg.Name, "skipped").Inc()
		return
	}

	lightRaw, tempRaw := s.cfg.Source.Sample()

	light := lightRaw * 100 / adcMax
	temp := tempRaw * 3300 / adcMax / 10 * 2

	s.sumLight = s.sumLight - s.sumLight/10 + light
	s.sumTemp = s.sumTemp - s.sumTemp/10 + temp

	now := s.cfg.Now()
	ts := record.Timestamp{
		Seconds: uint64(now.Unix()),
		Micros:  uint32(now.Nanosecond() / 1000),
	}

	lightRec := &record.Record{
		Name:      "light",
		Timestamp: ts,
		Unit:      record.UnitPercent,
		Type:      record.I32,
		I32:       light,
	}
	if err := s.cfg.Sink.Put(lightRec); err != nil {
		s.logger.WithError(err).WithField("sampler", s.cfg.Name).Warn("light sample rejected")
		metrics.SamplerTicks.WithLabelValues(s.cfg.Name, "rejected").Inc()
		return
	}

	tempRec := &record.Record{
		Name:      "temp",
		Timestamp: ts,
		Unit:      record.UnitCelsius,
		Type:      record.I32,
		I32:       temp,
	}
	if err := s.cfg.Sink.Put(tempRec); err != nil {
		s.logger.WithError(err).WithField("sampler", s.cfg.Name).Warn("temp sample rejected")
		metrics.SamplerTicks.WithLabelValues(s.cfg.Name, "rejected").Inc()
		return
	}

	metrics.SamplerTicks.WithLabelValues(s.cfg.Name, "recorded").Inc()
}
