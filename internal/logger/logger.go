// Package logger implements the Logger (spec.md §4.J): the sole
// streams.Stream implementation, combining a Record Serializer with a
// transfer.Driver so that callers see one Put/Flush/Close surface
// regardless of what the envelopes are ultimately handed to.
package logger

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/derMihai/condalf/internal/metrics"
	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
	"github.com/derMihai/condalf/pkg/serializer"
	"github.com/derMihai/condalf/pkg/streams"
	"github.com/derMihai/condalf/pkg/transfer"
	"github.com/derMihai/condalf/pkg/vstorage"
)

var _ streams.Stream = (*Logger)(nil)

// tracer emits spans around Put; it resolves to a no-op implementation
// until the composition root registers a real TracerProvider, so
// every logger carries the instrumentation point at zero runtime cost
// by default.
var tracer = otel.Tracer("github.com/derMihai/condalf/internal/logger")

// Config parameterizes a new Logger.
type Config struct {
	// Name identifies this logger instance in logs and metrics.
	Name string
	// Base prefixes every record's name at decoding time; see
	// pkg/senml's Encoder for the exact framing.
	Base record.Base
	// RecordQueueSize is the serializer ring's capacity; must be a
	// power of two.
	RecordQueueSize int
	// EncodingBufSize is the size of each output buffer handed to the
	// serializer; a new one of this size is allocated on every swap.
	EncodingBufSize int
	// Driver receives completed envelopes via TrySend.
	Driver transfer.Driver
	Logger *logrus.Logger
}

// Logger is thread-safe and never blocks on I/O: Put only ever
// touches in-memory structures and dispatches transfer work
// asynchronously through Driver.TrySend.
type Logger struct {
	mu      sync.Mutex
	name    string
	ser     *serializer.Serializer
	bufSize int
	driver  transfer.Driver
	logger  *logrus.Logger
}

// New allocates a logger instance with its own serializer and initial
// output buffer.
func New(cfg Config) (*Logger, error) {
	if cfg.Driver == nil || cfg.EncodingBufSize == 0 {
		return nil, cderrors.Invalid
	}

	buf := make([]byte, cfg.EncodingBufSize)
	ser, err := serializer.Init(buf, cfg.RecordQueueSize, cfg.Base)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Logger{
		name:    cfg.Name,
		ser:     ser,
		bufSize: cfg.EncodingBufSize,
		driver:  cfg.Driver,
		logger:  logger,
	}, nil
}

// Put ingests rec, making a private copy up front so that on any
// error the caller's record is provably untouched — the same
// copy-first discipline the C original's _logg_put uses to keep its
// "don't touch rec on error" promise. Unlike the C original, a record
// that arrives with the ring already full is only accepted once the
// just-drained batch has actually been handed to the driver: a
// driver that keeps refusing delivery turns the ring's capacity into
// a hard backpressure signal (NoSpace) instead of an unbounded sink
// for data nothing downstream will ever receive.
func (l *Logger) Put(rec *record.Record) error {
	_, span := tracer.Start(context.Background(), "condalf.logger.put")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	var nrec record.Record
	record.Copy(&nrec, rec)

	putErr := l.ser.Put(&nrec)

	switch {
	case putErr == nil:
		l.reportGauges()
		metrics.RecordsAccepted.WithLabelValues(l.name).Inc()
		rec.FreeData()
		return nil

	case errors.Is(putErr, cderrors.TryAgain), errors.Is(putErr, cderrors.NoSpace):
		wasNoSpace := errors.Is(putErr, cderrors.NoSpace)

		swapErr := l.swapAndSend()
		if swapErr != nil && !errors.Is(swapErr, cderrors.TryAgain) {
			l.logger.WithError(swapErr).WithField("logger", l.name).Warn("swap/send failed")
		}

		if wasNoSpace {
			// The ring was full and nrec was never accepted into it. If
			// the batch we just drained couldn't be handed to the driver
			// either, the ring has nowhere to put nrec's data once it's
			// this backed up: surface NoSpace rather than silently
			// accepting a record we have no room left to deliver.
			if swapErr != nil && !errors.Is(swapErr, cderrors.TryAgain) {
				nrec.FreeData()
				metrics.RecordsRejected.WithLabelValues(l.name, rejectReason(cderrors.NoSpace)).Inc()
				return cderrors.NoSpace
			}

			putErr = l.ser.Put(&nrec)
			if putErr != nil && !errors.Is(putErr, cderrors.TryAgain) {
				nrec.FreeData()
				metrics.RecordsRejected.WithLabelValues(l.name, rejectReason(putErr)).Inc()
				return putErr
			}
		}

		l.reportGauges()
		metrics.RecordsAccepted.WithLabelValues(l.name).Inc()
		rec.FreeData()
		return nil

	default:
		nrec.FreeData()
		metrics.RecordsRejected.WithLabelValues(l.name, rejectReason(putErr)).Inc()
		return putErr
	}
}

// Flush drains the serializer completely, swapping and sending as
// many times as necessary.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Logger) flushLocked() error {
	for {
		swapErr := l.swapAndSend()
		if swapErr != nil && !errors.Is(swapErr, cderrors.TryAgain) {
			return swapErr
		}
		if !errors.Is(swapErr, cderrors.TryAgain) {
			return nil
		}
	}
}

// Close flushes remaining data and invalidates the serializer.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	flushErr := l.flushLocked()
	if _, err := l.ser.Swap(nil); err != nil {
		return err
	}
	return flushErr
}

// swapAndSend performs one buffer swap and hands the resulting
// envelope to the driver. Its return value mirrors Serializer.Swap's:
// TryAgain means more records remain queued past this swap.
func (l *Logger) swapAndSend() error {
	newBuf := make([]byte, l.bufSize)
	old, swapErr := l.ser.Swap(newBuf)
	if swapErr != nil && !errors.Is(swapErr, cderrors.TryAgain) {
		return swapErr
	}

	if err := l.sendBuffer(old); err != nil {
		return err
	}

	return swapErr
}

func (l *Logger) sendBuffer(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	metrics.EnvelopesSwapped.WithLabelValues(l.name).Inc()
	metrics.EnvelopeBytes.WithLabelValues(l.name).Observe(float64(len(buf)))

	vf := vstorage.Open(buf, true, true)
	name := l.name
	logger := l.logger
	job := &transfer.Job{
		File: vf,
		Callback: func(err error) {
			if err != nil {
				logger.WithError(err).WithField("logger", name).Warn("envelope transfer failed")
			}
			vf.Close()
		},
	}

	if err := l.driver.TrySend(job); err != nil {
		vf.Close()
		return err
	}

	return nil
}

func (l *Logger) reportGauges() {
	metrics.RingFill.WithLabelValues(l.name).Set(float64(l.ser.Fill()))
	metrics.FitCount.WithLabelValues(l.name).Set(float64(l.ser.FitCount()))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, cderrors.NoSpace):
		return "ring_full"
	case errors.Is(err, cderrors.NoBuffers):
		return "record_too_large"
	case errors.Is(err, cderrors.Invalid):
		return "invalidated"
	default:
		return "error"
	}
}
