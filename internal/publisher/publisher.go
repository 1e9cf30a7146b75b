// Package publisher implements the Publisher Driver (spec.md §4.I): a
// transfer.Driver that hands jobs to a remote Transport, retrying a
// configurable number of times before giving up.
//
// The C original runs a single process-wide sender thread shared by
// every publisher instance. Go goroutines are cheap enough that each
// Publisher here owns its own worker instead — one goroutine per
// remote resource rather than one for the whole process — which
// removes the need for the original's per-job ownership tag
// (job->_drv_priv) without changing the driver's externally visible
// behavior.
package publisher

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/derMihai/condalf/internal/metrics"
	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/transfer"
)

// tracer resolves to a no-op implementation until the composition
// root registers a real TracerProvider.
var tracer = otel.Tracer("github.com/derMihai/condalf/internal/publisher")

// Transport performs the actual bytes-on-the-wire delivery. Addressing,
// connection setup and the wire protocol itself are this interface's
// implementor's concern, not this package's (spec.md §1's external
// collaborator).
type Transport interface {
	Send(res transfer.RemoteResource, r io.Reader) error
}

// jobQueueLen bounds how many TrySend jobs may queue for the worker
// before TrySend starts returning WouldBlock.
const jobQueueLen = 4

// Config parameterizes a new Publisher.
type Config struct {
	Transport  Transport
	Resource   transfer.RemoteResource
	RetryCount int
	Logger     *logrus.Logger
}

// Publisher is a transfer.Driver backed by a Transport. TrySend queues
// work for a background worker; Send runs synchronously on the
// caller's goroutine. Both share the same retry logic.
type Publisher struct {
	transport  Transport
	resource   transfer.RemoteResource
	retryCount int
	logger     *logrus.Logger

	jobs chan *transfer.Job
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New builds a Publisher and starts its worker goroutine.
func New(cfg Config) (*Publisher, error) {
	if cfg.Transport == nil {
		return nil, cderrors.Invalid
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Publisher{
		transport:  cfg.Transport,
		resource:   cfg.Resource,
		retryCount: cfg.RetryCount,
		logger:     logger,
		jobs:       make(chan *transfer.Job, jobQueueLen),
	}

	p.wg.Add(1)
	go p.worker()

	return p, nil
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		err := p.sendWithRetry(job)
		if job.Callback != nil {
			job.Callback(err)
		}
	}
}

// sendWithRetry attempts delivery up to retryCount+1 times, rewinding
// job.File between attempts when it supports seeking.
func (p *Publisher) sendWithRetry(job *transfer.Job) error {
	_, span := tracer.Start(context.Background(), "condalf.publisher.send")
	defer span.End()

	var err error
	for attempt := 0; attempt <= p.retryCount; attempt++ {
		if attempt > 0 {
			metrics.PublisherRetries.Inc()
			if seeker, ok := job.File.(io.Seeker); ok {
				if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
					err = serr
					break
				}
			}
		}

		err = p.transport.Send(p.resource, job.File)
		if err == nil {
			break
		}

		p.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"address": p.resource.Address,
		}).Warn("publish attempt failed")
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.PublisherJobsTotal.WithLabelValues(status).Inc()

	return err
}

// TrySend enqueues job for the worker without blocking. A full queue
// is reported as WouldBlock; a worker that has already been stopped
// via Delete is reported as NoSuchProcess rather than sending on the
// closed jobs channel.
func (p *Publisher) TrySend(job *transfer.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return cderrors.NoSuchProcess
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return cderrors.WouldBlock
	}
}

// Send delivers job synchronously. Unlike the worker path, Callback
// fires only on success, matching the C original's _pub_send.
func (p *Publisher) Send(job *transfer.Job) error {
	err := p.sendWithRetry(job)
	if err == nil && job.Callback != nil {
		job.Callback(nil)
	}
	return err
}

// Recv is not meaningful for an outbound-only driver.
func (p *Publisher) Recv(job *transfer.Job) error { return cderrors.Invalid }

// Delete closes the job queue and waits for any in-flight or queued
// jobs to finish, mirroring the C original's close_cond wait. Any
// TrySend racing with Delete either lands before the close (and is
// drained normally) or observes stopped and returns NoSuchProcess.
func (p *Publisher) Delete() error {
	p.mu.Lock()
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
