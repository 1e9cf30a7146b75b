// Package metrics exposes the Prometheus collectors for the ambient
// observability layer: none of this is part of any component's
// functional contract, it is the instrumentation a deployed instance
// of this pipeline carries regardless of that silence.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	RecordsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condalf_records_accepted_total",
			Help: "Records that reached a serializer's ring buffer.",
		},
		[]string{"logger"},
	)

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condalf_records_rejected_total",
			Help: "Records a logger's Put failed to accept, by error kind.",
		},
		[]string{"logger", "reason"},
	)

	RingFill = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "condalf_ring_fill",
			Help: "Current serializer ring occupancy.",
		},
		[]string{"logger"},
	)

	FitCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "condalf_fit_count",
			Help: "Records currently provably encodable into the active buffer.",
		},
		[]string{"logger"},
	)

	EnvelopesSwapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condalf_envelopes_swapped_total",
			Help: "Serializer buffer swaps that produced a non-empty envelope.",
		},
		[]string{"logger"},
	)

	EnvelopeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "condalf_envelope_bytes",
			Help:    "Size in bytes of emitted envelopes.",
			Buckets: prometheus.ExponentialBuckets(32, 2, 10),
		},
		[]string{"logger"},
	)

	PoolFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "condalf_pool_files",
			Help: "Conforming files currently in an LTB instance's pool.",
		},
		[]string{"ltb"},
	)

	DispatchMailboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "condalf_ltb_dispatch_mailbox_depth",
			Help: "Pending units in the LTB dispatch worker's mailbox.",
		},
	)

	PublishAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "condalf_publish_attempts_total",
			Help: "LTB publication attempts started.",
		},
	)

	PublishSuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "condalf_publish_success_total",
			Help: "LTB publication ticks that sent and unlinked a file.",
		},
	)

	PublishFailure = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "condalf_publish_failure_total",
			Help: "LTB publication ticks that failed: transport error, unreadable file, or discarded on checksum mismatch.",
		},
	)

	PublisherJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condalf_publisher_jobs_total",
			Help: "Publisher driver jobs, by terminal status.",
		},
		[]string{"status"},
	)

	PublisherRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "condalf_publisher_retries_total",
			Help: "Publisher driver retry attempts against the transport.",
		},
	)

	SamplerTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condalf_sampler_ticks_total",
			Help: "Sensor sampling ticks, by outcome (recorded/skipped/rejected).",
		},
		[]string{"sampler", "outcome"},
	)
)

var registerOnce sync.Once

// safeRegister registers collector exactly once per process even if
// this package's init path runs more than once (e.g. across tests
// that import it in separate packages sharing the default registry).
func safeRegister(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// Server exposes /metrics and /healthz over HTTP — the composition
// root's observability endpoint, grounded in the teacher's own
// MetricsServer (a bare net/http.Server wrapping promhttp.Handler).
type Server struct {
	http   *http.Server
	logger *logrus.Logger
}

// NewServer builds a metrics HTTP server bound to addr.
func NewServer(addr string, logger *logrus.Logger) *Server {
	registerOnce.Do(func() {
		safeRegister(RecordsAccepted)
		safeRegister(RecordsRejected)
		safeRegister(RingFill)
		safeRegister(FitCount)
		safeRegister(EnvelopesSwapped)
		safeRegister(EnvelopeBytes)
		safeRegister(PoolFiles)
		safeRegister(DispatchMailboxDepth)
		safeRegister(PublishAttempts)
		safeRegister(PublishSuccess)
		safeRegister(PublishFailure)
		safeRegister(PublisherJobsTotal)
		safeRegister(PublisherRetries)
		safeRegister(SamplerTicks)
	})

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		http:   &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start runs the metrics server in a background goroutine.
func (s *Server) Start() {
	s.logger.WithField("addr", s.http.Addr).Info("starting metrics server")
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics server error")
		}
	}()
}

// Stop shuts the metrics server down.
func (s *Server) Stop() error {
	return s.http.Close()
}
