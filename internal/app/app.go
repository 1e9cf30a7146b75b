// Package app wires the configured loggers, LTB pools, publishers and
// hex sinks into a running instance, and owns the process's HTTP
// surface for health, metrics and debug operations.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/derMihai/condalf/internal/config"
	"github.com/derMihai/condalf/internal/hexsink"
	"github.com/derMihai/condalf/internal/logger"
	"github.com/derMihai/condalf/internal/ltb"
	"github.com/derMihai/condalf/internal/metrics"
	"github.com/derMihai/condalf/internal/publisher"
	"github.com/derMihai/condalf/internal/sampler"
	"github.com/derMihai/condalf/internal/transport"
	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/rdlog"
	"github.com/derMihai/condalf/pkg/record"
	"github.com/derMihai/condalf/pkg/streams"
	"github.com/derMihai/condalf/pkg/transfer"
)

// App is the fully wired runtime instance.
type App struct {
	cfg    *config.Config
	logger *logrus.Logger

	drivers  map[string]transfer.Driver // publishers + hex sinks, by config name
	ltbs     map[string]*ltb.LTB
	loggers  map[string]streams.Stream
	samplers []*sampler.Sampler

	metricsServer  *metrics.Server
	debugServer    *http.Server
	reloader       *config.Reloader
	tracerProvider *sdktrace.TracerProvider

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads configFile, validates it, and constructs every component
// it names, failing fast on the first wiring error.
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:     cfg,
		logger:  log,
		drivers: make(map[string]transfer.Driver),
		ltbs:    make(map[string]*ltb.LTB),
		loggers: make(map[string]streams.Stream),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := app.initDrivers(); err != nil {
		cancel()
		return nil, err
	}
	if err := app.initLTBs(); err != nil {
		cancel()
		return nil, err
	}
	if err := app.initLoggers(); err != nil {
		cancel()
		return nil, err
	}
	if err := app.initSamplers(); err != nil {
		cancel()
		return nil, err
	}
	app.initRDLog()

	app.initTracing()

	app.metricsServer = metrics.NewServer(cfg.MetricsAddr, log)
	app.initDebugServer()
	app.initReloader(configFile)

	return app, nil
}

// initTracing registers a real, process-global TracerProvider so the
// spans each component already emits (internal/ltb, internal/publisher,
// internal/logger) are recorded instead of discarded by the otel
// no-op default. No exporter is attached: the wire-protocol client
// that would ship spans off-device is, like the transport itself, an
// external collaborator this module doesn't assume — but the sampler
// and span processor pipeline is real, so a caller that does want to
// see spans only needs to attach an exporter, not build the provider
// from scratch.
func (a *App) initTracing() {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	a.tracerProvider = tp
}

// initReloader watches configFile, if any, for changes and applies the
// subset of settings that are safe to change without rewiring the
// running driver/logger graph: log level, log format and the
// dispatch publish threshold. Everything else (loggers, LTBs,
// publishers, hex sinks) requires a process restart to take effect.
func (a *App) initReloader(configFile string) {
	if configFile == "" {
		return
	}

	reloader, err := config.NewReloader(configFile, a.logger, func(cfg *config.Config) {
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			a.logger.SetLevel(level)
		}
		if cfg.LogFormat == "json" {
			a.logger.SetFormatter(&logrus.JSONFormatter{})
		} else {
			a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
		ltb.Configure(cfg.DispatchFilesLimit, nil)
	}, func(err error) {
		a.logger.WithError(err).Warn("config reload rejected, keeping running configuration")
	})
	if err != nil {
		a.logger.WithError(err).Warn("config watcher unavailable, hot reload disabled")
		return
	}

	a.reloader = reloader
	a.reloader.Start()
}

func newLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		l.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

func (a *App) initDrivers() error {
	udp := transport.UDP{}

	for _, pc := range a.cfg.Publishers {
		p, err := publisher.New(publisher.Config{
			Transport:  udp,
			Resource:   transfer.RemoteResource{Address: pc.Address, Port: pc.Port, Path: pc.Path},
			RetryCount: pc.RetryCount,
			Logger:     a.logger,
		})
		if err != nil {
			return fmt.Errorf("publisher %q: %w", pc.Name, err)
		}
		a.drivers[pc.Name] = p
	}

	for _, hc := range a.cfg.HexSinks {
		a.drivers[hc.Name] = hexsink.New(hc.Name, a.logger.Writer())
	}

	return nil
}

func (a *App) initLTBs() error {
	ltb.Configure(a.cfg.DispatchFilesLimit, nil)

	for _, lc := range a.cfg.LTBs {
		var sender transfer.Driver
		if lc.Sender != "" {
			sender = a.drivers[lc.Sender]
		}

		inst, err := ltb.New(ltb.Config{
			PoolDir: lc.PoolDir,
			Name:    lc.Name,
			Sender:  sender,
			Logger:  a.logger,
		})
		if err != nil {
			return fmt.Errorf("ltb %q: %w", lc.Name, err)
		}
		a.ltbs[lc.Name] = inst
		a.drivers[lc.Name] = inst
	}

	return nil
}

func (a *App) initLoggers() error {
	for _, lc := range a.cfg.Loggers {
		driver, ok := a.drivers[lc.Driver]
		if !ok {
			return fmt.Errorf("logger %q: unknown driver %q", lc.Name, lc.Driver)
		}

		l, err := logger.New(logger.Config{
			Name:            lc.Name,
			Base:            record.Base{Name: lc.BaseName},
			RecordQueueSize: lc.RecordQueueSize,
			EncodingBufSize: lc.EncodingBufSize,
			Driver:          driver,
			Logger:          a.logger,
		})
		if err != nil {
			return fmt.Errorf("logger %q: %w", lc.Name, err)
		}
		a.loggers[lc.Name] = l
	}

	return nil
}

// initSamplers builds a synthetic sensor loop (usecase.c's light/temp
// probe) for each configured sampler, bound to its named logger. The
// real ADC and NTP gate usecase.c relies on are out of this module's
// scope, so every sampler here runs a SyntheticSource and is always
// considered time-ready.
func (a *App) initSamplers() error {
	for i, sc := range a.cfg.Samplers {
		sink, ok := a.loggers[sc.Logger]
		if !ok {
			return fmt.Errorf("sampler %q: unknown logger %q", sc.Name, sc.Logger)
		}

		s, err := sampler.New(sampler.Config{
			Name:   sc.Name,
			Period: time.Duration(sc.PeriodMS) * time.Millisecond,
			Source: sampler.NewSyntheticSource(time.Now().UnixNano() + int64(i)),
			Sink:   sink,
			Logger: a.logger,
		})
		if err != nil {
			return fmt.Errorf("sampler %q: %w", sc.Name, err)
		}
		a.samplers = append(a.samplers, s)
	}

	return nil
}

func (a *App) initRDLog() {
	if a.cfg.RDLog == "" {
		return
	}
	stream, ok := a.loggers[a.cfg.RDLog]
	if !ok {
		a.logger.WithField("rdlog", a.cfg.RDLog).Warn("rdlog logger not found, diagnostics log disabled")
		return
	}
	rdlog.Enable(stream, func() record.Timestamp {
		now := time.Now()
		return record.Timestamp{Seconds: uint64(now.Unix()), Micros: uint32(now.Nanosecond() / 1000)}
	})
	rdlog.SetMaxLen(a.cfg.RDLogMaxLen)
}

func (a *App) initDebugServer() {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/debug/force-publish", a.handleForcePublish).Methods(http.MethodPost)

	a.debugServer = &http.Server{Addr: a.cfg.DebugAddr, Handler: router}
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := ltb.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (a *App) handleForcePublish(w http.ResponseWriter, r *http.Request) {
	result := make(chan error, 1)
	err := ltb.ForcePublish(func(err error) { result <- err })
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	select {
	case err := <-result:
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case <-time.After(30 * time.Second):
		http.Error(w, cderrors.TryAgain.Error(), http.StatusGatewayTimeout)
	}
}

// Start brings up the metrics and debug HTTP servers.
func (a *App) Start() error {
	a.metricsServer.Start()

	for _, s := range a.samplers {
		s.Start()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("debug server error")
		}
	}()

	a.logger.WithFields(logrus.Fields{
		"loggers":    len(a.loggers),
		"ltbs":       len(a.ltbs),
		"publishers": len(a.cfg.Publishers),
		"samplers":   len(a.samplers),
	}).Info("condalf started")

	return nil
}

// Stop flushes and closes every logger, deletes every LTB and
// publisher driver, and shuts down the HTTP servers.
func (a *App) Stop() error {
	for _, s := range a.samplers {
		s.Stop()
	}

	rdlog.Flush()
	rdlog.Disable()

	for name, l := range a.loggers {
		if err := l.Close(); err != nil {
			a.logger.WithError(err).WithField("logger", name).Warn("error closing logger")
		}
	}

	for name, inst := range a.ltbs {
		if err := inst.Delete(); err != nil {
			a.logger.WithError(err).WithField("ltb", name).Warn("error deleting ltb")
		}
	}

	for name, d := range a.drivers {
		if _, isLTB := a.ltbs[name]; isLTB {
			continue
		}
		_ = d.Delete()
	}

	if a.reloader != nil {
		_ = a.reloader.Stop()
	}

	_ = a.debugServer.Close()
	_ = a.metricsServer.Stop()
	_ = a.tracerProvider.Shutdown(context.Background())

	a.cancel()
	a.wg.Wait()

	return nil
}

// Run blocks until SIGINT or SIGTERM, then shuts down cleanly.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.Stop()
}

// Logger returns the named logger instance, for callers (e.g. a
// sensor sampling loop) that need to Put records directly.
func (a *App) Logger(name string) (streams.Stream, bool) {
	s, ok := a.loggers[name]
	return s, ok
}
