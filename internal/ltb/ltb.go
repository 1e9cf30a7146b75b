// Package ltb implements the Long-Term Buffer driver (spec.md §4.H): a
// transfer.Driver that stages incoming envelopes into a filesystem
// pool and, once a publish condition is met, hands the oldest staged
// file off to a downstream sender.
//
// Every LTB instance shares one process-wide dispatch worker. All
// mutations of pool membership, file counts and the publishing flag
// happen exclusively on that worker goroutine, which is what lets the
// rest of the package run without a single mutex around its own
// state — the same trick Grand Central Dispatch-style serial queues
// buy the C original this package is ported from.
package ltb

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/derMihai/condalf/internal/datapool"
	"github.com/derMihai/condalf/internal/diskstat"
	"github.com/derMihai/condalf/internal/metrics"
	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/transfer"
)

// tracer resolves to a no-op implementation until the composition
// root registers a real TracerProvider.
var tracer = otel.Tracer("github.com/derMihai/condalf/internal/ltb")

// mailboxCapacity bounds how many pending dispatch units may queue
// before TrySend-style async dispatch starts returning WouldBlock.
const mailboxCapacity = 64

type dispatchUnit struct {
	fn   func()
	done chan struct{}
}

var (
	dispatchOnce sync.Once
	mailbox      chan *dispatchUnit
)

func ensureDispatcher() {
	dispatchOnce.Do(func() {
		mailbox = make(chan *dispatchUnit, mailboxCapacity)
		go dispatchLoop()
	})
}

func dispatchLoop() {
	for unit := range mailbox {
		unit.fn()
		if unit.done != nil {
			close(unit.done)
		}
	}
}

// dispatchAsync enqueues fn for the worker and returns immediately.
// A full mailbox is reported as WouldBlock, matching the C original's
// msg_try_send failure path.
func dispatchAsync(fn func()) error {
	ensureDispatcher()
	select {
	case mailbox <- &dispatchUnit{fn: fn}:
		metrics.DispatchMailboxDepth.Set(float64(len(mailbox)))
		return nil
	default:
		return cderrors.WouldBlock
	}
}

// dispatchSync enqueues fn and blocks until it has run on the worker.
func dispatchSync(fn func()) {
	ensureDispatcher()
	done := make(chan struct{})
	mailbox <- &dispatchUnit{fn: fn, done: done}
	<-done
}

// worker-owned state, touched only from within dispatchLoop (directly,
// or via dispatchSync for callers that need a consistent read).
var state struct {
	instances    []*LTB
	nbFilesLim   uint64
	nbFilesTotal int64
	publishing   bool
	extCond      func() bool
}

// Configure sets the subsystem-wide publish threshold: whenever the
// total number of staged files across all instances reaches filesLim,
// an automatic publish is attempted. extCond, if non-nil, is ANDed
// with that condition (spec.md §4.H.init).
func Configure(filesLim uint64, extCond func() bool) {
	dispatchSync(func() {
		state.nbFilesLim = filesLim
		state.extCond = extCond
	})
}

// LTB is one long-term-buffer instance: a pool directory plus an
// optional downstream sender. It implements transfer.Driver, exposing
// only TrySend and Delete — Send and Recv have no meaning for a
// store-and-forward pool and report Invalid.
type LTB struct {
	pooldir string
	name    string
	sender  transfer.Driver
	logger  *logrus.Logger
}

// Config parameterizes a new LTB instance.
type Config struct {
	// PoolDir is the directory backing this instance's pool. It must
	// be unique across instances and is created if missing.
	PoolDir string
	// Name identifies this instance in logs and metrics.
	Name string
	// Sender, if non-nil, is where publishing hands off staged files.
	// Leave nil to buffer locally without ever publishing.
	Sender transfer.Driver
	Logger *logrus.Logger
}

// New creates an LTB instance and registers it with the shared
// dispatch worker, folding any files already present in PoolDir (a
// restart recovering a pool from a previous run) into the
// process-wide file count.
func New(cfg Config) (*LTB, error) {
	if cfg.PoolDir == "" || cfg.Name == "" {
		return nil, cderrors.Invalid
	}
	if err := os.MkdirAll(cfg.PoolDir, 0o755); err != nil {
		return nil, cderrors.Wrap(cderrors.Invalid, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	l := &LTB{
		pooldir: cfg.PoolDir,
		name:    cfg.Name,
		sender:  cfg.Sender,
		logger:  logger,
	}

	dispatchSync(func() { addInstance(l) })

	return l, nil
}

func addInstance(l *LTB) {
	n, err := datapool.Size(l.pooldir)
	if err != nil {
		n = 0
	}
	state.nbFilesTotal += int64(n)
	state.instances = append(state.instances, l)
	metrics.PoolFiles.WithLabelValues(l.name).Set(float64(n))
}

func removeInstance(l *LTB) {
	for i, x := range state.instances {
		if x == l {
			state.instances = append(state.instances[:i:i], state.instances[i+1:]...)
			break
		}
	}
	n, err := datapool.Size(l.pooldir)
	if err != nil {
		n = 0
	}
	state.nbFilesTotal -= int64(n)
	if state.nbFilesTotal < 0 {
		state.nbFilesTotal = 0
	}
}

// TrySend stages job.File into this instance's pool. It never blocks
// on filesystem I/O itself: the actual work runs on the dispatch
// worker, and job.Callback (if set) fires once that work completes.
// A non-nil return means the job was not accepted at all and
// Callback will never fire.
func (l *LTB) TrySend(job *transfer.Job) error {
	return dispatchAsync(func() {
		err := l.stage(job)
		updatePublishCondition()
		if job.Callback != nil {
			job.Callback(err)
		}
	})
}

// Send is not meaningful for a store-and-forward pool.
func (l *LTB) Send(job *transfer.Job) error { return cderrors.Invalid }

// Recv is not meaningful for a store-and-forward pool.
func (l *LTB) Recv(job *transfer.Job) error { return cderrors.Invalid }

// sizer is satisfied by vstorage.File and lets stage learn an
// envelope's size up front, without reading it, to probe for free
// space before committing any filesystem writes.
type sizer interface {
	Len() int
}

func (l *LTB) stage(job *transfer.Job) error {
	if s, ok := job.File.(sizer); ok {
		if !diskstat.HasRoom(l.pooldir, uint64(s.Len())) {
			return cderrors.NoSpace
		}
	}

	tmp := filepath.Join(l.pooldir, ".incoming-"+l.name)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return cderrors.Wrap(cderrors.Invalid, err)
	}

	_, copyErr := io.Copy(f, job.File)
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(tmp)
		return cderrors.Wrap(cderrors.NoSpace, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return cderrors.Wrap(cderrors.Invalid, closeErr)
	}

	if _, err := datapool.MoveInto(l.pooldir, tmp); err != nil {
		return err
	}

	state.nbFilesTotal++
	metrics.PoolFiles.WithLabelValues(l.name).Inc()

	l.logger.WithFields(logrus.Fields{"ltb": l.name}).Debug("staged envelope")

	return nil
}

// Delete unregisters the instance. Unlike the C original, it does not
// wait for a drain of in-flight jobs: any TrySend already dispatched
// for this instance still completes, since dispatch units run
// strictly in order on the single worker and removal is itself just
// another dispatch unit queued behind them.
func (l *LTB) Delete() error {
	dispatchSync(func() { removeInstance(l) })
	return nil
}

// updatePublishCondition runs on the dispatch worker after every
// stage attempt, successful or not: if not already publishing, and the combined
// file-count and external conditions are met, it kicks off a publish
// pass.
func updatePublishCondition() {
	if state.publishing {
		return
	}
	ext := true
	if state.extCond != nil {
		ext = state.extCond()
	}
	if uint64(state.nbFilesTotal) >= state.nbFilesLim && ext {
		publishNext(nil)
	}
}

// ForcePublish requests an immediate publish pass regardless of the
// configured condition. cb, if non-nil, is invoked on the dispatch
// worker once the pass completes (nil error if there was simply
// nothing to publish). If a publish pass is already running, no second
// pass is started and cb is invoked at once with TryAgain.
func ForcePublish(cb func(error)) error {
	return dispatchAsync(func() {
		if state.publishing {
			if cb != nil {
				cb(cderrors.TryAgain)
			}
			return
		}
		publishNext(cb)
	})
}

// publishNext runs on the dispatch worker. It sends the oldest pooled
// file of the first registered instance (in registration order) that
// has a sender and a non-empty pool, unlinks it on success, and reschedules itself to continue draining
// — recursing through the dispatch queue rather than a loop so other
// pending units (new TrySends) get a turn in between files.
func publishNext(cb func(error)) {
	_, span := tracer.Start(context.Background(), "condalf.ltb.publish")
	defer span.End()

	state.publishing = true

	name, inst, err := firstPublishable()
	if err != nil {
		state.publishing = false
		if cb != nil {
			if errors.Is(err, cderrors.NoEntry) {
				cb(nil)
			} else {
				cb(err)
			}
		}
		return
	}

	metrics.PublishAttempts.Inc()

	if !datapool.VerifyChecksum(name) {
		inst.logger.WithField("file", name).Error("pooled file failed checksum verification, discarding")
		metrics.PublishFailure.Inc()
		os.Remove(name)
		os.Remove(name + ".sum")
		state.nbFilesTotal--
		metrics.PoolFiles.WithLabelValues(inst.name).Dec()

		if err := dispatchAsync(func() { publishNext(cb) }); err != nil {
			state.publishing = false
			if cb != nil {
				cb(err)
			}
		}
		return
	}

	f, err := os.Open(name)
	if err != nil {
		state.publishing = false
		metrics.PublishFailure.Inc()
		if cb != nil {
			cb(cderrors.Wrap(cderrors.Invalid, err))
		}
		return
	}

	sendErr := inst.sender.Send(&transfer.Job{File: f})
	f.Close()

	if sendErr != nil {
		inst.logger.WithError(sendErr).WithField("file", name).Warn("publish failed")
		metrics.PublishFailure.Inc()
		state.publishing = false
		if cb != nil {
			cb(sendErr)
		}
		return
	}

	metrics.PublishSuccess.Inc()

	if err := os.Remove(name); err != nil {
		inst.logger.WithError(err).WithField("file", name).Error("unlink after publish failed")
	} else {
		os.Remove(name + ".sum")
		state.nbFilesTotal--
		metrics.PoolFiles.WithLabelValues(inst.name).Dec()
	}

	if err := dispatchAsync(func() { publishNext(cb) }); err != nil {
		state.publishing = false
		if cb != nil {
			cb(err)
		}
	}
}

// firstPublishable scans registered instances in registration order
// for the first one with a sender that has at least one pooled file.
func firstPublishable() (string, *LTB, error) {
	for _, inst := range state.instances {
		if inst.sender == nil {
			continue
		}
		name, err := datapool.Oldest(inst.pooldir)
		if err == nil {
			return name, inst, nil
		}
		if !errors.Is(err, cderrors.NoEntry) {
			return "", nil, err
		}
	}
	return "", nil, cderrors.NoEntry
}

// Snapshot is a consistent, point-in-time read of subsystem counters,
// useful for a debug/stats HTTP endpoint.
type Snapshot struct {
	FilesTotal int64
	FilesLim   uint64
	Publishing bool
}

// Stats reads the current subsystem counters, routed through the
// dispatch worker so the values are never torn mid-mutation.
func Stats() Snapshot {
	var snap Snapshot
	dispatchSync(func() {
		snap = Snapshot{
			FilesTotal: state.nbFilesTotal,
			FilesLim:   state.nbFilesLim,
			Publishing: state.publishing,
		}
	})
	return snap
}
