package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// debounceInterval absorbs the burst of events many editors and
// atomic-rename writers produce for a single logical save.
const debounceInterval = 200 * time.Millisecond

// Reloader watches a config file and re-invokes Load on every change,
// handing the freshly validated Config to OnReload. A Load failure
// leaves the previously running configuration in place and is only
// reported through OnError — the composition root keeps running
// whatever it last successfully loaded.
type Reloader struct {
	path     string
	logger   *logrus.Logger
	onReload func(*Config)
	onError  func(error)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewReloader builds a Reloader for path. Call Start to begin
// watching and Stop to release the underlying fsnotify watcher.
func NewReloader(path string, logger *logrus.Logger, onReload func(*Config), onError func(error)) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Reloader{
		path:     path,
		logger:   logger,
		onReload: onReload,
		onError:  onError,
		watcher:  watcher,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in the background.
func (r *Reloader) Start() {
	r.wg.Add(1)
	go r.watch()
}

// Stop closes the watcher and waits for the watch loop to exit.
func (r *Reloader) Stop() error {
	close(r.done)
	err := r.watcher.Close()
	r.wg.Wait()
	return err
}

func (r *Reloader) watch() {
	defer r.wg.Done()

	var debounce *time.Timer

	for {
		select {
		case <-r.done:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, r.reload)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		r.logger.WithError(err).WithField("path", r.path).Error("config reload failed, keeping previous configuration")
		if r.onError != nil {
			r.onError(err)
		}
		return
	}

	r.logger.WithField("path", r.path).Info("configuration reloaded")
	if r.onReload != nil {
		r.onReload(cfg)
	}
}
