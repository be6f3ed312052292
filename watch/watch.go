// Package watch turns edits of the bindings file into reload requests.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Requester is what a change is reported to. loader.Loader implements it.
type Requester interface {
	Request() bool
}

const DefaultDebounce = 200 * time.Millisecond

type Option func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

func WithLogger(e *log.Entry) Option { return func(w *Watcher) { w.log = e } }

type Watcher struct {
	path     string
	base     string
	req      Requester
	debounce time.Duration
	log      *log.Entry
	fsw      *fsnotify.Watcher
}

// New watches the directory holding path, since editors often replace the
// file instead of writing it in place.
func New(path string, req Requester, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w := &Watcher{
		path:     filepath.Clean(abs),
		base:     filepath.Base(abs),
		req:      req,
		debounce: DefaultDebounce,
		log:      log.WithField("component", "watch"),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw
	return w, nil
}

// Run forwards debounced changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !shouldReload(w.path, w.base, ev) {
				continue
			}
			w.log.Debugf("%v", ev)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			if w.req.Request() {
				w.log.Infof("%s changed, reloading", w.path)
			} else {
				w.log.Debugf("%s changed, reload already running", w.path)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch: %v", err)
		}
	}
}

// shouldReload reports whether ev touches the watched file.
func shouldReload(path, base string, ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == path {
		return true
	}
	// temp-file-and-rename editors
	return filepath.Base(name) == base
}
