// Package loader owns the background reload path: it reads the bindings
// text, parses it off the dispatch goroutine and publishes the resulting
// snapshot with a single atomic store.
package loader

import (
	"context"
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"chordmap/config"
	"chordmap/scancodes"
)

var ErrClosed = errors.New("loader: closed")

// State of the reload cycle.
type State int32

const (
	Idle State = iota
	Loading
	PendingApply // parsed, being published
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case PendingApply:
		return "pending-apply"
	}
	return "unknown"
}

type Option func(*Loader)

// WithRequeue makes a request that arrives mid-load schedule exactly one
// more cycle instead of being dropped.
func WithRequeue(on bool) Option { return func(l *Loader) { l.requeue = on } }

// WithOnPublish is called from the loader goroutine after every successful
// publish.
func WithOnPublish(fn func(*config.Snapshot)) Option { return func(l *Loader) { l.onPublish = fn } }

func WithLogger(e *log.Entry) Option { return func(l *Loader) { l.log = e } }

type Loader struct {
	src       TextSource
	km        *scancodes.KeyMap
	log       *log.Entry
	requeue   bool
	onPublish func(*config.Snapshot)

	snap      atomic.Pointer[config.Snapshot]
	state     atomic.Int32
	again     atomic.Bool
	completed atomic.Uint64
	started   atomic.Bool
	closed    atomic.Bool
	kick      chan struct{}
}

// New returns a loader serving config.Empty until the first load lands.
func New(src TextSource, km *scancodes.KeyMap, opts ...Option) *Loader {
	l := &Loader{
		src:  src,
		km:   km,
		log:  log.WithField("component", "loader"),
		kick: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.snap.Store(config.Empty())
	return l
}

// Current is the last published snapshot. Never nil.
func (l *Loader) Current() *config.Snapshot { return l.snap.Load() }

func (l *Loader) State() State { return State(l.state.Load()) }

// Loading is true from Request until the cycle has published.
func (l *Loader) Loading() bool { return l.State() != Idle }

// Completed counts finished cycles, failed reads included.
func (l *Loader) Completed() uint64 { return l.completed.Load() }

// Request starts a reload unless one is already running. It never blocks.
func (l *Loader) Request() bool {
	if l.closed.Load() {
		return false
	}
	if !l.state.CompareAndSwap(int32(Idle), int32(Loading)) {
		if l.requeue {
			l.again.Store(true)
		}
		return false
	}
	select {
	case l.kick <- struct{}{}:
	default:
	}
	return true
}

// Run serves reload requests until ctx is done. A loader runs once.
func (l *Loader) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrClosed
	}
	defer l.closed.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.kick:
			l.load()
		}
	}
}

func (l *Loader) load() {
	var published *config.Snapshot

	text, err := l.src.Read()
	if err != nil {
		l.log.Warnf("keeping previous bindings: %v", err)
	} else {
		snap := config.Parse(text, l.km)
		l.state.Store(int32(PendingApply))
		l.snap.Store(snap)
		published = snap

		for _, w := range snap.Warnings {
			l.log.Warn(w.String())
		}
		l.log.Infof("loaded %d bindings, %d macros from %d lines (%v)",
			snap.Table.Len(), snap.Macros.Len(), snap.Lines, snap.Params)
	}

	l.completed.Add(1)
	l.state.Store(int32(Idle))

	if published != nil && l.onPublish != nil {
		l.onPublish(published)
	}
	if l.again.Swap(false) {
		l.Request()
	}
}
