// Package engine is the real-time half of chordmap. It folds each batch of
// raw key events through the currently published binding snapshot and hands
// the resynthesized batch to a Sink.
//
// An Engine is driven from a single goroutine. It never blocks, never
// parses, and writes into a fixed-size output buffer.
package engine

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"chordmap/binding"
	"chordmap/config"
	"chordmap/scancodes"
)

// Source publishes snapshots and accepts reload requests. loader.Loader
// implements it.
type Source interface {
	Current() *config.Snapshot
	Loading() bool
	Completed() uint64
	Request() bool
}

// Report describes one Dispatch call. Consumed is always the input length.
type Report struct {
	Consumed int
	Emitted  int
	Dropped  int
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *log.Entry) Option { return func(e *Engine) { e.log = l } }

// WithModeKey replaces ScrollLock as the mode cycle key.
func WithModeKey(c scancodes.Code) Option { return func(e *Engine) { e.modeKey = c } }

// WithStatusKeys sets the two diagnostic query keys: timers and state.
func WithStatusKeys(params, state scancodes.Code) Option {
	return func(e *Engine) { e.statusKeys = [2]scancodes.Code{params, state} }
}

// WithStatusObserver is called with every diagnostic status text rendered.
func WithStatusObserver(fn func(string)) Option { return func(e *Engine) { e.onStatus = fn } }

// WithModeObserver is called on every mode change.
func WithModeObserver(fn func(Mode)) Option { return func(e *Engine) { e.onMode = fn } }

type Engine struct {
	src   Source
	km    *scancodes.KeyMap
	sink  Sink
	clock Clock
	log   *log.Entry

	modeKey    scancodes.Code
	statusKeys [2]scancodes.Code
	onStatus   func(string)
	onMode     func(Mode)

	snap      *config.Snapshot
	completed uint64

	mode          Mode
	modeDown      bool
	layer         int
	paused        bool
	pendingReload bool
	lastBatch     int

	hold     hold
	tapped   tapped
	consumed [scancodes.MaxKeys]bool
	safe     bool
	out      buffer
}

// New builds an engine in ModeOn serving src's current snapshot.
func New(src Source, km *scancodes.KeyMap, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		src:        src,
		km:         km,
		sink:       sink,
		clock:      NewMonotonicClock(),
		log:        log.WithField("component", "engine"),
		modeKey:    scancodes.KeyScrollLock,
		statusKeys: [2]scancodes.Code{scancodes.KeyH, scancodes.KeyJ},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.snap = src.Current()
	e.completed = src.Completed()
	return e
}

func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) Layer() int { return e.layer }

func (e *Engine) Paused() bool { return e.paused }

// Snapshot is the snapshot the last Dispatch ran against.
func (e *Engine) Snapshot() *config.Snapshot { return e.snap }

// Dispatch processes one batch in arrival order and delivers the output.
func (e *Engine) Dispatch(batch []Event) Report {
	e.out.reset()
	e.refresh()

	now := e.clock.Now()
	safe := e.snap.Params.SafeMode && e.src.Loading()
	if safe && !e.safe {
		e.idle()
	}
	e.safe = safe
	if e.mode == ModeOn {
		e.lastBatch = len(batch)
	}

	for _, ev := range batch {
		if ev.Code == e.modeKey && !ev.extended() {
			e.modeEvent(ev)
			continue
		}
		switch {
		case e.mode == ModeOff, e.mode == ModeReloading, safe:
			e.pass(ev)
		case e.mode == ModeDiagnostic:
			e.diagnostic(ev)
		default:
			mark := e.out.n
			e.bind(ev, now)
			if e.paused {
				e.out.truncate(mark)
			}
		}
	}

	if e.pendingReload {
		e.pendingReload = false
		if !e.src.Request() {
			e.log.Debug("reload already in progress")
		}
	}

	rep := Report{Consumed: len(batch), Emitted: e.out.n, Dropped: e.out.dropped}
	if rep.Dropped > 0 {
		e.log.Warnf("output buffer full, dropped %d events", rep.Dropped)
	}
	if rep.Emitted > 0 {
		if n := e.sink.Deliver(e.out.events()); n < rep.Emitted {
			e.log.Warnf("sink accepted %d of %d events", n, rep.Emitted)
		}
	}
	return rep
}

// refresh picks up a newly published snapshot and finished loads.
func (e *Engine) refresh() {
	if snap := e.src.Current(); snap != e.snap {
		e.snap = snap
		e.idle()
		e.layer = clampLayer(e.layer)
	}
	if c := e.src.Completed(); c != e.completed {
		e.completed = c
		if e.mode == ModeReloading {
			e.setMode(ModeOn)
		}
	}
}

func (e *Engine) modeEvent(ev Event) {
	if ev.IsBreak() {
		e.modeDown = false
		return
	}
	if e.modeDown {
		return
	}
	e.modeDown = true
	e.setMode(e.mode.next())
}

func (e *Engine) setMode(m Mode) {
	e.mode = m
	e.idle()
	if m == ModeReloading {
		e.pendingReload = true
	}
	if e.onMode != nil {
		e.onMode(m)
		return
	}
	e.log.Infof("mode %v", m)
}

func (e *Engine) table() *binding.Table { return e.snap.Table }

// idle drops any hold in progress. Keys whose make was swallowed stay
// consumed until their break is seen, here or in pass.
func (e *Engine) idle() {
	e.hold.reset()
	e.tapped = tapped{}
}

// pass forwards ev untouched outside the state machine.
func (e *Engine) pass(ev Event) {
	if ev.IsBreak() && !ev.unbindable() {
		e.consumed[ev.Code] = false
	}
	e.out.push(ev)
}

// synth queues a synthesized event, adding the extended prefix where the
// code needs it.
func (e *Engine) synth(c scancodes.Code, f Flags) {
	if c >= HomeThreshold {
		f |= FlagE0
	}
	e.out.push(Event{Code: c, Flags: f})
}

func (e *Engine) tap(c scancodes.Code) {
	e.synth(c, FlagMake)
	e.synth(c, FlagBreak)
}

func clampLayer(l int) int {
	switch {
	case l < 0:
		return 0
	case l >= binding.MaxLayers:
		return binding.MaxLayers - 1
	}
	return l
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) paramsStatus() string {
	p := e.snap.Params
	return fmt.Sprintf("t=%dSd=%dSr=%dSo=%dSs=%dSc=%dS",
		p.BindWindow.Milliseconds(), p.LongHold.Milliseconds(), p.RepeatThreshold.Milliseconds(),
		p.ChordTimeout.Milliseconds(), b2i(p.SafeMode), b2i(p.CapsLockAsShift))
}

func (e *Engine) stateStatus() string {
	return fmt.Sprintf("l=%dSp=%dSr=%dSlc=%dSpl=%dSk=%dS",
		e.layer, b2i(e.paused), b2i(e.pendingReload), b2i(e.src.Loading()), e.lastBatch, e.hold.primary)
}

func (e *Engine) diagnostic(ev Event) {
	if ev.IsBreak() || ev.extended() {
		return
	}
	var text string
	switch ev.Code {
	case e.statusKeys[0]:
		text = e.paramsStatus()
	case e.statusKeys[1]:
		text = e.stateStatus()
	default:
		return
	}
	e.render(text)
	if e.onStatus != nil {
		e.onStatus(text)
	}
}
