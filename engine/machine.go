package engine

import (
	"time"

	"chordmap/binding"
	"chordmap/scancodes"
)

// bind runs one event through the tap/hold/chord state machine.
func (e *Engine) bind(ev Event, now time.Duration) {
	if ev.Code == scancodes.KeyCapsLock && e.snap.Params.CapsLockAsShift {
		ev.Code = scancodes.KeyLShift
	}

	if ev.unbindable() {
		if !ev.IsBreak() {
			e.interrupt()
		}
		e.out.push(ev)
		return
	}

	if ev.IsBreak() {
		e.release(ev, now)
	} else {
		e.press(ev, now)
	}
}

func (e *Engine) press(ev Event, now time.Duration) {
	c, h, tbl := ev.Code, &e.hold, e.table()

	if !h.active {
		if e.consumed[c] {
			// auto-repeat of a key whose binding already ran
			if e.tapped.active && e.tapped.code == c {
				e.tapRepeat(now)
			}
			return
		}
		if isShift(c) || !tbl.Enabled(e.layer, c) {
			e.out.push(ev)
			return
		}
		e.consumed[c] = true
		if tbl.Single(e.layer, c).Bound() {
			// A tap binding is final: the hold stays idle so the next
			// key starts its own resolution.
			e.tapped = tapped{active: true, code: c, start: now}
			e.resolve(c, scancodes.Single)
			return
		}
		*h = hold{active: true, primary: c, start: now}
		e.tapped = tapped{}
		return
	}

	if c == h.primary {
		e.repeat(ev, now)
		return
	}

	elapsed := now - h.start
	p := e.snap.Params
	chord := tbl.Chord(e.layer, h.primary, c)

	if h.partner.IsNone() {
		stale := p.ChordTimeout > 0 && elapsed > p.ChordTimeout
		if chord.Bound() && elapsed >= p.BindWindow && !stale {
			e.consumed[c] = true
			h.partner = scancodes.Real(c)
			e.resolve(h.primary, h.partner)
			return
		}
		// too fast, too late, or no such chord
		e.tap(h.primary)
		e.tap(c)
		h.reset()
		return
	}

	if chord.Bound() && elapsed >= p.BindWindow {
		e.consumed[c] = true
		h.partner = scancodes.Real(c)
		e.resolve(h.primary, h.partner)
		return
	}
	e.tap(c)
	h.partner = scancodes.Real(c)
}

// repeat handles an auto-repeat make of the held primary.
func (e *Engine) repeat(ev Event, now time.Duration) {
	h, tbl, p := &e.hold, e.table(), e.snap.Params
	held := now - h.start

	switch {
	case h.repeating:
		e.out.push(ev)
	case !h.partner.IsNone():
		// chorded
	case tbl.LongHold(e.layer, h.primary).Bound():
		// long hold fires on release
	case held >= p.RepeatThreshold:
		h.repeating = true
		e.consumed[h.primary] = false
		e.out.push(ev)
	}
}

func (e *Engine) release(ev Event, now time.Duration) {
	c, h := ev.Code, &e.hold

	if h.active && c == h.primary {
		switch {
		case h.repeating:
			e.out.push(ev)
		case h.partner.IsNone():
			if lh := e.table().LongHold(e.layer, c); lh.Bound() && now-h.start >= e.snap.Params.LongHold {
				h.partner = scancodes.Real(c)
				e.resolve(c, h.partner)
			} else {
				e.tap(c)
			}
		}
		e.consumed[c] = false
		h.reset()
		return
	}

	if e.consumed[c] {
		e.consumed[c] = false
		if e.tapped.code == c {
			e.tapped = tapped{}
		}
		return
	}
	e.out.push(ev)
}

// tapRepeat re-emits a held key's tap binding once the repeat threshold
// has passed.
func (e *Engine) tapRepeat(now time.Duration) {
	if now-e.tapped.start < e.snap.Params.RepeatThreshold {
		return
	}
	if be := e.table().Single(e.layer, e.tapped.code); be.Out[0].IsReal() {
		e.emit(be)
	}
}

// interrupt ends the hold in progress because an unbindable key arrived.
func (e *Engine) interrupt() {
	h := &e.hold
	if h.active && h.partner.IsNone() && !h.repeating {
		e.tap(h.primary)
	}
	h.reset()
}

// resolve runs the binding for (primary, partner) on the active layer.
func (e *Engine) resolve(primary scancodes.Code, partner scancodes.KeyCode) {
	be := e.table().Lookup(e.layer, primary, partner)
	switch be.Out[0].Kind {
	case scancodes.KindNone:
	case scancodes.KindVariable:
		e.command(be)
		e.hold.reset()
	case scancodes.KindCommand:
		e.play(be.Out[1].Code)
	default:
		e.emit(be)
	}
}

// emit presses the entry's keys in order and releases them in reverse.
func (e *Engine) emit(be binding.Entry) {
	var keys [3]scancodes.Code
	n := 0
	for _, k := range be.Out {
		if !k.IsReal() {
			break
		}
		keys[n] = k.Code
		n++
	}
	f := rawFlags(be.Flag)
	for i := 0; i < n; i++ {
		e.synth(keys[i], f)
	}
	for i := n - 1; i >= 0; i-- {
		e.synth(keys[i], f|FlagBreak)
	}
}
