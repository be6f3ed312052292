package engine

import (
	"io"
	"reflect"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"chordmap/config"
	"chordmap/scancodes"
)

type fakeSource struct {
	snap      *config.Snapshot
	loading   bool
	completed uint64
	requests  int
}

func (f *fakeSource) Current() *config.Snapshot { return f.snap }
func (f *fakeSource) Loading() bool             { return f.loading }
func (f *fakeSource) Completed() uint64         { return f.completed }

func (f *fakeSource) Request() bool {
	f.requests++
	return !f.loading
}

type recorder struct {
	got     []Event
	batches int
}

func (r *recorder) Deliver(batch []Event) int {
	r.got = append(r.got, batch...)
	r.batches++
	return len(batch)
}

type harness struct {
	t     *testing.T
	km    *scancodes.KeyMap
	src   *fakeSource
	rec   *recorder
	clock *ManualClock
	eng   *Engine
	texts []string
}

func quiet() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

func newHarness(t *testing.T, text string) *harness {
	t.Helper()
	km := scancodes.DefaultKeyMap()
	h := &harness{
		t:     t,
		km:    km,
		src:   &fakeSource{snap: config.Parse([]byte(text), km)},
		rec:   &recorder{},
		clock: &ManualClock{},
	}
	if w := h.src.snap.Warnings; len(w) != 0 {
		t.Fatalf("config warnings: %v", w)
	}
	h.eng = New(h.src, km, h.rec,
		WithClock(h.clock),
		WithLogger(quiet()),
		WithStatusObserver(func(s string) { h.texts = append(h.texts, s) }))
	return h
}

// send dispatches each event as its own batch and returns everything
// delivered since the previous call.
func (h *harness) send(evs ...Event) []Event {
	h.rec.got = nil
	for _, ev := range evs {
		h.eng.Dispatch([]Event{ev})
	}
	return h.rec.got
}

func (h *harness) wait(d time.Duration) { h.clock.Advance(d) }

func (h *harness) expect(got []Event, want ...Event) {
	h.t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		h.t.Errorf("output\n got  %v\n want %v", got, want)
	}
}

func tap(c scancodes.Code) []Event { return []Event{Make(c), Break(c)} }

func ext(ev Event) Event {
	ev.Flags |= FlagE0
	return ev
}

func join(parts ...[]Event) []Event {
	var out []Event
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestThreeKeyNesting(t *testing.T) {
	h := newHarness(t, "jk CIs")
	h.send(Make(scancodes.KeyJ))
	h.wait(200 * time.Millisecond)
	got := h.send(Make(scancodes.KeyK))
	h.expect(got,
		Make(scancodes.KeyLCtrl), Make(scancodes.KeyLShift), Make(scancodes.KeyS),
		Break(scancodes.KeyS), Break(scancodes.KeyLShift), Break(scancodes.KeyLCtrl))

	h.expect(h.send(Break(scancodes.KeyK), Break(scancodes.KeyJ)))
}

func TestUnboundPassthrough(t *testing.T) {
	h := newHarness(t, "jk E\na  N")
	in := []Event{
		Make(scancodes.KeyX), Break(scancodes.KeyX),
		Make(scancodes.KeyLShift), Make(scancodes.KeyZ), Break(scancodes.KeyZ), Break(scancodes.KeyLShift),
		ext(Make(scancodes.KeyLeft)), ext(Break(scancodes.KeyLeft)),
	}
	h.expect(h.send(in...), in...)
}

func TestBindingOffIsIdentity(t *testing.T) {
	h := newHarness(t, "jk E\na  N")
	h.send(Make(scancodes.KeyScrollLock), Break(scancodes.KeyScrollLock))
	if h.eng.Mode() != ModeOff {
		t.Fatalf("mode = %v, want off", h.eng.Mode())
	}

	batch := []Event{
		Make(scancodes.KeyJ), Make(scancodes.KeyK), Break(scancodes.KeyK), Break(scancodes.KeyJ),
		Make(scancodes.KeyA), Break(scancodes.KeyA),
		{Code: scancodes.KeyRShift, Flags: FlagE1}, ext(Make(scancodes.KeyLCtrl)),
	}
	h.rec.got = nil
	rep := h.eng.Dispatch(batch)
	h.expect(h.rec.got, batch...)
	if rep.Consumed != len(batch) || rep.Emitted != len(batch) {
		t.Errorf("report = %+v", rep)
	}
}

func TestChordWindow(t *testing.T) {
	t.Run("too fast", func(t *testing.T) {
		h := newHarness(t, "jk E")
		h.send(Make(scancodes.KeyJ))
		h.wait(100 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyK)), join(tap(scancodes.KeyJ), tap(scancodes.KeyK))...)
		h.expect(h.send(Break(scancodes.KeyJ)))
	})
	t.Run("deliberate", func(t *testing.T) {
		h := newHarness(t, "jk E")
		h.send(Make(scancodes.KeyJ))
		h.wait(config.DefaultBindWindow)
		h.expect(h.send(Make(scancodes.KeyK)), tap(scancodes.KeyEsc)...)
		h.expect(h.send(Break(scancodes.KeyK), Break(scancodes.KeyJ)))
	})
	t.Run("no such chord", func(t *testing.T) {
		h := newHarness(t, "jk E")
		h.send(Make(scancodes.KeyJ))
		h.wait(time.Second)
		h.expect(h.send(Make(scancodes.KeyX)), join(tap(scancodes.KeyJ), tap(scancodes.KeyX))...)
	})
	t.Run("timed out", func(t *testing.T) {
		h := newHarness(t, "jk E\n~o 300")
		h.send(Make(scancodes.KeyJ))
		h.wait(400 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyK)), join(tap(scancodes.KeyJ), tap(scancodes.KeyK))...)
	})
	t.Run("timeout disabled", func(t *testing.T) {
		h := newHarness(t, "jk E\n~o 0")
		h.send(Make(scancodes.KeyJ))
		h.wait(5 * time.Second)
		h.expect(h.send(Make(scancodes.KeyK)), tap(scancodes.KeyEsc)...)
	})
}

func TestPlainTapOfPrimary(t *testing.T) {
	h := newHarness(t, "jk E")
	h.expect(h.send(Make(scancodes.KeyJ)))
	h.wait(50 * time.Millisecond)
	h.expect(h.send(Break(scancodes.KeyJ)), tap(scancodes.KeyJ)...)
}

func TestLongHold(t *testing.T) {
	const text = "ff C\n~d 300\nfj E"

	t.Run("short", func(t *testing.T) {
		h := newHarness(t, text)
		h.send(Make(scancodes.KeyF))
		h.wait(100 * time.Millisecond)
		h.expect(h.send(Break(scancodes.KeyF)), tap(scancodes.KeyF)...)
	})
	t.Run("long", func(t *testing.T) {
		h := newHarness(t, text)
		h.send(Make(scancodes.KeyF))
		h.wait(200 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyF)))
		h.wait(200 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyF)))
		h.expect(h.send(Break(scancodes.KeyF)), tap(scancodes.KeyLCtrl)...)
	})
	t.Run("chord wins", func(t *testing.T) {
		h := newHarness(t, text)
		h.send(Make(scancodes.KeyF))
		h.wait(200 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyJ)), tap(scancodes.KeyEsc)...)
		h.wait(time.Second)
		h.expect(h.send(Break(scancodes.KeyJ), Break(scancodes.KeyF)))
	})
}

func TestSingleTapBinding(t *testing.T) {
	h := newHarness(t, "a  N")
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
	h.expect(h.send(Break(scancodes.KeyA)))

	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
	h.wait(100 * time.Millisecond)
	h.expect(h.send(Make(scancodes.KeyA)))
	h.wait(config.DefaultRepeatThreshold)
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
}

func TestTapRollover(t *testing.T) {
	h := newHarness(t, "a  N\ns  T")
	got := h.send(Make(scancodes.KeyA), Make(scancodes.KeyS), Break(scancodes.KeyA), Break(scancodes.KeyS))
	h.expect(got, join(tap(scancodes.KeyEnter), tap(scancodes.KeyTab))...)

	// a held past the repeat threshold re-fires its binding
	h.send(Make(scancodes.KeyA))
	h.wait(config.DefaultRepeatThreshold)
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
	h.expect(h.send(Break(scancodes.KeyA)))
}

func TestTwoCharacterTapLine(t *testing.T) {
	h := newHarness(t, "aN")
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
	h.expect(h.send(Break(scancodes.KeyA)))
}

func TestNativeRepeat(t *testing.T) {
	h := newHarness(t, "jk E")
	h.send(Make(scancodes.KeyJ))
	h.wait(100 * time.Millisecond)
	h.expect(h.send(Make(scancodes.KeyJ)))
	h.wait(config.DefaultRepeatThreshold)
	h.expect(h.send(Make(scancodes.KeyJ), Make(scancodes.KeyJ)), Make(scancodes.KeyJ), Make(scancodes.KeyJ))
	h.expect(h.send(Break(scancodes.KeyJ)), Break(scancodes.KeyJ))
}

func TestLayers(t *testing.T) {
	h := newHarness(t, "vl ~l1\n~l 1\njk P\nvl ~l0")

	// j has no binding on layer 0
	h.expect(h.send(Make(scancodes.KeyJ)), Make(scancodes.KeyJ))
	h.wait(10 * time.Millisecond)
	h.expect(h.send(Make(scancodes.KeyK)), Make(scancodes.KeyK))
	h.send(Break(scancodes.KeyK), Break(scancodes.KeyJ))

	h.send(Make(scancodes.KeyV))
	h.wait(200 * time.Millisecond)
	h.expect(h.send(Make(scancodes.KeyL), Break(scancodes.KeyL), Break(scancodes.KeyV)))
	if h.eng.Layer() != 1 {
		t.Fatalf("layer = %d, want 1", h.eng.Layer())
	}

	h.send(Make(scancodes.KeyJ))
	h.wait(200 * time.Millisecond)
	h.expect(h.send(Make(scancodes.KeyK)), ext(Make(scancodes.KeyEnd)), ext(Break(scancodes.KeyEnd)))
}

func TestMalformedLinePassesThrough(t *testing.T) {
	km := scancodes.DefaultKeyMap()
	src := &fakeSource{snap: config.Parse([]byte("@@@@@@"), km)}
	rec := &recorder{}
	e := New(src, km, rec, WithClock(&ManualClock{}), WithLogger(quiet()))
	in := []Event{Make(scancodes.KeyF2), Break(scancodes.KeyF2)}
	e.Dispatch(in)
	if !reflect.DeepEqual(rec.got, in) {
		t.Errorf("got %v, want %v", rec.got, in)
	}
}

func TestPause(t *testing.T) {
	h := newHarness(t, "vp ~p\na  N")
	toggle := func() {
		h.send(Make(scancodes.KeyV))
		h.wait(200 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyP), Break(scancodes.KeyP), Break(scancodes.KeyV)))
	}

	toggle()
	if !h.eng.Paused() {
		t.Fatal("expected paused")
	}
	h.expect(h.send(Make(scancodes.KeyX), Break(scancodes.KeyX)))
	h.expect(h.send(Make(scancodes.KeyA), Break(scancodes.KeyA)))

	toggle()
	if h.eng.Paused() {
		t.Fatal("expected unpaused")
	}
	h.expect(h.send(Make(scancodes.KeyX)), Make(scancodes.KeyX))
}

func TestReloadCommand(t *testing.T) {
	h := newHarness(t, "vr ~r")
	h.send(Make(scancodes.KeyV))
	h.wait(200 * time.Millisecond)
	h.send(Make(scancodes.KeyR))
	if h.src.requests != 1 {
		t.Errorf("requests = %d, want 1", h.src.requests)
	}
	h.send(Break(scancodes.KeyR), Break(scancodes.KeyV))
	if h.src.requests != 1 {
		t.Errorf("requests = %d after release, want 1", h.src.requests)
	}
}

func TestModeCycle(t *testing.T) {
	h := newHarness(t, "a  N")
	var modes []Mode
	h.eng.onMode = func(m Mode) { modes = append(modes, m) }

	sl := scancodes.KeyScrollLock
	h.expect(h.send(Make(sl), Make(sl), Break(sl)))
	h.expect(h.send(Make(sl), Break(sl)))
	h.expect(h.send(Make(sl), Break(sl)))
	if h.eng.Mode() != ModeReloading {
		t.Fatalf("mode = %v, want reloading", h.eng.Mode())
	}
	if h.src.requests != 1 {
		t.Errorf("requests = %d, want 1", h.src.requests)
	}

	// passthrough until the load lands
	h.expect(h.send(Make(scancodes.KeyA)), Make(scancodes.KeyA))
	h.send(Break(scancodes.KeyA))

	h.src.completed++
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)

	want := []Mode{ModeOff, ModeDiagnostic, ModeReloading, ModeOn}
	if !reflect.DeepEqual(modes, want) {
		t.Errorf("modes = %v, want %v", modes, want)
	}
}

func TestModeChangeLoggedOnce(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	src := &fakeSource{snap: config.Empty()}
	sl := Make(scancodes.KeyScrollLock)

	var seen []Mode
	e := New(src, scancodes.DefaultKeyMap(), &recorder{},
		WithLogger(log.NewEntry(logger)),
		WithModeObserver(func(m Mode) { seen = append(seen, m) }))
	e.Dispatch([]Event{sl})
	if len(seen) != 1 || len(hook.AllEntries()) != 0 {
		t.Errorf("observer saw %v, engine logged %d entries", seen, len(hook.AllEntries()))
	}

	hook.Reset()
	e = New(src, scancodes.DefaultKeyMap(), &recorder{}, WithLogger(log.NewEntry(logger)))
	e.Dispatch([]Event{sl})
	if n := len(hook.AllEntries()); n != 1 {
		t.Errorf("engine logged %d entries without an observer, want 1", n)
	}
}

func TestDiagnostic(t *testing.T) {
	h := newHarness(t, "jk E")
	sl := scancodes.KeyScrollLock
	h.send(Make(sl), Break(sl), Make(sl), Break(sl))
	if h.eng.Mode() != ModeDiagnostic {
		t.Fatalf("mode = %v", h.eng.Mode())
	}

	h.expect(h.send(Make(scancodes.KeyX), Break(scancodes.KeyX)))

	got := h.send(Make(scancodes.KeyH), Break(scancodes.KeyH))
	const want = "t=150Sd=150Sr=450So=750Ss=1Sc=0S"
	if len(h.texts) != 1 || h.texts[0] != want {
		t.Fatalf("status = %q, want %q", h.texts, want)
	}
	if len(got) != 2*len(want) {
		t.Fatalf("rendered %d events, want %d", len(got), 2*len(want))
	}
	h.expect(got[:4], join(tap(scancodes.KeyT), tap(scancodes.KeyEqual))...)
	h.expect(got[len(got)-2:], tap(scancodes.KeySpace)...)

	h.send(Make(scancodes.KeyJ))
	if h.texts[1] != "l=0Sp=0Sr=0Slc=0Spl=1Sk=0S" {
		t.Errorf("state status = %q", h.texts[1])
	}
}

func TestOverflow(t *testing.T) {
	h := newHarness(t, "")
	batch := make([]Event, 0, 200)
	for i := 0; i < 100; i++ {
		batch = append(batch, Make(scancodes.KeyX), Break(scancodes.KeyX))
	}
	rep := h.eng.Dispatch(batch)
	want := Report{Consumed: 200, Emitted: MaxOutput, Dropped: 200 - MaxOutput}
	if rep != want {
		t.Errorf("report = %+v, want %+v", rep, want)
	}
	if h.rec.batches != 1 {
		t.Errorf("sink called %d times, want 1", h.rec.batches)
	}
}

func TestSafeModeWhileLoading(t *testing.T) {
	h := newHarness(t, "a  N")
	h.src.loading = true
	h.expect(h.send(Make(scancodes.KeyA)), Make(scancodes.KeyA))

	h = newHarness(t, "a  N\n~s 0")
	h.src.loading = true
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
}

func TestSafeModeReleasesAreReconciled(t *testing.T) {
	chord := func(h *harness) {
		h.send(Make(scancodes.KeyJ))
		h.wait(200 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyK)), tap(scancodes.KeyEsc)...)
		h.src.loading = true
		h.expect(h.send(Break(scancodes.KeyK), Break(scancodes.KeyJ)), Break(scancodes.KeyK), Break(scancodes.KeyJ))
		h.src.loading = false
	}

	t.Run("new snapshot", func(t *testing.T) {
		h := newHarness(t, "jk E")
		chord(h)
		h.src.snap = config.Parse([]byte("jk E"), h.km)
		h.expect(h.send(Make(scancodes.KeyK), Break(scancodes.KeyK)), tap(scancodes.KeyK)...)
	})

	t.Run("failed load", func(t *testing.T) {
		h := newHarness(t, "jk E")
		chord(h)
		h.wait(200 * time.Millisecond)
		got := h.send(Make(scancodes.KeyX), Break(scancodes.KeyX), Make(scancodes.KeyK), Break(scancodes.KeyK))
		h.expect(got, join(tap(scancodes.KeyX), tap(scancodes.KeyK))...)
	})

	t.Run("undecided hold", func(t *testing.T) {
		h := newHarness(t, "jk E")
		h.send(Make(scancodes.KeyJ))
		h.src.loading = true
		h.expect(h.send(Break(scancodes.KeyJ)), Break(scancodes.KeyJ))
		h.src.loading = false
		h.wait(200 * time.Millisecond)
		h.expect(h.send(Make(scancodes.KeyK)), Make(scancodes.KeyK))
	})
}

func TestReleaseWhileOff(t *testing.T) {
	h := newHarness(t, "a  N")
	sl := scancodes.KeyScrollLock
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
	h.send(Make(sl), Break(sl))
	h.expect(h.send(Break(scancodes.KeyA)), Break(scancodes.KeyA))

	h.send(Make(sl), Break(sl), Make(sl), Break(sl))
	h.src.completed++
	h.expect(h.send(Make(scancodes.KeyA)), tap(scancodes.KeyEnter)...)
	if h.eng.Mode() != ModeOn {
		t.Errorf("mode = %v, want on", h.eng.Mode())
	}
}

func TestExtendedOutput(t *testing.T) {
	h := newHarness(t, "a  O\nw  E05B\nx  0a3b")
	h.expect(h.send(Make(scancodes.KeyA)), ext(Make(scancodes.KeyHome)), ext(Break(scancodes.KeyHome)))
	h.expect(h.send(Make(scancodes.KeyW)), ext(Make(scancodes.KeyLWin)), ext(Break(scancodes.KeyLWin)))
	h.expect(h.send(Make(scancodes.KeyX)),
		Event{Code: scancodes.KeyF1, Flags: 0x0a},
		Event{Code: scancodes.KeyF1, Flags: 0x0a | FlagBreak})
}

func TestMacro(t *testing.T) {
	h := newHarness(t, "~Q mab1\nx  Qm\nQb Cb\nQ1 Qm")
	got := h.send(Make(scancodes.KeyX))
	h.expect(got, join(
		tap(scancodes.KeyA),
		[]Event{Make(scancodes.KeyLCtrl), Make(scancodes.KeyB), Break(scancodes.KeyB), Break(scancodes.KeyLCtrl)},
	)...)
}

func TestMacroCommandStep(t *testing.T) {
	h := newHarness(t, "~Q mz\nx  Qm\nQz ~l2")
	h.send(Make(scancodes.KeyX))
	if h.eng.Layer() != 2 {
		t.Errorf("layer = %d, want 2", h.eng.Layer())
	}
}

func TestCapsLockAsShift(t *testing.T) {
	h := newHarness(t, "~c 1")
	h.expect(h.send(Make(scancodes.KeyCapsLock), Break(scancodes.KeyCapsLock)),
		Make(scancodes.KeyLShift), Break(scancodes.KeyLShift))

	h = newHarness(t, "")
	h.expect(h.send(Make(scancodes.KeyCapsLock)), Make(scancodes.KeyCapsLock))
}

func TestShiftNeverHolds(t *testing.T) {
	h := newHarness(t, "Ik E")
	h.expect(h.send(Make(scancodes.KeyLShift)), Make(scancodes.KeyLShift))
}

func TestChordExtends(t *testing.T) {
	h := newHarness(t, "jk E\njl T")
	h.send(Make(scancodes.KeyJ))
	h.wait(200 * time.Millisecond)
	h.expect(h.send(Make(scancodes.KeyK)), tap(scancodes.KeyEsc)...)
	h.expect(h.send(Make(scancodes.KeyX)), tap(scancodes.KeyX)...)
	h.expect(h.send(Make(scancodes.KeyL)), tap(scancodes.KeyTab)...)
}

func TestExtendedInputInterruptsHold(t *testing.T) {
	h := newHarness(t, "jk E")
	h.send(Make(scancodes.KeyJ))
	rctrl := ext(Make(scancodes.KeyLCtrl))
	h.expect(h.send(rctrl), join(tap(scancodes.KeyJ), []Event{rctrl})...)
	h.expect(h.send(Break(scancodes.KeyJ)))
}

func TestNewSnapshotResetsHold(t *testing.T) {
	h := newHarness(t, "jk E")
	h.send(Make(scancodes.KeyJ))
	h.wait(200 * time.Millisecond)
	h.src.snap = config.Parse([]byte("a  N"), h.km)
	h.expect(h.send(Make(scancodes.KeyK)), Make(scancodes.KeyK))
	if h.eng.Snapshot() != h.src.snap {
		t.Error("engine did not pick up the new snapshot")
	}
}

func TestBatchConsumption(t *testing.T) {
	h := newHarness(t, "jk E")
	batch := []Event{Make(scancodes.KeyJ), Make(scancodes.KeyK), Break(scancodes.KeyK), Break(scancodes.KeyJ)}
	rep := h.eng.Dispatch(batch)
	if rep.Consumed != len(batch) {
		t.Errorf("Consumed = %d, want %d", rep.Consumed, len(batch))
	}
	// two taps, then k's own release
	if rep.Emitted != 5 {
		t.Errorf("Emitted = %d, want 5", rep.Emitted)
	}
}
