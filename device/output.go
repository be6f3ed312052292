//go:build linux

package device

import (
	"fmt"
	"sync"

	uinput "github.com/holoplot/go-evdev"
	"github.com/micmonay/keybd_event"
	log "github.com/sirupsen/logrus"

	"chordmap/engine"
)

// Output injects engine batches, plus raw evdev keys the engine never saw.
type Output interface {
	engine.Sink
	Raw(code uint16, value int32) error
	Close() error
}

// writer is the single-key primitive both drivers share.
type writer interface {
	key(code uint16, value int32) error
	sync() error
}

// keyState turns a make of a key that is already down into an auto-repeat,
// which the input core would otherwise discard.
type keyState struct {
	mu   sync.Mutex
	down [256]bool
	w    writer
	log  *log.Entry
}

func (s *keyState) deliver(batch []engine.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ev := range batch {
		code, value, ok := ToEvdev(ev)
		if !ok {
			s.log.Debugf("no evdev key for %v", ev)
			continue
		}
		if err := s.write(code, value); err != nil {
			s.log.Warnf("write %v: %v", ev, err)
			continue
		}
		n++
	}
	if n > 0 {
		if err := s.w.sync(); err != nil {
			s.log.Warnf("sync: %v", err)
		}
	}
	return n
}

func (s *keyState) raw(code uint16, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(code, value); err != nil {
		return err
	}
	return s.w.sync()
}

func (s *keyState) write(code uint16, value int32) error {
	if int(code) < len(s.down) {
		switch {
		case value == 0:
			s.down[code] = false
		case s.down[code]:
			value = 2
		default:
			s.down[code] = true
		}
	}
	return s.w.key(code, value)
}

// UinputSink writes to a virtual keyboard created through /dev/uinput.
type UinputSink struct {
	dev *uinput.InputDevice
	st  keyState
}

func NewUinputSink(name string, logger *log.Entry) (*UinputSink, error) {
	keys := make([]uinput.EvCode, 0, 255)
	for c := 1; c < 256; c++ {
		keys = append(keys, uinput.EvCode(c))
	}
	dev, err := uinput.CreateDevice(name,
		uinput.InputID{BusType: 0x06, Vendor: 0x1209, Product: 0xc0d3, Version: 1}, // BUS_VIRTUAL
		map[uinput.EvType][]uinput.EvCode{uinput.EV_KEY: keys},
	)
	if err != nil {
		return nil, fmt.Errorf("uinput %q: %w", name, err)
	}
	if logger == nil {
		logger = log.WithField("component", "uinput")
	}
	s := &UinputSink{dev: dev}
	s.st = keyState{w: s, log: logger}
	return s, nil
}

func (s *UinputSink) key(code uint16, value int32) error {
	return s.dev.WriteOne(&uinput.InputEvent{Type: uinput.EV_KEY, Code: uinput.EvCode(code), Value: value})
}

func (s *UinputSink) sync() error {
	return s.dev.WriteOne(&uinput.InputEvent{Type: uinput.EV_SYN, Code: uinput.SYN_REPORT})
}

func (s *UinputSink) Deliver(batch []engine.Event) int { return s.st.deliver(batch) }
func (s *UinputSink) Raw(code uint16, value int32) error { return s.st.raw(code, value) }
func (s *UinputSink) Close() error { return s.dev.Close() }

// KeybdSink drives the keybd_event virtual keyboard. It cannot express
// auto-repeat; repeated makes are sent as plain presses.
type KeybdSink struct {
	kb keybd_event.KeyBonding
	st keyState
}

func NewKeybdSink(logger *log.Entry) (*KeybdSink, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("keybd_event: %w", err)
	}
	if logger == nil {
		logger = log.WithField("component", "keybd")
	}
	s := &KeybdSink{kb: kb}
	s.st = keyState{w: s, log: logger}
	return s, nil
}

func (s *KeybdSink) key(code uint16, value int32) error {
	s.kb.Clear()
	s.kb.SetKeys(int(code))
	if value == 0 {
		return s.kb.Release()
	}
	return s.kb.Press()
}

func (s *KeybdSink) sync() error { return nil } // keybd_event syncs every key

func (s *KeybdSink) Deliver(batch []engine.Event) int { return s.st.deliver(batch) }
func (s *KeybdSink) Raw(code uint16, value int32) error { return s.st.raw(code, value) }
func (s *KeybdSink) Close() error { return nil }

// Open creates the output named by driver ("uinput" or "keybd").
func Open(driver, name string, logger *log.Entry) (Output, error) {
	switch driver {
	case "uinput":
		return NewUinputSink(name, logger)
	case "keybd":
		return NewKeybdSink(logger)
	}
	return nil, fmt.Errorf("unknown output driver %q", driver)
}
