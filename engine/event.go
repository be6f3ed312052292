package engine

import (
	"fmt"

	"chordmap/scancodes"
)

// Flags mirror the keyboard class driver's per-event flags.
type Flags uint8

const (
	FlagMake  Flags = 0
	FlagBreak Flags = 1
	FlagE0    Flags = 2
	FlagE1    Flags = 4
)

// HomeThreshold: synthesized codes at or above it carry FlagE0.
const HomeThreshold = scancodes.KeyHome

// Event is one key transition, input or output.
type Event struct {
	Code  scancodes.Code
	Flags Flags
}

func Make(c scancodes.Code) Event  { return Event{Code: c} }
func Break(c scancodes.Code) Event { return Event{Code: c, Flags: FlagBreak} }

func (ev Event) IsBreak() bool { return ev.Flags&FlagBreak != 0 }

func (ev Event) extended() bool { return ev.Flags&(FlagE0|FlagE1) != 0 }

// unbindable: E1 sequences and the extended keys below Home. Extended
// codes at or above it fold onto their base code.
func (ev Event) unbindable() bool {
	return ev.Flags&FlagE1 != 0 || (ev.Flags&FlagE0 != 0 && ev.Code < HomeThreshold)
}

func (ev Event) String() string {
	dir := "make"
	if ev.IsBreak() {
		dir = "break"
	}
	prefix := ""
	switch {
	case ev.Flags&FlagE1 != 0:
		prefix = "e1 "
	case ev.Flags&FlagE0 != 0:
		prefix = "e0 "
	}
	return fmt.Sprintf("%s%s %s", prefix, scancodes.Name(ev.Code), dir)
}

// rawFlags turns the prefix byte of a raw binding into event flags.
func rawFlags(b uint8) Flags {
	switch b {
	case 0xe0:
		return FlagE0
	case 0xe1:
		return FlagE1
	}
	return Flags(b) &^ FlagBreak
}

// MaxOutput is the capacity of the per-batch output buffer.
const MaxOutput = 128

type buffer struct {
	ev      [MaxOutput]Event
	n       int
	dropped int
}

func (b *buffer) reset() { b.n, b.dropped = 0, 0 }

func (b *buffer) push(ev Event) {
	if b.n == len(b.ev) {
		b.dropped++
		return
	}
	b.ev[b.n] = ev
	b.n++
}

func (b *buffer) truncate(n int) { b.n = n }

func (b *buffer) events() []Event { return b.ev[:b.n] }
