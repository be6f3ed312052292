// Package config turns binding-language text into a Snapshot.
//
// The language is line oriented. `"` starts a comment; `\r` and tabs are
// ignored. A line starting with `~` sets a variable:
//
//	~t 150    bind window, ms
//	~d 150    long-hold time, ms
//	~r 450    native repeat threshold, ms
//	~o 750    chord timeout, ms (0 disables)
//	~s 1      safe mode while loading
//	~c 0      CapsLock acts as left Shift
//	~l 1      following bindings go to layer 1 (`*` = every layer)
//	~Q xabc   macro x plays a, b, c
//
// Every other line is a binding: primary key, partner key or a blank for a
// plain tap, an optional blank, then up to four output characters. A line
// of exactly two characters is a tap binding:
//
//	jk E      chord j+k gives Esc
//	a  N      tap a gives Enter
//	aN        same as a  N
//	ff C      long hold f gives left Ctrl
//	vj ~l1    chord v+j switches to layer 1
//	x  Qm     tap x plays macro m
//	w  E05B   raw: prefix byte E0, make code 5B
//	Qc Cc     macro step c sends Ctrl+c
package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"chordmap/binding"
	"chordmap/scancodes"
)

// MaxTextSize bounds the configuration text; anything beyond is ignored.
const MaxTextSize = 10000

// MaxSpec is the longest output spec of a binding line.
const MaxSpec = 4

type parser struct {
	km   *scancodes.KeyMap
	snap *Snapshot

	layer     int
	allLayers bool
	line      int
}

// Parse builds a fresh, frozen Snapshot from text. It never fails: lines it
// cannot use are skipped and reported in Snapshot.Warnings.
func Parse(text []byte, km *scancodes.KeyMap) *Snapshot {
	p := &parser{
		km: km,
		snap: &Snapshot{
			Table:  binding.New(),
			Params: DefaultParams(),
			Macros: &Macros{},
		},
	}
	if len(text) > MaxTextSize {
		p.warnf("text truncated to %d bytes", MaxTextSize)
		text = text[:MaxTextSize]
	}
	for _, raw := range bytes.Split(text, []byte{'\n'}) {
		p.line++
		p.parseLine(clean(raw))
	}
	p.snap.Table.Freeze()
	return p.snap
}

// clean drops the comment, carriage returns, tabs and trailing blanks.
func clean(raw []byte) string {
	b := make([]byte, 0, len(raw))
	for _, c := range raw {
		if c == '"' {
			break
		}
		if c == '\r' || c == '\t' {
			continue
		}
		b = append(b, c)
	}
	return strings.TrimRight(string(b), " ")
}

func (p *parser) warnf(format string, args ...interface{}) {
	p.snap.Warnings = append(p.snap.Warnings, Warning{Line: p.line, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) parseLine(s string) {
	if s == "" {
		return
	}
	p.snap.Lines++

	if s[0] == ' ' {
		p.warnf("line starts with a blank")
		return
	}
	if p.km.Lookup(s[0]).Kind == scancodes.KindVariable {
		p.variable(s)
		return
	}
	p.binding(s)
}

func (p *parser) variable(s string) {
	if len(s) < 2 {
		p.warnf("variable line without a selector")
		return
	}
	val := strings.TrimPrefix(s[2:], " ")

	params := &p.snap.Params
	switch s[1] {
	case 't':
		params.BindWindow = millis(val)
	case 'd':
		params.LongHold = millis(val)
	case 'r':
		params.RepeatThreshold = millis(val)
	case 'o':
		params.ChordTimeout = millis(val)
	case 's':
		params.SafeMode = number(val) != 0
	case 'c':
		params.CapsLockAsShift = number(val) != 0
	case 'l':
		p.selectLayer(val)
	case 'Q':
		p.macro(val)
	default:
		p.warnf("unknown variable %q", s[1])
	}
}

func (p *parser) selectLayer(val string) {
	val = strings.TrimSpace(val)
	if strings.HasPrefix(val, "*") {
		p.allLayers = true
		return
	}
	n := number(val)
	if n >= binding.MaxLayers {
		p.warnf("layer %d clamped to %d", n, binding.MaxLayers-1)
		n = binding.MaxLayers - 1
	}
	p.layer, p.allLayers = n, false
}

func (p *parser) macro(val string) {
	if val == "" {
		p.warnf("macro without a name")
		return
	}
	name := p.km.Lookup(val[0])
	if !name.IsReal() {
		p.warnf("macro name %q is not a key", val[0])
		return
	}
	text := strings.TrimPrefix(val[1:], " ")
	if len(text) > MacroLen {
		p.warnf("macro %q truncated to %d characters", val[0], MacroLen)
	}
	p.snap.Macros.set(name.Code, text)
}

func (p *parser) binding(s string) {
	primary := p.km.Lookup(s[0])
	if len(s) < 2 {
		p.warnf("binding without output")
		return
	}

	// "aN" is shorthand for "a  N"
	partner := scancodes.Single
	spec := s[1:]
	if len(s) > 2 {
		if s[1] != ' ' {
			partner = p.km.Lookup(s[1])
		}
		spec = strings.TrimPrefix(s[2:], " ")
	}
	if spec == "" {
		p.warnf("binding without output")
		return
	}
	if len(spec) > MaxSpec {
		p.warnf("output %q truncated to %d characters", spec, MaxSpec)
		spec = spec[:MaxSpec]
	}

	e, ok := p.entry(spec)
	if !ok {
		return
	}

	switch primary.Kind {
	case scancodes.KindReal:
		if partner.Kind != scancodes.KindReal && partner.Kind != scancodes.KindSingle {
			p.warnf("unmapped partner key %q", s[1])
			return
		}
		for _, l := range p.layers() {
			if err := p.snap.Table.Set(l, primary.Code, partner, e); err != nil {
				p.warnf("%v", err)
			}
		}
	case scancodes.KindCommand:
		if !partner.IsReal() {
			p.warnf("macro step needs a key, got %q", s[1])
			return
		}
		for _, l := range p.layers() {
			if err := p.snap.Table.SetStep(l, partner.Code, e); err != nil {
				p.warnf("%v", err)
			}
		}
	default:
		p.warnf("unmapped key %q", s[0])
	}
}

// entry decodes the output spec of a binding line.
func (p *parser) entry(spec string) (binding.Entry, bool) {
	var e binding.Entry

	if len(spec) >= MaxSpec && spec[0] != '~' {
		e.Flag = hexPair(spec[0], spec[1])
		code := hexPair(spec[2], spec[3])
		if code == 0 {
			p.warnf("raw output %q has no key code", spec)
			return e, false
		}
		e.Out[0] = scancodes.Real(scancodes.Code(code))
		return e, true
	}

	for i := 0; i < len(spec) && i < len(e.Out); i++ {
		e.Out[i] = p.km.Lookup(spec[i])
	}

	switch e.Out[0].Kind {
	case scancodes.KindNone:
		p.warnf("unmapped output %q", spec[0])
		return e, false

	case scancodes.KindVariable:
		if e.Out[1].IsNone() {
			p.warnf("command without a selector")
			return e, false
		}
		e.Out[2] = scancodes.None
		switch {
		case len(spec) >= 4:
			e.Arg = digit(spec[3])
		case len(spec) == 3:
			e.Arg = digit(spec[2])
		}

	case scancodes.KindCommand:
		if !e.Out[1].IsReal() {
			p.warnf("macro reference without a name")
			return e, false
		}
		e.Out[2] = scancodes.None

	default:
		for i := 1; i < len(e.Out); i++ {
			if !e.Out[i].IsReal() {
				if i < len(spec) && spec[i] != ' ' {
					p.warnf("unmapped output %q", spec[i])
				}
				for ; i < len(e.Out); i++ {
					e.Out[i] = scancodes.None
				}
			}
		}
	}
	return e, true
}

func (p *parser) layers() []int {
	if !p.allLayers {
		return []int{p.layer}
	}
	ls := make([]int, binding.MaxLayers)
	for i := range ls {
		ls[i] = i
	}
	return ls
}

// number reads the leading decimal digits of s; no digits yields 0.
func number(s string) int {
	s = strings.TrimLeft(s, " ")
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if n < 1<<30 {
			n = n*10 + int(s[i]-'0')
		}
	}
	return n
}

func millis(s string) time.Duration {
	return time.Duration(number(s)) * time.Millisecond
}

func digit(c byte) uint8 {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	return 0
}

func hexPair(hi, lo byte) uint8 {
	h, _ := scancodes.HexDigit(hi)
	l, _ := scancodes.HexDigit(lo)
	return h<<4 | l
}
