//go:build linux

package device

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"

	"chordmap/engine"
)

// Input is one key transition read from a device.
type Input struct {
	Event  engine.Event
	Bypass bool // no Set 1 equivalent, Code/Value go out untouched
	Code   uint16
	Value  int32
}

// Batch is everything a device reported up to one SYN_REPORT.
type Batch struct {
	Device string
	Inputs []Input
}

type CaptureOption func(*Capture)

// WithGrab takes exclusive access to every device. Off in test mode.
func WithGrab(grab bool) CaptureOption { return func(c *Capture) { c.grab = grab } }

// WithRespawn sets how often the device list is rescanned for new keyboards.
func WithRespawn(d time.Duration) CaptureOption { return func(c *Capture) { c.respawn = d } }

func WithLogger(e *log.Entry) CaptureOption { return func(c *Capture) { c.log = e } }

// Capture reads every keyboard matching a glob.
type Capture struct {
	search  string
	bypass  *regexp.Regexp
	grab    bool
	respawn time.Duration
	log     *log.Entry

	mu   sync.Mutex
	open map[string]*evdev.InputDevice
	wg   sync.WaitGroup
}

func NewCapture(search string, bypass *regexp.Regexp, opts ...CaptureOption) *Capture {
	c := &Capture{
		search:  search,
		bypass:  bypass,
		grab:    true,
		respawn: 30 * time.Second,
		log:     log.WithField("component", "device"),
		open:    make(map[string]*evdev.InputDevice),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.respawn <= 0 {
		c.respawn = 30 * time.Second
	}
	return c
}

// Run sends batches to out until ctx is done, rescanning for hotplugged
// keyboards every respawn interval.
func (c *Capture) Run(ctx context.Context, out chan<- Batch) error {
	defer c.wg.Wait()
	defer c.closeAll()

	t := time.NewTicker(c.respawn)
	defer t.Stop()
	for {
		c.scan(ctx, out)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Devices returns the names of the devices currently read.
func (c *Capture) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.open))
	for _, d := range c.open {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

func (c *Capture) scan(ctx context.Context, out chan<- Batch) {
	devs, err := evdev.ListInputDevices(c.search)
	if err != nil {
		c.log.Errorf("unable to list devices: %v", err)
		return
	}

	for _, dev := range devs {
		c.mu.Lock()
		_, known := c.open[dev.Fn]
		c.mu.Unlock()
		if known || !c.keyboard(dev) {
			dev.File.Close()
			continue
		}
		if c.grab {
			if err := dev.Grab(); err != nil {
				c.log.Warnf("unable to grab %q: %v", dev.Name, err)
				dev.File.Close()
				continue
			}
		}
		c.mu.Lock()
		c.open[dev.Fn] = dev
		c.mu.Unlock()

		c.log.Infof("keyboard: %s (%s)", dev.Name, dev.Fn)
		c.wg.Add(1)
		go c.read(ctx, dev, out)
	}

	if names := c.Devices(); len(names) == 0 {
		c.log.Warnf("no keyboard found in %s, retrying in %v", c.search, c.respawn)
	} else {
		c.log.Debugf("reading %s", strings.Join(names, ", "))
	}
}

// keyboard reports whether dev is a plain keyboard we may take over.
func (c *Capture) keyboard(dev *evdev.InputDevice) bool {
	if c.bypass != nil && c.bypass.MatchString(dev.Name) {
		return false
	}
	isKeyboard := false
	for ev := range dev.Capabilities {
		switch ev.Type {
		case evdev.EV_ABS, evdev.EV_REL:
			return false
		case evdev.EV_KEY:
			isKeyboard = true
		case evdev.EV_SYN, evdev.EV_MSC, evdev.EV_SW, evdev.EV_LED, evdev.EV_SND, evdev.EV_REP:
		default:
			c.log.Debugf("skipping %q: unsupported event type %#x", dev.Name, ev.Type)
			return false
		}
	}
	return isKeyboard
}

func (c *Capture) read(ctx context.Context, dev *evdev.InputDevice, out chan<- Batch) {
	defer c.wg.Done()
	defer c.drop(dev)

	var inputs []Input
	for {
		event, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warnf("closing %q: %v", dev.Name, err)
			}
			return
		}

		switch event.Type {
		case evdev.EV_KEY:
			ev, ok := FromEvdev(event.Code, event.Value)
			inputs = append(inputs, Input{Event: ev, Bypass: !ok, Code: event.Code, Value: event.Value})
		case evdev.EV_SYN:
			if event.Code != evdev.SYN_REPORT || len(inputs) == 0 {
				continue
			}
			select {
			case out <- Batch{Device: dev.Name, Inputs: inputs}:
			case <-ctx.Done():
				return
			}
			inputs = nil
		}
	}
}

func (c *Capture) drop(dev *evdev.InputDevice) {
	c.mu.Lock()
	delete(c.open, dev.Fn)
	c.mu.Unlock()
	if c.grab {
		dev.Release()
	}
	dev.File.Close()
}

// closeAll unblocks every reader.
func (c *Capture) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dev := range c.open {
		dev.File.Close()
	}
}
