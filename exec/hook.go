package exec

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Environment handed to hook commands.
const (
	EnvEvent    = "CHORDMAP_EVENT"
	EnvBindings = "CHORDMAP_BINDINGS"
	EnvWarnings = "CHORDMAP_WARNINGS"
)

// Hook runs one configured command per event. Events arriving while the
// previous run is still going are skipped.
type Hook struct {
	cmd     Command
	log     *log.Entry
	running atomic.Bool
	seq     atomic.Uint64
}

// NewHook parses line once; every Fire reuses the result.
func NewHook(line string, timeout time.Duration, logger *log.Entry) (*Hook, error) {
	c, err := Parse(line)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
	if logger == nil {
		logger = log.WithField("component", "hook")
	}
	return &Hook{cmd: *c, log: logger}, nil
}

func (h *Hook) String() string { return h.cmd.String() }

// Fire runs the hook synchronously. It reports false when a previous run
// was still in progress and nothing was started.
func (h *Hook) Fire(ctx context.Context, event string, bindings, warnings int) (*Result, bool) {
	if !h.running.CompareAndSwap(false, true) {
		h.log.Debugf("hook busy, %s skipped", event)
		return nil, false
	}
	defer h.running.Store(false)

	c := h.cmd
	c.ID = fmt.Sprintf("%s-%d", event, h.seq.Add(1))
	c.Env = []string{
		EnvEvent + "=" + event,
		fmt.Sprintf("%s=%d", EnvBindings, bindings),
		fmt.Sprintf("%s=%d", EnvWarnings, warnings),
	}

	r := Run(ctx, &c)
	switch {
	case !r.Processed:
		h.log.Errorf("hook %s: %s", c.ID, strings.TrimSpace(string(r.StdErr)))
	case r.Status != 0:
		h.log.Warnf("hook %s exited %d: %s", c.ID, r.Status, strings.TrimSpace(string(r.StdErr)))
	default:
		h.log.Debugf("hook %s ok: %s", c.ID, strings.TrimSpace(string(r.StdOut)))
	}
	return r, true
}
