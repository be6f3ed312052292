//go:build linux

package device

import (
	"context"

	log "github.com/sirupsen/logrus"

	"chordmap/engine"
)

// Dispatcher is the engine side of a Pipe.
type Dispatcher interface {
	Dispatch(batch []engine.Event) engine.Report
}

// Pipe feeds captured batches through d into out until in is closed or ctx
// is done. Bypass inputs split a batch so ordering is kept.
func Pipe(ctx context.Context, in <-chan Batch, d Dispatcher, out Output, logger *log.Entry) error {
	pending := make([]engine.Event, 0, engine.MaxOutput)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		r := d.Dispatch(pending)
		if r.Dropped > 0 {
			logger.Warnf("%d events dropped", r.Dropped)
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			for _, input := range b.Inputs {
				if !input.Bypass {
					pending = append(pending, input.Event)
					continue
				}
				flush()
				if err := out.Raw(input.Code, input.Value); err != nil {
					logger.Warnf("raw key %d: %v", input.Code, err)
				}
			}
			flush()
		}
	}
}
