package serialmux

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/autobrake/internal/monitoring"
)

// LineHandler consumes one controller line. A returned error is logged and
// the pump carries on with the next line.
type LineHandler func(line string) error

// PumpStats counts what a Pump has dispatched.
type PumpStats struct {
	Lines   atomic.Uint64
	Ignored atomic.Uint64
	Errors  atomic.Uint64
}

// Pump subscribes to mux and hands every recognised line to h until ctx is
// done or the subscription is closed. Lines that are not sensor_collect or
// movement payloads are counted and skipped. Handler errors are logged at
// most once per errorLogInterval.
func Pump(ctx context.Context, mux SerialMuxInterface, h LineHandler, stats *PumpStats) error {
	if stats == nil {
		stats = &PumpStats{}
	}
	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	var lastLog time.Time
	var suppressed uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-ch:
			if !ok {
				return nil
			}
			stats.Lines.Add(1)
			if ClassifyPayload(line) == EventTypeUnknown {
				stats.Ignored.Add(1)
				continue
			}
			if err := h(line); err != nil {
				stats.Errors.Add(1)
				if time.Since(lastLog) < errorLogInterval {
					suppressed++
					continue
				}
				if suppressed > 0 {
					monitoring.Logf("serial line rejected: %v (%d similar suppressed)", err, suppressed)
				} else {
					monitoring.Logf("serial line rejected: %v", err)
				}
				lastLog = time.Now()
				suppressed = 0
			}
		}
	}
}

const errorLogInterval = 5 * time.Second
