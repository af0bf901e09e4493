package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/autobrake/internal/monitoring"
)

// ErrForwarderClosed is returned by Send after Close.
var ErrForwarderClosed = errors.New("forwarder closed")

// Forwarder sends JSON bounds lines to a UDP destination. Send never blocks:
// when the queue is full the line is dropped and counted.
type Forwarder struct {
	conn        net.Conn
	address     string
	queue       chan []byte
	logInterval time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}

	sent    atomic.Uint64
	dropped atomic.Uint64
	errors  atomic.Uint64
}

// NewForwarder dials address ("host:port").
func NewForwarder(address string, logInterval time.Duration) (*Forwarder, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &Forwarder{
		conn:        conn,
		address:     address,
		queue:       make(chan []byte, 64),
		logInterval: logInterval,
		done:        make(chan struct{}),
	}, nil
}

// Start runs the send loop until ctx is done or Close is called.
func (f *Forwarder) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()
		var lastErr error
		var reported uint64

		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case b := <-f.queue:
				if _, err := f.conn.Write(b); err != nil {
					f.errors.Add(1)
					lastErr = err
					continue
				}
				f.sent.Add(1)
			case <-ticker.C:
				failed := f.errors.Load() + f.dropped.Load()
				if failed > reported {
					monitoring.Logf("forwarding to %s: %d lines lost (latest error: %v)", f.address, failed-reported, lastErr)
					reported = failed
				}
			}
		}
	}()
	monitoring.Logf("forwarding bounds to %s", f.address)
}

// Send queues line for delivery. It satisfies the autobrake line publisher.
func (f *Forwarder) Send(line string) error {
	if f.closed.Load() {
		return ErrForwarderClosed
	}
	select {
	case f.queue <- []byte(line):
	default:
		f.dropped.Add(1)
	}
	return nil
}

// ForwarderStats is a snapshot of a forwarder's counters.
type ForwarderStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
}

// Stats returns the forwarder's counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{Sent: f.sent.Load(), Dropped: f.dropped.Load(), Errors: f.errors.Load()}
}

// Close stops the send loop and closes the connection.
func (f *Forwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		close(f.done)
		err = f.conn.Close()
	})
	return err
}
