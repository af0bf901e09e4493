// Package network moves range scans and velocity bounds over UDP.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/autobrake/internal/monitoring"
	"github.com/banshee-data/autobrake/internal/scan"
)

// DefaultScanAddress is where scan datagrams are expected by default.
const DefaultScanAddress = ":2370"

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// ScanHandler receives each decoded scan.
type ScanHandler func(m *scan.LaserScan)

// ListenerStats counts datagrams seen by a listener or replay.
type ListenerStats struct {
	datagrams    atomic.Uint64
	bytes        atomic.Uint64
	decodeErrors atomic.Uint64
}

// ListenerCounts is a snapshot of ListenerStats.
type ListenerCounts struct {
	Datagrams    uint64 `json:"datagrams"`
	Bytes        uint64 `json:"bytes"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Snapshot returns the current counts.
func (s *ListenerStats) Snapshot() ListenerCounts {
	return ListenerCounts{
		Datagrams:    s.datagrams.Load(),
		Bytes:        s.bytes.Load(),
		DecodeErrors: s.decodeErrors.Load(),
	}
}

// ScanListenerConfig configures a ScanListener.
type ScanListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     ScanHandler
	Sockets     UDPSocketFactory
}

// ScanListener receives ROS1 LaserScan datagrams and hands each decoded scan
// to its handler on the receive goroutine.
type ScanListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     ScanHandler
	sockets     UDPSocketFactory
	stats       ListenerStats
}

// NewScanListener applies defaults to cfg and returns a listener.
func NewScanListener(cfg ScanListenerConfig) *ScanListener {
	l := &ScanListener{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: cfg.LogInterval,
		handler:     cfg.Handler,
		sockets:     cfg.Sockets,
	}
	if l.address == "" {
		l.address = DefaultScanAddress
	}
	if l.rcvBuf <= 0 {
		l.rcvBuf = 1 << 20
	}
	if l.logInterval <= 0 {
		l.logInterval = time.Minute
	}
	if l.sockets == nil {
		l.sockets = RealUDPSocketFactory{}
	}
	return l
}

// Stats returns the listener's counters.
func (l *ScanListener) Stats() ListenerCounts { return l.stats.Snapshot() }

// Start listens until ctx is cancelled. It returns ctx.Err() on cancellation
// and a wrapped error if the socket cannot be opened.
func (l *ScanListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.sockets.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		monitoring.Logf("failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
	}
	monitoring.Logf("scan listener started on %s", conn.LocalAddr())

	go l.logStats(ctx)

	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A short deadline lets the loop notice cancellation.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("UDP read error: %v", err)
			continue
		}
		if err := l.HandleDatagram(buf[:n]); err != nil {
			monitoring.Logf("dropping scan from %v: %v", from, err)
		}
	}
}

// HandleDatagram decodes one datagram and passes it to the handler.
func (l *ScanListener) HandleDatagram(b []byte) error {
	return handleDatagram(b, l.handler, &l.stats)
}

func handleDatagram(b []byte, h ScanHandler, stats *ListenerStats) error {
	stats.datagrams.Add(1)
	stats.bytes.Add(uint64(len(b)))

	var m scan.LaserScan
	if err := m.UnmarshalBinary(b); err != nil {
		stats.decodeErrors.Add(1)
		return err
	}
	if h != nil {
		h(&m)
	}
	return nil
}

func (l *ScanListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	var prev ListenerCounts
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := l.stats.Snapshot()
			if cur.Datagrams == prev.Datagrams {
				monitoring.Logf("no scans received in the last %v", l.logInterval)
			} else {
				monitoring.Logf("scans: %d received (%d bytes), %d undecodable",
					cur.Datagrams-prev.Datagrams, cur.Bytes-prev.Bytes, cur.DecodeErrors-prev.DecodeErrors)
			}
			prev = cur
		}
	}
}
