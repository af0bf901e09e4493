//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/autobrake/internal/monitoring"
)

// ReplayPCAP feeds the scan datagrams captured in pcapFile on udpPort to h,
// in capture order. When realtime is set the original inter-packet gaps are
// reproduced. This function is only available when building with the 'pcap'
// build tag.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, realtime bool, h ScanHandler, stats *ListenerStats) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
	}

	if stats == nil {
		stats = &ListenerStats{}
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	var (
		count    int
		lastCap  time.Time
		started  = time.Now()
		lastWall = started
	)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("PCAP replay stopped after %d datagrams", count)
			return ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				monitoring.Logf("PCAP replay complete: %d datagrams in %v", count, time.Since(started))
				return nil
			}

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			if realtime {
				ts := packet.Metadata().Timestamp
				if !lastCap.IsZero() {
					if wait := ts.Sub(lastCap) - time.Since(lastWall); wait > 0 {
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-time.After(wait):
						}
					}
				}
				lastCap = ts
				lastWall = time.Now()
			}

			count++
			if err := handleDatagram(udp.Payload, h, stats); err != nil {
				monitoring.Logf("PCAP datagram %d: %v", count, err)
			}
		}
	}
}
