//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"errors"
)

// ErrPCAPDisabled is returned by ReplayPCAP in builds without the pcap tag.
var ErrPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP replay")

// ReplayPCAP is a stub implementation when PCAP support is disabled.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, realtime bool, h ScanHandler, stats *ListenerStats) error {
	return ErrPCAPDisabled
}
