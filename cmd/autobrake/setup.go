package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/banshee-data/autobrake/internal/serialmux"
)

// openSerial picks the vehicle link: the simulated drive in dev mode, a
// disabled link when no port is named, otherwise the hardware port.
func openSerial(dev bool, port string, baud int) (serialmux.SerialMuxInterface, error) {
	switch {
	case dev:
		return serialmux.NewMockSerialMux(50 * time.Millisecond), nil
	case port == "":
		return serialmux.NewDisabledSerialMux(), nil
	}
	m, err := serialmux.NewRealSerialMux(port, serialmux.PortOptions{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// udpPort extracts the port number from a listen address like ":2370".
func udpPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid scan address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("invalid scan port %q", p)
	}
	return n, nil
}
