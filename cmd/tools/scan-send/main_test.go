package main

import (
	"context"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/autobrake/internal/scan"
)

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("testdata/wall_approach.json")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(f.Scans) != 20 {
		t.Fatalf("scans = %d, want 20", len(f.Scans))
	}

	m := f.Message(0, 5, time.Unix(1700000000, 0))
	if m.Header.Seq != 5 || m.Header.FrameID != "laser" {
		t.Errorf("header = %+v", m.Header)
	}
	if len(m.Ranges) != 37 {
		t.Fatalf("ranges = %d, want 37", len(m.Ranges))
	}
	if !math.IsInf(float64(m.Ranges[0]), 1) {
		t.Errorf("null range sent as %v, want +Inf", m.Ranges[0])
	}
	if m.Ranges[18] != 3.0 {
		t.Errorf("centre range = %v, want 3.0", m.Ranges[18])
	}
	// Message wraps around the fixture.
	if got := f.Message(20, 0, time.Time{}).Ranges[18]; got != 3.0 {
		t.Errorf("wrapped centre range = %v", got)
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	for name, path := range map[string]string{
		"missing":      filepath.Join(dir, "nope.json"),
		"bad json":     write("bad.json", "{"),
		"no scans":     write("empty.json", `{"angle_increment":0.1,"scans":[]}`),
		"no increment": write("inc.json", `{"scans":[[1.0]]}`),
	} {
		if _, err := LoadFixture(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSend(t *testing.T) {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("UDP unavailable: %v", err)
	}
	defer recv.Close()

	conn, err := net.Dial("udp", recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	f, err := LoadFixture("testdata/wall_approach.json")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	sent, err := send(context.Background(), conn, f, time.Millisecond, 3)
	if err != nil || sent != 3 {
		t.Fatalf("send = %d, %v", sent, err)
	}

	buf := make([]byte, 64*1024)
	for want := uint32(0); want < 3; want++ {
		recv.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := recv.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m scan.LaserScan
		if err := m.UnmarshalBinary(buf[:n]); err != nil {
			t.Fatalf("UnmarshalBinary: %v", err)
		}
		if m.Header.Seq != want {
			t.Errorf("seq = %d, want %d", m.Header.Seq, want)
		}
	}
}

func TestSendStopsOnCancel(t *testing.T) {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("UDP unavailable: %v", err)
	}
	defer recv.Close()
	conn, err := net.Dial("udp", recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	f := &Fixture{AngleIncrement: 0.1, RangeMax: 10, Scans: [][]*float32{{nil}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, err := send(ctx, conn, f, time.Hour, 0)
	if err != context.Canceled || sent != 1 {
		t.Errorf("send = %d, %v; want 1, context.Canceled", sent, err)
	}
}
