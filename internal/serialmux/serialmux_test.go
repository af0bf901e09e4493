package serialmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/autobrake/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// shortWritePort accepts one byte less than it is given.
type shortWritePort struct{ *TestableSerialPort }

func (p shortWritePort) Write(b []byte) (int, error) {
	n, err := p.TestableSerialPort.Write(b[:len(b)-1])
	return n, err
}

func subscriberCount[T SerialPorter](s *SerialMux[T]) int {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	return len(s.subscribers)
}

func waitForSubscribers[T SerialPorter](t *testing.T, s *SerialMux[T], n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for subscriberCount(s) != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers, have %d", n, subscriberCount(s))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := s.Subscribe()
	id2, _ := s.Subscribe()
	if id1 == id2 {
		t.Fatalf("subscriber ids collide: %s", id1)
	}
	if got := subscriberCount(s); got != 2 {
		t.Fatalf("subscribers = %d, want 2", got)
	}

	s.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("channel still open after Unsubscribe")
	}
	s.Unsubscribe(id1) // no-op
	if got := subscriberCount(s); got != 1 {
		t.Errorf("subscribers = %d, want 1", got)
	}
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)

	if err := s.SendCommand(`{"auto_max_vel":1.5,"auto_min_vel":-1.5}`); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := s.SendCommand("already terminated\n"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	want := "{\"auto_max_vel\":1.5,\"auto_min_vel\":-1.5}\nalready terminated\n"
	if got := string(port.GetWrittenData()); got != want {
		t.Errorf("written %q, want %q", got, want)
	}
}

func TestSendCommandErrors(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = io.ErrClosedPipe
	s := NewSerialMux(port)
	if err := s.SendCommand("x"); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v, want ErrClosedPipe", err)
	}

	short := NewSerialMux(shortWritePort{NewTestableSerialPort()})
	if err := short.SendCommand("hello"); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("err = %v, want ErrWriteFailed", err)
	}
}

func TestInitialize(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "\n" {
		t.Errorf("written %q, want a bare newline", got)
	}

	port.WriteError = errors.New("unplugged")
	if err := s.Initialize(); err == nil {
		t.Error("expected error when the port rejects the write")
	}
}

func TestMonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("{\"sensor_collect\":{\"velocity\":1}}\r\n{\"movement\":{\"speed\":0.5}}\n"))
	s := NewSerialMux(port)

	_, a := s.Subscribe()
	_, b := s.Subscribe()

	// The buffer drains to EOF, which ends Monitor cleanly.
	if err := s.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	for name, ch := range map[string]chan string{"a": a, "b": b} {
		if got := <-ch; got != `{"sensor_collect":{"velocity":1}}` {
			t.Errorf("%s first line = %q", name, got)
		}
		if got := <-ch; got != `{"movement":{"speed":0.5}}` {
			t.Errorf("%s second line = %q", name, got)
		}
	}
}

func TestMonitorSkipsFullSubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	var sb strings.Builder
	total := subscriberBuffer + 4
	for i := 0; i < total; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	port.AddReadData([]byte(sb.String()))
	s := NewSerialMux(port)
	_, ch := s.Subscribe()

	if err := s.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if got := s.Skipped(); got != 4 {
		t.Errorf("Skipped = %d, want 4", got)
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered %d lines, want %d", len(ch), subscriberBuffer)
	}
	if got := <-ch; got != "line 0" {
		t.Errorf("first line = %q", got)
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	s := NewSerialMux(port)
	_, ch := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(ctx) }()

	port.AddReadData([]byte("first\n"))
	select {
	case got := <-ch:
		if got != "first" {
			t.Errorf("line = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no line delivered")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop")
	}
	port.Close()
}

func TestMonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("device disconnected")
	s := NewSerialMux(port)
	if err := s.Monitor(context.Background()); err == nil || err.Error() != "device disconnected" {
		t.Errorf("Monitor = %v", err)
	}
}

func TestCloseClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	port.CloseError = errors.New("close failed")
	s := NewSerialMux(port)
	_, ch := s.Subscribe()

	if err := s.Close(); err == nil {
		t.Error("expected the port's close error")
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open")
	}
	if !port.Closed {
		t.Error("port not closed")
	}
	if got := subscriberCount(s); got != 0 {
		t.Errorf("subscribers = %d after Close", got)
	}
}

func TestMockSerialMuxDrives(t *testing.T) {
	s := NewMockSerialMux(time.Millisecond)
	_, ch := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(ctx) }()

	select {
	case line := <-ch:
		if ClassifyPayload(line) != EventTypeSensorCollect {
			t.Errorf("mock line %q is not a sensor report", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mock produced no lines")
	}
	if err := s.SendCommand(`{"auto_max_vel":0,"auto_min_vel":0}`); err != nil {
		t.Errorf("SendCommand: %v", err)
	}

	cancel()
	<-done
	s.Close()
}
