package serialmux

import (
	"errors"
	"testing"
)

func TestPortOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "zero value takes controller defaults",
			in:   PortOptions{},
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		{
			name: "explicit values kept",
			in:   PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"},
			want: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"},
		},
		{
			name: "negative baud defaults",
			in:   PortOptions{BaudRate: -5, Parity: " odd "},
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "O"},
		},
		{name: "data bits too small", in: PortOptions{DataBits: 4}, wantErr: true},
		{name: "unsupported stop bits", in: PortOptions{StopBits: 3}, wantErr: true},
		{name: "unsupported parity", in: PortOptions{Parity: "mark"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%+v) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: 115200, Parity: "none"}) {
		t.Error("defaults should equal their explicit form")
	}
	if (PortOptions{}).Equal(PortOptions{BaudRate: 9600}) {
		t.Error("different baud rates compared equal")
	}
	if (PortOptions{Parity: "bad"}).Equal(PortOptions{Parity: "bad"}) {
		t.Error("invalid options compared equal")
	}
}

func TestPortOptions_PortMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "E"}.PortMode()
	if err != nil {
		t.Fatalf("PortMode: %v", err)
	}
	want := SerialPortMode{BaudRate: 57600, DataBits: 8, Parity: EvenParity, StopBits: TwoStopBits}
	if *mode != want {
		t.Errorf("PortMode = %+v, want %+v", *mode, want)
	}

	if _, err := (PortOptions{DataBits: 9}).PortMode(); err == nil {
		t.Error("expected error for 9 data bits")
	}
}

func TestDefaultSerialPortMode(t *testing.T) {
	got := *DefaultSerialPortMode()
	want := SerialPortMode{BaudRate: 115200, DataBits: 8, Parity: NoParity, StopBits: OneStopBit}
	if got != want {
		t.Errorf("DefaultSerialPortMode = %+v, want %+v", got, want)
	}
}

func TestOpenSerialMux(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	s, err := OpenSerialMux(factory, "/dev/ttyACM0", PortOptions{})
	if err != nil {
		t.Fatalf("OpenSerialMux: %v", err)
	}
	call := factory.LastCall()
	if call == nil || call.Path != "/dev/ttyACM0" || call.Mode.BaudRate != DefaultBaudRate {
		t.Fatalf("unexpected open call %+v", call)
	}
	if err := s.SendCommand("hi"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "hi\n" {
		t.Errorf("written %q", got)
	}

	factory.Error = errors.New("permission denied")
	if _, err := OpenSerialMux(factory, "/dev/ttyACM0", PortOptions{}); err == nil {
		t.Error("expected open error")
	}
	if _, err := OpenSerialMux(factory, "/dev/ttyACM0", PortOptions{Parity: "x"}); err == nil {
		t.Error("expected options error")
	}
	if n := len(factory.OpenCalls); n != 2 {
		t.Errorf("OpenCalls = %d, want 2 (bad options never reach Open)", n)
	}
}

func TestRealSerialPortFactoryMissingDevice(t *testing.T) {
	if _, err := NewRealSerialMux("/dev/autobrake-does-not-exist", PortOptions{}); err == nil {
		t.Fatal("expected error opening a missing device")
	}
}
