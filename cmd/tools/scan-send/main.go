// Command scan-send replays a JSON scan fixture to the autobrake node as
// LaserScan datagrams, for bench testing without a LIDAR.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/autobrake/internal/scan"
)

// Fixture is a sequence of scans sharing one geometry. Ranges of 0 or null
// are sent as +Inf (no return).
type Fixture struct {
	FrameID        string       `json:"frame_id"`
	AngleMin       float32      `json:"angle_min"`
	AngleMax       float32      `json:"angle_max"`
	AngleIncrement float32      `json:"angle_increment"`
	RangeMin       float32      `json:"range_min"`
	RangeMax       float32      `json:"range_max"`
	Scans          [][]*float32 `json:"scans"`
}

// LoadFixture reads and checks a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if len(f.Scans) == 0 {
		return nil, fmt.Errorf("fixture %s has no scans", path)
	}
	if f.AngleIncrement <= 0 {
		return nil, fmt.Errorf("fixture %s: angle_increment must be positive", path)
	}
	return &f, nil
}

// Message builds scan i (modulo the fixture length) with sequence number seq.
func (f *Fixture) Message(i int, seq uint32, stamp time.Time) *scan.LaserScan {
	raw := f.Scans[i%len(f.Scans)]
	ranges := make([]float32, len(raw))
	for j, r := range raw {
		if r == nil || *r == 0 {
			ranges[j] = float32(math.Inf(1))
			continue
		}
		ranges[j] = *r
	}
	return &scan.LaserScan{
		Header:         scan.Header{Seq: seq, Stamp: stamp, FrameID: f.FrameID},
		AngleMin:       f.AngleMin,
		AngleMax:       f.AngleMax,
		AngleIncrement: f.AngleIncrement,
		RangeMin:       f.RangeMin,
		RangeMax:       f.RangeMax,
		Ranges:         ranges,
	}
}

func main() {
	addr := flag.String("addr", "127.0.0.1:2370", "node scan address")
	fixture := flag.String("fixture", "cmd/tools/scan-send/testdata/wall_approach.json", "scan fixture")
	rate := flag.Float64("rate", 10, "scans per second")
	count := flag.Int("n", 0, "scans to send (0 loops until interrupted)")
	flag.Parse()

	f, err := LoadFixture(*fixture)
	if err != nil {
		log.Fatal(err)
	}
	if *rate <= 0 {
		log.Fatal("rate must be positive")
	}

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sent, err := send(ctx, conn, f, time.Duration(float64(time.Second) / *rate), *count)
	log.Printf("sent %d scans to %s", sent, *addr)
	if err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}

// send writes scans to conn every interval until count are sent (0 means no
// limit) or ctx is done.
func send(ctx context.Context, conn net.Conn, f *Fixture, interval time.Duration, count int) (int, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for count == 0 || sent < count {
		b, err := f.Message(sent, uint32(sent), time.Now()).MarshalBinary()
		if err != nil {
			return sent, err
		}
		if _, err := conn.Write(b); err != nil {
			return sent, fmt.Errorf("failed to send scan %d: %w", sent, err)
		}
		sent++
		if count != 0 && sent == count {
			break
		}
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}
	}
	return sent, nil
}
