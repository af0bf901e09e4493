package autobrake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/autobrake/internal/envelope"
)

// Publisher delivers bounds to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, b envelope.Bounds) error
}

// BoundsMessage is the wire form consumed by the motor controller.
type BoundsMessage struct {
	AutoMaxVel float64 `json:"auto_max_vel"`
	AutoMinVel float64 `json:"auto_min_vel"`
}

// EncodeBounds renders b as a single JSON line without a trailing newline.
func EncodeBounds(b envelope.Bounds) (string, error) {
	out, err := json.Marshal(BoundsMessage{AutoMaxVel: b.Max, AutoMinVel: b.Min})
	if err != nil {
		return "", fmt.Errorf("encode bounds: %w", err)
	}
	return string(out), nil
}

// LinePublisher sends each bounds update as one JSON line through Send. The
// serial mux's SendCommand and the UDP forwarder's Send both fit.
type LinePublisher struct {
	Name string
	Send func(line string) error
}

// Publish implements Publisher.
func (p LinePublisher) Publish(_ context.Context, b envelope.Bounds) error {
	line, err := EncodeBounds(b)
	if err != nil {
		return err
	}
	if err := p.Send(line); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Name, err)
	}
	return nil
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, b envelope.Bounds) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, b envelope.Bounds) error { return f(ctx, b) }
