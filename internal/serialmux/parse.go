package serialmux

import "strings"

const (
	EventTypeSensorCollect = "sensor_collect"
	EventTypeMovement      = "movement"
	EventTypeUnknown       = "unknown"
)

// ClassifyPayload returns the event type of a controller line by looking for
// its top-level key. It does not validate the JSON; decoding is left to the
// handler.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	if !strings.HasPrefix(p, "{") {
		return EventTypeUnknown
	}
	switch {
	case strings.Contains(p, `"sensor_collect"`):
		return EventTypeSensorCollect
	case strings.Contains(p, `"movement"`):
		return EventTypeMovement
	}
	return EventTypeUnknown
}
