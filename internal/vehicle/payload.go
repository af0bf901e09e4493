package vehicle

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownPayload is returned for well-formed JSON that carries neither a
// state report nor a movement command.
var ErrUnknownPayload = errors.New("unknown vehicle payload")

type envelope struct {
	SensorCollect *Report   `json:"sensor_collect"`
	Movement      *Movement `json:"movement"`
}

// Decode parses one line from the vehicle link. Exactly one of the returned
// pointers is non-nil on success.
func Decode(line []byte) (*Report, *Movement, error) {
	var e envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, nil, fmt.Errorf("decode vehicle payload: %w", err)
	}
	switch {
	case e.SensorCollect != nil:
		return e.SensorCollect, nil, nil
	case e.Movement != nil:
		return nil, e.Movement, nil
	}
	return nil, nil, ErrUnknownPayload
}

// Apply decodes line and stores its contents in t.
func (t *Tracker) Apply(line []byte) error {
	r, m, err := Decode(line)
	if err != nil {
		return err
	}
	if r != nil {
		t.Ingest(*r)
	} else {
		t.SetTarget(*m)
	}
	return nil
}
