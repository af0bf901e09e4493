// Package scan holds the planar range scan message, its ROS1 wire encoding and
// the projection of scan samples into the vehicle frame.
package scan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ErrShortMessage is returned when a datagram ends before the message does.
var ErrShortMessage = errors.New("scan message truncated")

// Header mirrors std_msgs/Header.
type Header struct {
	Seq     uint32
	Stamp   time.Time
	FrameID string
}

// LaserScan mirrors sensor_msgs/LaserScan. Angles are radians, ranges metres.
// Ranges outside [RangeMin, RangeMax] are invalid returns.
type LaserScan struct {
	Header         Header
	AngleMin       float32
	AngleMax       float32
	AngleIncrement float32
	TimeIncrement  float32
	ScanTime       float32
	RangeMin       float32
	RangeMax       float32
	Ranges         []float32
	Intensities    []float32
}

// Valid reports whether r is a usable return for this scan.
func (m *LaserScan) Valid(r float32) bool {
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
		return false
	}
	return r >= m.RangeMin && r <= m.RangeMax
}

// MarshalBinary encodes the message using ROS1 serialisation (little endian,
// uint32 length prefixes for strings and arrays).
func (m *LaserScan) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 64+4*(len(m.Ranges)+len(m.Intensities))))
	le := binary.LittleEndian

	secs, nsecs := stampParts(m.Header.Stamp)
	binary.Write(buf, le, m.Header.Seq)
	binary.Write(buf, le, secs)
	binary.Write(buf, le, nsecs)
	binary.Write(buf, le, uint32(len(m.Header.FrameID)))
	buf.WriteString(m.Header.FrameID)

	for _, v := range []float32{
		m.AngleMin, m.AngleMax, m.AngleIncrement,
		m.TimeIncrement, m.ScanTime, m.RangeMin, m.RangeMax,
	} {
		binary.Write(buf, le, v)
	}

	binary.Write(buf, le, uint32(len(m.Ranges)))
	binary.Write(buf, le, m.Ranges)
	binary.Write(buf, le, uint32(len(m.Intensities)))
	binary.Write(buf, le, m.Intensities)

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a ROS1 serialised LaserScan. Array lengths are
// checked against the bytes remaining so a corrupt prefix cannot force a large
// allocation.
func (m *LaserScan) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	le := binary.LittleEndian

	var secs, nsecs, n uint32
	for _, dst := range []*uint32{&m.Header.Seq, &secs, &nsecs, &n} {
		if err := binary.Read(r, le, dst); err != nil {
			return wrapShort(err, "header")
		}
	}
	if int(n) > r.Len() {
		return fmt.Errorf("%w: frame_id length %d exceeds %d remaining bytes", ErrShortMessage, n, r.Len())
	}
	frameID := make([]byte, n)
	if _, err := io.ReadFull(r, frameID); err != nil {
		return wrapShort(err, "frame_id")
	}
	m.Header.FrameID = string(frameID)
	m.Header.Stamp = time.Unix(int64(secs), int64(nsecs)).UTC()

	for _, dst := range []*float32{
		&m.AngleMin, &m.AngleMax, &m.AngleIncrement,
		&m.TimeIncrement, &m.ScanTime, &m.RangeMin, &m.RangeMax,
	} {
		if err := binary.Read(r, le, dst); err != nil {
			return wrapShort(err, "scan parameters")
		}
	}

	var err error
	if m.Ranges, err = readFloat32s(r, "ranges"); err != nil {
		return err
	}
	if m.Intensities, err = readFloat32s(r, "intensities"); err != nil {
		return err
	}
	return nil
}

func readFloat32s(r *bytes.Reader, field string) ([]float32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, wrapShort(err, field)
	}
	if uint64(n)*4 > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: %s length %d exceeds %d remaining bytes", ErrShortMessage, field, n, r.Len())
	}
	out := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, wrapShort(err, field)
	}
	return out, nil
}

func wrapShort(err error, field string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrShortMessage, field)
	}
	return fmt.Errorf("reading %s: %w", field, err)
}

func stampParts(t time.Time) (uint32, uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint32(t.Unix()), uint32(t.Nanosecond())
}
