package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// BrakeEvent is one evaluation that restricted the velocity envelope.
type BrakeEvent struct {
	ID             int64     `json:"id"`
	Session        string    `json:"session"`
	Recorded       time.Time `json:"recorded"`
	Policy         string    `json:"policy"`
	SteeringAngle  float64   `json:"steering_angle"`
	Velocity       float64   `json:"velocity"`
	MaxBound       float64   `json:"max_bound"`
	MinBound       float64   `json:"min_bound"`
	Closest        *float64  `json:"closest,omitempty"` // nil when nothing was in path
	InPath         int       `json:"in_path"`
	KeptSamples    int       `json:"kept_samples"`
	DroppedSamples int       `json:"dropped_samples"`
}

// DefaultEventLimit caps RecentEvents when no positive limit is given.
const DefaultEventLimit = 100

// RecordEvent inserts e, stamping it with this handle's session id. A Closest
// of +Inf is stored as NULL.
func (db *DB) RecordEvent(ctx context.Context, e BrakeEvent) error {
	var closest sql.NullFloat64
	if e.Closest != nil && !math.IsInf(*e.Closest, 0) && !math.IsNaN(*e.Closest) {
		closest = sql.NullFloat64{Float64: *e.Closest, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO brake_events (
			session_id, recorded_unix, policy, steering_angle, velocity,
			max_bound, min_bound, closest_distance, in_path,
			kept_samples, dropped_samples
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.session, unixSeconds(e.Recorded), e.Policy, e.SteeringAngle, e.Velocity,
		e.MaxBound, e.MinBound, closest, e.InPath,
		e.KeptSamples, e.DroppedSamples,
	)
	if err != nil {
		return fmt.Errorf("failed to insert brake event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]BrakeEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, session_id, recorded_unix, policy, steering_angle,
			velocity, max_bound, min_bound, closest_distance, in_path,
			kept_samples, dropped_samples
		FROM brake_events
		ORDER BY recorded_unix DESC, event_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query brake events: %w", err)
	}
	defer rows.Close()

	events := []BrakeEvent{}
	for rows.Next() {
		var (
			e        BrakeEvent
			recorded float64
			closest  sql.NullFloat64
		)
		if err := rows.Scan(
			&e.ID, &e.Session, &recorded, &e.Policy, &e.SteeringAngle,
			&e.Velocity, &e.MaxBound, &e.MinBound, &closest, &e.InPath,
			&e.KeptSamples, &e.DroppedSamples,
		); err != nil {
			return nil, fmt.Errorf("failed to scan brake event: %w", err)
		}
		e.Recorded = fromUnixSeconds(recorded)
		if closest.Valid {
			c := closest.Float64
			e.Closest = &c
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// CountEvents returns the number of events recorded in session, or in all
// sessions when session is empty.
func (db *DB) CountEvents(ctx context.Context, session string) (int, error) {
	var n int
	var err error
	if session == "" {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM brake_events`).Scan(&n)
	} else {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM brake_events WHERE session_id = ?`, session).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count brake events: %w", err)
	}
	return n, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
