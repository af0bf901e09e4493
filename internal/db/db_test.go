package db

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autobrake/internal/monitoring"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetSugared(nil) })

	d, err := NewDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func ptr(f float64) *float64 { return &f }

func TestPragmasApplied(t *testing.T) {
	d := newTestDB(t)

	var journalMode string
	require.NoError(t, d.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, d.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}

func TestNewDBMigratesToLatest(t *testing.T) {
	d := newTestDB(t)

	version, dirty, err := d.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Opening again is a no-op migration.
	require.NoError(t, d.MigrateUp(Migrations()))
}

func TestMigrateDownDropsTable(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.MigrateDown(Migrations()))

	_, err := d.CountEvents(context.Background(), "")
	assert.Error(t, err)

	version, _, err := d.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestMigrateClosedDB(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetSugared(nil)

	d, err := OpenDB(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	d.Close()

	fsys := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE t1;")},
	}
	err = d.MigrateUp(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create sqlite driver")
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := newTestDB(t)
	b := newTestDB(t)
	assert.NotEmpty(t, a.Session())
	assert.NotEqual(t, a.Session(), b.Session())
}

func TestRecordAndRecentEvents(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.RecordEvent(ctx, BrakeEvent{
			Recorded:       base.Add(time.Duration(i) * time.Second),
			Policy:         "continuous",
			SteeringAngle:  0.1,
			Velocity:       0.5,
			MaxBound:       float64(i) * 0.1,
			MinBound:       -1.5,
			Closest:        ptr(0.3 + float64(i)*0.1),
			InPath:         i + 1,
			KeptSamples:    360,
			DroppedSamples: 2,
		}))
	}

	events, err := d.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	newest := events[0]
	assert.Equal(t, d.Session(), newest.Session)
	assert.WithinDuration(t, base.Add(4*time.Second), newest.Recorded, time.Millisecond)
	assert.InDelta(t, 0.4, newest.MaxBound, 1e-12)
	assert.Equal(t, 5, newest.InPath)
	require.NotNil(t, newest.Closest)
	assert.InDelta(t, 0.7, *newest.Closest, 1e-12)
	assert.True(t, events[1].Recorded.Before(newest.Recorded))

	n, err := d.CountEvents(ctx, d.Session())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = d.CountEvents(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecentEventsDefaultLimitAndEmpty(t *testing.T) {
	d := newTestDB(t)
	events, err := d.RecentEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestInfiniteClosestStoredAsNull(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.RecordEvent(ctx, BrakeEvent{
		Recorded: time.Now(),
		Policy:   "discrete",
		Closest:  ptr(math.Inf(1)),
	}))
	require.NoError(t, d.RecordEvent(ctx, BrakeEvent{
		Recorded: time.Now(),
		Policy:   "discrete",
	}))

	events, err := d.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Nil(t, e.Closest)
	}
}

func TestAttachAdminRoutes(t *testing.T) {
	d := newTestDB(t)
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	// Routes may answer 403 when the request is not from a trusted peer;
	// they must be registered either way.
	for _, path := range []string{"/debug/tailsql/", "/debug/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
	}
}
