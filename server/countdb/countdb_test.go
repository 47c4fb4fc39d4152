package countdb

import (
	"os"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/footfall/footfall/server/track"
)

func createTestDB(t *testing.T) *CountDB {
	os.Remove("test-countdb.sqlite")
	db, err := NewCountDB(logs.NewTestingLog(t), "test-countdb.sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove("test-countdb.sqlite") })
	return db
}

func addCrossing(t *testing.T, db *CountDB, cameraID int64, at time.Time, dir track.Direction) {
	t.Helper()
	err := db.AddCrossings(cameraID, []track.CountEvent{{
		Line:      1,
		Direction: dir,
		TrackID:   7,
		Class:     "person",
		Time:      at,
	}})
	require.NoError(t, err)
}

func TestAddAndQueryCrossings(t *testing.T) {
	db := createTestDB(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	addCrossing(t, db, 1, base, track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(time.Minute), track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(2*time.Minute), track.DirectionExit)
	addCrossing(t, db, 2, base.Add(3*time.Minute), track.DirectionEntry)

	// Empty frame is a no-op
	require.NoError(t, db.AddCrossings(1, nil))

	recent, err := db.RecentCrossings(1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest first
	require.Equal(t, "exit", recent[0].Direction)
	require.Equal(t, int64(1), recent[0].Camera)
	require.Equal(t, int64(7), recent[0].TrackID)

	all, err := db.RecentCrossings(0, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)

	limited, err := db.RecentCrossings(1, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestTotals(t *testing.T) {
	db := createTestDB(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	addCrossing(t, db, 1, base, track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(time.Hour), track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(2*time.Hour), track.DirectionExit)

	entries, exits, err := db.Totals(1, base)
	require.NoError(t, err)
	require.Equal(t, int64(2), entries)
	require.Equal(t, int64(1), exits)

	// 'since' excludes earlier crossings
	entries, exits, err = db.Totals(1, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), entries)
	require.Equal(t, int64(1), exits)

	entries, exits, err = db.Totals(5, base)
	require.NoError(t, err)
	require.Equal(t, int64(0), entries+exits)
}

func TestHourlyTotals(t *testing.T) {
	db := createTestDB(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	addCrossing(t, db, 1, base.Add(5*time.Minute), track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(10*time.Minute), track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(15*time.Minute), track.DirectionExit)
	// Hour 11:00 has exits only
	addCrossing(t, db, 1, base.Add(70*time.Minute), track.DirectionExit)

	totals, err := db.HourlyTotals(1, base, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 2)
	require.Equal(t, "2024-06-01 10:00", totals[0].Hour)
	require.Equal(t, int64(2), totals[0].Entries)
	require.Equal(t, int64(1), totals[0].Exits)
	require.Equal(t, "2024-06-01 11:00", totals[1].Hour)
	require.Equal(t, int64(0), totals[1].Entries)
	require.Equal(t, int64(1), totals[1].Exits)
}

func TestPurgeOlderThan(t *testing.T) {
	db := createTestDB(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	addCrossing(t, db, 1, base, track.DirectionEntry)
	addCrossing(t, db, 1, base.Add(time.Hour), track.DirectionEntry)

	n, err := db.PurgeOlderThan(base.Add(30 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	recent, err := db.RecentCrossings(1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
