package configdb

import (
	"os"
	"testing"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/footfall/footfall/server/track"
)

func createTestDB(t *testing.T) *ConfigDB {
	os.Remove("test-configdb.sqlite")
	db, err := NewConfigDB(logs.NewTestingLog(t), "test-configdb.sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove("test-configdb.sqlite") })
	return db
}

func TestCameraRoundTrip(t *testing.T) {
	db := createTestDB(t)

	now := dbh.MakeIntTime(time.Now())
	cam := &Camera{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      "entrance",
		URL:       "rtsp://192.168.1.50/stream1",
		Enabled:   true,
	}
	cfg := track.DefaultConfig()
	cfg.Lines = []track.Line{{ID: 1, X1: 320, Y1: 0, X2: 320, Y2: 480}}
	cam.SetTrackerConfig(cfg)
	require.NoError(t, db.DB.Create(cam).Error)
	require.Equal(t, int64(1), cam.ID)

	fetched, err := db.GetCamera(cam.ID)
	require.NoError(t, err)
	require.Equal(t, "entrance", fetched.Name)
	require.Equal(t, cfg.Lines, fetched.TrackerConfig().Lines)

	_, err = db.GetCamera(999)
	require.Error(t, err)
}

func TestCameraDefaultTrackerConfig(t *testing.T) {
	db := createTestDB(t)

	cam := &Camera{Name: "side door", URL: "0", Enabled: true}
	require.NoError(t, db.DB.Create(cam).Error)

	fetched, err := db.GetCamera(cam.ID)
	require.NoError(t, err)
	require.Nil(t, fetched.Tracker)
	require.Equal(t, track.DefaultConfig(), fetched.TrackerConfig())
}

func TestSystemConfigRoundTrip(t *testing.T) {
	db := createTestDB(t)

	cfg, err := db.GetConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultSystemConfig(), *cfg)

	cfg.Report.Enabled = true
	cfg.Report.URL = "https://collector.example.com/counts"
	cfg.Report.Device = "door-1"
	cfg.Report.IntervalSeconds = 30
	require.NoError(t, db.SetConfig(cfg))

	fetched, err := db.GetConfig()
	require.NoError(t, err)
	require.Equal(t, *cfg, *fetched)

	// Updates replace, not duplicate
	cfg.Report.IntervalSeconds = 60
	require.NoError(t, db.SetConfig(cfg))
	fetched, err = db.GetConfig()
	require.NoError(t, err)
	require.Equal(t, 60, fetched.Report.IntervalSeconds)
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultSystemConfig()
	require.NoError(t, ValidateConfig(&cfg))

	cfg.Report.Enabled = true
	require.Error(t, ValidateConfig(&cfg)) // missing URL

	cfg.Report.URL = "ftp://nope"
	require.Error(t, ValidateConfig(&cfg))

	cfg.Report.URL = "https://collector.example.com/counts"
	cfg.Report.IntervalSeconds = 0
	require.Error(t, ValidateConfig(&cfg))

	cfg.Report.IntervalSeconds = 15
	require.NoError(t, ValidateConfig(&cfg))
}
