package countdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"

	"github.com/footfall/footfall/server/track"
)

// CountDB stores one record per boundary crossing. This is the system of
// record for counts; the running totals inside a tracker are rebuildable
// from here.
type CountDB struct {
	Log logs.Log
	DB  *gorm.DB
}

func NewCountDB(logger logs.Log, dbFilename string) (*CountDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0770)
	countDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &CountDB{
		Log: logger,
		DB:  countDB,
	}, nil
}

// AddCrossings records the crossings from one processed frame.
func (c *CountDB) AddCrossings(cameraID int64, events []track.CountEvent) error {
	if len(events) == 0 {
		return nil
	}
	crossings := make([]*Crossing, 0, len(events))
	for _, ev := range events {
		crossings = append(crossings, &Crossing{
			Time:      dbh.MakeIntTime(ev.Time),
			Camera:    cameraID,
			Line:      ev.Line,
			Direction: ev.Direction.String(),
			TrackID:   ev.TrackID,
			Class:     ev.Class,
		})
	}
	return c.DB.Create(crossings).Error
}

// RecentCrossings returns the newest crossings for a camera, newest first.
// cameraID of zero returns crossings from all cameras.
func (c *CountDB) RecentCrossings(cameraID int64, limit int) ([]*Crossing, error) {
	if limit <= 0 {
		limit = 100
	}
	q := c.DB.Order("time DESC, id DESC").Limit(limit)
	if cameraID != 0 {
		q = q.Where("camera = ?", cameraID)
	}
	crossings := []*Crossing{}
	if err := q.Find(&crossings).Error; err != nil {
		return nil, err
	}
	return crossings, nil
}

// Totals returns the number of entries and exits for a camera since the
// given time. cameraID of zero aggregates all cameras.
func (c *CountDB) Totals(cameraID int64, since time.Time) (entries, exits int64, err error) {
	type row struct {
		Direction string
		N         int64
	}
	rows := []row{}
	q := c.DB.Model(&Crossing{}).
		Select("direction, COUNT(*) AS n").
		Where("time >= ?", dbh.MakeIntTime(since)).
		Group("direction")
	if cameraID != 0 {
		q = q.Where("camera = ?", cameraID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return 0, 0, err
	}
	for _, r := range rows {
		switch r.Direction {
		case track.DirectionEntry.String():
			entries = r.N
		case track.DirectionExit.String():
			exits = r.N
		}
	}
	return entries, exits, nil
}

// HourlyTotal is one hour's worth of crossings, for charting.
type HourlyTotal struct {
	Hour    string `json:"hour"` // Start of hour, "2006-01-02 15:00" UTC
	Entries int64  `json:"entries"`
	Exits   int64  `json:"exits"`
}

// HourlyTotals returns per-hour entry/exit counts between start and end.
// Hours with no crossings are absent from the result.
func (c *CountDB) HourlyTotals(cameraID int64, start, end time.Time) ([]*HourlyTotal, error) {
	type row struct {
		Hour      string
		Direction string
		N         int64
	}
	rows := []row{}
	q := c.DB.Model(&Crossing{}).
		Select("strftime('%Y-%m-%d %H:00', time/1000, 'unixepoch') AS hour, direction, COUNT(*) AS n").
		Where("time >= ? AND time < ?", dbh.MakeIntTime(start), dbh.MakeIntTime(end)).
		Group("hour, direction").
		Order("hour")
	if cameraID != 0 {
		q = q.Where("camera = ?", cameraID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := []*HourlyTotal{}
	byHour := map[string]*HourlyTotal{}
	for _, r := range rows {
		ht := byHour[r.Hour]
		if ht == nil {
			ht = &HourlyTotal{Hour: r.Hour}
			byHour[r.Hour] = ht
			totals = append(totals, ht)
		}
		if r.Direction == track.DirectionEntry.String() {
			ht.Entries = r.N
		} else {
			ht.Exits = r.N
		}
	}
	return totals, nil
}

// PurgeOlderThan deletes crossings older than the cutoff, and returns the
// number of records deleted.
func (c *CountDB) PurgeOlderThan(cutoff time.Time) (int64, error) {
	result := c.DB.Delete(&Crossing{}, "time < ?", dbh.MakeIntTime(cutoff))
	return result.RowsAffected, result.Error
}
