package configdb

import (
	"github.com/cyclopcam/dbh"

	"github.com/footfall/footfall/server/track"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

type Camera struct {
	BaseModel
	CreatedAt dbh.IntTime                  `json:"createdAt"`
	UpdatedAt dbh.IntTime                  `json:"updatedAt"`
	Name      string                       `json:"name"`                           // Friendly name
	URL       string                       `json:"url"`                            // Video source: RTSP URL, local device index, or file path
	Enabled   bool                         `json:"enabled"`                        // Disabled cameras are not monitored
	Tracker   *dbh.JSONField[track.Config] `json:"tracker" gorm:"default:null"`    // Tracking config. Null means stock defaults.
}

// TrackerConfig returns the camera's tracking config, falling back to the
// defaults if none has been saved.
func (c *Camera) TrackerConfig() track.Config {
	if c.Tracker == nil {
		return track.DefaultConfig()
	}
	return c.Tracker.Data
}

func (c *Camera) SetTrackerConfig(cfg track.Config) {
	c.Tracker = dbh.MakeJSONField(cfg)
}
