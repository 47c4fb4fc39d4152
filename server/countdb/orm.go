package countdb

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Crossing is one directional boundary crossing by one tracked entity.
type Crossing struct {
	BaseModel
	Time      dbh.IntTime `json:"time"`
	Camera    int64       `json:"camera"`
	Line      int64       `json:"line"`
	Direction string      `json:"direction"` // "entry" or "exit"
	TrackID   int64       `json:"trackID"`   // Track that crossed. Only unique within one tracker run.
	Class     string      `json:"class"`     // "person" or "umbrella"
}
