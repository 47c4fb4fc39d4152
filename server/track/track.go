package track

import (
	"time"

	"github.com/bmharper/ringbuffer"

	"github.com/footfall/footfall/pkg/nn"
)

// A time and position where we saw (or predicted) a tracked object
type timeAndCentroid struct {
	time     time.Time
	centroid nn.Point
	observed bool // false if this position came from prediction only
}

// Per-line crossing state of a track.
// countedAB/countedBA implement the at-most-once guarantee: a count in one
// direction is only re-armed once the opposite transition completes.
type crossingState struct {
	side      Side
	countedAB bool
	countedBA bool
}

// Internal state of one tracked object
type Track struct {
	id          int64
	class       nn.Class
	box         nn.Rect
	motion      *Motion
	observed    nn.Point // centroid of the last matched detection; the prediction on missed frames
	history     ringbuffer.RingP[timeAndCentroid]
	misses      int
	createdAt   time.Time
	crossings   map[int64]*crossingState // by line ID
	compositeID int64                    // 0 = not part of a composite
}

func (t *Track) ID() int64 {
	return t.id
}

func (t *Track) Class() nn.Class {
	return t.class
}

// Centroid is the track's current best position estimate
func (t *Track) Centroid() nn.Point {
	return t.motion.Position()
}

func (t *Track) crossing(lineID int64) *crossingState {
	cs := t.crossings[lineID]
	if cs == nil {
		cs = &crossingState{side: SideUndetermined}
		t.crossings[lineID] = cs
	}
	return cs
}

// resetCrossings throws away all side/counted state, returning the track to
// "never observed near a line". Used when an accessory leaves a composite.
func (t *Track) resetCrossings() {
	t.crossings = map[int64]*crossingState{}
}

// A composite is a primary track (person) plus one accessory track
// (umbrella) that represent the same physical entity. Only the primary
// contributes to counting while the composite is alive.
type Composite struct {
	id         int64
	primary    *Track
	accessory  *Track
	confidence float32 // EWMA of the correlation test passing
	failStreak int     // consecutive frames the correlation test has failed
}

// Public snapshot of a track, published to watchers and the API
type TrackView struct {
	ID          int64      `json:"id"`
	Class       string     `json:"class"`
	Box         nn.Rect    `json:"box"`
	Centroid    nn.Point   `json:"centroid"`
	Trail       []nn.Point `json:"trail"` // recent centroids, oldest first
	Misses      int        `json:"misses"`
	CompositeID int64      `json:"compositeID,omitempty"`
}

// Public snapshot of a composite
type CompositeView struct {
	ID          int64   `json:"id"`
	PrimaryID   int64   `json:"primaryID"`
	AccessoryID int64   `json:"accessoryID"`
	Confidence  float32 `json:"confidence"`
}

// A single boundary crossing
type CountEvent struct {
	Line      int64     `json:"line"`
	Direction Direction `json:"direction"`
	TrackID   int64     `json:"trackID"`
	Class     string    `json:"class"`
	Time      time.Time `json:"time"`
	// Running totals for the line, after this event
	TotalEntries int64 `json:"totalEntries"`
	TotalExits   int64 `json:"totalExits"`
}

// Running entry/exit totals for one boundary line
type Totals struct {
	Entries int64 `json:"entries"`
	Exits   int64 `json:"exits"`
}

// Everything the pipeline produces for one processed frame
type FrameResult struct {
	FramePTS   time.Time        `json:"framePTS"`
	Tracks     []TrackView      `json:"tracks"`
	Composites []CompositeView  `json:"composites"`
	Events     []CountEvent     `json:"events"`
	Totals     map[int64]Totals `json:"totals"` // by line ID
}

func (t *Track) view() TrackView {
	trail := make([]nn.Point, 0, t.history.Len())
	for i := 0; i < t.history.Len(); i++ {
		trail = append(trail, t.history.Peek(i).centroid)
	}
	return TrackView{
		ID:          t.id,
		Class:       t.class.String(),
		Box:         t.box,
		Centroid:    t.Centroid(),
		Trail:       trail,
		Misses:      t.misses,
		CompositeID: t.compositeID,
	}
}

func (c *Composite) view() CompositeView {
	return CompositeView{
		ID:          c.id,
		PrimaryID:   c.primary.id,
		AccessoryID: c.accessory.id,
		Confidence:  c.confidence,
	}
}
