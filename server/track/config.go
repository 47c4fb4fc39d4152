package track

import (
	"fmt"

	"github.com/footfall/footfall/pkg/nn"
)

// Which side of a boundary line a point lies on.
// Undetermined is only ever the initial state of a track; the geometry
// always resolves to A or B (points exactly on the line belong to B).
type Side int

const (
	SideUndetermined Side = iota
	SideA
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "undetermined"
	}
}

// Direction of a boundary crossing. A track moving from side A to side B
// is an entry; B to A is an exit.
type Direction int

const (
	DirectionEntry Direction = iota
	DirectionExit
)

func (d Direction) String() string {
	if d == DirectionEntry {
		return "entry"
	}
	return "exit"
}

// A virtual boundary line in frame pixel space.
// The line is directed (P1 -> P2), and that direction fixes which half of
// the frame is side A and which is side B. For a vertical line drawn
// top-to-bottom at x=50, side A is x<50 and side B is x>=50; swap the
// endpoints to flip entry and exit.
type Line struct {
	ID int64 `json:"id"`
	X1 int   `json:"x1"`
	Y1 int   `json:"y1"`
	X2 int   `json:"x2"`
	Y2 int   `json:"y2"`
}

// Side returns which side of the line p lies on.
// Points exactly on the line count as side B, so that a line at x=50
// splits the image into A = x<50 and B = x>=50.
func (l *Line) Side(p nn.Point) Side {
	s := int64(l.X2-l.X1)*int64(p.Y-l.Y1) - int64(l.Y2-l.Y1)*int64(p.X-l.X1)
	if s > 0 {
		return SideA
	}
	return SideB
}

// inSpan reports whether p's projection onto the line falls between the
// segment endpoints. The boundary is a segment, not an infinite line:
// crossings only count while the track is within its span.
func (l *Line) inSpan(p nn.Point) bool {
	vx := int64(l.X2 - l.X1)
	vy := int64(l.Y2 - l.Y1)
	dot := vx*int64(p.X-l.X1) + vy*int64(p.Y-l.Y1)
	return dot >= 0 && dot <= vx*vx+vy*vy
}

func (l *Line) validate() error {
	if l.X1 == l.X2 && l.Y1 == l.Y2 {
		return fmt.Errorf("Line %v is degenerate (zero length)", l.ID)
	}
	return nil
}

// Correlation parameters for merging an accessory track (umbrella) into
// the person carrying it.
type CorrelationConfig struct {
	Enabled bool `json:"enabled"`

	// Maximum centroid distance (pixels) between primary and accessory
	MaxDistance float32 `json:"maxDistance"`

	// Maximum angle (degrees) between "straight up from the primary" and the
	// vector from the primary centroid to the accessory centroid. 90 would
	// accept an accessory held level with the person's centroid.
	MaxAngle float32 `json:"maxAngle"`

	// Number of consecutive frames the test must pass before a composite is formed
	PromoteAfter int `json:"promoteAfter"`

	// Number of consecutive frames the test must fail before a composite is dissolved
	DissolveAfter int `json:"dissolveAfter"`
}

// Config is an immutable snapshot of all tracking parameters.
// A Tracker reads one snapshot at the start of every frame; updates swap
// the whole snapshot, so a frame never sees a half-applied config.
type Config struct {
	// Detection filter
	Classes       []nn.Class `json:"classes"`       // classes we track (empty means person + umbrella)
	MinConfidence float32    `json:"minConfidence"` // detections below this confidence are dropped
	MinBoxArea    int        `json:"minBoxArea"`    // detections with a smaller bounding box are dropped
	MaxBoxArea    int        `json:"maxBoxArea"`    // detections with a larger bounding box are dropped (0 disables)

	// Bounding box width/height limits. A pedestrian box is taller than
	// wide; boxes far outside this band are detector garbage. Zero disables.
	MinAspectRatio float32 `json:"minAspectRatio"`
	MaxAspectRatio float32 `json:"maxAspectRatio"`

	// Matching
	MaxMatchDistance float32 `json:"maxMatchDistance"` // base matching gate in pixels; widened by track uncertainty
	MaxMisses        int     `json:"maxMisses"`        // consecutive missed frames before a track is removed
	HistorySize      int     `json:"historySize"`      // number of recent centroids kept per track
	MaxVelocity      float32 `json:"maxVelocity"`      // clamp on motion model velocity, pixels per second

	Lines       []Line            `json:"lines"`
	Correlation CorrelationConfig `json:"correlation"`

	Verbose bool `json:"verbose"`
}

// DefaultConfig returns the stock configuration: person+umbrella tracking,
// with the thresholds we've found to work on overhead pedestrian footage.
func DefaultConfig() Config {
	return Config{
		Classes:          []nn.Class{nn.ClassPerson, nn.ClassUmbrella},
		MinConfidence:    0.4,
		MinBoxArea:       100,
		MaxBoxArea:       50000,
		MinAspectRatio:   0.2,
		MaxAspectRatio:   5.0,
		MaxMatchDistance: 50,
		MaxMisses:        50,
		HistorySize:      10,
		MaxVelocity:      800,
		Correlation: CorrelationConfig{
			Enabled:       true,
			MaxDistance:   80,
			MaxAngle:      45,
			PromoteAfter:  10,
			DissolveAfter: 10,
		},
	}
}

// Validate rejects configs that would break the tracker. A Tracker keeps
// its previous config when Validate fails, so an invalid update is never
// partially applied.
func (c *Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MinConfidence %v is outside [0,1]", c.MinConfidence)
	}
	if c.MinBoxArea < 0 {
		return fmt.Errorf("MinBoxArea %v is negative", c.MinBoxArea)
	}
	if c.MaxBoxArea < 0 {
		return fmt.Errorf("MaxBoxArea %v is negative", c.MaxBoxArea)
	}
	if c.MaxBoxArea > 0 && c.MaxBoxArea < c.MinBoxArea {
		return fmt.Errorf("MaxBoxArea %v is below MinBoxArea %v", c.MaxBoxArea, c.MinBoxArea)
	}
	if c.MinAspectRatio < 0 || c.MaxAspectRatio < 0 {
		return fmt.Errorf("Aspect ratio limits must not be negative")
	}
	if c.MaxAspectRatio > 0 && c.MaxAspectRatio < c.MinAspectRatio {
		return fmt.Errorf("MaxAspectRatio %v is below MinAspectRatio %v", c.MaxAspectRatio, c.MinAspectRatio)
	}
	if c.MaxMatchDistance <= 0 {
		return fmt.Errorf("MaxMatchDistance %v must be positive", c.MaxMatchDistance)
	}
	if c.MaxMisses < 1 {
		return fmt.Errorf("MaxMisses %v must be at least 1", c.MaxMisses)
	}
	if c.HistorySize < 2 {
		return fmt.Errorf("HistorySize %v must be at least 2", c.HistorySize)
	}
	if c.MaxVelocity <= 0 {
		return fmt.Errorf("MaxVelocity %v must be positive", c.MaxVelocity)
	}
	seenLines := map[int64]bool{}
	for i := range c.Lines {
		if err := c.Lines[i].validate(); err != nil {
			return err
		}
		if seenLines[c.Lines[i].ID] {
			return fmt.Errorf("Duplicate line id %v", c.Lines[i].ID)
		}
		seenLines[c.Lines[i].ID] = true
	}
	cr := &c.Correlation
	if cr.Enabled {
		if cr.MaxDistance <= 0 {
			return fmt.Errorf("Correlation.MaxDistance %v must be positive", cr.MaxDistance)
		}
		if cr.MaxAngle <= 0 || cr.MaxAngle > 180 {
			return fmt.Errorf("Correlation.MaxAngle %v is outside (0,180]", cr.MaxAngle)
		}
		if cr.PromoteAfter < 1 {
			return fmt.Errorf("Correlation.PromoteAfter %v must be at least 1", cr.PromoteAfter)
		}
		if cr.DissolveAfter < 1 {
			return fmt.Errorf("Correlation.DissolveAfter %v must be at least 1", cr.DissolveAfter)
		}
	}
	return nil
}

func (c *Config) trackedClass(cls nn.Class) bool {
	if len(c.Classes) == 0 {
		return cls == nn.ClassPerson || cls == nn.ClassUmbrella
	}
	for _, allowed := range c.Classes {
		if cls == allowed {
			return true
		}
	}
	return false
}
