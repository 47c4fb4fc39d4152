package track

import (
	"github.com/chewxy/math32"

	"github.com/footfall/footfall/pkg/nn"
)

// Geometry outside this range is nonsense from a broken detector, not a
// real position. Frames are a few thousand pixels at most.
const maxCoordinate = 1 << 24

// filterDetections discards detections that we don't track, can't trust, or
// that are outright malformed. Malformed input is dropped silently: a broken
// detection must never create or update a track.
func filterDetections(cfg *Config, raw []nn.Detection) []nn.Detection {
	keep := make([]nn.Detection, 0, len(raw))
	for _, d := range raw {
		if !validGeometry(d.Box) {
			continue
		}
		if math32.IsNaN(d.Confidence) || math32.IsInf(d.Confidence, 0) {
			continue
		}
		if !cfg.trackedClass(d.Class) {
			continue
		}
		if d.Confidence < cfg.MinConfidence {
			continue
		}
		if d.Box.Area() < cfg.MinBoxArea {
			continue
		}
		if cfg.MaxBoxArea > 0 && d.Box.Area() > cfg.MaxBoxArea {
			continue
		}
		aspect := float32(d.Box.Width) / float32(d.Box.Height)
		if cfg.MinAspectRatio > 0 && aspect < cfg.MinAspectRatio {
			continue
		}
		if cfg.MaxAspectRatio > 0 && aspect > cfg.MaxAspectRatio {
			continue
		}
		keep = append(keep, d)
	}
	return keep
}

func validGeometry(r nn.Rect) bool {
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	if r.X < -maxCoordinate || r.X > maxCoordinate || r.Y < -maxCoordinate || r.Y > maxCoordinate {
		return false
	}
	if r.Width > maxCoordinate || r.Height > maxCoordinate {
		return false
	}
	return true
}
