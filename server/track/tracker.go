package track

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bmharper/flatbush-go"
	"github.com/bmharper/ringbuffer"

	"github.com/footfall/footfall/pkg/nn"
)

// Tracker is the per-camera tracking and counting engine. It owns its track
// set, composite set, id counters and running totals. All mutation happens
// on the single goroutine that calls ProcessFrame; the only concurrent entry
// points are SetConfig and Config, which swap/read an immutable snapshot.
//
// Multiple Tracker instances are fully independent.
type Tracker struct {
	cfg             atomic.Pointer[Config]
	nextTrackID     int64
	nextCompositeID int64
	tracks          []*Track // always ordered by ascending id
	composites      []*Composite
	pending         map[pairKey]int // correlation streaks for not-yet-promoted pairs
	totals          map[int64]*Totals
}

type pairKey struct {
	primary   int64
	accessory int64
}

func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid tracker config: %w", err)
	}
	t := &Tracker{
		nextTrackID:     1,
		nextCompositeID: 1,
		pending:         map[pairKey]int{},
		totals:          map[int64]*Totals{},
	}
	t.cfg.Store(&cfg)
	return t, nil
}

// SetConfig validates and applies a new config snapshot. Frames already in
// flight complete against the snapshot they started with. On error the
// previous config remains active.
func (t *Tracker) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.cfg.Store(&cfg)
	return nil
}

// Config returns the current config snapshot
func (t *Tracker) Config() Config {
	return *t.cfg.Load()
}

// candidate is one (track, detection) pair eligible for matching
type candidate struct {
	dist     float32
	trackIdx int
	detIdx   int
}

// ProcessFrame runs the full pipeline for one frame: filter, predict, match,
// create/age/reap, correlate, count. detections may be nil or unordered.
// Never fails: malformed detections are dropped, an empty frame just ages
// all tracks.
func (t *Tracker) ProcessFrame(now time.Time, detections []nn.Detection) *FrameResult {
	cfg := t.cfg.Load()

	dets := filterDetections(cfg, detections)

	// Predict every live track forward to 'now', and compute its matching
	// gate. The gate is the configured base distance plus the motion model's
	// positional uncertainty, so a track that has been missed for a while is
	// matched against a widened region.
	predicted := make([]nn.Point, len(t.tracks))
	gates := make([]float32, len(t.tracks))
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(t.tracks))
	for i, tr := range t.tracks {
		predicted[i] = tr.motion.Predict(now, cfg.MaxVelocity)
		gates[i] = cfg.MaxMatchDistance + tr.motion.Deviation()
		g := int32(gates[i]) + 1
		p := predicted[i]
		fb.Add(int32(p.X)-g, int32(p.Y)-g, int32(p.X)+g, int32(p.Y)+g)
	}
	fb.Finish()

	// Gather all eligible pairs, then assign greedily in ascending distance
	// order. A pair beyond the track's gate is ineligible no matter what.
	// Ties break on lower track id, then detection order, which keeps the
	// assignment fully deterministic.
	candidates := []candidate{}
	nearby := []int{}
	for di := range dets {
		c := dets[di].Centroid()
		nearby = fb.SearchFast(int32(c.X), int32(c.Y), int32(c.X), int32(c.Y), nearby)
		for _, ti := range nearby {
			if t.tracks[ti].class != dets[di].Class {
				continue
			}
			dist := predicted[ti].Distance(c)
			if dist > gates[ti] {
				continue
			}
			candidates = append(candidates, candidate{dist: dist, trackIdx: ti, detIdx: di})
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := &candidates[a], &candidates[b]
		if ca.dist != cb.dist {
			return ca.dist < cb.dist
		}
		if ca.trackIdx != cb.trackIdx {
			return t.tracks[ca.trackIdx].id < t.tracks[cb.trackIdx].id
		}
		return ca.detIdx < cb.detIdx
	})

	trackMatched := make([]bool, len(t.tracks))
	detMatched := make([]bool, len(dets))
	for _, c := range candidates {
		if trackMatched[c.trackIdx] || detMatched[c.detIdx] {
			continue
		}
		trackMatched[c.trackIdx] = true
		detMatched[c.detIdx] = true
		tr := t.tracks[c.trackIdx]
		tr.motion.Update(dets[c.detIdx].Centroid())
		tr.box = dets[c.detIdx].Box
		tr.observed = dets[c.detIdx].Centroid()
		tr.misses = 0
		tr.history.Add(timeAndCentroid{time: now, centroid: tr.Centroid(), observed: true})
	}

	// Unmatched tracks coast on prediction alone
	for i, tr := range t.tracks {
		if !trackMatched[i] {
			tr.misses++
			tr.motion.Inflate()
			center := tr.Centroid()
			tr.observed = center
			tr.box.X = center.X - tr.box.Width/2
			tr.box.Y = center.Y - tr.box.Height/2
			tr.history.Add(timeAndCentroid{time: now, centroid: center, observed: false})
		}
	}

	// Unmatched detections become new tracks
	for di := range dets {
		if !detMatched[di] {
			t.createTrack(cfg, now, &dets[di])
		}
	}

	t.reapTracks(cfg)
	t.correlate(cfg)

	result := &FrameResult{
		FramePTS:   now,
		Tracks:     make([]TrackView, 0, len(t.tracks)),
		Composites: make([]CompositeView, 0, len(t.composites)),
		Events:     []CountEvent{},
		Totals:     map[int64]Totals{},
	}
	t.updateCrossings(cfg, now, result)

	for _, tr := range t.tracks {
		result.Tracks = append(result.Tracks, tr.view())
	}
	for _, c := range t.composites {
		result.Composites = append(result.Composites, c.view())
	}
	for _, line := range cfg.Lines {
		result.Totals[line.ID] = t.lineTotals(line.ID)
	}
	return result
}

func (t *Tracker) createTrack(cfg *Config, now time.Time, det *nn.Detection) *Track {
	tr := &Track{
		id:        t.nextTrackID,
		class:     det.Class,
		box:       det.Box,
		motion:    NewMotion(det.Centroid(), now),
		observed:  det.Centroid(),
		history:   ringbuffer.NewRingP[timeAndCentroid](nextPowerOf2(cfg.HistorySize)),
		createdAt: now,
		crossings: map[int64]*crossingState{},
	}
	t.nextTrackID++
	tr.history.Add(timeAndCentroid{time: now, centroid: det.Centroid(), observed: true})
	t.tracks = append(t.tracks, tr)
	return tr
}

// Remove tracks that have gone unmatched for longer than the threshold.
// Removal dissolves any composite the track belonged to.
func (t *Tracker) reapTracks(cfg *Config) {
	remaining := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.misses > cfg.MaxMisses {
			if tr.compositeID != 0 {
				t.dissolveCompositeOf(tr)
			}
		} else {
			remaining = append(remaining, tr)
		}
	}
	t.tracks = remaining
}

func (t *Tracker) lineTotals(lineID int64) Totals {
	if tot := t.totals[lineID]; tot != nil {
		return *tot
	}
	return Totals{}
}

// TotalEntriesAndExits sums the running totals across all configured lines
func (t *Tracker) TotalEntriesAndExits() (entries, exits int64) {
	for _, tot := range t.totals {
		entries += tot.Entries
		exits += tot.Exits
	}
	return
}

// ResetTotals zeroes the running totals on every line.
// Crossing state of live tracks is untouched.
func (t *Tracker) ResetTotals() {
	t.totals = map[int64]*Totals{}
}

// NumLiveTracks returns the number of tracks currently alive
func (t *Tracker) NumLiveTracks() int {
	return len(t.tracks)
}

func nextPowerOf2(n int) int {
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
