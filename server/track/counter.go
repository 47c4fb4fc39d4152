package track

import (
	"time"
)

// Directional counting: convert track trajectories into entry/exit counts
// against the configured boundary lines.
//
// Each (track, line) pair runs a tiny state machine over which side of the
// line the track's centroid is on. The side is evaluated on the observed
// centroid (the matched detection, or the prediction while coasting), not
// the smoothed estimate: smoothing lags by a few frames, and a real hop
// across the boundary must flip the side the frame it happens.
//
// The first frame a side is determined only records it: a track must be
// seen crossing, not merely discovered on a side. A transition fires at
// most one count per direction; the count is re-armed only when the
// opposite transition completes, so jitter on the boundary can't inflate
// the totals, while a genuine back-and-forth pass counts both ways every
// time. Crossing the line's extension beyond the segment endpoints counts
// nothing: a track outside the segment's span has its state for that line
// discarded, and is re-observed from scratch when it comes back.

func (t *Tracker) updateCrossings(cfg *Config, now time.Time, result *FrameResult) {
	if len(cfg.Lines) == 0 {
		return
	}
	for _, tr := range t.tracks {
		if t.suppressedByComposite(tr) {
			continue
		}
		centroid := tr.observed
		for li := range cfg.Lines {
			line := &cfg.Lines[li]
			if !line.inSpan(centroid) {
				delete(tr.crossings, line.ID)
				continue
			}
			cs := tr.crossing(line.ID)
			side := line.Side(centroid)
			if cs.side == SideUndetermined {
				cs.side = side
				continue
			}
			if side == cs.side {
				continue
			}
			cs.side = side
			if side == SideB {
				// A -> B: entry
				cs.countedBA = false
				if !cs.countedAB {
					cs.countedAB = true
					t.fireCount(line.ID, DirectionEntry, tr, now, result)
				}
			} else {
				// B -> A: exit
				cs.countedAB = false
				if !cs.countedBA {
					cs.countedBA = true
					t.fireCount(line.ID, DirectionExit, tr, now, result)
				}
			}
		}
	}
}

// suppressedByComposite is true for an accessory that is currently merged
// into a composite: its crossings are attributed to the primary only.
func (t *Tracker) suppressedByComposite(tr *Track) bool {
	if tr.compositeID == 0 {
		return false
	}
	for _, c := range t.composites {
		if c.id == tr.compositeID {
			return c.accessory == tr
		}
	}
	return false
}

func (t *Tracker) fireCount(lineID int64, dir Direction, tr *Track, now time.Time, result *FrameResult) {
	tot := t.totals[lineID]
	if tot == nil {
		tot = &Totals{}
		t.totals[lineID] = tot
	}
	if dir == DirectionEntry {
		tot.Entries++
	} else {
		tot.Exits++
	}
	result.Events = append(result.Events, CountEvent{
		Line:         lineID,
		Direction:    dir,
		TrackID:      tr.id,
		Class:        tr.class.String(),
		Time:         now,
		TotalEntries: tot.Entries,
		TotalExits:   tot.Exits,
	})
}
