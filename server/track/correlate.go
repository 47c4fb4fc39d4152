package track

import (
	"github.com/chewxy/math32"

	"github.com/footfall/footfall/pkg/gen"
	"github.com/footfall/footfall/pkg/nn"
)

// Composite correlation: detect when an umbrella track is being carried by a
// person track, and merge the pair into a composite so the counter sees one
// entity instead of two.
//
// The test is geometric: the umbrella centroid must be close to the person
// centroid, and positioned above-ish it (within MaxAngle of straight up).
// The pair must pass the test for PromoteAfter consecutive frames before a
// composite forms, and fail it for DissolveAfter consecutive frames before
// the composite dissolves and the umbrella re-enters independent counting.

const compositeConfidenceEWMA = 0.1

func (t *Tracker) correlate(cfg *Config) {
	cr := &cfg.Correlation
	if !cr.Enabled {
		return
	}

	// Age existing composites first
	t.updateComposites(cr)

	// Find candidate pairings among uncorrelated tracks. Accessories are
	// visited in ascending id order, and each claims at most one primary,
	// so the outcome never depends on map iteration order.
	claimed := map[int64]bool{} // primaries claimed this frame
	matchedPairs := map[pairKey]bool{}
	for _, acc := range t.tracks {
		if acc.class != nn.ClassUmbrella || acc.compositeID != 0 {
			continue
		}
		primary := t.nearestEligiblePrimary(cr, acc, claimed)
		if primary == nil {
			continue
		}
		claimed[primary.id] = true
		key := pairKey{primary: primary.id, accessory: acc.id}
		matchedPairs[key] = true
		t.pending[key]++
		if t.pending[key] >= cr.PromoteAfter {
			delete(t.pending, key)
			t.promoteComposite(primary, acc)
		}
	}

	// A streak is consecutive frames: any pending pair that didn't pass the
	// test this frame starts over.
	for key := range t.pending {
		if !matchedPairs[key] {
			delete(t.pending, key)
		}
	}
}

// nearestEligiblePrimary returns the closest person track that passes the
// correlation test against acc, or nil. A person that already carries an
// accessory (or was claimed by an earlier accessory this frame) is not
// eligible for re-pairing. Ties on distance break on lower track id.
func (t *Tracker) nearestEligiblePrimary(cr *CorrelationConfig, acc *Track, claimed map[int64]bool) *Track {
	var best *Track
	bestDist := float32(math32.MaxFloat32)
	for _, p := range t.tracks {
		if p.class != nn.ClassPerson || p.compositeID != 0 || claimed[p.id] {
			continue
		}
		ok, dist := correlationTest(cr, p, acc)
		if !ok {
			continue
		}
		if dist < bestDist {
			bestDist = dist
			best = p
		}
	}
	return best
}

// correlationTest reports whether acc is plausibly carried by p, and the
// centroid distance between them. The test runs on observed positions:
// the smoothed estimates lag behind a separating pair by a few frames,
// which would keep a streak alive after the umbrella has already left.
func correlationTest(cr *CorrelationConfig, p, acc *Track) (bool, float32) {
	pc := p.observed
	ac := acc.observed
	dist := pc.Distance(ac)
	if dist > cr.MaxDistance {
		return false, dist
	}
	// Angle between "straight up from the person" and the person->accessory
	// vector. Image y grows downward, so up is -y.
	dx := float32(ac.X - pc.X)
	dy := float32(ac.Y - pc.Y)
	angle := math32.Atan2(math32.Abs(dx), -dy) * 180 / math32.Pi
	return angle <= cr.MaxAngle, dist
}

func (t *Tracker) promoteComposite(primary, acc *Track) {
	c := &Composite{
		id:         t.nextCompositeID,
		primary:    primary,
		accessory:  acc,
		confidence: 1,
	}
	t.nextCompositeID++
	primary.compositeID = c.id
	acc.compositeID = c.id
	// Crossings are attributed to the primary from here on; wipe the
	// accessory's counting state so a later dissolution starts it fresh.
	acc.resetCrossings()
	t.composites = append(t.composites, c)
}

// updateComposites re-evaluates the correlation test for every live
// composite, and dissolves the ones whose members have drifted apart for
// longer than the grace period.
func (t *Tracker) updateComposites(cr *CorrelationConfig) {
	for i := 0; i < len(t.composites); i++ {
		c := t.composites[i]
		ok, _ := correlationTest(cr, c.primary, c.accessory)
		if ok {
			c.failStreak = 0
			c.confidence += compositeConfidenceEWMA * (1 - c.confidence)
		} else {
			c.failStreak++
			c.confidence += compositeConfidenceEWMA * (0 - c.confidence)
		}
		if c.failStreak > cr.DissolveAfter {
			t.dissolveComposite(i)
			i--
		}
	}
}

func (t *Tracker) dissolveComposite(i int) {
	c := t.composites[i]
	c.primary.compositeID = 0
	c.accessory.compositeID = 0
	c.accessory.resetCrossings()
	t.composites = gen.DeleteFromSliceOrdered(t.composites, i)
}

// dissolveCompositeOf dissolves the composite that tr belongs to, because
// tr is being removed.
func (t *Tracker) dissolveCompositeOf(tr *Track) {
	for i, c := range t.composites {
		if c.id == tr.compositeID {
			t.dissolveComposite(i)
			return
		}
	}
}
