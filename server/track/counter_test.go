package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/footfall/footfall/pkg/nn"
)

// Vertical boundary at x=50. Side A is x<50, so walking left to right is an entry.
func lineConfig() Config {
	cfg := DefaultConfig()
	cfg.Lines = []Line{{ID: 1, X1: 50, Y1: 0, X2: 50, Y2: 100}}
	return cfg
}

// Hold a person on each side long enough for the smoothed position to settle there.
func walkAcross(t *testing.T, tracker *Tracker, frame *int, fromX, toX int) []CountEvent {
	t.Helper()
	events := []CountEvent{}
	for i := 0; i < 8; i++ {
		result := tracker.ProcessFrame(frameTime(*frame), []nn.Detection{personAt(fromX, 50)})
		events = append(events, result.Events...)
		*frame++
	}
	for i := 0; i < 8; i++ {
		result := tracker.ProcessFrame(frameTime(*frame), []nn.Detection{personAt(toX, 50)})
		events = append(events, result.Events...)
		*frame++
	}
	return events
}

func TestNoCrossingNoEvents(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	// Wanders around on side A without ever reaching the boundary
	xs := []int{20, 30, 25, 40, 35, 20}
	for i, x := range xs {
		result := tracker.ProcessFrame(frameTime(i), []nn.Detection{personAt(x, 50)})
		require.Empty(t, result.Events)
	}
	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(0), entries)
	require.Equal(t, int64(0), exits)
}

func TestSingleEntryCrossing(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	frame := 0
	events := walkAcross(t, tracker, &frame, 30, 70)
	require.Len(t, events, 1)
	require.Equal(t, int64(1), events[0].Line)
	require.Equal(t, DirectionEntry, events[0].Direction)
	require.Equal(t, int64(1), events[0].TrackID)
	require.Equal(t, "person", events[0].Class)
	require.Equal(t, int64(1), events[0].TotalEntries)
	require.Equal(t, int64(0), events[0].TotalExits)
}

func TestSingleExitCrossing(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	frame := 0
	events := walkAcross(t, tracker, &frame, 70, 30)
	require.Len(t, events, 1)
	require.Equal(t, DirectionExit, events[0].Direction)
	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(0), entries)
	require.Equal(t, int64(1), exits)
}

// Oscillating back and forth counts every completed transition, alternating
// direction. A track can never produce two consecutive counts in the same
// direction on the same line.
func TestOscillationAlternates(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	frame := 0
	all := []CountEvent{}
	all = append(all, walkAcross(t, tracker, &frame, 30, 70)...)
	all = append(all, walkAcross(t, tracker, &frame, 70, 30)...)
	all = append(all, walkAcross(t, tracker, &frame, 30, 70)...)
	all = append(all, walkAcross(t, tracker, &frame, 70, 30)...)

	require.Len(t, all, 4)
	require.Equal(t, DirectionEntry, all[0].Direction)
	require.Equal(t, DirectionExit, all[1].Direction)
	require.Equal(t, DirectionEntry, all[2].Direction)
	require.Equal(t, DirectionExit, all[3].Direction)

	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(2), entries)
	require.Equal(t, int64(2), exits)
}

// Jitter on the boundary must not double count. After an entry, hovering on
// side B and dipping back to A then across again yields exactly one exit and
// one more entry, never a repeat of the same direction.
func TestBoundaryJitterAtMostOncePerDirection(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	frame := 0
	events := walkAcross(t, tracker, &frame, 30, 70)
	require.Len(t, events, 1)

	// Stay on side B: no further events
	for i := 0; i < 10; i++ {
		result := tracker.ProcessFrame(frameTime(frame), []nn.Detection{personAt(65, 50)})
		require.Empty(t, result.Events)
		frame++
	}
}

// A track genuinely hopping across the boundary every frame counts every
// completed crossing, alternating direction. This is distinct from jitter:
// each hop is a real side change of the detected centroid.
func TestHoppingAcrossBoundaryCountsEveryCrossing(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	all := []CountEvent{}
	for i, x := range []int{48, 52, 48, 52} {
		result := tracker.ProcessFrame(frameTime(i), []nn.Detection{personAt(x, 50)})
		all = append(all, result.Events...)
	}
	require.Len(t, all, 3)
	require.Equal(t, DirectionEntry, all[0].Direction)
	require.Equal(t, DirectionExit, all[1].Direction)
	require.Equal(t, DirectionEntry, all[2].Direction)

	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(2), entries)
	require.Equal(t, int64(1), exits)
}

// The boundary is a segment, not an infinite line: crossing its extension
// beyond the endpoints counts nothing.
func TestCrossingBeyondSegmentEndsDoesNotCount(t *testing.T) {
	// Segment spans y in [0,100]; the walk happens far below it
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	frame := 0
	for _, x := range []int{20, 35, 50, 65, 80, 80, 80} {
		result := tracker.ProcessFrame(frameTime(frame), []nn.Detection{personAt(x, 500)})
		require.Empty(t, result.Events)
		frame++
	}
	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(0), entries)
	require.Equal(t, int64(0), exits)
}

// Leaving the segment's span on one side and re-entering it on the other is
// not a crossing: the side state is discarded outside the span, and the
// first frame back only re-records the side.
func TestWalkingAroundSegmentEndDoesNotCount(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	path := []nn.Point{
		{X: 30, Y: 50},  // side A, in span
		{X: 30, Y: 95},  // still in span
		{X: 30, Y: 140}, // below the segment
		{X: 75, Y: 140}, // crosses the extension, not the segment
		{X: 75, Y: 95},  // back in span, now on side B
		{X: 75, Y: 50},
		{X: 75, Y: 50},
	}
	for i, p := range path {
		result := tracker.ProcessFrame(frameTime(i), []nn.Detection{personAt(p.X, p.Y)})
		require.Empty(t, result.Events)
	}
	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(0), entries)
	require.Equal(t, int64(0), exits)
}

func TestSwappedEndpointsFlipDirection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lines = []Line{{ID: 1, X1: 50, Y1: 100, X2: 50, Y2: 0}}
	tracker, err := NewTracker(cfg)
	require.NoError(t, err)

	frame := 0
	events := walkAcross(t, tracker, &frame, 30, 70)
	require.Len(t, events, 1)
	require.Equal(t, DirectionExit, events[0].Direction)
}

func TestTrackBornOnEitherSideDoesNotCount(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	// First appearance on side B only records the side
	result := tracker.ProcessFrame(frameTime(0), []nn.Detection{personAt(70, 50)})
	require.Empty(t, result.Events)
	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(0), entries+exits)
}

func TestMultipleLinesCountedIndependently(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lines = []Line{
		{ID: 1, X1: 50, Y1: 0, X2: 50, Y2: 100},
		{ID: 2, X1: 90, Y1: 0, X2: 90, Y2: 100},
	}
	tracker, err := NewTracker(cfg)
	require.NoError(t, err)

	frame := 0
	all := []CountEvent{}
	all = append(all, walkAcross(t, tracker, &frame, 30, 70)...)  // crosses line 1
	all = append(all, walkAcross(t, tracker, &frame, 70, 110)...) // crosses line 2

	require.Len(t, all, 2)
	require.Equal(t, int64(1), all[0].Line)
	require.Equal(t, int64(2), all[1].Line)

	result := tracker.ProcessFrame(frameTime(frame), []nn.Detection{personAt(110, 50)})
	require.Equal(t, Totals{Entries: 1}, result.Totals[1])
	require.Equal(t, Totals{Entries: 1}, result.Totals[2])
}

func TestResetTotals(t *testing.T) {
	tracker, err := NewTracker(lineConfig())
	require.NoError(t, err)

	frame := 0
	walkAcross(t, tracker, &frame, 30, 70)
	entries, _ := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(1), entries)

	tracker.ResetTotals()
	entries, exits := tracker.TotalEntriesAndExits()
	require.Equal(t, int64(0), entries)
	require.Equal(t, int64(0), exits)
}
