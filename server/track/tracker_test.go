package track

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/footfall/footfall/pkg/nn"
)

var testBaseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const testFrameInterval = 100 * time.Millisecond

func frameTime(i int) time.Time {
	return testBaseTime.Add(time.Duration(i) * testFrameInterval)
}

// A detection with a 20x40 person-ish box centered on (x,y)
func personAt(x, y int) nn.Detection {
	return nn.Detection{
		Class:      nn.ClassPerson,
		Confidence: 0.9,
		Box:        nn.Rect{X: x - 10, Y: y - 20, Width: 20, Height: 40},
	}
}

func umbrellaAt(x, y int) nn.Detection {
	return nn.Detection{
		Class:      nn.ClassUmbrella,
		Confidence: 0.9,
		Box:        nn.Rect{X: x - 15, Y: y - 8, Width: 30, Height: 16},
	}
}

func TestStationaryTrackKeepsIdentity(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		result := tracker.ProcessFrame(frameTime(i), []nn.Detection{personAt(10, 10)})
		require.Len(t, result.Tracks, 1)
		require.Equal(t, int64(1), result.Tracks[0].ID)
		require.Equal(t, "person", result.Tracks[0].Class)
		require.Empty(t, result.Events)
	}
}

func TestMovingTrackKeepsIdentity(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		result := tracker.ProcessFrame(frameTime(i), []nn.Detection{personAt(10+i*15, 50)})
		require.Len(t, result.Tracks, 1)
		require.Equal(t, int64(1), result.Tracks[0].ID)
	}
}

func TestTwoTracksDontSwap(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	// Two people walking toward each other on the same row
	for i := 0; i < 8; i++ {
		dets := []nn.Detection{
			personAt(10+i*10, 50),
			personAt(200-i*10, 50),
		}
		result := tracker.ProcessFrame(frameTime(i), dets)
		require.Len(t, result.Tracks, 2)
		require.Equal(t, int64(1), result.Tracks[0].ID)
		require.Equal(t, int64(2), result.Tracks[1].ID)
	}
}

func TestEmptyFrameAgesTracks(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	tracker.ProcessFrame(frameTime(0), []nn.Detection{personAt(10, 10)})
	result := tracker.ProcessFrame(frameTime(1), nil)
	require.Len(t, result.Tracks, 1)
	require.Equal(t, 1, result.Tracks[0].Misses)
	result = tracker.ProcessFrame(frameTime(2), []nn.Detection{})
	require.Equal(t, 2, result.Tracks[0].Misses)
}

func TestMissBasedRemovalAndNoIdReuse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMisses = 3
	tracker, err := NewTracker(cfg)
	require.NoError(t, err)

	tracker.ProcessFrame(frameTime(0), []nn.Detection{personAt(10, 10)})
	require.Equal(t, 1, tracker.NumLiveTracks())

	// Undetected for MaxMisses frames: still alive
	frame := 1
	for ; frame <= cfg.MaxMisses; frame++ {
		result := tracker.ProcessFrame(frameTime(frame), nil)
		require.Len(t, result.Tracks, 1)
	}
	// One more miss pushes it over the threshold
	result := tracker.ProcessFrame(frameTime(frame), nil)
	frame++
	require.Empty(t, result.Tracks)

	// A detection at the same spot becomes a brand new track: ids are never reused
	result = tracker.ProcessFrame(frameTime(frame), []nn.Detection{personAt(10, 10)})
	require.Len(t, result.Tracks, 1)
	require.Equal(t, int64(2), result.Tracks[0].ID)
}

func TestMalformedDetectionsAreDropped(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	bad := []nn.Detection{
		{Class: nn.ClassPerson, Confidence: 0.9, Box: nn.Rect{X: 10, Y: 10, Width: -5, Height: 40}},
		{Class: nn.ClassPerson, Confidence: 0.9, Box: nn.Rect{X: 10, Y: 10, Width: 20, Height: 0}},
		{Class: nn.ClassPerson, Confidence: float32(math.NaN()), Box: nn.Rect{X: 10, Y: 10, Width: 20, Height: 40}},
	}
	result := tracker.ProcessFrame(frameTime(0), bad)
	require.Empty(t, result.Tracks)
}

func TestMatchingGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMatchDistance = 30
	tracker, err := NewTracker(cfg)
	require.NoError(t, err)

	tracker.ProcessFrame(frameTime(0), []nn.Detection{personAt(100, 100)})
	// A detection far beyond the gate becomes a second track instead of
	// teleporting the first one
	result := tracker.ProcessFrame(frameTime(1), []nn.Detection{personAt(400, 400)})
	require.Len(t, result.Tracks, 2)
}

func TestReappearingTrackMatchesThroughWidenedGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMatchDistance = 20
	tracker, err := NewTracker(cfg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		tracker.ProcessFrame(frameTime(i), []nn.Detection{personAt(100, 100)})
	}
	// Lose the track for a while; uncertainty inflates each miss
	for i := 5; i < 13; i++ {
		tracker.ProcessFrame(frameTime(i), nil)
	}
	// Reappears 35px away: outside the base gate, inside the widened one
	result := tracker.ProcessFrame(frameTime(13), []nn.Detection{personAt(135, 100)})
	require.Len(t, result.Tracks, 1)
	require.Equal(t, int64(1), result.Tracks[0].ID)
}

func TestDeterminism(t *testing.T) {
	frames := [][]nn.Detection{}
	for i := 0; i < 30; i++ {
		dets := []nn.Detection{
			personAt(10+i*7, 40),
			personAt(300-i*5, 60),
			umbrellaAt(12+i*7, 15),
		}
		if i%4 == 0 {
			dets = append(dets, personAt(150, 150+i))
		}
		frames = append(frames, dets)
	}

	run := func() []*FrameResult {
		cfg := DefaultConfig()
		cfg.Lines = []Line{{ID: 1, X1: 120, Y1: 0, X2: 120, Y2: 200}}
		cfg.Correlation.PromoteAfter = 3
		tracker, err := NewTracker(cfg)
		require.NoError(t, err)
		results := []*FrameResult{}
		for i, dets := range frames {
			results = append(results, tracker.ProcessFrame(frameTime(i), dets))
		}
		return results
	}

	require.Equal(t, run(), run())
}

func TestConfigRejectedKeepsPrevious(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	bad := DefaultConfig()
	bad.MaxMatchDistance = -1
	require.Error(t, tracker.SetConfig(bad))
	require.Equal(t, DefaultConfig().MaxMatchDistance, tracker.Config().MaxMatchDistance)

	bad = DefaultConfig()
	bad.Lines = []Line{{ID: 1, X1: 5, Y1: 5, X2: 5, Y2: 5}}
	require.Error(t, tracker.SetConfig(bad))

	good := DefaultConfig()
	good.MaxMatchDistance = 75
	require.NoError(t, tracker.SetConfig(good))
	require.Equal(t, float32(75), tracker.Config().MaxMatchDistance)
}
