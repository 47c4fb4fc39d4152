package track

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/footfall/footfall/pkg/gen"
	"github.com/footfall/footfall/pkg/nn"
)

// Process and measurement noise for the constant-velocity filter.
// Units are pixels. These were tuned on 10-15 FPS pedestrian footage;
// the exact values matter far less than the miss-inflation behaviour below.
const (
	kalmanNoisePos    = 1.0  // process noise added to position variance per predict
	kalmanNoiseVel    = 10.0 // process noise added to velocity variance per predict
	kalmanNoiseObs    = 4.0  // measurement noise (variance of an observed centroid)
	kalmanInitialVar  = 25.0 // position variance of a brand new track
	kalmanMissInflate = 1.5  // covariance multiplier applied on every missed frame
)

// One axis of a constant-velocity Kalman filter: state is (position, velocity),
// covariance is the symmetric 2x2 matrix (p00 p01; p01 p11).
type axisFilter struct {
	pos float32
	vel float32
	p00 float32
	p01 float32
	p11 float32
}

func newAxisFilter(pos float32) axisFilter {
	return axisFilter{
		pos: pos,
		p00: kalmanInitialVar,
		p11: kalmanInitialVar,
	}
}

// Advance position by velocity over dt seconds, and grow uncertainty
func (f *axisFilter) predict(dt, maxVel float32) {
	f.vel = gen.Clamp(f.vel, -maxVel, maxVel)
	f.pos += f.vel * dt
	f.p00 += dt*2*f.p01 + dt*dt*f.p11 + kalmanNoisePos
	f.p01 += dt * f.p11
	f.p11 += kalmanNoiseVel
}

// Fuse an observation into the state. The gain shrinks as the filter
// becomes confident, so a well established track barely moves for a
// jittery observation, while a freshly inflated one snaps to it.
func (f *axisFilter) update(z float32) {
	innovation := z - f.pos
	s := f.p00 + kalmanNoiseObs
	k0 := f.p00 / s
	k1 := f.p01 / s
	f.pos += k0 * innovation
	f.vel += k1 * innovation
	p01 := f.p01
	f.p00 *= 1 - k0
	f.p01 *= 1 - k0
	f.p11 -= k1 * p01
}

func (f *axisFilter) inflate() {
	f.p00 *= kalmanMissInflate
	f.p11 *= kalmanMissInflate
}

// Motion is the predictive model for one track: a constant-velocity Kalman
// filter per axis.
type Motion struct {
	x        axisFilter
	y        axisFilter
	lastTime time.Time
}

func NewMotion(c nn.Point, t time.Time) *Motion {
	return &Motion{
		x:        newAxisFilter(float32(c.X)),
		y:        newAxisFilter(float32(c.Y)),
		lastTime: t,
	}
}

// Predict advances the state to time t and returns the estimated centroid.
// Called once per frame, before matching.
func (m *Motion) Predict(t time.Time, maxVel float32) nn.Point {
	dt := float32(t.Sub(m.lastTime).Seconds())
	if dt < 0 {
		dt = 0
	}
	m.x.predict(dt, maxVel)
	m.y.predict(dt, maxVel)
	m.lastTime = t
	return m.Position()
}

// Update fuses an observed centroid into the state and returns the
// corrected centroid.
func (m *Motion) Update(obs nn.Point) nn.Point {
	m.x.update(float32(obs.X))
	m.y.update(float32(obs.Y))
	return m.Position()
}

// Inflate grows the state uncertainty. Called once for every frame a track
// goes unmatched, so the matching gate widens the longer a track is lost.
func (m *Motion) Inflate() {
	m.x.inflate()
	m.y.inflate()
}

func (m *Motion) Position() nn.Point {
	return nn.Point{
		X: int(math32.Round(m.x.pos)),
		Y: int(math32.Round(m.y.pos)),
	}
}

// Deviation is the standard deviation of the position estimate, in pixels.
// The tracker adds this to its base matching gate.
func (m *Motion) Deviation() float32 {
	return math32.Sqrt((m.x.p00 + m.y.p00) * 0.5)
}
