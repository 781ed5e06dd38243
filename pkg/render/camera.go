package render

import (
	"math"
	"sync"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/diorama/pkg/math3d"
)

// Pose is a camera placement: eye position, look-at target and up vector.
type Pose struct {
	Pos  math3d.Vec3
	View math3d.Vec3
	Up   math3d.Vec3
}

// Right returns the normalized right vector of the pose.
func (p Pose) Right() math3d.Vec3 {
	return p.View.Sub(p.Pos).Cross(p.Up).Normalize()
}

const (
	snapEpsilon = 1e-3
	minDistance = 1e-3
)

// Camera is a look-at camera shared between the render loop and the event
// handlers, so all access goes through its mutex.
type Camera struct {
	mu sync.RWMutex

	pose        Pose
	home        Pose
	orientation float64 // device roll in degrees
	changed     bool

	// in-flight transition toward target
	target  *Pose
	spring  harmonica.Spring
	springV [9]float64
	fps     int
}

// NewCamera creates a camera at pos looking at view. The pose also becomes
// the home pose Reset returns to.
func NewCamera(pos, view, up math3d.Vec3) *Camera {
	p := Pose{Pos: pos, View: view, Up: up.Normalize()}
	c := &Camera{pose: p, home: p, changed: true}
	c.SetFrameRate(60)
	return c
}

// SetFrameRate tunes the transition springs to the render loop's rate.
func (c *Camera) SetFrameRate(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps <= 0 {
		fps = 60
	}
	c.fps = fps
	// critically damped, settles in well under a second
	c.spring = harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0)
}

// Pose returns a copy of the current pose.
func (c *Camera) Pose() Pose {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose
}

// Pos returns the eye position.
func (c *Camera) Pos() math3d.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose.Pos
}

// Set places the camera immediately, cancelling any transition.
func (c *Camera) Set(pos, view, up math3d.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pose = Pose{Pos: pos, View: view, Up: up.Normalize()}
	c.target = nil
	c.changed = true
}

// SetHome replaces the pose Reset returns to.
func (c *Camera) SetHome(p Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.home = p
}

// Home returns the pose Reset returns to.
func (c *Camera) Home() Pose {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.home
}

// MoveTo starts a smooth transition toward p. Animate advances it.
func (c *Camera) MoveTo(p Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Up = p.Up.Normalize()
	c.target = &p
	c.springV = [9]float64{}
}

// Reset animates back to the home pose and clears the device roll.
func (c *Camera) Reset() {
	c.mu.Lock()
	home := c.home
	c.orientation = 0
	c.mu.Unlock()
	c.MoveTo(home)
}

// Animating reports whether a transition is in flight.
func (c *Camera) Animating() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target != nil
}

// Animate advances an in-flight transition by one frame. The pose snaps to
// the target once every component is within epsilon.
func (c *Camera) Animate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return
	}

	cur := poseComponents(c.pose)
	dst := poseComponents(*c.target)
	done := true
	for i := range cur {
		cur[i], c.springV[i] = c.spring.Update(cur[i], c.springV[i], dst[i])
		if math.Abs(cur[i]-dst[i]) > snapEpsilon || math.Abs(c.springV[i]) > snapEpsilon {
			done = false
		}
	}

	if done {
		c.pose = *c.target
		c.target = nil
	} else {
		c.pose = poseFromComponents(cur)
		c.pose.Up = c.pose.Up.Normalize()
	}
	c.changed = true
}

func poseComponents(p Pose) [9]float64 {
	return [9]float64{p.Pos.X, p.Pos.Y, p.Pos.Z, p.View.X, p.View.Y, p.View.Z, p.Up.X, p.Up.Y, p.Up.Z}
}

func poseFromComponents(v [9]float64) Pose {
	return Pose{
		Pos:  math3d.V3(v[0], v[1], v[2]),
		View: math3d.V3(v[3], v[4], v[5]),
		Up:   math3d.V3(v[6], v[7], v[8]),
	}
}

// TranslateCamera orbits the eye around the look-at target. dx and dy are
// fractions of the current distance along the right and up vectors; the
// distance itself is preserved.
func (c *Camera) TranslateCamera(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	look := c.pose.View.Sub(c.pose.Pos)
	dist := look.Len()
	if dist < minDistance {
		return
	}
	right := look.Cross(c.pose.Up).Normalize()
	up := right.Cross(look).Normalize()

	p := c.pose.Pos.Add(right.Scale(dx * dist)).Add(up.Scale(dy * dist))
	p = c.pose.View.Add(p.Sub(c.pose.View).Normalize().Scale(dist))

	c.pose.Pos = p
	c.pose.Up = right.Cross(c.pose.View.Sub(p)).Normalize()
	c.changed = true
}

// Zoom scales the eye distance to the target by factor. Factors below one
// move closer.
func (c *Camera) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	back := c.pose.Pos.Sub(c.pose.View)
	dist := back.Len() * factor
	if dist < minDistance {
		return
	}
	c.pose.Pos = c.pose.View.Add(back.Normalize().Scale(dist))
	c.changed = true
}

// Roll rotates the up vector about the look direction by angle radians.
func (c *Camera) Roll(angle float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	look := c.pose.View.Sub(c.pose.Pos).Normalize()
	q := math3d.QuatAxisAngle(look, angle)
	c.pose.Up = math3d.RotateVec3(q, c.pose.Up).Normalize()
	c.changed = true
}

// Right returns the normalized right vector, (view - pos) × up.
func (c *Camera) Right() math3d.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose.Right()
}

// SetOrientation sets the device roll in degrees.
func (c *Camera) SetOrientation(deg float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = deg
	c.changed = true
}

// ViewMatrix is the look-at matrix followed by the device roll.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := math3d.LookAt(c.pose.Pos, c.pose.View, c.pose.Up)
	if c.orientation != 0 {
		m = math3d.RotateZ(c.orientation * math.Pi / 180).Mul(m)
	}
	return m
}

// Changed reports whether the pose moved since the flag was last cleared.
func (c *Camera) Changed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

// TakeChanged reports whether the pose moved and clears the flag in the
// same step, so a move made while a frame is drawn shows up in the next.
func (c *Camera) TakeChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.changed
	c.changed = false
	return changed
}

// SetChanged sets or clears the changed flag.
func (c *Camera) SetChanged(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changed = v
}

// ToStereo returns left and right eye cameras separated by eyeDistance
// along the right vector. Both share the look direction and up vector.
func (c *Camera) ToStereo(eyeDistance float64) (left, right *Camera) {
	c.mu.RLock()
	p := c.pose
	orientation := c.orientation
	c.mu.RUnlock()

	off := p.Right().Scale(eyeDistance / 2)
	eye := func(sign float64) *Camera {
		e := &Camera{
			pose: Pose{
				Pos:  p.Pos.Add(off.Scale(sign)),
				View: p.View.Add(off.Scale(sign)),
				Up:   p.Up,
			},
			orientation: orientation,
		}
		e.home = e.pose
		return e
	}
	return eye(-1), eye(1)
}
