package render

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/diorama/pkg/math3d"
)

func newTestCamera() *Camera {
	return NewCamera(math3d.V3(0, 0, 10), math3d.Zero3(), math3d.Up())
}

func TestCameraToStereo(t *testing.T) {
	c := newTestCamera()
	left, right := c.ToStereo(5)

	lp, rp := left.Pose(), right.Pose()
	assert.True(t, lp.Pos.ApproxEqual(math3d.V3(-2.5, 0, 10), 1e-9), "left pos %v", lp.Pos)
	assert.True(t, rp.Pos.ApproxEqual(math3d.V3(2.5, 0, 10), 1e-9), "right pos %v", rp.Pos)
	assert.True(t, lp.View.ApproxEqual(math3d.V3(-2.5, 0, 0), 1e-9))
	assert.True(t, rp.View.ApproxEqual(math3d.V3(2.5, 0, 0), 1e-9))

	// look direction and up are shared
	assert.True(t, lp.View.Sub(lp.Pos).ApproxEqual(rp.View.Sub(rp.Pos), 1e-9))
	assert.Equal(t, lp.Up, rp.Up)

	// the source camera is untouched
	assert.Equal(t, math3d.V3(0, 0, 10), c.Pos())
}

func TestCameraTranslateKeepsDistance(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
	}{
		{"auto orbit step", 0.0005, 0},
		{"horizontal", 0.3, 0},
		{"vertical", 0, 0.2},
		{"diagonal", -0.1, 0.4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCamera()
			c.SetChanged(false)
			c.TranslateCamera(tc.dx, tc.dy)

			p := c.Pose()
			assert.InDelta(t, 10, p.Pos.Sub(p.View).Len(), 1e-9)
			assert.InDelta(t, 0, p.Up.Dot(p.View.Sub(p.Pos).Normalize()), 1e-9, "up stays orthogonal")
			assert.True(t, c.Changed())
		})
	}
}

func TestCameraTakeChanged(t *testing.T) {
	c := newTestCamera()
	assert.True(t, c.TakeChanged(), "a new camera has not been drawn yet")
	assert.False(t, c.TakeChanged())
	assert.False(t, c.Changed())

	c.Zoom(2)
	assert.True(t, c.TakeChanged())
	assert.False(t, c.Changed())
}

func TestCameraOrbitDirection(t *testing.T) {
	c := newTestCamera()
	c.TranslateCamera(0.1, 0)
	assert.Positive(t, c.Pos().X, "positive dx moves along the right vector")
}

func TestCameraAnimateConverges(t *testing.T) {
	c := newTestCamera()
	target := Pose{Pos: math3d.V3(10, 10, 10), View: math3d.V3(1, 0, 0), Up: math3d.Up()}
	c.MoveTo(target)
	require.True(t, c.Animating())

	c.Animate()
	mid := c.Pose()
	assert.NotEqual(t, target.Pos, mid.Pos, "a single frame does not jump")

	for range 600 {
		c.Animate()
	}
	assert.False(t, c.Animating())
	assert.Equal(t, target, c.Pose())
}

func TestCameraSetCancelsTransition(t *testing.T) {
	c := newTestCamera()
	c.MoveTo(Pose{Pos: math3d.V3(50, 0, 0), Up: math3d.Up()})
	c.Set(math3d.V3(0, 0, 20), math3d.Zero3(), math3d.Up())
	assert.False(t, c.Animating())
	c.Animate()
	assert.Equal(t, math3d.V3(0, 0, 20), c.Pos())
}

func TestCameraResetReturnsHome(t *testing.T) {
	c := newTestCamera()
	c.TranslateCamera(0.5, 0.5)
	c.SetOrientation(90)
	c.Reset()
	for range 600 {
		c.Animate()
	}
	assert.Equal(t, c.Home(), c.Pose())
	assert.Equal(t, math3d.LookAt(math3d.V3(0, 0, 10), math3d.Zero3(), math3d.Up()), c.ViewMatrix())
}

func TestCameraZoom(t *testing.T) {
	c := newTestCamera()
	c.Zoom(0.5)
	assert.InDelta(t, 5, c.Pos().Z, 1e-9)

	c.Zoom(0)
	assert.InDelta(t, 5, c.Pos().Z, 1e-9, "non-positive factors are ignored")
}

func TestCameraRoll(t *testing.T) {
	c := newTestCamera()
	c.Roll(math.Pi / 2)
	up := c.Pose().Up
	assert.InDelta(t, 0, up.Y, 1e-9)
	assert.InDelta(t, 1, math.Abs(up.X), 1e-9)
}

func TestCameraRight(t *testing.T) {
	c := newTestCamera()
	assert.True(t, c.Right().ApproxEqual(math3d.V3(1, 0, 0), 1e-9))
}

func TestCameraViewMatrixOrientation(t *testing.T) {
	c := newTestCamera()
	c.SetOrientation(90)

	// a point to the right of the target ends up above it in view space
	p := c.ViewMatrix().MulVec3(math3d.V3(1, 0, 0))
	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, 1, p.Y, 1e-9)
}

func TestCameraConcurrentAccess(t *testing.T) {
	c := newTestCamera()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			c.TranslateCamera(0.001, 0)
			c.Animate()
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_ = c.ViewMatrix()
			_, _ = c.ToStereo(5)
			c.SetChanged(false)
		}
	}()
	wg.Wait()
	assert.InDelta(t, 10, c.Pos().Len(), 1e-6)
}
