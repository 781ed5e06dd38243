package router

import (
	"log/slog"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/pipeline"
	"github.com/taigrr/diorama/pkg/render"
)

// CameraController turns gestures into camera motion and moves the camera
// to a preset pose when the projection changes.
type CameraController struct {
	cam    *render.Camera
	width  int
	height int
}

func NewCameraController(cam *render.Camera) *CameraController {
	return &CameraController{cam: cam, width: 1, height: 1}
}

// OnEvent handles Touch, SurfaceChanged and ProjectionChanged.
func (c *CameraController) OnEvent(ev event.Event) {
	if c.cam == nil {
		return
	}
	switch e := ev.(type) {
	case event.SurfaceChanged:
		c.width, c.height = max(e.Width, 1), max(e.Height, 1)

	case event.Touch:
		switch e.Action {
		case event.Move:
			// a drag across the whole surface orbits by one eye distance
			c.cam.TranslateCamera(-e.DX/float64(c.width), e.DY/float64(c.height))
		case event.Pinch:
			if e.Zoom > 0 {
				c.cam.Zoom(1 / e.Zoom)
			}
		case event.Rotate:
			c.cam.Roll(e.Angle)
		}

	case event.ProjectionChanged:
		p, err := pipeline.ParseProjection(e.Projection)
		if err != nil {
			slog.Warn("ignoring projection", "err", err)
			return
		}
		if pose, ok := c.Preset(p); ok {
			c.cam.MoveTo(pose)
		}
	}
}

// Preset returns the pose a projection starts from, at the home distance
// from the home target. Free keeps the current pose.
func (c *CameraController) Preset(p pipeline.Projection) (render.Pose, bool) {
	home := c.cam.Home()
	dist := home.Pos.Distance(home.View)
	switch p {
	case pipeline.Perspective:
		return home, true
	case pipeline.Isometric:
		dir := math3d.One3().Normalize()
		return render.Pose{Pos: home.View.Add(dir.Scale(dist)), View: home.View, Up: math3d.Up()}, true
	case pipeline.Orthographic:
		return render.Pose{Pos: home.View.Add(math3d.V3(0, 0, dist)), View: home.View, Up: math3d.Up()}, true
	}
	return render.Pose{}, false
}
