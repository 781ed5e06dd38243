// Package router routes input events and engine notifications to the
// scene, the camera controller, the picker and the HUD.
package router

import (
	"log/slog"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/pipeline"
	"github.com/taigrr/diorama/pkg/render"
)

// Scene is the part of *scene.Scene the router drives.
type Scene interface {
	OnEvent(ev event.Event)
	Selected() *models.Object
	Camera() *render.Camera
}

// View is the part of *pipeline.Renderer the router drives.
type View interface {
	Projection() pipeline.Projection
	SetProjection(p pipeline.Projection)
	AddZoom(delta float64)
	SkyBox() int
	SetSkyBox(id int)
	SkyBoxCount() int
}

// Picker resolves a click at framebuffer coordinates into a hit. ok is
// false when nothing is under the pointer.
type Picker interface {
	Pick(x, y float64) (hit event.Collision, ok bool)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(x, y float64) (event.Collision, bool)

func (f PickerFunc) Pick(x, y float64) (event.Collision, bool) { return f(x, y) }

// GUI shows notifications and follows the surface size.
type GUI interface {
	event.Listener
	SetSize(width, height int)
}

// Router dispatches events. It is a bus listener, so the engine's own
// notifications reach it the same way host input does.
type Router struct {
	scene  Scene
	view   View
	camera *CameraController
	picker Picker
	gui    GUI
}

// Option configures a Router.
type Option func(*Router)

func WithPicker(p Picker) Option {
	return func(r *Router) { r.picker = p }
}

func WithGUI(g GUI) Option {
	return func(r *Router) { r.gui = g }
}

// WithCameraController replaces the controller built from the scene
// camera.
func WithCameraController(c *CameraController) Option {
	return func(r *Router) { r.camera = c }
}

// New creates a router for sc and view.
func New(sc Scene, view View, opts ...Option) *Router {
	r := &Router{scene: sc, view: view}
	for _, opt := range opts {
		opt(r)
	}
	if r.camera == nil {
		r.camera = NewCameraController(sc.Camera())
	}
	return r
}

func (r *Router) CameraController() *CameraController { return r.camera }

// OnEvent implements event.Listener.
func (r *Router) OnEvent(ev event.Event) {
	r.Handle(ev)
}

// Handle routes one event.
func (r *Router) Handle(ev event.Event) {
	switch e := ev.(type) {
	case event.FPS, event.SelectionChanged, event.Notice:
		if r.gui != nil {
			r.gui.OnEvent(ev)
		}

	case event.Collision:
		r.scene.OnEvent(e)

	case event.Touch:
		r.touch(e)

	case event.SurfaceChanged:
		r.camera.OnEvent(e)
		if r.gui != nil {
			r.gui.SetSize(e.Width, e.Height)
		}

	case event.ProjectionChanged:
		r.camera.OnEvent(e)

	case event.SurfaceCreated:
		slog.Debug("surface ready")

	default:
		slog.Debug("unrouted event", "event", ev)
	}
}

func (r *Router) touch(t event.Touch) {
	if t.Action == event.Click {
		if r.picker != nil {
			if hit, ok := r.picker.Pick(t.X, t.Y); ok {
				r.Handle(hit)
				return
			}
		}
		r.scene.OnEvent(t)
		return
	}

	if r.scene.Selected() != nil {
		r.scene.OnEvent(t)
		return
	}
	r.camera.OnEvent(t)
	r.scene.OnEvent(t)
	if t.Action == event.Pinch && t.Zoom > 0 {
		r.view.AddZoom(t.Zoom - 1)
	}
}
