// Package scene owns what is being viewed: the loaded objects, the camera,
// the light, the selection and the display toggles. The render pipeline
// reads it once per frame; input handlers mutate it between frames.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/taigrr/diorama/pkg/anim"
	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/render"
)

// ErrNoTarget is returned by LoadTexture when no object was given and the
// scene does not hold exactly one.
var ErrNoTarget = errors.New("no texture target")

const (
	DefaultUnit           = 100.0
	DefaultSkyBoxSize     = 1000.0
	DefaultCameraDistance = 150.0
	DefaultLightPeriod    = 5000 * time.Millisecond
	DefaultOrbitStep      = 0.0005
	DefaultRescaleLower   = 0.5
	DefaultRescaleUpper   = 1.5
)

// Scene is safe for concurrent use. Object and GUI lists are returned as
// copies.
type Scene struct {
	mu sync.Mutex

	camera   *render.Camera
	animator *anim.Animator
	bus      *event.Bus
	now      func() time.Time

	unit        float64
	lower       float64
	upper       float64
	skyBoxSize  float64
	orbitStep   float64
	lightPeriod time.Duration

	objects    []*models.Object
	gui        []*models.Object
	selected   *models.Object
	display    DisplayState
	interacted bool
	fixed      bool

	loading   bool
	loadStart time.Time

	light *models.Object

	// originals keyed by object ID, captured the first time an object
	// takes part in a rescale
	origDims       map[models.ID]models.Dimensions
	origTransforms map[models.ID]models.Transform
}

// Option configures a Scene.
type Option func(*Scene)

// WithClock replaces time.Now for the light rotation and load timing.
func WithClock(now func() time.Time) Option {
	return func(s *Scene) { s.now = now }
}

// WithAnimator shares an animator instead of creating one.
func WithAnimator(a *anim.Animator) Option {
	return func(s *Scene) { s.animator = a }
}

// WithBus delivers notices and selection changes to b.
func WithBus(b *event.Bus) Option {
	return func(s *Scene) { s.bus = b }
}

// WithUnit sets the size loaded models are rescaled to.
func WithUnit(unit float64) Option {
	return func(s *Scene) { s.unit = unit }
}

// WithRescaleBand sets the open interval of scale factors that are
// considered close enough to leave the models alone.
func WithRescaleBand(lower, upper float64) Option {
	return func(s *Scene) { s.lower, s.upper = lower, upper }
}

// WithLightPeriod sets how long one full light revolution takes.
func WithLightPeriod(d time.Duration) Option {
	return func(s *Scene) { s.lightPeriod = d }
}

// WithSkyBoxSize sets the radius the light bulb orbits at.
func WithSkyBoxSize(size float64) Option {
	return func(s *Scene) { s.skyBoxSize = size }
}

// WithOrbitStep sets the per-frame auto-orbit applied until the user
// touches the view. Zero disables it.
func WithOrbitStep(step float64) Option {
	return func(s *Scene) { s.orbitStep = step }
}

// New creates an empty scene viewed through camera. A nil camera gets the
// default pose on the +Z axis.
func New(camera *render.Camera, opts ...Option) *Scene {
	s := &Scene{
		camera:         camera,
		now:            time.Now,
		unit:           DefaultUnit,
		lower:          DefaultRescaleLower,
		upper:          DefaultRescaleUpper,
		skyBoxSize:     DefaultSkyBoxSize,
		orbitStep:      DefaultOrbitStep,
		lightPeriod:    DefaultLightPeriod,
		display:        DefaultDisplayState(),
		origDims:       make(map[models.ID]models.Dimensions),
		origTransforms: make(map[models.ID]models.Transform),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.camera == nil {
		s.camera = render.NewCamera(math3d.V3(0, 0, DefaultCameraDistance), math3d.Zero3(), math3d.Up())
	}
	if s.animator == nil {
		s.animator = anim.New(anim.WithClock(s.now))
	}
	if s.bus == nil {
		s.bus = &event.Bus{}
	}
	if s.lightPeriod <= 0 {
		s.lightPeriod = DefaultLightPeriod
	}
	s.light = newPointObject("light", math3d.V3(s.skyBoxSize, s.skyBoxSize/2, 0), [4]float64{1, 1, 0.6, 1})
	return s
}

func newPointObject(name string, at math3d.Vec3, color [4]float64) *models.Object {
	mesh := models.NewMesh(name)
	mesh.Primitive = models.Points
	mesh.Vertices = append(mesh.Vertices, models.MeshVertex{Position: at})
	mesh.CalculateBounds()
	obj := models.NewObject(name, mesh)
	mat := models.DefaultMaterial()
	mat.BaseColor = color
	obj.SetMaterial(mat)
	return obj
}

func (s *Scene) Camera() *render.Camera    { return s.camera }
func (s *Scene) Animator() *anim.Animator  { return s.animator }
func (s *Scene) Bus() *event.Bus           { return s.bus }
func (s *Scene) LightBulb() *models.Object { return s.light }

// AddListener subscribes l to notices and selection changes.
func (s *Scene) AddListener(l event.Listener) {
	s.bus.Add(l)
}

// LightPosition returns the bulb's current position in world space.
func (s *Scene) LightPosition() math3d.Vec3 {
	return s.light.ModelMatrix().MulVec3(s.light.Mesh.Vertices[0].Position)
}

func (s *Scene) AddObject(obj *models.Object) {
	s.mu.Lock()
	s.objects = append(s.objects, obj)
	s.mu.Unlock()
	slog.Debug("object added", "name", obj.Name, "id", obj.ID())
}

// AddGUIObject adds an overlay object. GUI objects are drawn after the
// scene with a fresh depth buffer.
func (s *Scene) AddGUIObject(obj *models.Object) {
	s.mu.Lock()
	s.gui = append(s.gui, obj)
	s.mu.Unlock()
}

func (s *Scene) Objects() []*models.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.objects)
}

func (s *Scene) GUIObjects() []*models.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.gui)
}

// Selected returns the selected object, or nil.
func (s *Scene) Selected() *models.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetSelected changes the selection and fires SelectionChanged when it
// actually changed.
func (s *Scene) SetSelected(obj *models.Object) {
	s.mu.Lock()
	changed := s.selected != obj
	s.selected = obj
	s.mu.Unlock()
	if changed {
		s.bus.Fire(event.SelectionChanged{Object: obj})
	}
}

// DisplayState returns a snapshot of the display toggles.
func (s *Scene) DisplayState() DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// Interacted reports whether the user has touched the view since the
// last reset of the auto-orbit.
func (s *Scene) Interacted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interacted
}

// Fixed reports whether a coordinate-system fix-up was applied.
func (s *Scene) Fixed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixed
}

func (s *Scene) notify(text string) {
	slog.Info("notice", "text", text)
	s.bus.Fire(event.Notice{Text: text})
}

func (s *Scene) toggle(step func(d *DisplayState) string) {
	s.mu.Lock()
	text := step(&s.display)
	s.mu.Unlock()
	s.notify(text)
}

// ToggleWireframe cycles faces, wireframe, points, skeleton and normals.
func (s *Scene) ToggleWireframe() { s.toggle((*DisplayState).nextDraw) }

// ToggleTextures cycles textures and colors, colors only, and neither.
func (s *Scene) ToggleTextures() { s.toggle((*DisplayState).nextTextures) }

// ToggleLighting cycles a rotating light, a light at the camera, and no
// light.
func (s *Scene) ToggleLighting() { s.toggle((*DisplayState).nextLight) }

// ToggleBlending cycles normal blending, x-ray and no blending.
func (s *Scene) ToggleBlending() { s.toggle((*DisplayState).nextBlend) }

// ToggleStereoscopic cycles mono, anaglyph and side-by-side VR. Entering
// VR restarts the auto-orbit since VR has no other way to move.
func (s *Scene) ToggleStereoscopic() {
	s.toggle(func(d *DisplayState) string {
		text := d.nextStereo()
		if d.Stereo == StereoVR {
			s.interacted = false
		}
		return text
	})
	s.camera.SetChanged(true)
}

func (s *Scene) ToggleCollision() {
	s.toggle(func(d *DisplayState) string {
		d.Collision = !d.Collision
		return fmt.Sprintf("Collisions: %t", d.Collision)
	})
}

func (s *Scene) ToggleBoundingBox() {
	s.toggle(func(d *DisplayState) string {
		d.BoundingBox = !d.BoundingBox
		return fmt.Sprintf("Bounding box: %t", d.BoundingBox)
	})
}

// ToggleAnimation switches between playing the clip and the bind pose.
func (s *Scene) ToggleAnimation() {
	s.toggle(func(d *DisplayState) string {
		d.Animation = !d.Animation
		if d.Animation {
			return "Animation on"
		}
		return "Bind pose"
	})
}

// ToggleSmooth switches every triangle mesh between averaged and flat
// normals. Meshes are edited in place, so this must run on the render
// goroutine.
func (s *Scene) ToggleSmooth() {
	s.mu.Lock()
	s.display.Smooth = !s.display.Smooth
	smooth := s.display.Smooth
	objs := slices.Clone(s.objects)
	s.mu.Unlock()

	for _, obj := range objs {
		if obj.Mesh == nil || obj.Mesh.Primitive != models.Triangles {
			continue
		}
		if smooth {
			obj.Mesh.CalculateSmoothNormals()
		} else {
			obj.Mesh.CalculateNormals()
		}
		obj.Touch()
	}
	if smooth {
		s.notify("Smooth normals")
	} else {
		s.notify("Flat normals")
	}
}

// OnDrawFrame advances everything that moves on its own: the light, the
// camera transition and auto-orbit, and skeletal animation.
func (s *Scene) OnDrawFrame() {
	s.animator.BeginFrame()

	s.mu.Lock()
	ds := s.display
	interacted := s.interacted
	objs := slices.Clone(s.objects)
	s.mu.Unlock()

	if ds.RotatingLight() {
		s.animateLight()
	}

	s.camera.Animate()
	if !interacted && s.orbitStep != 0 {
		s.camera.TranslateCamera(s.orbitStep, 0)
	}

	for _, obj := range objs {
		s.animator.Update(obj, ds.ShowBindPose())
	}
}

// animateLight turns the bulb about Y, one revolution per light period.
func (s *Scene) animateLight() {
	period := s.lightPeriod.Milliseconds()
	t := s.now().UnixMilli() % period
	angle := 360 * float64(t) / float64(period)
	s.light.SetRotation(math3d.V3(0, angle, 0))
}

// OnEvent applies a gesture to the selected object or a pick to the
// selection.
func (s *Scene) OnEvent(ev event.Event) {
	switch ev := ev.(type) {
	case event.Touch:
		s.onTouch(ev)
	case event.Collision:
		s.onCollision(ev)
	}
}

func (s *Scene) onTouch(t event.Touch) {
	s.mu.Lock()
	s.interacted = true
	selected := s.selected
	s.mu.Unlock()
	if selected == nil {
		return
	}

	pose := s.camera.Pose()
	switch t.Action {
	case event.Rotate:
		selected.Rotate(math3d.QuatAxisAngle(pose.Pos.Normalize(), t.Angle))
	case event.Move:
		axis := pose.Right().Scale(t.DY).Add(pose.Up.Scale(t.DX))
		if axis.LenSq() == 0 {
			axis = math3d.Right()
		}
		selected.Rotate(math3d.QuatAxisAngle(axis, -t.Length/360))
	}
}

func (s *Scene) onCollision(c event.Collision) {
	s.mu.Lock()
	s.interacted = true
	collision := s.display.Collision
	selected := s.selected
	s.mu.Unlock()

	if collision && c.Point != nil {
		slog.Debug("adding collision point", "point", *c.Point)
		s.AddObject(newPointObject("collision-point", *c.Point, [4]float64{1, 0, 0, 1}))
	}

	if selected == c.Object {
		s.SetSelected(nil)
		return
	}
	s.SetSelected(c.Object)
}
