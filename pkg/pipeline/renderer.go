// Package pipeline turns a scene into frames on a render device: it keeps
// the projection and skybox state, runs the mono or stereo passes, picks a
// draw program per object and owns every cache derived from the scene.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/render"
	"github.com/taigrr/diorama/pkg/scene"
)

// ErrBroken is returned by Err once a frame has failed. The renderer draws
// nothing afterwards.
var ErrBroken = errors.New("render pipeline stopped")

const (
	DefaultNear        = 1.0
	DefaultFar         = 10000.0
	DefaultEyeDistance = 5.0
)

// Device is the drawing surface the renderer targets. *render.Device
// implements it.
type Device interface {
	Size() (width, height int)
	SetViewport(x, y, w, h int)
	SetScissor(enabled bool, x, y, w, h int)
	SetColorMask(r, g, b, a bool)
	SetDepthTest(enabled bool)
	SetBlend(enabled bool)
	SetClearColor(c render.Color)
	Clear(color, depth bool)
	UploadTexture(data []byte) (render.TextureID, error)
	AddCubeMap(cube *render.CubeMap) render.TextureID
	Draw(c render.DrawCall) error
}

// Scene is what the renderer reads each frame. *scene.Scene implements
// it.
type Scene interface {
	OnDrawFrame()
	Camera() *render.Camera
	DisplayState() scene.DisplayState
	Objects() []*models.Object
	GUIObjects() []*models.Object
	Selected() *models.Object
	LightBulb() *models.Object
	LightPosition() math3d.Vec3
}

// Projection is the projection mode.
type Projection int

const (
	Perspective Projection = iota
	Isometric
	Orthographic
	Free
)

func (p Projection) String() string {
	switch p {
	case Perspective:
		return "PERSPECTIVE"
	case Isometric:
		return "ISOMETRIC"
	case Orthographic:
		return "ORTHOGRAPHIC"
	case Free:
		return "FREE"
	}
	return fmt.Sprintf("Projection(%d)", int(p))
}

// ParseProjection is the inverse of Projection.String.
func ParseProjection(s string) (Projection, error) {
	for p := Perspective; p <= Free; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return Perspective, fmt.Errorf("unknown projection %q", s)
}

func (p Projection) next() Projection {
	return (p + 1) % (Free + 1)
}

func (p Projection) orthographic() bool {
	return p == Orthographic || p == Isometric
}

// Renderer draws a Scene. OnDrawFrame and the surface hooks run on the
// render goroutine; the projection, zoom and skybox setters may be called
// from anywhere.
type Renderer struct {
	dev   Device
	scene Scene
	bus   *event.Bus
	now   func() time.Time

	background  render.Color
	unit        float64
	near, far   float64
	skyBoxSize  float64
	eyeDistance float64

	mu         sync.Mutex
	width      int
	height     int
	ratio      float64
	projection Projection
	zoom       float64
	skyBoxID   int

	// render goroutine only from here on
	proj, skyProj math3d.Mat4
	view          math3d.Mat4
	viewLeft      math3d.Mat4
	viewRight     math3d.Mat4
	anaglyphFlip  bool

	skyBoxOn      bool
	skyBoxSources []SkyBoxSource
	skyBoxTex     []render.TextureID
	skyBoxMesh    *models.Object
	extras        []*models.Object

	caches *caches
	logged map[string]bool

	broken bool
	err    error

	fpsStarted bool
	fpsStart   time.Time
	fpsCount   int
	fps        int
}

// Option configures a Renderer.
type Option func(*Renderer)

func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithBus delivers SurfaceCreated, SurfaceChanged, ProjectionChanged and
// FPS events to b.
func WithBus(b *event.Bus) Option {
	return func(r *Renderer) { r.bus = b }
}

func WithBackground(c render.Color) Option {
	return func(r *Renderer) { r.background = c }
}

// WithUnit sets the half-height of the orthographic view volume at zoom 1
// and the size of the axis and grid decorations.
func WithUnit(unit float64) Option {
	return func(r *Renderer) { r.unit = unit }
}

func WithPlanes(near, far float64) Option {
	return func(r *Renderer) { r.near, r.far = near, far }
}

func WithSkyBoxSize(size float64) Option {
	return func(r *Renderer) { r.skyBoxSize = size }
}

func WithEyeDistance(d float64) Option {
	return func(r *Renderer) { r.eyeDistance = d }
}

// WithSkyBox selects the initial skybox state.
func WithSkyBox(id int) Option {
	return func(r *Renderer) { r.skyBoxID = id }
}

// WithSkyBoxes replaces the built-in cube maps.
func WithSkyBoxes(sources ...SkyBoxSource) Option {
	return func(r *Renderer) { r.skyBoxSources = sources }
}

// New creates a renderer drawing sc onto dev.
func New(dev Device, sc Scene, opts ...Option) *Renderer {
	r := &Renderer{
		dev:           dev,
		scene:         sc,
		now:           time.Now,
		background:    render.ColorBlack,
		unit:          scene.DefaultUnit,
		near:          DefaultNear,
		far:           DefaultFar,
		skyBoxSize:    scene.DefaultSkyBoxSize,
		eyeDistance:   DefaultEyeDistance,
		zoom:          1,
		skyBoxOn:      true,
		skyBoxSources: DefaultSkyBoxes(),
		proj:          math3d.Identity(),
		skyProj:       math3d.Identity(),
		view:          math3d.Identity(),
		viewLeft:      math3d.Identity(),
		viewRight:     math3d.Identity(),
		caches:        newCaches(),
		logged:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.bus == nil {
		r.bus = &event.Bus{}
	}
	r.skyBoxTex = make([]render.TextureID, len(r.skyBoxSources))
	r.skyBoxMesh = models.NewObject("skybox", cubeMesh("skybox", 1))
	r.skyBoxMesh.SetScale(math3d.V3(r.skyBoxSize, r.skyBoxSize, r.skyBoxSize))
	r.extras = decorations(r.unit)
	return r
}

func (r *Renderer) Bus() *event.Bus { return r.bus }

// OnSurfaceCreated announces the render target.
func (r *Renderer) OnSurfaceCreated() {
	slog.Debug("surface created")
	r.bus.Fire(event.SurfaceCreated{})
}

// OnSurfaceChanged records the new target size and rebuilds the
// projections.
func (r *Renderer) OnSurfaceChanged(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	if height > 0 {
		r.ratio = float64(width) / float64(height)
	}
	r.mu.Unlock()
	r.refreshMatrices()
	slog.Debug("surface changed", "width", width, "height", height)
	r.bus.Fire(event.SurfaceChanged{Width: width, Height: height})
}

// Size returns the surface size last reported to OnSurfaceChanged.
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Renderer) Projection() Projection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projection
}

// SetProjection switches the projection mode and fires ProjectionChanged.
func (r *Renderer) SetProjection(p Projection) {
	r.mu.Lock()
	r.projection = p
	r.mu.Unlock()
	slog.Debug("projection changed", "projection", p)
	r.bus.Fire(event.ProjectionChanged{Projection: p.String()})
}

// ToggleProjection cycles perspective, isometric, orthographic and free.
func (r *Renderer) ToggleProjection() {
	r.SetProjection(r.Projection().next())
}

func (r *Renderer) Zoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

// SetZoom changes the orthographic zoom. It is ignored in the perspective
// modes and outside (0, 10).
func (r *Renderer) SetZoom(zoom float64) {
	p := r.Projection()
	if !p.orthographic() || zoom <= 0 || zoom >= 10 {
		return
	}
	r.mu.Lock()
	r.zoom = zoom
	r.mu.Unlock()
	r.SetProjection(p)
}

// AddZoom offsets the zoom by delta.
func (r *Renderer) AddZoom(delta float64) {
	r.SetZoom(r.Zoom() + delta)
}

func (r *Renderer) SkyBox() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skyBoxID
}

// SetSkyBox selects the background: -3 axis and grids, -2 the background
// color, -1 its inverse, 0 and up a cube-map skybox.
func (r *Renderer) SetSkyBox(id int) {
	r.mu.Lock()
	r.skyBoxID = id
	r.mu.Unlock()
}

// SkyBoxCount is the number of cube-map skyboxes; valid ids run from -3
// to SkyBoxCount()-1.
func (r *Renderer) SkyBoxCount() int { return len(r.skyBoxSources) }

// ToggleSkyBox steps through the cube maps, then the decorations and the
// two plain backgrounds.
func (r *Renderer) ToggleSkyBox() {
	r.mu.Lock()
	r.skyBoxID++
	if r.skyBoxID >= len(r.skyBoxSources) {
		r.skyBoxID = -3
	}
	id := r.skyBoxID
	r.mu.Unlock()
	slog.Info("toggled skybox", "id", id)
}

// ProjectionMatrix and ViewMatrix return the matrices of the last frame,
// for picking.
func (r *Renderer) ProjectionMatrix() math3d.Mat4 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proj
}

func (r *Renderer) ViewMatrix() math3d.Mat4 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// FPS returns the frame count of the last full second.
func (r *Renderer) FPS() int {
	return r.fps
}

// Broken reports whether a frame failed. Once set it stays set.
func (r *Renderer) Broken() bool {
	return r.broken
}

// Err returns the failure that stopped the renderer, wrapping ErrBroken.
func (r *Renderer) Err() error {
	if !r.broken {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBroken, r.err)
}

func (r *Renderer) refreshMatrices() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ratio == 0 {
		return
	}
	switch {
	case r.projection.orthographic():
		h := r.unit / r.zoom
		r.proj = math3d.Orthographic(-r.ratio*h, r.ratio*h, -h, h, r.near, r.far)
	default:
		r.proj = math3d.Frustum(-r.ratio*r.near, r.ratio*r.near, -r.near, r.near, r.near, r.far)
	}
	r.skyProj = r.proj
}

// pass is what one eye needs to draw the scene.
type pass struct {
	view, proj math3d.Mat4
	mask       math3d.Vec4
	light      math3d.Vec3
	ds         scene.DisplayState
	flags      Flags
	selected   *models.Object
}

// OnDrawFrame renders one frame. A failure anywhere outside a single
// object latches Broken and every later call returns immediately.
func (r *Renderer) OnDrawFrame() {
	if r.broken {
		return
	}
	defer r.countFrame()
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(fmt.Errorf("panic: %v", rec))
		}
	}()
	if err := r.drawFrame(); err != nil {
		r.fail(err)
	}
}

func (r *Renderer) fail(err error) {
	r.broken = true
	r.err = err
	slog.Error("fatal render error", "err", err)
}

func (r *Renderer) drawFrame() error {
	w, h := r.Size()
	if w == 0 || h == 0 {
		w, h = r.dev.Size()
	}
	r.dev.SetViewport(0, 0, w, h)
	r.dev.SetScissor(true, 0, 0, w, h)
	r.dev.SetColorMask(true, true, true, true)
	r.dev.SetDepthTest(true)
	r.dev.SetClearColor(r.background)
	r.dev.Clear(true, true)

	if r.scene == nil {
		return nil
	}

	ds := r.scene.DisplayState()
	mask := math3d.V4(1, 1, 1, 1)
	r.dev.SetBlend(ds.BlendingEnabled())
	if ds.BlendingForced() {
		mask.W = 0.5
	}

	r.refreshMatrices()
	r.scene.OnDrawFrame()

	cam := r.scene.Camera()
	if cam == nil {
		return errors.New("scene has no camera")
	}
	if cam.TakeChanged() {
		view := cam.ViewMatrix()
		r.mu.Lock()
		r.view = view
		r.mu.Unlock()
		if ds.Stereoscopic() {
			left, right := cam.ToStereo(r.eyeDistance)
			r.viewLeft = left.ViewMatrix()
			r.viewRight = right.ViewMatrix()
		}
	}

	p := pass{
		view:     r.view,
		proj:     r.proj,
		mask:     mask,
		ds:       ds,
		selected: r.scene.Selected(),
		flags: Flags{
			Textures:  ds.DrawTextures(),
			Colors:    ds.DrawColors(),
			Lighting:  ds.DrawLighting(),
			Animation: true,
		},
	}
	switch {
	case !ds.DrawLighting():
	case ds.RotatingLight():
		p.light = r.scene.LightPosition()
	default:
		p.light = cam.Pos()
	}

	r.drawSkyBox(p)

	switch {
	case !ds.Stereoscopic():
		r.drawScene(p)
	case ds.Anaglyph():
		r.drawAnaglyph(p, w, h)
	case ds.VRGlasses():
		r.drawVR(p, w, h)
	}
	return nil
}

// drawAnaglyph draws the left eye in red and the right eye in cyan,
// swapping which goes first every frame.
func (r *Renderer) drawAnaglyph(p pass, w, h int) {
	left, right := p, p
	left.view, right.view = r.viewLeft, r.viewRight
	eyes := []struct {
		p    pass
		mask [4]bool
	}{
		{left, [4]bool{true, false, false, true}},
		{right, [4]bool{false, true, true, true}},
	}
	if r.anaglyphFlip {
		eyes[0], eyes[1] = eyes[1], eyes[0]
	}
	r.anaglyphFlip = !r.anaglyphFlip

	for i, eye := range eyes {
		if i > 0 {
			r.dev.Clear(false, true)
		}
		r.dev.SetColorMask(eye.mask[0], eye.mask[1], eye.mask[2], eye.mask[3])
		r.dev.SetViewport(0, 0, w, h)
		r.drawScene(eye.p)
	}
	r.dev.SetColorMask(true, true, true, true)
}

// drawVR draws the eyes side by side, each clipped to its half.
func (r *Renderer) drawVR(p pass, w, h int) {
	half := w / 2
	left, right := p, p
	left.view, right.view = r.viewLeft, r.viewRight
	left.mask, right.mask = math3d.V4(1, 1, 1, 1), math3d.V4(1, 1, 1, 1)

	r.dev.SetViewport(0, 0, half, h)
	r.dev.SetScissor(true, 0, 0, half, h)
	r.drawScene(left)

	r.dev.SetViewport(half, 0, half, h)
	r.dev.SetScissor(true, half, 0, half, h)
	r.drawScene(right)

	r.dev.SetViewport(0, 0, w, h)
	r.dev.SetScissor(true, 0, 0, w, h)
}

// drawScene draws the light, every scene object, then the GUI objects over
// a cleared depth buffer.
func (r *Renderer) drawScene(p pass) {
	if p.ds.DrawLighting() {
		if p.ds.RotatingLight() {
			r.drawObject(r.scene.LightBulb(), p)
		}
		if p.ds.DrawNormals() {
			line := lineMesh("light_line", []models.MeshVertex{{Position: p.light}, {}}, []models.Line{{0, 1}})
			r.draw(render.DrawCall{
				Geometry:   line,
				Topology:   render.TopologyLines,
				Strategy:   render.Strategy{Colored: true},
				Model:      math3d.Identity(),
				View:       p.view,
				Projection: p.proj,
				Color:      render.ColorWhite,
				ColorMask:  p.mask,
			}, "light line")
		}
	}

	for _, obj := range r.scene.Objects() {
		r.drawObject(obj, p)
	}
	r.dev.Clear(false, true)
	for _, obj := range r.scene.GUIObjects() {
		r.drawObject(obj, p)
	}
}

func (r *Renderer) countFrame() {
	now := r.now()
	switch {
	case !r.fpsStarted:
		r.fpsStarted = true
		r.fpsStart = now
		r.fpsCount = 1
	case now.Sub(r.fpsStart) > time.Second:
		r.fps = r.fpsCount
		r.fpsCount = 1
		r.fpsStart = now
		r.bus.Fire(event.FPS{FPS: r.fps})
	default:
		r.fpsCount++
	}
}

// logOnce logs msg at error level the first time key is seen.
func (r *Renderer) logOnce(key, msg string, args ...any) {
	if r.logged[key] {
		return
	}
	r.logged[key] = true
	slog.Error(msg, args...)
}

func (r *Renderer) infoOnce(key, msg string, args ...any) {
	if r.logged[key] {
		return
	}
	r.logged[key] = true
	slog.Info(msg, args...)
}
