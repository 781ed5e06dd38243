package scene

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/render"
)

var _ models.LoadListener = (*Scene)(nil)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) OnEvent(ev event.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) notices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if n, ok := ev.(event.Notice); ok {
			out = append(out, n.Text)
		}
	}
	return out
}

func (r *recorder) selections() []*models.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Object
	for _, ev := range r.events {
		if s, ok := ev.(event.SelectionChanged); ok {
			out = append(out, s.Object)
		}
	}
	return out
}

// captureLogs sends the default logger to a buffer until the test ends.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func newTestScene(t *testing.T, opts ...Option) (*Scene, *recorder, *fakeClock) {
	t.Helper()
	captureLogs(t)
	clock := &fakeClock{t: time.UnixMilli(0)}
	cam := render.NewCamera(math3d.V3(0, 0, 10), math3d.Zero3(), math3d.Up())
	s := New(cam, append([]Option{WithClock(clock.now)}, opts...)...)
	rec := &recorder{}
	s.AddListener(rec)
	return s, rec, clock
}

// box returns an object whose mesh spans lo..hi.
func box(name string, lo, hi math3d.Vec3) *models.Object {
	mesh := models.NewMesh(name)
	for _, c := range (models.Dimensions{Min: lo, Max: hi}).Corners() {
		mesh.Vertices = append(mesh.Vertices, models.MeshVertex{Position: c})
	}
	mesh.Faces = append(mesh.Faces,
		models.Face{V: [3]int{0, 1, 2}},
		models.Face{V: [3]int{0, 2, 3}},
		models.Face{V: [3]int{4, 5, 6}},
	)
	mesh.CalculateBounds()
	return models.NewObject(name, mesh)
}

func TestToggleCycles(t *testing.T) {
	tests := []struct {
		name   string
		toggle func(s *Scene)
		want   []string
	}{
		{"wireframe", (*Scene).ToggleWireframe, []string{"Wireframe", "Points", "Skeleton", "Normals", "Faces"}},
		{"textures", (*Scene).ToggleTextures, []string{"Texture off", "Colors off", "Textures on"}},
		{"lighting", (*Scene).ToggleLighting, []string{"Light stopped", "Lights off", "Light on"}},
		{"blending", (*Scene).ToggleBlending, []string{"X-Ray enabled", "Blending disabled", "X-Ray disabled"}},
		{"stereo", (*Scene).ToggleStereoscopic, []string{"Stereoscopic Anaglyph", "Stereoscopic VR Glasses", "Stereoscopic disabled"}},
		{"animation", (*Scene).ToggleAnimation, []string{"Bind pose", "Animation on"}},
		{"collision", (*Scene).ToggleCollision, []string{"Collisions: true", "Collisions: false"}},
		{"bounding box", (*Scene).ToggleBoundingBox, []string{"Bounding box: true", "Bounding box: false"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, rec, _ := newTestScene(t)
			for range tc.want {
				tc.toggle(s)
			}
			assert.Equal(t, tc.want, rec.notices())
			assert.Equal(t, DefaultDisplayState(), s.DisplayState(), "a full cycle returns to the default")
		})
	}
}

func TestDisplayStateFlags(t *testing.T) {
	s, _, _ := newTestScene(t)

	s.ToggleWireframe()
	ds := s.DisplayState()
	assert.True(t, ds.DrawWireframe())
	assert.False(t, ds.DrawNormals())

	for range 3 {
		s.ToggleWireframe()
	}
	ds = s.DisplayState()
	assert.Equal(t, DrawNormals, ds.Draw)
	assert.True(t, ds.DrawWireframe(), "normals mode also draws the wireframe")
	assert.True(t, ds.DrawNormals())

	s.ToggleBlending()
	ds = s.DisplayState()
	assert.True(t, ds.BlendingEnabled())
	assert.True(t, ds.BlendingForced())
	s.ToggleBlending()
	ds = s.DisplayState()
	assert.False(t, ds.BlendingEnabled())
	assert.False(t, ds.BlendingForced())

	s.ToggleTextures()
	ds = s.DisplayState()
	assert.False(t, ds.DrawTextures())
	assert.True(t, ds.DrawColors())
}

func TestStereoscopicRestartsOrbitInVR(t *testing.T) {
	s, _, _ := newTestScene(t)
	s.OnEvent(event.Touch{Action: event.Click})
	require.True(t, s.Interacted())

	s.Camera().SetChanged(false)
	s.ToggleStereoscopic()
	assert.True(t, s.Camera().Changed())
	assert.True(t, s.Interacted(), "anaglyph keeps the user in control")

	s.ToggleStereoscopic()
	assert.True(t, s.DisplayState().VRGlasses())
	assert.False(t, s.Interacted())
}

func TestRescale(t *testing.T) {
	tests := []struct {
		name    string
		objects []*models.Object
		loc     math3d.Vec3
		want    float64
	}{
		{
			name: "two objects spanning 200 with centers 50 out",
			objects: []*models.Object{
				box("left", math3d.V3(-100, -10, -10), math3d.V3(0, 10, 10)),
				box("right", math3d.V3(0, -10, -10), math3d.V3(100, 10, 10)),
			},
			want: 0.4,
		},
		{
			name:    "small single object ignores its center",
			objects: []*models.Object{box("small", math3d.V3(40, 0, 0), math3d.V3(50, 5, 5))},
			loc:     math3d.V3(1, 2, 3),
			want:    10,
		},
		{
			name:    "inside the band",
			objects: []*models.Object{box("fits", math3d.V3(-60, -60, -60), math3d.V3(60, 60, 60))},
			loc:     math3d.V3(1, 2, 3),
			want:    1,
		},
		{
			name:    "empty bounds",
			objects: []*models.Object{box("flat", math3d.Zero3(), math3d.Zero3())},
			want:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestScene(t)
			for _, obj := range tc.objects {
				obj.SetLocation(tc.loc)
				s.AddObject(obj)
			}

			s.Rescale(DefaultUnit)
			s.Rescale(DefaultUnit) // originals are cached, so this must not compound

			for _, obj := range tc.objects {
				tr := obj.Transform()
				assert.InDelta(t, tc.want, tr.Scale.X, 1e-9, obj.Name)
				assert.InDelta(t, tc.want, tr.Scale.Z, 1e-9, obj.Name)
				assert.True(t, tr.Location.ApproxEqual(tc.loc.Scale(tc.want), 1e-9), "%s location %v", obj.Name, tr.Location)
			}
		})
	}
}

func TestSceneLogsStayInTest(t *testing.T) {
	s, _, _ := newTestScene(t)
	logs := captureLogs(t)
	s.AddObject(box("small", math3d.V3(40, 0, 0), math3d.V3(50, 5, 5)))
	s.Rescale(DefaultUnit)
	s.ToggleWireframe()

	out := logs.String()
	assert.Contains(t, out, "rescaled scene")
	assert.Contains(t, out, "factor=10")
	assert.Contains(t, out, "msg=notice")
}

func TestLoadLifecycle(t *testing.T) {
	s, rec, clock := newTestScene(t)
	obj := box("model", math3d.V3(0, 0, 0), math3d.V3(400, 100, 100))
	obj.AuthoringTool = "Blender 3.6.2"
	obj.AddError("missing texture foo.png")

	s.OnStart()
	assert.True(t, s.Loading())
	s.OnLoad(obj)
	s.OnLoad(nil)
	clock.advance(2500 * time.Millisecond)
	s.OnLoadComplete()

	assert.False(t, s.Loading())
	assert.Equal(t, []string{"missing texture foo.png", "Load complete (2 secs)"}, rec.notices())
	require.Len(t, s.Objects(), 1)
	assert.True(t, obj.Centered())

	assert.True(t, s.Fixed())
	want := math3d.QuatAxisAngle(math3d.V3(1, 0, 0), math.Pi/2)
	assert.True(t, obj.Transform().Orientation.ApproxEqualThreshold(want, 1e-9))

	// centered and stood upright the model still spans 400 along X
	assert.InDelta(t, 0.25, obj.Transform().Scale.X, 1e-9)
	assert.True(t, obj.Dimensions().Center().ApproxEqual(math3d.Zero3(), 1e-9))
}

func TestLoadLeavesOtherToolsAlone(t *testing.T) {
	s, _, _ := newTestScene(t)
	obj := box("model", math3d.V3(-50, -50, -50), math3d.V3(50, 50, 50))
	obj.AuthoringTool = "Khronos glTF Blender I/O"
	other := box("other", math3d.V3(-50, -50, -50), math3d.V3(50, 50, 50))
	other.AuthoringTool = "Sketchfab"

	s.OnStart()
	s.OnLoad(obj)
	s.OnLoad(other)
	s.OnLoadComplete()

	assert.False(t, other.Centered(), "only a lone object is centered")
	assert.Equal(t, math3d.QuatIdent(), other.Transform().Orientation)
	assert.NotEqual(t, math3d.QuatIdent(), obj.Transform().Orientation)
}

func TestLoadError(t *testing.T) {
	s, rec, _ := newTestScene(t)
	s.OnStart()
	s.OnLoadError(errors.New("bad accessor"))
	assert.False(t, s.Loading())
	assert.Equal(t, []string{"There was a problem building the model: bad accessor"}, rec.notices())
}

func TestCollisionSelects(t *testing.T) {
	s, rec, _ := newTestScene(t)
	a := box("a", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	b := box("b", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	s.AddObject(a)
	s.AddObject(b)

	s.OnEvent(event.Collision{Object: a})
	assert.Same(t, a, s.Selected())
	s.OnEvent(event.Collision{Object: b})
	assert.Same(t, b, s.Selected())
	s.OnEvent(event.Collision{Object: b})
	assert.Nil(t, s.Selected(), "picking the selected object deselects it")

	assert.Equal(t, []*models.Object{a, b, nil}, rec.selections())
	assert.True(t, s.Interacted())
	assert.Len(t, s.Objects(), 2, "collision points are only added in collision mode")
}

func TestCollisionPointMarker(t *testing.T) {
	s, _, _ := newTestScene(t)
	a := box("a", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	s.AddObject(a)
	s.ToggleCollision()

	hit := math3d.V3(0.5, 1, 0)
	s.OnEvent(event.Collision{Object: a, Point: &hit})

	objs := s.Objects()
	require.Len(t, objs, 2)
	marker := objs[1]
	assert.Equal(t, models.Points, marker.Mesh.Primitive)
	assert.Equal(t, hit, marker.Mesh.Vertices[0].Position)
}

func TestGesturesLeftMultiply(t *testing.T) {
	base := math3d.QuatAxisAngle(math3d.V3(0, 1, 0), math.Pi/2)

	tests := []struct {
		name  string
		touch event.Touch
		delta math3d.Quat
	}{
		{
			name:  "rotate about the view axis",
			touch: event.Touch{Action: event.Rotate, Angle: math.Pi / 2},
			delta: math3d.QuatAxisAngle(math3d.V3(0, 0, 1), math.Pi/2),
		},
		{
			name:  "drag right turns about up",
			touch: event.Touch{Action: event.Move, DX: 3, Length: 180},
			delta: math3d.QuatAxisAngle(math3d.V3(0, 1, 0), -0.5),
		},
		{
			name:  "drag down turns about right",
			touch: event.Touch{Action: event.Move, DY: 2, Length: 90},
			delta: math3d.QuatAxisAngle(math3d.V3(1, 0, 0), -0.25),
		},
		{
			name:  "zero drag falls back to +X",
			touch: event.Touch{Action: event.Move, Length: 36},
			delta: math3d.QuatAxisAngle(math3d.V3(1, 0, 0), -0.1),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestScene(t)
			obj := box("obj", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
			obj.SetOrientation(base)
			s.AddObject(obj)
			s.SetSelected(obj)

			s.OnEvent(tc.touch)

			got := obj.Transform().Orientation
			assert.True(t, got.ApproxEqualThreshold(tc.delta.Mul(base).Normalize(), 1e-9), "got %v", got)
			assert.InDelta(t, 1, got.Len(), 1e-9)
		})
	}
}

func TestTouchWithoutSelection(t *testing.T) {
	s, _, _ := newTestScene(t)
	obj := box("obj", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	s.AddObject(obj)

	s.OnEvent(event.Touch{Action: event.Rotate, Angle: 1})
	assert.True(t, s.Interacted())
	assert.Equal(t, math3d.QuatIdent(), obj.Transform().Orientation)
}

func TestDrawFrameLightAndOrbit(t *testing.T) {
	s, _, clock := newTestScene(t)
	clock.advance(1250 * time.Millisecond)

	before := s.Camera().Pos()
	s.OnDrawFrame()

	// a quarter of the 5 s period turns the bulb 90° about Y
	assert.True(t, s.LightPosition().ApproxEqual(math3d.V3(0, 500, -1000), 1e-6), "light at %v", s.LightPosition())
	assert.NotEqual(t, before, s.Camera().Pos(), "the camera orbits until the user interacts")

	s.OnEvent(event.Touch{Action: event.Click})
	before = s.Camera().Pos()
	s.OnDrawFrame()
	assert.Equal(t, before, s.Camera().Pos())
}

func TestDrawFrameStaticLight(t *testing.T) {
	s, _, clock := newTestScene(t)
	s.ToggleLighting()
	clock.advance(1250 * time.Millisecond)
	s.OnDrawFrame()
	assert.True(t, s.LightPosition().ApproxEqual(math3d.V3(1000, 500, 0), 1e-9))
}

func TestDrawFrameAnimates(t *testing.T) {
	s, _, clock := newTestScene(t)
	obj := box("skinned", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	obj.Skeleton = &models.Skeleton{
		Joints: []models.Joint{{Name: "root", Parent: -1, InverseBind: math3d.Identity(), Rotation: math3d.QuatIdent(), Scale: math3d.One3()}},
		Animation: &models.Animation{
			Duration: 1,
			Channels: []models.Channel{{
				Joint:  0,
				Path:   models.PathTranslation,
				Times:  []float64{0, 1},
				Values: []math3d.Vec4{{}, {X: 10}},
			}},
		},
	}
	s.OnLoad(obj)
	require.True(t, obj.Skeleton.BindPose || len(obj.Skeleton.Globals) == 1, "loading poses the skeleton")

	clock.advance(500 * time.Millisecond)
	s.OnDrawFrame()
	assert.InDelta(t, 5, obj.Skeleton.Globals[0].Translation().X, 1e-9)
	assert.False(t, obj.Skeleton.BindPose)

	s.ToggleAnimation()
	s.OnDrawFrame()
	assert.True(t, obj.Skeleton.BindPose)
	assert.InDelta(t, 0, obj.Skeleton.Globals[0].Translation().X, 1e-9)
}

func TestLoadTexture(t *testing.T) {
	s, rec, _ := newTestScene(t)

	assert.ErrorIs(t, s.LoadTexture(nil, []byte{1}), ErrNoTarget)
	assert.Equal(t, []string{"Unavailable"}, rec.notices())

	obj := box("obj", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	obj.Elements = []models.Element{{Name: "body", FaceCount: 3}}
	s.AddObject(obj)
	s.ToggleTextures()
	s.ToggleTextures()
	require.False(t, s.DisplayState().DrawColors())

	require.NoError(t, s.LoadTexture(nil, []byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, obj.Material().TextureData)
	assert.Equal(t, []byte{1, 2, 3}, obj.Elements[0].Material.TextureData)
	assert.True(t, s.DisplayState().DrawTextures())

	s.AddObject(box("second", math3d.Zero3(), math3d.One3()))
	assert.ErrorIs(t, s.LoadTexture(nil, nil), ErrNoTarget)
}

func TestToggleSmooth(t *testing.T) {
	s, rec, _ := newTestScene(t)
	obj := box("obj", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))
	s.AddObject(obj)
	gen := obj.Generation()

	s.ToggleSmooth()
	assert.True(t, s.DisplayState().Smooth)
	assert.Greater(t, obj.Generation(), gen)
	assert.True(t, obj.Mesh.HasNormals())

	s.ToggleSmooth()
	assert.Equal(t, []string{"Smooth normals", "Flat normals"}, rec.notices())
}

func TestConcurrentObjectAccess(t *testing.T) {
	s, _, _ := newTestScene(t)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 100 {
			s.AddObject(box("o", math3d.Zero3(), math3d.V3(float64(i+1), 1, 1)))
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			_ = s.Objects()
			_ = s.DisplayState()
			s.ToggleBoundingBox()
		}
	}()
	wg.Wait()
	assert.Len(t, s.Objects(), 100)
}
