package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/diorama/pkg/math3d"
)

func identityCall(g Geometry) DrawCall {
	return DrawCall{
		Geometry:   g,
		Model:      math3d.Identity(),
		View:       math3d.Identity(),
		Projection: math3d.Identity(),
		Color:      ColorRed,
		Strategy:   Strategy{Colored: true},
	}
}

func pngBytes(t testing.TB, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDeviceDrawColored(t *testing.T) {
	d := NewDevice(8, 8)
	require.NoError(t, d.Draw(identityCall(fullScreen(0))))
	assert.Equal(t, 64, countColor(d.Framebuffer(), ColorRed))
}

func TestDeviceUncoloredIsWhite(t *testing.T) {
	d := NewDevice(4, 4)
	call := identityCall(fullScreen(0))
	call.Strategy.Colored = false
	require.NoError(t, d.Draw(call))
	assert.Equal(t, 16, countColor(d.Framebuffer(), ColorWhite))
}

func TestDeviceErrors(t *testing.T) {
	d := NewDevice(4, 4)

	assert.ErrorIs(t, d.Draw(DrawCall{}), ErrNoGeometry)

	call := identityCall(fullScreen(0))
	call.Strategy.Textured = true
	call.Texture = 42
	assert.ErrorIs(t, d.Draw(call), ErrUnknownTexture)

	call.Strategy = Strategy{CubeMap: true}
	assert.ErrorIs(t, d.Draw(call), ErrUnknownTexture)
}

func TestDeviceClearHonoursScissor(t *testing.T) {
	d := NewDevice(10, 4)
	d.SetClearColor(ColorBlue)
	d.SetScissor(true, 5, 0, 5, 4)
	d.Clear(true, true)

	fb := d.Framebuffer()
	assert.Equal(t, Color{}, fb.GetPixel(2, 2))
	assert.Equal(t, ColorBlue, fb.GetPixel(7, 2))
}

func TestDeviceTextured(t *testing.T) {
	d := NewDevice(4, 4)
	id, err := d.UploadTexture(pngBytes(t, 2, 2, color.RGBA{0, 255, 0, 255}))
	require.NoError(t, err)

	call := identityCall(fullScreen(0))
	call.Strategy = Strategy{Textured: true}
	call.Texture = id
	require.NoError(t, d.Draw(call))
	assert.Equal(t, ColorGreen, d.Framebuffer().GetPixel(1, 1))
}

func TestDeviceLitDimsGrazingLight(t *testing.T) {
	mesh := fullScreen(0)
	mesh.normals = []math3d.Vec3{{Z: 1}, {Z: 1}, {Z: 1}}

	draw := func(light math3d.Vec3) Color {
		d := NewDevice(4, 4)
		call := identityCall(mesh)
		call.Strategy.Lit = true
		call.LightPos = light
		require.NoError(t, d.Draw(call))
		return d.Framebuffer().GetPixel(2, 2)
	}

	facing := draw(math3d.V3(0, 0, 1000))
	grazing := draw(math3d.V3(1000, 0, 0))
	assert.Greater(t, facing.R, grazing.R)
	assert.InDelta(t, 255*ambient, int(grazing.R), 3)
}

func TestDeviceSkinning(t *testing.T) {
	mesh := &mockMesh{
		pos:     []math3d.Vec3{math3d.V3(-0.2, -0.2, 0), math3d.V3(0.2, -0.2, 0), math3d.V3(0, 0.2, 0)},
		faces:   [][3]int{{0, 1, 2}},
		joints:  [][4]int{{0}, {0}, {0}},
		weights: [][4]float64{{1}, {1}, {1}},
	}
	d := NewDevice(20, 20)
	call := identityCall(mesh)
	call.Strategy.Skinned = true
	call.JointMatrices = []math3d.Mat4{math3d.Translate(math3d.V3(0.7, 0, 0))}
	require.NoError(t, d.Draw(call))

	fb := d.Framebuffer()
	assert.Equal(t, Color{}, fb.GetPixel(10, 10))
	assert.Equal(t, ColorRed, fb.GetPixel(17, 10))
}

func TestDeviceFrustumCull(t *testing.T) {
	mesh := &mockMesh{
		pos:   []math3d.Vec3{math3d.V3(5, 5, 0), math3d.V3(6, 5, 0), math3d.V3(5, 6, 0)},
		faces: [][3]int{{0, 1, 2}},
	}
	d := NewDevice(4, 4)
	require.NoError(t, d.Draw(identityCall(mesh)))
	assert.Zero(t, d.Stats().Triangles)
}

func TestDeviceTopologyAndElements(t *testing.T) {
	quad := &mockMesh{
		pos:   []math3d.Vec3{math3d.V3(-1, -1, 0), math3d.V3(1, -1, 0), math3d.V3(1, 1, 0), math3d.V3(-1, 1, 0)},
		faces: [][3]int{{0, 1, 2}, {0, 2, 3}},
		lines: [][2]int{{0, 2}},
	}

	t.Run("one element", func(t *testing.T) {
		d := NewDevice(10, 10)
		call := identityCall(quad)
		call.FaceStart, call.FaceCount = 1, 1
		require.NoError(t, d.Draw(call))
		assert.Equal(t, 1, d.Stats().Triangles)
	})

	t.Run("points override", func(t *testing.T) {
		d := NewDevice(10, 10)
		call := identityCall(quad)
		call.Topology = TopologyPoints
		call.PointSize = 1
		require.NoError(t, d.Draw(call))
		s := d.Stats()
		assert.Zero(t, s.Triangles)
		assert.Equal(t, 4, s.Points)
	})

	t.Run("lines override", func(t *testing.T) {
		d := NewDevice(10, 10)
		call := identityCall(quad)
		call.Topology = TopologyLines
		require.NoError(t, d.Draw(call))
		assert.Equal(t, 1, d.Stats().Lines)
	})
}

func TestDeviceTranslucentColorMask(t *testing.T) {
	d := NewDevice(4, 4)
	d.SetClearColor(ColorBlack)
	d.Clear(true, true)
	d.SetBlend(true)

	call := identityCall(fullScreen(0))
	call.Color = ColorWhite
	call.ColorMask = math3d.V4(1, 1, 1, 0.5)
	require.NoError(t, d.Draw(call))
	assert.InDelta(t, 127, int(d.Framebuffer().GetPixel(1, 1).R), 2)
}

func TestDeviceCubeMap(t *testing.T) {
	var faces [6][]byte
	for i := range faces {
		faces[i] = pngBytes(t, 2, 2, color.RGBA{uint8(40 * i), 0, 0, 255})
	}
	d := NewDevice(4, 4)
	id, err := d.UploadCubeMap(faces)
	require.NoError(t, err)

	// the skybox geometry is in front along -Z
	mesh := fullScreen(0)
	for i := range mesh.pos {
		mesh.pos[i].Z = -0.5
	}
	call := identityCall(mesh)
	call.Strategy = Strategy{CubeMap: true}
	call.Texture = id
	require.NoError(t, d.Draw(call))
	assert.Equal(t, uint8(200), d.Framebuffer().GetPixel(2, 2).R)

	faces[3] = []byte("not an image")
	_, err = d.UploadCubeMap(faces)
	assert.ErrorIs(t, err, ErrUnsupportedTexture)
}

func TestStrategyString(t *testing.T) {
	tests := []struct {
		s    Strategy
		want string
	}{
		{Strategy{}, "basic"},
		{Strategy{Textured: true, Lit: true}, "textured+lit"},
		{Strategy{Colored: true, Skinned: true}, "colored+skinned"},
		{Strategy{CubeMap: true}, "skybox"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.s.String())
		})
	}
}
