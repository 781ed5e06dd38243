package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/diorama/pkg/math3d"
)

func TestDecodeTexture(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		maxSize int
		wantW   int
		wantH   int
		wantErr bool
	}{
		{"small png", pngBytes(t, 4, 2, color.RGBA{1, 2, 3, 255}), 1024, 4, 2, false},
		{"downsized", pngBytes(t, 64, 16, color.RGBA{1, 2, 3, 255}), 32, 32, 8, false},
		{"unbounded", pngBytes(t, 64, 16, color.RGBA{1, 2, 3, 255}), 0, 64, 16, false},
		{"empty", nil, 1024, 0, 0, true},
		{"not an image", []byte("hello, texture"), 1024, 0, 0, true},
		{"truncated png", pngBytes(t, 4, 4, color.RGBA{})[:20], 1024, 0, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tex, err := DecodeTexture(tc.data, tc.maxSize)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedTexture)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantW, tex.Width)
			assert.Equal(t, tc.wantH, tex.Height)
		})
	}
}

func TestTextureSampleWrapsAndFlips(t *testing.T) {
	tex := NewTexture(1, 2)
	tex.Pixels[0] = ColorRed  // top row
	tex.Pixels[1] = ColorBlue // bottom row

	assert.Equal(t, ColorBlue, tex.Sample(0.5, 0.25), "low v is the bottom row")
	assert.Equal(t, ColorRed, tex.Sample(0.5, 0.75))
	assert.Equal(t, tex.Sample(0.5, 0.75), tex.Sample(3.5, -0.25), "coordinates repeat")

	var nilTex *Texture
	assert.Equal(t, ColorWhite, nilTex.Sample(0, 0))
}

func TestProceduralTextures(t *testing.T) {
	checker := NewCheckerTexture(4, 2, ColorWhite, ColorBlack)
	assert.Equal(t, ColorWhite, checker.Pixels[0])
	assert.Equal(t, ColorBlack, checker.Pixels[2])

	grad := NewGradientTexture(3, ColorWhite, ColorBlack)
	assert.Equal(t, ColorWhite, grad.Pixels[0])
	assert.Equal(t, ColorBlack, grad.Pixels[8])
}

func TestCubeMapSampleFace(t *testing.T) {
	var cube CubeMap
	for i := range cube.Faces {
		tex := NewTexture(1, 1)
		tex.Pixels[0] = Color{R: uint8(i), A: 255}
		cube.Faces[i] = tex
	}

	tests := []struct {
		dir  math3d.Vec3
		face uint8
	}{
		{math3d.V3(1, 0.2, 0.1), 0},
		{math3d.V3(-1, 0.2, 0.1), 1},
		{math3d.V3(0.1, 2, 0.3), 2},
		{math3d.V3(0.1, -2, 0.3), 3},
		{math3d.V3(0.1, 0.2, 3), 4},
		{math3d.V3(0.1, 0.2, -3), 5},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.face, cube.Sample(tc.dir).R, "direction %v", tc.dir)
	}
	assert.Equal(t, ColorBlack, cube.Sample(math3d.Zero3()))
}

func TestColorHelpers(t *testing.T) {
	assert.Equal(t, Color{R: 255, G: 128, B: 0, A: 255}, FromFloats([4]float64{1.2, 0.5, -1, 1}))
	assert.Equal(t, Color{R: 0, G: 255, B: 155, A: 10}, Invert(Color{R: 255, G: 0, B: 100, A: 10}))
	assert.Equal(t, Color{R: 50, G: 100, B: 127, A: 255}, MultiplyColor(Color{R: 100, G: 200, B: 255, A: 255}, 0.5))
}
