package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/h2non/filetype"

	"github.com/taigrr/diorama/pkg/math3d"
)

// ErrUnsupportedTexture is returned for texture bytes that are not a
// decodable image.
var ErrUnsupportedTexture = errors.New("unsupported texture")

// DefaultMaxTextureSize bounds the larger texture edge after upload.
const DefaultMaxTextureSize = 1024

// Texture holds a 2D image for texture mapping. Coordinates repeat and are
// sampled bilinearly.
type Texture struct {
	Width  int
	Height int
	Pixels []Color // row-major, row 0 at the top
}

// NewTexture creates an empty texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Pixels: make([]Color, width*height),
	}
}

// DecodeTexture sniffs and decodes raw image bytes, then downsizes the
// result so neither edge exceeds maxSize (0 keeps the original size).
func DecodeTexture(data []byte, maxSize int) (*Texture, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrUnsupportedTexture)
	}
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTexture, kind.MIME.Value)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedTexture, kind.Extension, err)
	}

	b := img.Bounds()
	if w, h := b.Dx(), b.Dy(); maxSize > 0 && (w > maxSize || h > maxSize) {
		scale := float64(maxSize) / float64(max(w, h))
		nw := max(1, int(float64(w)*scale))
		nh := max(1, int(float64(h)*scale))
		img = transform.Resize(img, nw, nh, transform.Linear)
	}
	return TextureFromImage(img), nil
}

// TextureFromImage creates a texture from an image.Image.
func TextureFromImage(img image.Image) *Texture {
	bounds := img.Bounds()
	tex := NewTexture(bounds.Dx(), bounds.Dy())
	for y := range tex.Height {
		for x := range tex.Width {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			tex.Pixels[y*tex.Width+x] = Color{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: uint8(a >> 8),
			}
		}
	}
	return tex
}

// NewCheckerTexture creates a procedural checkerboard texture.
func NewCheckerTexture(size, checkSize int, c1, c2 Color) *Texture {
	tex := NewTexture(size, size)
	for y := range size {
		for x := range size {
			c := c2
			if (x/checkSize+y/checkSize)%2 == 0 {
				c = c1
			}
			tex.Pixels[y*size+x] = c
		}
	}
	return tex
}

// NewGradientTexture creates a vertical gradient from top to bottom.
func NewGradientTexture(size int, top, bottom Color) *Texture {
	tex := NewTexture(size, size)
	for y := range size {
		c := lerpColor(top, bottom, float64(y)/float64(max(size-1, 1)))
		for x := range size {
			tex.Pixels[y*size+x] = c
		}
	}
	return tex
}

// Sample samples the texture at UV coordinates. V grows upward, so it is
// flipped against the image rows.
func (t *Texture) Sample(u, v float64) Color {
	if t == nil || t.Width == 0 || t.Height == 0 {
		return ColorWhite
	}
	u -= math.Floor(u)
	v -= math.Floor(v)
	v = 1 - v

	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	c00 := t.at(x0, y0)
	c10 := t.at(x0+1, y0)
	c01 := t.at(x0, y0+1)
	c11 := t.at(x0+1, y0+1)

	return lerpColor(lerpColor(c00, c10, tx), lerpColor(c01, c11, tx), ty)
}

// at returns the texel at (x, y) with repeat wrapping.
func (t *Texture) at(x, y int) Color {
	x %= t.Width
	if x < 0 {
		x += t.Width
	}
	y %= t.Height
	if y < 0 {
		y += t.Height
	}
	return t.Pixels[y*t.Width+x]
}

func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t),
	}
}

// MultiplyColor scales RGB by intensity, keeping alpha.
func MultiplyColor(c Color, intensity float64) Color {
	return Color{
		R: uint8(math.Min(255, float64(c.R)*intensity)),
		G: uint8(math.Min(255, float64(c.G)*intensity)),
		B: uint8(math.Min(255, float64(c.B)*intensity)),
		A: c.A,
	}
}

// ModulateColor multiplies two colors channel by channel.
func ModulateColor(a, b Color) Color {
	return Color{
		R: uint8((int(a.R) * int(b.R)) / 255),
		G: uint8((int(a.G) * int(b.G)) / 255),
		B: uint8((int(a.B) * int(b.B)) / 255),
		A: uint8((int(a.A) * int(b.A)) / 255),
	}
}

// CubeMap is six square faces in +X, -X, +Y, -Y, +Z, -Z order.
type CubeMap struct {
	Faces [6]*Texture
}

// Sample returns the color seen along direction d from the cube center.
func (c *CubeMap) Sample(d math3d.Vec3) Color {
	x, y, z := d.X, d.Y, d.Z
	ax, ay, az := math.Abs(x), math.Abs(y), math.Abs(z)

	var face int
	var sc, tc, ma float64
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if x > 0 {
			face, sc, tc = 0, -z, -y
		} else {
			face, sc, tc = 1, z, -y
		}
	case ay >= az:
		ma = ay
		if y > 0 {
			face, sc, tc = 2, x, z
		} else {
			face, sc, tc = 3, x, -z
		}
	default:
		ma = az
		if z > 0 {
			face, sc, tc = 4, x, -y
		} else {
			face, sc, tc = 5, -x, -y
		}
	}
	if ma == 0 {
		return ColorBlack
	}
	u := (sc/ma + 1) / 2
	v := (tc/ma + 1) / 2
	// tc grows downward in cube-map convention; Sample flips V back.
	return c.Faces[face].Sample(u, 1-v)
}
