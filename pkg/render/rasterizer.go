// Package render is the software GPU: a depth-buffered rasterizer with
// viewport, scissor, color mask and blending state, texture and cube-map
// sampling, the camera, and the terminal blit.
package render

import (
	"math"

	"github.com/taigrr/diorama/pkg/math3d"
)

// Varying slots interpolated across a primitive.
const (
	vWorldX = iota
	vWorldY
	vWorldZ
	vNormalX
	vNormalY
	vNormalZ
	vU
	vV
	vLocalX
	vLocalY
	vLocalZ
	varyingCount
)

// Varyings are per-vertex values interpolated perspective-correctly.
type Varyings [varyingCount]float64

// ClipVertex is a vertex after the model-view-projection transform.
type ClipVertex struct {
	Pos math3d.Vec4
	V   Varyings
}

// Shader computes the color of one fragment from interpolated varyings.
type Shader func(v *Varyings) Color

// Rect is a pixel rectangle with a top-left origin.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// ColorMask selects which channels a draw may write.
type ColorMask struct {
	R, G, B, A bool
}

// MaskAll writes every channel.
var MaskAll = ColorMask{true, true, true, true}

// Rasterizer scan-converts clip-space primitives into a framebuffer,
// honouring viewport, scissor, color mask, depth test and blending state.
type Rasterizer struct {
	fb      *Framebuffer
	zbuffer []float64 // Depth buffer (1D array, row-major)

	Viewport  Rect
	Scissor   Rect
	ScissorOn bool
	Mask      ColorMask
	DepthTest bool
	Blend     bool
	CullBack  bool

	Stats RasterStats
}

// RasterStats counts work done since the last reset.
type RasterStats struct {
	Triangles int
	Lines     int
	Points    int
	Clipped   int
}

// NewRasterizer creates a rasterizer covering the whole framebuffer.
func NewRasterizer(fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		fb:        fb,
		Mask:      MaskAll,
		DepthTest: true,
	}
	r.Resize()
	return r
}

// Resize reallocates the depth buffer and resets the viewport to the
// framebuffer size.
func (r *Rasterizer) Resize() {
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
	r.Viewport = Rect{W: r.fb.Width, H: r.fb.Height}
	r.Scissor = r.Viewport
	r.ClearDepth()
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	return r.fb.Height
}

// bounds is the writable region: framebuffer, then scissor when enabled.
func (r *Rasterizer) bounds() Rect {
	b := Rect{W: r.fb.Width, H: r.fb.Height}
	if r.ScissorOn {
		b = b.intersect(r.Scissor)
	}
	return b
}

// ClearDepth resets the depth buffer inside the writable region.
func (r *Rasterizer) ClearDepth() {
	b := r.bounds()
	if b.W == r.fb.Width && b.H == r.fb.Height {
		n := len(r.zbuffer)
		if n == 0 {
			return
		}
		// copy-doubling fill
		r.zbuffer[0] = math.MaxFloat64
		for i := 1; i < n; i *= 2 {
			copy(r.zbuffer[i:], r.zbuffer[:i])
		}
		return
	}
	for y := b.Y; y < b.Y+b.H; y++ {
		row := r.zbuffer[y*r.fb.Width+b.X : y*r.fb.Width+b.X+b.W]
		for i := range row {
			row[i] = math.MaxFloat64
		}
	}
}

// ClearColor fills the writable region with c through the color mask.
func (r *Rasterizer) ClearColor(c Color) {
	b := r.bounds()
	for y := b.Y; y < b.Y+b.H; y++ {
		for x := b.X; x < b.X+b.W; x++ {
			i := y*r.fb.Width + x
			r.fb.Pixels[i] = r.masked(r.fb.Pixels[i], c)
		}
	}
}

// Depth returns the stored depth at (x, y).
func (r *Rasterizer) Depth(x, y int) float64 {
	if x < 0 || x >= r.fb.Width || y < 0 || y >= r.fb.Height {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.fb.Width+x]
}

func (r *Rasterizer) masked(dst, src Color) Color {
	if r.Mask.R {
		dst.R = src.R
	}
	if r.Mask.G {
		dst.G = src.G
	}
	if r.Mask.B {
		dst.B = src.B
	}
	if r.Mask.A {
		dst.A = src.A
	}
	return dst
}

// plot depth-tests and writes one fragment. Callers have already clamped
// (x, y) to bounds().
func (r *Rasterizer) plot(x, y int, z float64, c Color) {
	idx := y*r.fb.Width + x
	if r.DepthTest {
		if z >= r.zbuffer[idx] {
			return
		}
		r.zbuffer[idx] = z
	}
	dst := r.fb.Pixels[idx]
	if r.Blend && c.A < 255 {
		a := float64(c.A) / 255
		c = Color{
			R: uint8(float64(c.R)*a + float64(dst.R)*(1-a)),
			G: uint8(float64(c.G)*a + float64(dst.G)*(1-a)),
			B: uint8(float64(c.B)*a + float64(dst.B)*(1-a)),
			A: 255,
		}
	} else {
		c.A = 255
	}
	r.fb.Pixels[idx] = r.masked(dst, c)
}

// screenVertex is a vertex after perspective divide and viewport mapping.
// V holds varyings pre-divided by w; invW restores them.
type screenVertex struct {
	X, Y, Z float64
	invW    float64
	V       Varyings
}

func (r *Rasterizer) toScreen(cv ClipVertex) screenVertex {
	w := cv.Pos.W
	if w == 0 {
		w = 1e-9
	}
	invW := 1 / w
	sv := screenVertex{
		X:    float64(r.Viewport.X) + (cv.Pos.X*invW+1)*0.5*float64(r.Viewport.W),
		Y:    float64(r.Viewport.Y) + (1-cv.Pos.Y*invW)*0.5*float64(r.Viewport.H),
		Z:    cv.Pos.Z * invW,
		invW: invW,
	}
	for i := range sv.V {
		sv.V[i] = cv.V[i] * invW
	}
	return sv
}

func lerpClip(a, b ClipVertex, t float64) ClipVertex {
	out := ClipVertex{Pos: a.Pos.Lerp(b.Pos, t)}
	for i := range out.V {
		out.V[i] = a.V[i] + (b.V[i]-a.V[i])*t
	}
	return out
}

// nearDist is the signed distance to the near clip plane (z = -w).
func nearDist(v ClipVertex) float64 {
	return v.Pos.Z + v.Pos.W
}

// clipNear clips a polygon against the near plane (Sutherland-Hodgman).
func clipNear(in []ClipVertex) []ClipVertex {
	out := make([]ClipVertex, 0, len(in)+1)
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		da, db := nearDist(a), nearDist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpClip(a, b, da/(da-db)))
		}
	}
	return out
}

// DrawTriangle clips, projects and fills one triangle, calling shade for
// every fragment that survives the depth test.
func (r *Rasterizer) DrawTriangle(tri [3]ClipVertex, shade Shader) {
	if nearDist(tri[0]) >= 0 && nearDist(tri[1]) >= 0 && nearDist(tri[2]) >= 0 {
		r.fillTriangle(r.toScreen(tri[0]), r.toScreen(tri[1]), r.toScreen(tri[2]), shade)
		return
	}
	poly := clipNear(tri[:])
	if len(poly) < 3 {
		r.Stats.Clipped++
		return
	}
	s0 := r.toScreen(poly[0])
	for i := 1; i+1 < len(poly); i++ {
		r.fillTriangle(s0, r.toScreen(poly[i]), r.toScreen(poly[i+1]), shade)
	}
}

func (r *Rasterizer) fillTriangle(s0, s1, s2 screenVertex, shade Shader) {
	area := (s1.X-s0.X)*(s2.Y-s0.Y) - (s1.Y-s0.Y)*(s2.X-s0.X)
	if area == 0 {
		return
	}
	// Screen Y points down, so counter-clockwise (front) faces have
	// negative area here.
	if area > 0 && r.CullBack {
		return
	}
	if area < 0 {
		s1, s2 = s2, s1
		area = -area
	}

	b := r.bounds()
	minX := max(b.X, int(math.Floor(min3(s0.X, s1.X, s2.X))))
	maxX := min(b.X+b.W-1, int(math.Ceil(max3(s0.X, s1.X, s2.X))))
	minY := max(b.Y, int(math.Floor(min3(s0.Y, s1.Y, s2.Y))))
	maxY := min(b.Y+b.H-1, int(math.Ceil(max3(s0.Y, s1.Y, s2.Y))))
	if minX > maxX || minY > maxY {
		return
	}
	r.Stats.Triangles++

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	a0, b0, c0 := edgeCoeffs(s1.X, s1.Y, s2.X, s2.Y)
	a1, b1, c1 := edgeCoeffs(s2.X, s2.Y, s0.X, s0.Y)
	a2, b2, c2 := edgeCoeffs(s0.X, s0.Y, s1.X, s1.Y)
	invArea := 1.0 / area

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	w0Row := a0*px + b0*py + c0
	w1Row := a1*px + b1*py + c1
	w2Row := a2*px + b2*py + c2

	var v Varyings
	for y := minY; y <= maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		for x := minX; x <= maxX; x++ {
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				bc0, bc1, bc2 := w0*invArea, w1*invArea, w2*invArea
				z := bc0*s0.Z + bc1*s1.Z + bc2*s2.Z
				if !r.DepthTest || z < r.zbuffer[y*r.fb.Width+x] {
					invW := bc0*s0.invW + bc1*s1.invW + bc2*s2.invW
					for i := range v {
						v[i] = (bc0*s0.V[i] + bc1*s1.V[i] + bc2*s2.V[i]) / invW
					}
					r.plot(x, y, z, shade(&v))
				}
			}
			w0 += a0
			w1 += a1
			w2 += a2
		}
		w0Row += b0
		w1Row += b1
		w2Row += b2
	}
}

// edgeCoeffs returns A, B, C for the edge function A*x + B*y + C, the cross
// product of the edge with the vector to the point. It is positive inside a
// triangle of positive screen-space area.
func edgeCoeffs(x0, y0, x1, y1 float64) (a, b, c float64) {
	return y0 - y1, x1 - x0, x0*y1 - x1*y0
}

// DrawLine draws a depth-tested segment in a single color.
func (r *Rasterizer) DrawLine(a, b ClipVertex, c Color) {
	da, db := nearDist(a), nearDist(b)
	switch {
	case da < 0 && db < 0:
		return
	case da < 0:
		a = lerpClip(a, b, da/(da-db))
	case db < 0:
		b = lerpClip(b, a, db/(db-da))
	}
	sa, sb := r.toScreen(a), r.toScreen(b)
	r.Stats.Lines++

	dx, dy := sb.X-sa.X, sb.Y-sa.Y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		steps = 1
	}
	bnd := r.bounds()
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Floor(sa.X + dx*t))
		y := int(math.Floor(sa.Y + dy*t))
		if x < bnd.X || x >= bnd.X+bnd.W || y < bnd.Y || y >= bnd.Y+bnd.H {
			continue
		}
		// small bias so edges win over the faces they lie on
		r.plot(x, y, sa.Z+(sb.Z-sa.Z)*t-1e-5, c)
	}
}

// DrawPoint draws a depth-tested square of size pixels.
func (r *Rasterizer) DrawPoint(p ClipVertex, size int, c Color) {
	if nearDist(p) < 0 || p.Pos.W <= 0 {
		return
	}
	sp := r.toScreen(p)
	r.Stats.Points++
	if size < 1 {
		size = 1
	}
	bnd := r.bounds()
	x0 := int(math.Floor(sp.X)) - (size-1)/2
	y0 := int(math.Floor(sp.Y)) - (size-1)/2
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			if x < bnd.X || x >= bnd.X+bnd.W || y < bnd.Y || y >= bnd.Y+bnd.H {
				continue
			}
			r.plot(x, y, sp.Z, c)
		}
	}
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
