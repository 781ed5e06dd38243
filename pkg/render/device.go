package render

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/taigrr/diorama/pkg/math3d"
)

var (
	// ErrNoGeometry is returned by Draw for a call without geometry.
	ErrNoGeometry = errors.New("draw call has no geometry")
	// ErrUnknownTexture is returned when a call names a texture that was
	// never uploaded.
	ErrUnknownTexture = errors.New("unknown texture")
)

// Geometry is the vertex and index data a Device draws. Keeping it an
// interface lets the device render meshes without importing the model
// package.
type Geometry interface {
	VertexCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	TriangleCount() int
	GetFace(i int) [3]int
	LineCount() int
	GetLine(i int) [2]int
}

// SkinnedGeometry carries per-vertex joint influences.
type SkinnedGeometry interface {
	Geometry
	GetSkin(i int) (joints [4]int, weights [4]float64)
}

// BoundedGeometry exposes a local-space bounding box for frustum culling.
type BoundedGeometry interface {
	GetBounds() (lo, hi math3d.Vec3)
}

// Topology overrides how a Geometry is assembled into primitives.
type Topology int

const (
	// TopologyAuto draws triangles when there are faces, then lines, then
	// points.
	TopologyAuto Topology = iota
	TopologyTriangles
	TopologyLines
	TopologyPoints
)

// TextureID names a texture or cube map uploaded to a Device. Zero is no
// texture.
type TextureID uint32

// Strategy is the shading program of a draw call.
type Strategy struct {
	Textured bool
	Colored  bool
	Lit      bool
	Skinned  bool
	CubeMap  bool
}

func (s Strategy) String() string {
	var parts []string
	if s.CubeMap {
		parts = append(parts, "skybox")
	}
	if s.Textured {
		parts = append(parts, "textured")
	}
	if s.Colored {
		parts = append(parts, "colored")
	}
	if s.Lit {
		parts = append(parts, "lit")
	}
	if s.Skinned {
		parts = append(parts, "skinned")
	}
	if len(parts) == 0 {
		return "basic"
	}
	return strings.Join(parts, "+")
}

// DrawCall is one draw of one geometry with one program.
type DrawCall struct {
	Geometry Geometry
	Topology Topology
	Strategy Strategy

	Model      math3d.Mat4
	View       math3d.Mat4
	Projection math3d.Mat4

	Texture TextureID
	Color   Color
	// ColorMask multiplies the output color; alpha below one makes the
	// draw translucent when blending is enabled. Zero means (1, 1, 1, 1).
	ColorMask math3d.Vec4

	LightPos      math3d.Vec3
	JointMatrices []math3d.Mat4

	// FaceStart and FaceCount restrict a triangle draw to one element.
	// FaceCount zero draws every face.
	FaceStart int
	FaceCount int

	PointSize int
}

// Device is the software GPU. It is not safe for concurrent use; the
// render loop owns it.
type Device struct {
	fb   *Framebuffer
	rast *Rasterizer

	clearColor Color
	textures   map[TextureID]*Texture
	cubes      map[TextureID]*CubeMap
	nextID     TextureID

	// MaxTextureSize bounds uploaded texture edges.
	MaxTextureSize int
}

// NewDevice creates a device rendering into a width×height framebuffer.
func NewDevice(width, height int) *Device {
	fb := NewFramebuffer(width, height)
	return &Device{
		fb:             fb,
		rast:           NewRasterizer(fb),
		clearColor:     ColorBlack,
		textures:       make(map[TextureID]*Texture),
		cubes:          make(map[TextureID]*CubeMap),
		MaxTextureSize: DefaultMaxTextureSize,
	}
}

// Framebuffer returns the color target.
func (d *Device) Framebuffer() *Framebuffer {
	return d.fb
}

// Resize reallocates the color and depth targets.
func (d *Device) Resize(width, height int) {
	d.fb = NewFramebuffer(width, height)
	d.rast.fb = d.fb
	d.rast.Resize()
}

// Size returns the framebuffer size in pixels.
func (d *Device) Size() (int, int) {
	return d.fb.Width, d.fb.Height
}

// Stats returns the rasterizer counters and resets them.
func (d *Device) Stats() RasterStats {
	s := d.rast.Stats
	d.rast.Stats = RasterStats{}
	return s
}

func (d *Device) SetViewport(x, y, w, h int) {
	d.rast.Viewport = Rect{X: x, Y: y, W: w, H: h}
}

func (d *Device) SetScissor(enabled bool, x, y, w, h int) {
	d.rast.ScissorOn = enabled
	d.rast.Scissor = Rect{X: x, Y: y, W: w, H: h}
}

func (d *Device) SetColorMask(r, g, b, a bool) {
	d.rast.Mask = ColorMask{R: r, G: g, B: b, A: a}
}

func (d *Device) SetDepthTest(enabled bool) {
	d.rast.DepthTest = enabled
}

func (d *Device) SetBlend(enabled bool) {
	d.rast.Blend = enabled
}

func (d *Device) SetClearColor(c Color) {
	d.clearColor = c
}

// Clear clears the color and/or depth buffers inside the scissor box,
// honouring the color mask.
func (d *Device) Clear(color, depth bool) {
	if color {
		d.rast.ClearColor(d.clearColor)
	}
	if depth {
		d.rast.ClearDepth()
	}
}

// UploadTexture decodes raw image bytes into a new texture.
func (d *Device) UploadTexture(data []byte) (TextureID, error) {
	tex, err := DecodeTexture(data, d.MaxTextureSize)
	if err != nil {
		return 0, err
	}
	return d.AddTexture(tex), nil
}

// AddTexture registers an already decoded texture.
func (d *Device) AddTexture(tex *Texture) TextureID {
	d.nextID++
	d.textures[d.nextID] = tex
	return d.nextID
}

// UploadCubeMap decodes six face images in +X, -X, +Y, -Y, +Z, -Z order.
func (d *Device) UploadCubeMap(faces [6][]byte) (TextureID, error) {
	var cube CubeMap
	for i, data := range faces {
		tex, err := DecodeTexture(data, d.MaxTextureSize)
		if err != nil {
			return 0, fmt.Errorf("cube face %d: %w", i, err)
		}
		cube.Faces[i] = tex
	}
	return d.AddCubeMap(&cube), nil
}

// AddCubeMap registers an already decoded cube map.
func (d *Device) AddCubeMap(cube *CubeMap) TextureID {
	d.nextID++
	d.cubes[d.nextID] = cube
	return d.nextID
}

// DeleteTexture releases a texture or cube map.
func (d *Device) DeleteTexture(id TextureID) {
	delete(d.textures, id)
	delete(d.cubes, id)
}

// Draw executes one draw call.
func (d *Device) Draw(c DrawCall) error {
	g := c.Geometry
	if g == nil {
		return ErrNoGeometry
	}
	mask := c.ColorMask
	if mask == (math3d.Vec4{}) {
		mask = math3d.V4(1, 1, 1, 1)
	}

	var tex *Texture
	var cube *CubeMap
	if c.Strategy.CubeMap {
		if cube = d.cubes[c.Texture]; cube == nil {
			return fmt.Errorf("cube map %d: %w", c.Texture, ErrUnknownTexture)
		}
	} else if c.Strategy.Textured {
		if tex = d.textures[c.Texture]; tex == nil {
			return fmt.Errorf("texture %d: %w", c.Texture, ErrUnknownTexture)
		}
	}

	skinned := c.Strategy.Skinned && len(c.JointMatrices) > 0
	viewProj := c.Projection.Mul(c.View)
	if b, ok := g.(BoundedGeometry); ok && !skinned && !c.Strategy.CubeMap {
		lo, hi := b.GetBounds()
		if lo != hi && !NewFrustumFromMatrix(viewProj.Mul(c.Model)).IntersectAABB(NewAABB(lo, hi)) {
			return nil
		}
	}

	verts := d.transform(c, viewProj, skinned)

	topo := c.Topology
	if topo == TopologyAuto {
		switch {
		case g.TriangleCount() > 0:
			topo = TopologyTriangles
		case g.LineCount() > 0:
			topo = TopologyLines
		default:
			topo = TopologyPoints
		}
	}

	flat := applyMask(c.Color, mask)
	switch topo {
	case TopologyTriangles:
		shade := d.shader(c, mask, tex, cube)
		start, end := 0, g.TriangleCount()
		if c.FaceCount > 0 {
			start = max(0, c.FaceStart)
			end = min(end, start+c.FaceCount)
		}
		for i := start; i < end; i++ {
			f := g.GetFace(i)
			d.rast.DrawTriangle([3]ClipVertex{verts[f[0]], verts[f[1]], verts[f[2]]}, shade)
		}
	case TopologyLines:
		for i := range g.LineCount() {
			l := g.GetLine(i)
			d.rast.DrawLine(verts[l[0]], verts[l[1]], flat)
		}
	case TopologyPoints:
		for _, v := range verts {
			d.rast.DrawPoint(v, c.PointSize, flat)
		}
	}
	return nil
}

// transform runs the vertex stage: skinning, model and view-projection.
func (d *Device) transform(c DrawCall, viewProj math3d.Mat4, skinned bool) []ClipVertex {
	g := c.Geometry
	sg, _ := g.(SkinnedGeometry)
	if sg == nil {
		skinned = false
	}

	out := make([]ClipVertex, g.VertexCount())
	for i := range out {
		pos, normal, uv := g.GetVertex(i)
		local := pos
		if skinned {
			joints, weights := sg.GetSkin(i)
			if m, ok := skinMatrix(c.JointMatrices, joints, weights); ok {
				pos = m.MulVec3(pos)
				normal = m.MulVec3Dir(normal)
			}
		}
		world := c.Model.MulVec3(pos)
		n := c.Model.MulVec3Dir(normal).Normalize()

		cv := ClipVertex{Pos: viewProj.MulVec4(math3d.V4FromV3(world, 1))}
		cv.V[vWorldX], cv.V[vWorldY], cv.V[vWorldZ] = world.X, world.Y, world.Z
		cv.V[vNormalX], cv.V[vNormalY], cv.V[vNormalZ] = n.X, n.Y, n.Z
		cv.V[vU], cv.V[vV] = uv.X, uv.Y
		cv.V[vLocalX], cv.V[vLocalY], cv.V[vLocalZ] = local.X, local.Y, local.Z
		out[i] = cv
	}
	return out
}

// skinMatrix blends joint matrices by weight. ok is false when the vertex
// has no influence, in which case it stays in bind space.
func skinMatrix(joints []math3d.Mat4, idx [4]int, w [4]float64) (math3d.Mat4, bool) {
	var m math3d.Mat4
	total := 0.0
	for k := range 4 {
		if w[k] == 0 || idx[k] < 0 || idx[k] >= len(joints) {
			continue
		}
		m = m.Add(joints[idx[k]].Scaled(w[k]))
		total += w[k]
	}
	if total == 0 {
		return m, false
	}
	if math.Abs(total-1) > 1e-6 {
		m = m.Scaled(1 / total)
	}
	return m, true
}

const ambient = 0.3

// shader builds the fragment program for a triangle draw.
func (d *Device) shader(c DrawCall, mask math3d.Vec4, tex *Texture, cube *CubeMap) Shader {
	base := ColorWhite
	if c.Strategy.Colored {
		base = c.Color
	}
	lit := c.Strategy.Lit
	light := c.LightPos

	return func(v *Varyings) Color {
		if cube != nil {
			return applyMask(cube.Sample(math3d.V3(v[vLocalX], v[vLocalY], v[vLocalZ])), mask)
		}
		col := base
		if tex != nil {
			col = ModulateColor(tex.Sample(v[vU], v[vV]), base)
		}
		if lit {
			n := math3d.V3(v[vNormalX], v[vNormalY], v[vNormalZ])
			if n.LenSq() > 1e-12 {
				world := math3d.V3(v[vWorldX], v[vWorldY], v[vWorldZ])
				l := light.Sub(world).Normalize()
				diffuse := math.Abs(n.Normalize().Dot(l))
				col = MultiplyColor(col, ambient+(1-ambient)*diffuse)
			}
		}
		return applyMask(col, mask)
	}
}

func applyMask(c Color, m math3d.Vec4) Color {
	if m == math3d.V4(1, 1, 1, 1) {
		return c
	}
	return Color{
		R: uint8(float64(c.R) * clamp01(m.X)),
		G: uint8(float64(c.G) * clamp01(m.Y)),
		B: uint8(float64(c.B) * clamp01(m.Z)),
		A: uint8(float64(c.A) * clamp01(m.W)),
	}
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
