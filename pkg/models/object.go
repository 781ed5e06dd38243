package models

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/taigrr/diorama/pkg/math3d"
)

// ID identifies an object for the lifetime of the process. Render-side
// caches are keyed by it.
type ID uint64

var lastID atomic.Uint64

// Transform is the placement of an object. Rotation holds extra Euler
// angles in degrees applied after Orientation.
type Transform struct {
	Location    math3d.Vec3
	Orientation math3d.Quat
	Rotation    math3d.Vec3
	Scale       math3d.Vec3
}

// IdentityTransform places an object at the origin, unrotated, unit scale.
func IdentityTransform() Transform {
	return Transform{
		Orientation: math3d.QuatIdent(),
		Scale:       math3d.One3(),
	}
}

// Capabilities describes what an object can be drawn with.
type Capabilities struct {
	Primitive  Primitive
	HasNormals bool
	HasUV      bool
	HasTexture bool
	HasSkin    bool
}

// Object is a renderable scene entity. Geometry, material and skeleton are
// set by the loader before the object is handed to the scene; the
// transform, visibility and texture are mutated afterwards from the event
// side and read by the render side, so they sit behind mu.
type Object struct {
	id ID

	Name          string
	Mesh          *Mesh
	Elements      []Element
	Skeleton      *Skeleton
	AuthoringTool string

	mu        sync.RWMutex
	material  Material
	transform Transform
	visible   bool
	centered  bool
	errors    []string

	// gen increments on every mutation that invalidates derived geometry.
	gen      atomic.Uint64
	model    math3d.Mat4
	modelGen uint64
}

// NewObject wraps mesh in an object with an identity transform and the
// default material.
func NewObject(name string, mesh *Mesh) *Object {
	o := &Object{
		id:        ID(lastID.Add(1)),
		Name:      name,
		Mesh:      mesh,
		material:  DefaultMaterial(),
		transform: IdentityTransform(),
		visible:   true,
	}
	o.gen.Store(1)
	return o
}

// ID returns the object's stable identity.
func (o *Object) ID() ID {
	return o.id
}

// Generation returns a counter that changes whenever cached geometry
// derived from this object must be rebuilt.
func (o *Object) Generation() uint64 {
	return o.gen.Load()
}

// Touch marks the object changed after an in-place mesh edit.
func (o *Object) Touch() {
	o.gen.Add(1)
}

func (o *Object) Transform() Transform {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.transform
}

func (o *Object) SetTransform(t Transform) {
	o.update(func(cur *Transform) { *cur = t })
}

func (o *Object) SetLocation(v math3d.Vec3) {
	o.update(func(t *Transform) { t.Location = v })
}

func (o *Object) SetScale(v math3d.Vec3) {
	o.update(func(t *Transform) { t.Scale = v })
}

func (o *Object) SetRotation(degrees math3d.Vec3) {
	o.update(func(t *Transform) { t.Rotation = degrees })
}

// SetOrientation stores q normalized.
func (o *Object) SetOrientation(q math3d.Quat) {
	q = q.Normalize()
	o.update(func(t *Transform) { t.Orientation = q })
}

// Rotate left-multiplies delta onto the current orientation and
// renormalizes.
func (o *Object) Rotate(delta math3d.Quat) {
	o.update(func(t *Transform) {
		t.Orientation = delta.Mul(t.Orientation).Normalize()
	})
}

func (o *Object) update(fn func(t *Transform)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.transform)
	o.gen.Add(1)
}

func (o *Object) Visible() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.visible
}

func (o *Object) SetVisible(v bool) {
	o.mu.Lock()
	o.visible = v
	o.mu.Unlock()
}

// Centered reports whether the model matrix recenters the mesh on its
// bounding box center.
func (o *Object) Centered() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.centered
}

func (o *Object) SetCentered(c bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.centered = c
	o.gen.Add(1)
}

func (o *Object) Material() Material {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.material
}

func (o *Object) SetMaterial(m Material) {
	o.mu.Lock()
	o.material = m
	o.mu.Unlock()
}

// SetTextureData replaces the texture bytes of the object's material.
func (o *Object) SetTextureData(data []byte) {
	o.mu.Lock()
	o.material.TextureData = data
	o.mu.Unlock()
}

// Errors returns the problems recorded while loading this object.
func (o *Object) Errors() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.errors...)
}

func (o *Object) AddError(msg string) {
	o.mu.Lock()
	o.errors = append(o.errors, msg)
	o.mu.Unlock()
}

// Skin returns the object's skeleton, or nil.
func (o *Object) Skin() *Skeleton {
	return o.Skeleton
}

// Solid reports whether the object is a triangle surface.
func (o *Object) Solid() bool {
	return o.Mesh != nil && o.Mesh.Primitive == Triangles
}

// Capabilities derives the draw capabilities from geometry, material and
// skeleton.
func (o *Object) Capabilities() Capabilities {
	var c Capabilities
	if o.Mesh == nil {
		return c
	}
	c.Primitive = o.Mesh.Primitive
	c.HasNormals = o.Mesh.HasNormals()
	for _, v := range o.Mesh.Vertices {
		if v.UV != (math3d.Vec2{}) {
			c.HasUV = true
			break
		}
	}
	c.HasTexture = c.HasUV && o.Material().HasTexture()
	for _, e := range o.Elements {
		if e.Material.HasTexture() {
			c.HasTexture = c.HasUV
		}
	}
	c.HasSkin = o.Skeleton != nil && len(o.Skeleton.Joints) > 0
	return c
}

// ModelMatrix returns translation * orientation * euler rotation * scale,
// preceded by a recentering translation when the object is centered.
func (o *Object) ModelMatrix() math3d.Mat4 {
	o.mu.Lock()
	defer o.mu.Unlock()
	gen := o.gen.Load()
	if o.modelGen == gen {
		return o.model
	}

	t := o.transform
	m := math3d.Translate(t.Location).
		Mul(math3d.QuatMat4(t.Orientation)).
		Mul(math3d.RotateX(radians(t.Rotation.X))).
		Mul(math3d.RotateY(radians(t.Rotation.Y))).
		Mul(math3d.RotateZ(radians(t.Rotation.Z))).
		Mul(math3d.Scale(t.Scale))
	if o.centered && o.Mesh != nil {
		m = m.Mul(math3d.Translate(o.Mesh.Center().Negate()))
	}
	o.model = m
	o.modelGen = gen
	return m
}

// Dimensions returns the world-space bounding box under the current
// model matrix.
func (o *Object) Dimensions() Dimensions {
	if o.Mesh == nil {
		return Dimensions{}
	}
	return o.Mesh.Dimensions().Transform(o.ModelMatrix())
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
