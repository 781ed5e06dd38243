package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/diorama/pkg/math3d"
)

func cubeMesh(lo, hi math3d.Vec3) *Mesh {
	m := NewMesh("box")
	for _, c := range (Dimensions{Min: lo, Max: hi}).Corners() {
		m.Vertices = append(m.Vertices, MeshVertex{Position: c})
	}
	m.Faces = []Face{{V: [3]int{0, 1, 2}}, {V: [3]int{4, 5, 6}}}
	m.CalculateBounds()
	return m
}

func TestObjectIDsAreUnique(t *testing.T) {
	a := NewObject("a", NewMesh("a"))
	b := NewObject("b", NewMesh("b"))
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestObjectGenerationAdvancesOnMutation(t *testing.T) {
	obj := NewObject("o", cubeMesh(math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1)))

	mutations := []struct {
		name string
		fn   func()
	}{
		{"location", func() { obj.SetLocation(math3d.V3(1, 2, 3)) }},
		{"scale", func() { obj.SetScale(math3d.V3(2, 2, 2)) }},
		{"orientation", func() { obj.SetOrientation(math3d.QuatAxisAngle(math3d.V3(0, 1, 0), 1)) }},
		{"rotate", func() { obj.Rotate(math3d.QuatAxisAngle(math3d.V3(1, 0, 0), 1)) }},
		{"centered", func() { obj.SetCentered(true) }},
		{"touch", obj.Touch},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			before := obj.Generation()
			m.fn()
			assert.Greater(t, obj.Generation(), before)
		})
	}
}

func TestModelMatrixTracksTransform(t *testing.T) {
	obj := NewObject("o", cubeMesh(math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1)))
	assert.Equal(t, math3d.Identity(), obj.ModelMatrix())

	obj.SetLocation(math3d.V3(10, 0, 0))
	obj.SetScale(math3d.V3(2, 2, 2))
	got := obj.ModelMatrix().MulVec3(math3d.V3(1, 0, 0))
	assert.True(t, got.ApproxEqual(math3d.V3(12, 0, 0), 1e-9), "got %+v", got)
}

func TestCenteredRecentersMesh(t *testing.T) {
	obj := NewObject("o", cubeMesh(math3d.V3(10, 10, 10), math3d.V3(12, 14, 16)))
	obj.SetCentered(true)

	d := obj.Dimensions()
	assert.True(t, d.Center().ApproxEqual(math3d.Zero3(), 1e-9), "center %+v", d.Center())
	assert.True(t, d.Size().ApproxEqual(math3d.V3(2, 4, 6), 1e-9))
}

func TestRotateLeftMultipliesAndNormalizes(t *testing.T) {
	obj := NewObject("o", NewMesh("m"))
	a := math3d.QuatAxisAngle(math3d.V3(1, 0, 0), math.Pi/2)
	b := math3d.QuatAxisAngle(math3d.V3(0, 1, 0), math.Pi/2)

	obj.SetOrientation(a)
	obj.Rotate(b.Scale(3))

	q := obj.Transform().Orientation
	assert.InDelta(t, 1.0, q.Len(), 1e-9)
	want := b.Mul(a)
	assert.True(t, q.ApproxEqualThreshold(want, 1e-9), "got %v want %v", q, want)
}

func TestCapabilities(t *testing.T) {
	mesh := NewMesh("m")
	mesh.Vertices = []MeshVertex{{Position: math3d.V3(0, 0, 0), UV: math3d.V2(0.5, 0.5)}}
	obj := NewObject("o", mesh)

	c := obj.Capabilities()
	assert.True(t, c.HasUV)
	assert.False(t, c.HasTexture, "uv without texture bytes")
	assert.False(t, c.HasSkin)

	obj.SetTextureData([]byte{1, 2, 3})
	assert.True(t, obj.Capabilities().HasTexture)

	obj.Skeleton = &Skeleton{Joints: []Joint{{Parent: -1}}}
	assert.True(t, obj.Capabilities().HasSkin)
}

func TestDimensionsUnionAndTransform(t *testing.T) {
	a := Dimensions{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}
	b := Dimensions{Min: math3d.V3(0, 0, 0), Max: math3d.V3(3, 1, 1)}

	u := a.Union(b)
	assert.Equal(t, math3d.V3(-1, -1, -1), u.Min)
	assert.Equal(t, math3d.V3(3, 1, 1), u.Max)
	assert.InDelta(t, 4.0, u.Largest(), 1e-9)

	moved := a.Transform(math3d.Translate(math3d.V3(5, 0, 0)))
	assert.True(t, moved.Center().ApproxEqual(math3d.V3(5, 0, 0), 1e-9))
}
