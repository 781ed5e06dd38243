package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/diorama/pkg/math3d"
)

func TestDefaultMaterial(t *testing.T) {
	m := DefaultMaterial()
	assert.Equal(t, [4]float64{1, 1, 1, 1}, m.BaseColor)
	assert.False(t, m.HasTexture())

	m.TextureData = []byte{0x89, 'P', 'N', 'G'}
	assert.True(t, m.HasTexture())
}

func TestFaceMaterialIndex(t *testing.T) {
	mesh := NewMesh("test")
	mesh.Materials = []Material{
		{Name: "red", BaseColor: [4]float64{1, 0, 0, 1}},
		{Name: "green", BaseColor: [4]float64{0, 1, 0, 1}},
	}
	mesh.Faces = []Face{
		{V: [3]int{0, 1, 2}, Material: 0},
		{V: [3]int{3, 4, 5}, Material: 1},
		{V: [3]int{6, 7, 8}, Material: -1},
	}

	assert.Equal(t, 0, mesh.GetFaceMaterial(0))
	assert.Equal(t, -1, mesh.GetFaceMaterial(2))
	if mat := mesh.GetMaterial(0); assert.NotNil(t, mat) {
		assert.Equal(t, "red", mat.Name)
	}
	assert.Nil(t, mesh.GetMaterial(-1))
	assert.Nil(t, mesh.GetMaterial(99))
}

func TestMeshCloneIsDeep(t *testing.T) {
	mesh := NewMesh("original")
	mesh.Primitive = Lines
	mesh.Materials = []Material{{Name: "mat1"}}
	mesh.Lines = []Line{{0, 1}}

	clone := mesh.Clone()
	clone.Materials[0].Name = "modified"
	clone.Lines[0] = Line{2, 3}

	assert.Equal(t, "mat1", mesh.Materials[0].Name)
	assert.Equal(t, Line{0, 1}, mesh.Lines[0])
	assert.Equal(t, Lines, clone.Primitive)
}

func TestPrimitiveCounts(t *testing.T) {
	tests := []struct {
		name      string
		primitive Primitive
		triangles int
		lines     int
	}{
		{"triangles", Triangles, 1, 0},
		{"lines", Lines, 0, 1},
		{"points", Points, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{
				Primitive: tt.primitive,
				Faces:     []Face{{V: [3]int{0, 1, 2}}},
				Lines:     []Line{{0, 1}},
			}
			assert.Equal(t, tt.triangles, m.TriangleCount())
			assert.Equal(t, tt.lines, m.LineCount())
			assert.Equal(t, tt.name, tt.primitive.String())
		})
	}
}

func TestSmoothAndFlatNormals(t *testing.T) {
	// two triangles folded along the shared edge 0-1
	mesh := &Mesh{
		Vertices: []MeshVertex{
			{Position: math3d.V3(0, 0, 0)}, {Position: math3d.V3(1, 0, 0)},
			{Position: math3d.V3(0, 1, 0)}, {Position: math3d.V3(0, 0, -1)},
		},
		Faces: []Face{{V: [3]int{0, 1, 2}}, {V: [3]int{0, 1, 3}}},
	}

	mesh.CalculateSmoothNormals()
	shared := mesh.Vertices[0].Normal
	assert.InDelta(t, 1.0, shared.Len(), 1e-9)
	assert.Greater(t, shared.Y, 0.0)
	assert.Greater(t, shared.Z, 0.0)

	mesh.CalculateNormals()
	assert.InDelta(t, 1.0, mesh.Vertices[2].Normal.Z, 1e-9)
}
