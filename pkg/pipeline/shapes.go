package pipeline

import (
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
)

// Derived geometry. Everything here is built in the source object's local
// space and keeps its skin attributes, so it is drawn with the object's
// model matrix and joint matrices and follows the animation.

func lineMesh(name string, verts []models.MeshVertex, lines []models.Line) *models.Mesh {
	m := models.NewMesh(name)
	m.Primitive = models.Lines
	m.Vertices = verts
	m.Lines = lines
	m.CalculateBounds()
	return m
}

// wireframeMesh returns the unique triangle edges of m as lines.
func wireframeMesh(m *models.Mesh) *models.Mesh {
	verts := make([]models.MeshVertex, len(m.Vertices))
	copy(verts, m.Vertices)

	seen := make(map[models.Line]struct{}, len(m.Faces)*3)
	lines := make([]models.Line, 0, len(m.Faces)*3)
	for _, f := range m.Faces {
		for i := range 3 {
			a, b := f.V[i], f.V[(i+1)%3]
			if a > b {
				a, b = b, a
			}
			key := models.Line{a, b}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			lines = append(lines, key)
		}
	}
	return lineMesh(m.Name+"_wireframe", verts, lines)
}

// normalsMesh returns one segment per vertex along its normal, or nil when
// the mesh has no triangles or no normals.
func normalsMesh(m *models.Mesh) *models.Mesh {
	if m.Primitive != models.Triangles || !m.HasNormals() {
		return nil
	}
	length := m.Dimensions().Largest() * 0.05
	if length <= 0 {
		length = 1
	}

	verts := make([]models.MeshVertex, 0, len(m.Vertices)*2)
	lines := make([]models.Line, 0, len(m.Vertices))
	for _, v := range m.Vertices {
		if v.Normal.LenSq() == 0 {
			continue
		}
		tip := v
		tip.Position = v.Position.Add(v.Normal.Normalize().Scale(length))
		n := len(verts)
		verts = append(verts, v, tip)
		lines = append(lines, models.Line{n, n + 1})
	}
	return lineMesh(m.Name+"_normals", verts, lines)
}

var boxEdges = []models.Line{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// boxMesh returns the twelve edges of d.
func boxMesh(name string, d models.Dimensions) *models.Mesh {
	corners := d.Corners()
	verts := make([]models.MeshVertex, len(corners))
	for i, c := range corners {
		verts[i].Position = c
	}
	return lineMesh(name, verts, append([]models.Line(nil), boxEdges...))
}

// boneMesh links every joint to its parent. Each vertex sits at its
// joint's bind position, fully weighted to that joint, so skinning with
// the current joint matrices puts it where the joint is now.
func boneMesh(name string, s *models.Skeleton) *models.Mesh {
	verts := make([]models.MeshVertex, len(s.Joints))
	var lines []models.Line
	for i, j := range s.Joints {
		verts[i] = models.MeshVertex{
			Position: j.InverseBind.Inverse().Translation(),
			Joints:   [4]int{i},
			Weights:  [4]float64{1},
		}
		if j.Parent >= 0 && j.Parent < len(s.Joints) {
			lines = append(lines, models.Line{j.Parent, i})
		}
	}
	return lineMesh(name, verts, lines)
}

// gridMesh returns a square grid spanning lo..hi in the plane where lo
// and hi agree, with a line every step.
func gridMesh(name string, lo, hi math3d.Vec3, step float64) *models.Mesh {
	axes := [3]func(v *math3d.Vec3) *float64{
		func(v *math3d.Vec3) *float64 { return &v.X },
		func(v *math3d.Vec3) *float64 { return &v.Y },
		func(v *math3d.Vec3) *float64 { return &v.Z },
	}
	var plane []int
	for i, ax := range axes {
		if *ax(&lo) != *ax(&hi) {
			plane = append(plane, i)
		}
	}
	m := lineMesh(name, nil, nil)
	if len(plane) != 2 || step <= 0 {
		return m
	}

	for k := range 2 {
		across := axes[plane[1-k]]
		for t := *across(&lo); t <= *across(&hi)+step/2; t += step {
			a, b := lo, hi
			*across(&a), *across(&b) = t, t
			n := len(m.Vertices)
			m.Vertices = append(m.Vertices, models.MeshVertex{Position: a}, models.MeshVertex{Position: b})
			m.Lines = append(m.Lines, models.Line{n, n + 1})
		}
	}
	m.CalculateBounds()
	return m
}

// cubeMesh returns a closed cube of half-size h centred on the origin.
func cubeMesh(name string, h float64) *models.Mesh {
	m := models.NewMesh(name)
	for _, c := range (models.Dimensions{Min: math3d.V3(-h, -h, -h), Max: math3d.V3(h, h, h)}).Corners() {
		m.Vertices = append(m.Vertices, models.MeshVertex{Position: c})
	}
	for _, f := range [][3]int{
		{0, 1, 2}, {0, 2, 3}, // -Z
		{4, 6, 5}, {4, 7, 6}, // +Z
		{0, 4, 5}, {0, 5, 1}, // -Y
		{3, 2, 6}, {3, 6, 7}, // +Y
		{0, 3, 7}, {0, 7, 4}, // -X
		{1, 5, 6}, {1, 6, 2}, // +X
	} {
		m.Faces = append(m.Faces, models.Face{V: f, Material: -1})
	}
	m.CalculateBounds()
	return m
}

func pointObject(name string, at math3d.Vec3) *models.Object {
	m := models.NewMesh(name)
	m.Primitive = models.Points
	m.Vertices = append(m.Vertices, models.MeshVertex{Position: at})
	m.CalculateBounds()
	return models.NewObject(name, m)
}

func coloredObject(mesh *models.Mesh, rgba [4]float64) *models.Object {
	obj := models.NewObject(mesh.Name, mesh)
	mat := models.DefaultMaterial()
	mat.BaseColor = rgba
	obj.SetMaterial(mat)
	return obj
}

// decorations returns the axis and the three translucent grids, scaled to
// unit.
func decorations(unit float64) []*models.Object {
	x, y, z := math3d.V3(unit, 0, 0), math3d.V3(0, unit, 0), math3d.V3(0, 0, unit)
	axis := func(name string, tip math3d.Vec3, rgba [4]float64) *models.Object {
		verts := []models.MeshVertex{{}, {Position: tip}}
		return coloredObject(lineMesh(name, verts, []models.Line{{0, 1}}), rgba)
	}
	step := unit / 10
	return []*models.Object{
		axis("axis-x", x, [4]float64{1, 0, 0, 1}),
		axis("axis-y", y, [4]float64{0, 1, 0, 1}),
		axis("axis-z", z, [4]float64{0, 0, 1, 1}),
		coloredObject(gridMesh("grid-x", math3d.V3(-unit, 0, -unit), math3d.V3(unit, 0, unit), step), [4]float64{1, 0, 0, 0.25}),
		coloredObject(gridMesh("grid-y", math3d.V3(-unit, -unit, 0), math3d.V3(unit, unit, 0), step), [4]float64{0, 1, 0, 0.25}),
		coloredObject(gridMesh("grid-z", math3d.V3(0, -unit, -unit), math3d.V3(0, unit, unit), step), [4]float64{0, 0, 1, 0.25}),
	}
}
