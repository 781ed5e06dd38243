package models

import (
	"math"

	"github.com/taigrr/diorama/pkg/math3d"
)

// Dimensions is an axis-aligned bounding box.
type Dimensions struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// Center returns the midpoint of the box.
func (d Dimensions) Center() math3d.Vec3 {
	return d.Min.Add(d.Max).Scale(0.5)
}

// Size returns the extent along each axis.
func (d Dimensions) Size() math3d.Vec3 {
	return d.Max.Sub(d.Min)
}

// Largest returns the longest of the three extents.
func (d Dimensions) Largest() float64 {
	return d.Size().MaxComponent()
}

// Union returns the smallest box holding both.
func (d Dimensions) Union(o Dimensions) Dimensions {
	return Dimensions{Min: d.Min.Min(o.Min), Max: d.Max.Max(o.Max)}
}

// Corners returns the eight corners of the box.
func (d Dimensions) Corners() [8]math3d.Vec3 {
	lo, hi := d.Min, d.Max
	return [8]math3d.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
	}
}

// Transform returns the box enclosing d after transformation by m.
func (d Dimensions) Transform(m math3d.Mat4) Dimensions {
	inf := math.Inf(1)
	out := Dimensions{
		Min: math3d.V3(inf, inf, inf),
		Max: math3d.V3(-inf, -inf, -inf),
	}
	for _, c := range d.Corners() {
		p := m.MulVec3(c)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}
