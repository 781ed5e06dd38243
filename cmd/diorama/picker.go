package main

import (
	"math"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/render"
)

// objectSource is where the picker finds candidates.
type objectSource interface {
	Objects() []*models.Object
}

// viewSource provides the matrices and surface size of the last frame.
type viewSource interface {
	ProjectionMatrix() math3d.Mat4
	ViewMatrix() math3d.Mat4
	Size() (int, int)
}

// picker casts a ray through a framebuffer pixel and hits the nearest
// object bounding box.
type picker struct {
	objects objectSource
	view    viewSource
}

func newPicker(objects objectSource, view viewSource) *picker {
	return &picker{objects: objects, view: view}
}

// Pick implements router.Picker.
func (p *picker) Pick(x, y float64) (event.Collision, bool) {
	origin, dir, ok := p.ray(x, y)
	if !ok {
		return event.Collision{}, false
	}

	var (
		hit  *models.Object
		best = math.Inf(1)
	)
	for _, obj := range p.objects.Objects() {
		if obj.Mesh == nil || !obj.Visible() {
			continue
		}
		d := obj.Dimensions()
		t, ok := render.NewAABB(d.Min, d.Max).IntersectRay(origin, dir)
		if ok && t < best {
			hit, best = obj, t
		}
	}
	if hit == nil {
		return event.Collision{}, false
	}
	point := origin.Add(dir.Scale(best))
	return event.Collision{Object: hit, Point: &point}, true
}

// ray un-projects pixel (x, y) onto the near and far planes.
func (p *picker) ray(x, y float64) (origin, dir math3d.Vec3, ok bool) {
	w, h := p.view.Size()
	if w <= 0 || h <= 0 {
		return origin, dir, false
	}
	nx := 2*x/float64(w) - 1
	ny := 1 - 2*y/float64(h)

	inv := p.view.ProjectionMatrix().Mul(p.view.ViewMatrix()).Inverse()
	near := inv.MulVec4(math3d.V4(nx, ny, -1, 1)).PerspectiveDivide()
	far := inv.MulVec4(math3d.V4(nx, ny, 1, 1)).PerspectiveDivide()
	dir = far.Sub(near)
	if dir.LenSq() == 0 {
		return origin, dir, false
	}
	return near, dir.Normalize(), true
}
