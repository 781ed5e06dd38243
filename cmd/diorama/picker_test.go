package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/router"
)

var _ router.Picker = (*picker)(nil)

type objectList []*models.Object

func (l objectList) Objects() []*models.Object { return l }

// fixedView looks down -Z from z=10 with a 90° frustum on a 100x100
// surface.
type fixedView struct{}

func (fixedView) ProjectionMatrix() math3d.Mat4 { return math3d.Frustum(-1, 1, -1, 1, 1, 1000) }
func (fixedView) Size() (int, int)              { return 100, 100 }

func (fixedView) ViewMatrix() math3d.Mat4 {
	return math3d.LookAt(math3d.V3(0, 0, 10), math3d.Zero3(), math3d.Up())
}

func TestPickCenter(t *testing.T) {
	target := box("target", math3d.V3(-1, -1, -1), math3d.One3())
	p := newPicker(objectList{target}, fixedView{})

	hit, ok := p.Pick(50, 50)
	require.True(t, ok)
	assert.Same(t, target, hit.Object)
	require.NotNil(t, hit.Point)
	assert.True(t, hit.Point.ApproxEqual(math3d.V3(0, 0, 1), 1e-6), "got %v", *hit.Point)

	_, ok = p.Pick(0, 0)
	assert.False(t, ok)
}

func TestPickNearest(t *testing.T) {
	far := box("far", math3d.V3(-1, -1, -1), math3d.One3())
	near := box("near", math3d.V3(-1, -1, 2), math3d.V3(1, 1, 4))
	p := newPicker(objectList{far, near}, fixedView{})

	hit, ok := p.Pick(50, 50)
	require.True(t, ok)
	assert.Same(t, near, hit.Object)
}

func TestPickSkipsHidden(t *testing.T) {
	hidden := box("hidden", math3d.V3(-1, -1, 2), math3d.V3(1, 1, 4))
	hidden.SetVisible(false)
	behind := box("behind", math3d.V3(-1, -1, -1), math3d.One3())
	p := newPicker(objectList{hidden, behind, models.NewObject("empty", nil)}, fixedView{})

	hit, ok := p.Pick(50, 50)
	require.True(t, ok)
	assert.Same(t, behind, hit.Object)
}

type emptyView struct{ fixedView }

func (emptyView) Size() (int, int) { return 0, 0 }

func TestPickWithoutSurface(t *testing.T) {
	p := newPicker(objectList{box("b", math3d.V3(-1, -1, -1), math3d.One3())}, emptyView{})
	_, ok := p.Pick(0, 0)
	assert.False(t, ok)
}
