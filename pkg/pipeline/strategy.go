package pipeline

import (
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/render"
)

// Flags are the per-frame switches that take part in program selection.
type Flags struct {
	Textures  bool
	Colors    bool
	Lighting  bool
	Animation bool
}

// SelectStrategy picks the draw program for an object. It depends only on
// what the object can provide and what the frame asks for.
func SelectStrategy(c models.Capabilities, f Flags) render.Strategy {
	return render.Strategy{
		Textured: f.Textures && c.HasTexture && c.HasUV,
		Colored:  f.Colors,
		Lit:      f.Lighting && c.HasNormals && c.Primitive == models.Triangles,
		Skinned:  f.Animation && c.HasSkin,
	}
}
