package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/render"
)

// SkyBoxSource produces a cube map. It runs the first time its skybox is
// shown.
type SkyBoxSource func() (*render.CubeMap, error)

// DefaultSkyBoxes returns the two built-in skyboxes: a sky gradient and a
// checkered room.
func DefaultSkyBoxes() []SkyBoxSource {
	return []SkyBoxSource{GradientSkyBox, CheckerSkyBox}
}

// GradientSkyBox fades from sky blue overhead to white at the horizon,
// over a gray floor.
func GradientSkyBox() (*render.CubeMap, error) {
	side := render.NewGradientTexture(64, render.ColorSky, render.ColorWhite)
	top := render.NewGradientTexture(4, render.ColorSky, render.ColorSky)
	floor := render.NewGradientTexture(4, render.ColorGray, render.ColorGray)
	return &render.CubeMap{Faces: [6]*render.Texture{side, side, top, floor, side, side}}, nil
}

// CheckerSkyBox lines every face with a two-tone checkerboard.
func CheckerSkyBox() (*render.CubeMap, error) {
	check := render.NewCheckerTexture(64, 8, render.RGBA(90, 90, 100, 255), render.RGBA(40, 40, 48, 255))
	var cube render.CubeMap
	for i := range cube.Faces {
		cube.Faces[i] = check
	}
	return &cube, nil
}

// ImageSkyBox decodes six encoded face images in +X, -X, +Y, -Y, +Z, -Z
// order.
func ImageSkyBox(faces [6][]byte, maxSize int) SkyBoxSource {
	return func() (*render.CubeMap, error) {
		var cube render.CubeMap
		for i, data := range faces {
			tex, err := render.DecodeTexture(data, maxSize)
			if err != nil {
				return nil, fmt.Errorf("skybox face %d: %w", i, err)
			}
			cube.Faces[i] = tex
		}
		return &cube, nil
	}
}

// drawSkyBox paints the background for the current skybox state. A cube
// map that fails to load or draw turns cube-map skyboxes off for the rest
// of the session.
func (r *Renderer) drawSkyBox(p pass) {
	id := r.SkyBox()
	switch {
	case id == -3:
		for _, obj := range r.extras {
			r.draw(render.DrawCall{
				Geometry:   obj.Mesh,
				Topology:   render.TopologyLines,
				Strategy:   render.Strategy{Colored: true},
				Model:      math3d.Identity(),
				View:       p.view,
				Projection: p.proj,
				Color:      render.FromFloats(obj.Material().BaseColor),
				ColorMask:  p.mask,
			}, obj.Name)
		}

	case id == -2:
		r.dev.SetClearColor(r.background)
		r.dev.Clear(true, true)

	case id == -1:
		r.dev.SetClearColor(render.Invert(r.background))
		r.dev.Clear(true, true)

	case r.skyBoxOn && id >= 0 && id < len(r.skyBoxSources):
		tex := r.skyBoxTex[id]
		if tex == 0 {
			slog.Info("loading skybox", "id", id)
			cube, err := r.skyBoxSources[id]()
			if err != nil {
				slog.Error("skybox unavailable", "id", id, "err", err)
				r.skyBoxOn = false
				return
			}
			tex = r.dev.AddCubeMap(cube)
			r.skyBoxTex[id] = tex
		}

		r.dev.SetClearColor(render.ColorBlack)
		r.dev.Clear(true, true)
		err := r.dev.Draw(render.DrawCall{
			Geometry:   r.skyBoxMesh.Mesh,
			Topology:   render.TopologyTriangles,
			Strategy:   render.Strategy{CubeMap: true},
			Texture:    tex,
			Model:      r.skyBoxMesh.ModelMatrix(),
			View:       p.view,
			Projection: r.skyProj,
		})
		if err != nil {
			slog.Error("skybox draw failed", "id", id, "err", err)
			r.skyBoxOn = false
		}
	}
}
