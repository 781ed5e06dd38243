package scene

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
)

// The load hooks make Scene a models.LoadListener.

func (s *Scene) OnStart() {
	s.mu.Lock()
	s.loading = true
	s.loadStart = s.now()
	s.mu.Unlock()
	slog.Info("load started")
}

func (s *Scene) OnProgress(msg string) {
	slog.Info("load progress", "msg", msg)
	s.notify(msg)
}

// OnLoad poses the object's skeleton before it becomes visible, so the
// first frame never draws an unposed skin, then adds it.
func (s *Scene) OnLoad(obj *models.Object) {
	if obj == nil {
		return
	}
	s.animator.Update(obj, s.DisplayState().ShowBindPose())
	s.AddObject(obj)
}

// OnLoadComplete reports load errors and timing, centers a lone object,
// fixes the coordinate system and rescales everything to the unit size.
func (s *Scene) OnLoadComplete() {
	objs := s.Objects()

	var errs []string
	for _, obj := range objs {
		errs = append(errs, obj.Errors()...)
	}
	if len(errs) > 0 {
		s.notify(strings.Join(errs, "; "))
	}

	s.mu.Lock()
	elapsed := s.now().Sub(s.loadStart)
	s.loading = false
	s.mu.Unlock()
	s.notify(fmt.Sprintf("Load complete (%d secs)", int(elapsed.Seconds())))

	if len(objs) == 1 {
		objs[0].SetCentered(true)
	}
	s.FixCoordinateSystem()
	s.Rescale(s.unit)
}

func (s *Scene) OnLoadError(err error) {
	slog.Error("load failed", "err", err)
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notify("There was a problem building the model: " + err.Error())
}

// Loading reports whether a load is in progress.
func (s *Scene) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// FixCoordinateSystem stands Z-up models authored in Blender upright by
// turning them 90° about +X. Only the objects are touched, never the
// camera.
func (s *Scene) FixCoordinateSystem() {
	upright := math3d.QuatAxisAngle(math3d.Right(), math.Pi/2)
	fixed := false
	for _, obj := range s.Objects() {
		if !strings.Contains(strings.ToLower(obj.AuthoringTool), "blender") {
			continue
		}
		slog.Info("fixing coordinate system", "object", obj.Name, "tool", obj.AuthoringTool)
		obj.SetOrientation(upright)
		fixed = true
	}
	if fixed {
		s.mu.Lock()
		s.fixed = true
		s.mu.Unlock()
	}
}

// Rescale scales and moves every object so the whole scene fits in a box
// of the target size. The factor is target / (largest extent of the union
// box + largest absolute center coordinate). Factors inside the rescale
// band leave the scene untouched. Scale and location always derive from
// the values each object had the first time it was rescaled, so repeated
// calls do not compound.
func (s *Scene) Rescale(target float64) {
	objs := s.Objects()
	if len(objs) == 0 {
		return
	}

	s.mu.Lock()
	var union models.Dimensions
	maxCenter := 0.0
	for i, obj := range objs {
		dims, ok := s.origDims[obj.ID()]
		if !ok {
			dims = obj.Dimensions()
			s.origDims[obj.ID()] = dims
		}
		if i == 0 {
			union = dims
		} else {
			union = union.Union(dims)
		}
		if len(objs) > 1 {
			maxCenter = max(maxCenter, dims.Center().Abs().MaxComponent())
		}
	}
	lower, upper := s.lower, s.upper
	s.mu.Unlock()

	denom := union.Largest() + maxCenter
	if denom <= 0 {
		slog.Warn("rescale skipped: empty bounds", "objects", len(objs))
		return
	}
	factor := target / denom
	if factor > lower && factor < upper {
		slog.Debug("rescale not needed", "factor", factor)
		return
	}

	for _, obj := range objs {
		s.mu.Lock()
		orig, ok := s.origTransforms[obj.ID()]
		if !ok {
			orig = obj.Transform()
			s.origTransforms[obj.ID()] = orig
		}
		s.mu.Unlock()

		t := obj.Transform()
		t.Scale = orig.Scale.Scale(factor)
		t.Location = orig.Location.Scale(factor)
		obj.SetTransform(t)
	}

	// the union center after scaling; shown for diagnosis, the scene is
	// not shifted by it
	recenter := union.Center().Scale(-factor)
	slog.Info("rescaled scene", "objects", len(objs), "factor", factor, "recenter", recenter)
}

// LoadTexture replaces the texture of obj, or of the only object when obj
// is nil, and turns textures back on.
func (s *Scene) LoadTexture(obj *models.Object, data []byte) error {
	if obj == nil {
		objs := s.Objects()
		if len(objs) != 1 {
			s.notify("Unavailable")
			return ErrNoTarget
		}
		obj = objs[0]
	}
	obj.SetTextureData(data)
	for i := range obj.Elements {
		obj.Elements[i].Material.TextureData = data
	}

	s.mu.Lock()
	s.display.Textures = TexturesOn
	s.mu.Unlock()
	slog.Info("texture replaced", "object", obj.Name, "bytes", len(data))
	return nil
}
