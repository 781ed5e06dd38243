package router

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/pipeline"
)

// ErrBadState is returned for a view state that cannot be restored.
var ErrBadState = errors.New("invalid view state")

// CameraState is a camera pose as plain triples.
type CameraState struct {
	Pos  [3]float64 `yaml:"pos,flow"`
	View [3]float64 `yaml:"view,flow"`
	Up   [3]float64 `yaml:"up,flow"`
}

// ViewState is what survives a restart: the camera pose, the projection
// by name and the skybox.
type ViewState struct {
	Camera     CameraState `yaml:"camera"`
	Projection string      `yaml:"projection"`
	SkyBox     int         `yaml:"skybox"`
}

func triple(v math3d.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
func vec(t [3]float64) math3d.Vec3    { return math3d.V3(t[0], t[1], t[2]) }

// Snapshot captures the current view.
func (r *Router) Snapshot() ViewState {
	pose := r.scene.Camera().Pose()
	return ViewState{
		Camera: CameraState{
			Pos:  triple(pose.Pos),
			View: triple(pose.View),
			Up:   triple(pose.Up),
		},
		Projection: r.view.Projection().String(),
		SkyBox:     r.view.SkyBox(),
	}
}

// Restore applies s. The projection goes first so its preset pose does
// not override the restored camera.
func (r *Router) Restore(s ViewState) error {
	p, err := pipeline.ParseProjection(s.Projection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadState, err)
	}
	pos, view, up := vec(s.Camera.Pos), vec(s.Camera.View), vec(s.Camera.Up)
	if up.LenSq() == 0 {
		return fmt.Errorf("%w: zero up vector", ErrBadState)
	}
	if pos.ApproxEqual(view, 1e-9) {
		return fmt.Errorf("%w: camera looks at itself", ErrBadState)
	}
	if s.SkyBox < -3 || s.SkyBox >= r.view.SkyBoxCount() {
		return fmt.Errorf("%w: skybox %d", ErrBadState, s.SkyBox)
	}

	r.view.SetProjection(p)
	r.scene.Camera().Set(pos, view, up)
	r.view.SetSkyBox(s.SkyBox)
	return nil
}

// SaveState writes the current view as YAML.
func (r *Router) SaveState(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Snapshot()); err != nil {
		return fmt.Errorf("encode view state: %w", err)
	}
	return enc.Close()
}

// LoadState reads a YAML view state and restores it.
func (r *Router) LoadState(rd io.Reader) error {
	var s ViewState
	if err := yaml.NewDecoder(rd).Decode(&s); err != nil {
		return fmt.Errorf("%w: %w", ErrBadState, err)
	}
	return r.Restore(s)
}
