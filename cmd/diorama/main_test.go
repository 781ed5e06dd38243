package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/diorama/pkg/config"
	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/pipeline"
	"github.com/taigrr/diorama/pkg/scene"
)

// newTestViewer builds a viewer for a 40x20 cell terminal with the
// auto-orbit off, so the camera only moves when told to.
func newTestViewer(t *testing.T) *viewer {
	t.Helper()
	cfg := config.Default()
	cfg.Scene.OrbitStep = 0
	return newViewer("model.glb", cfg, 40, 20)
}

func box(name string, lo, hi math3d.Vec3) *models.Object {
	mesh := models.NewMesh(name)
	mesh.Vertices = append(mesh.Vertices, models.MeshVertex{Position: lo}, models.MeshVertex{Position: hi})
	mesh.CalculateBounds()
	return models.NewObject(name, mesh)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    [4]float64
		wantErr bool
	}{
		{"0,0,0", [4]float64{0, 0, 0, 1}, false},
		{"255,0,51", [4]float64{1, 0, 0.2, 1}, false},
		{"256,0,0", [4]float64{}, true},
		{"red", [4]float64{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want[:], got[:], 1e-9)
		})
	}
}

func TestLevelFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		vv, v, q bool
		want     slog.Level
		set      bool
	}{
		{"none", false, false, false, 0, false},
		{"quiet", false, false, true, slog.LevelError, true},
		{"verbose", false, true, false, slog.LevelInfo, true},
		{"most verbose wins", true, true, true, slog.LevelDebug, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := levelFromFlags(tt.vv, tt.v, tt.q)
			assert.Equal(t, tt.set, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "diorama.log")
	closeLog, err := setupLogging(config.Log{File: path, Level: slog.LevelWarn})
	require.NoError(t, err)

	slog.Info("dropped")
	slog.Warn("kept")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "dropped")
}

func TestNewViewerSizesSurface(t *testing.T) {
	v := newTestViewer(t)
	w, h := v.renderer.Size()
	assert.Equal(t, 40, w)
	assert.Equal(t, 40, h, "one cell is two pixels tall")

	v.resize(30, 10)
	w, h = v.device.Size()
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)
}

func TestViewStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.yaml")

	v := newTestViewer(t)
	require.NoError(t, v.restoreState(path), "a missing file is not an error")
	v.scene.Camera().Set(math3d.V3(10, 20, 30), math3d.Zero3(), math3d.Up())
	v.renderer.SetProjection(pipeline.Orthographic)
	v.renderer.SetSkyBox(-2)
	require.NoError(t, v.saveState(path))

	v2 := newTestViewer(t)
	require.NoError(t, v2.restoreState(path))
	assert.Equal(t, pipeline.Orthographic, v2.renderer.Projection())
	assert.Equal(t, -2, v2.renderer.SkyBox())
	assert.True(t, v2.scene.Camera().Pos().ApproxEqual(math3d.V3(10, 20, 30), 1e-9))

	require.NoError(t, v2.saveState(""), "no path saves nothing")
}

func TestOnLoadedAppliesTexture(t *testing.T) {
	v := newTestViewer(t)
	a := box("a", math3d.V3(-1, -1, -1), math3d.One3())
	b := box("b", math3d.V3(2, 2, 2), math3d.V3(3, 3, 3))
	v.scene.AddObject(a)
	v.scene.AddObject(b)

	v.onLoaded(nil, []byte("texture"))
	assert.Equal(t, []byte("texture"), a.Material().TextureData)
	assert.Equal(t, []byte("texture"), b.Material().TextureData)
}

// explodingScene is a real scene whose per-frame update panics.
type explodingScene struct{ *scene.Scene }

func (explodingScene) OnDrawFrame() { panic("scene exploded") }

type noticeCounter struct{ texts []string }

func (c *noticeCounter) OnEvent(ev event.Event) {
	if n, ok := ev.(event.Notice); ok {
		c.texts = append(c.texts, n.Text)
	}
}

func TestFailedFrameKeepsViewerUp(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	v := newTestViewer(t)
	notices := &noticeCounter{}
	v.bus.Add(notices)
	v.renderer = pipeline.New(v.device, explodingScene{v.scene}, pipeline.WithBus(v.bus))
	v.renderer.OnSurfaceCreated()
	v.renderer.OnSurfaceChanged(40, 40)

	for range 10 {
		v.frame()
	}
	require.True(t, v.renderer.Broken())
	require.Len(t, notices.texts, 1, "the failure is reported once")
	assert.Contains(t, notices.texts[0], "scene exploded")
	assert.Equal(t, 1, strings.Count(logs.String(), "rendering stopped"))

	lines := v.hud.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "scene exploded")

	// input still works and Esc still quits
	in := &input{}
	require.NoError(t, apply(t, v, in.translate(keyPress('w', "w"))))
	assert.Equal(t, scene.DrawWireframe, v.scene.DisplayState().Draw)
	assert.ErrorIs(t, apply(t, v, in.translate(keyPress(uv.KeyEscape, ""))), errQuit)
}
