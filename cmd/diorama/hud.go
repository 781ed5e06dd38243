package main

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/pipeline"
	"github.com/taigrr/diorama/pkg/scene"
)

const noticeTTL = 3 * time.Second

type hudScene interface {
	Objects() []*models.Object
	DisplayState() scene.DisplayState
	Loading() bool
}

type hudView interface {
	Projection() pipeline.Projection
}

// hud is the text overlay in the top-left corner. Notices arrive from the
// loader goroutine, so its state sits behind a mutex.
type hud struct {
	filename string
	scene    hudScene
	view     hudView
	now      func() time.Time

	mu            sync.Mutex
	visible       bool
	fps           int
	selected      string
	notice        string
	noticeAt      time.Time
	stopped       string
	width, height int
}

func newHUD(filename string, sc hudScene, view hudView) *hud {
	return &hud{filename: filename, scene: sc, view: view, now: time.Now, visible: true}
}

// OnEvent implements event.Listener.
func (h *hud) OnEvent(ev event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch e := ev.(type) {
	case event.FPS:
		h.fps = e.FPS
	case event.SelectionChanged:
		h.selected = ""
		if e.Object != nil {
			h.selected = e.Object.Name
		}
	case event.Notice:
		h.notice = e.Text
		h.noticeAt = h.now()
	}
}

// SetSize records the surface size in pixels.
func (h *hud) SetSize(w, height int) {
	h.mu.Lock()
	h.width, h.height = w, height
	h.mu.Unlock()
}

// Stop pins the render failure to the overlay for good.
func (h *hud) Stop(err error) {
	h.mu.Lock()
	h.stopped = err.Error() + " │ Esc quits"
	h.mu.Unlock()
}

func (h *hud) Toggle() {
	h.mu.Lock()
	h.visible = !h.visible
	h.mu.Unlock()
}

// Lines returns the overlay text, empty while hidden.
func (h *hud) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.visible {
		return nil
	}

	status := fmt.Sprintf("diorama │ %s │ %d fps │ %dx%d", h.filename, h.fps, h.width, h.height)
	if h.scene.Loading() {
		status += " │ loading…"
	}

	polys := 0
	for _, obj := range h.scene.Objects() {
		if obj.Mesh != nil {
			polys += obj.Mesh.TriangleCount()
		}
	}
	mode := fmt.Sprintf("%d polys │ %s │ %s", polys, h.view.Projection(), h.scene.DisplayState().Draw)
	if h.selected != "" {
		mode += " │ selected: " + h.selected
	}

	lines := []string{status, mode}
	if h.stopped != "" {
		return append(lines, h.stopped)
	}
	if h.notice != "" && h.now().Sub(h.noticeAt) < noticeTTL {
		lines = append(lines, h.notice)
	}
	return lines
}

// Draw paints the overlay over area, one line per row.
func (h *hud) Draw(scr uv.Screen, area uv.Rectangle) {
	for i, line := range h.Lines() {
		y := area.Min.Y + i
		if y >= area.Max.Y {
			return
		}
		line = " " + strings.TrimSpace(line) + " "
		w := min(utf8.RuneCountInString(line), area.Dx())
		uv.NewStyledString("\x1b[1;97;40m"+line+"\x1b[0m").Draw(scr, uv.Rect(area.Min.X, y, w, 1))
	}
}
